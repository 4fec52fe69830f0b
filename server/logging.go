package server

import (
	"context"

	"github.com/wirelight/mcp-go/protocol"
)

// LogLevel represents MCP logging levels. These follow syslog severity
// levels per the MCP specification.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// logLevelPriority returns the priority of a log level (higher = more severe).
func logLevelPriority(level LogLevel) int {
	switch level {
	case LogLevelDebug:
		return 0
	case LogLevelInfo:
		return 1
	case LogLevelNotice:
		return 2
	case LogLevelWarning:
		return 3
	case LogLevelError:
		return 4
	case LogLevelCritical:
		return 5
	case LogLevelAlert:
		return 6
	case LogLevelEmergency:
		return 7
	default:
		return -1
	}
}

// Valid reports whether the level is one of the defined MCP levels.
func (l LogLevel) Valid() bool {
	return logLevelPriority(l) >= 0
}

// ShouldLog returns true if a message at the given level should be sent
// given the current minimum level.
func ShouldLog(messageLevel, minLevel LogLevel) bool {
	return logLevelPriority(messageLevel) >= logLevelPriority(minLevel)
}

// LogLevel returns the currently configured minimum client log level.
func (s *Server) LogLevel() LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logLevel
}

// Log sends a notifications/message to the client if level passes the
// configured minimum. Messages below the gate are dropped silently.
func (s *Server) Log(ctx context.Context, level LogLevel, loggerName string, data any) error {
	s.mu.RLock()
	min := s.logLevel
	h := s.h
	s.mu.RUnlock()

	if h == nil || !ShouldLog(level, min) {
		return nil
	}

	params := map[string]any{
		"level": string(level),
		"data":  data,
	}
	if loggerName != "" {
		params["logger"] = loggerName
	}
	return h.SendNotification(ctx, protocol.MethodMessage, params)
}

// LogDebug sends a debug-level client log message.
func (s *Server) LogDebug(ctx context.Context, loggerName string, data any) error {
	return s.Log(ctx, LogLevelDebug, loggerName, data)
}

// LogInfo sends an info-level client log message.
func (s *Server) LogInfo(ctx context.Context, loggerName string, data any) error {
	return s.Log(ctx, LogLevelInfo, loggerName, data)
}

// LogWarning sends a warning-level client log message.
func (s *Server) LogWarning(ctx context.Context, loggerName string, data any) error {
	return s.Log(ctx, LogLevelWarning, loggerName, data)
}

// LogError sends an error-level client log message.
func (s *Server) LogError(ctx context.Context, loggerName string, data any) error {
	return s.Log(ctx, LogLevelError, loggerName, data)
}
