// Package server provides the MCP server built on a transport and a
// protocol handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wirelight/mcp-go/handler"
	"github.com/wirelight/mcp-go/middleware"
	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/transport"
)

// Info contains server metadata exposed to clients.
type Info struct {
	Name         string
	Version      string
	Capabilities Capabilities
}

// Capabilities declares what features the server supports.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
	Logging   bool `json:"logging"`
}

// ToolInfo represents metadata about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger used by the server.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHandlerOptions forwards options to the underlying protocol handler.
func WithHandlerOptions(opts ...handler.Option) Option {
	return func(s *Server) {
		s.handlerOpts = append(s.handlerOpts, opts...)
	}
}

// Server is the MCP server instance. It owns a transport and a protocol
// handler and dispatches the standard MCP methods to registered tools,
// resources and prompts.
type Server struct {
	mu sync.RWMutex

	info        Info
	tr          transport.Transport
	h           *handler.Handler
	logger      *slog.Logger
	handlerOpts []handler.Option

	middleware []middleware.Middleware
	tools      map[string]*Tool
	resources  map[string]*Resource
	prompts    map[string]*Prompt

	logLevel LogLevel
	running  bool
}

// New creates a new MCP server with the given info, speaking over tr.
func New(info Info, tr transport.Transport, opts ...Option) *Server {
	s := &Server{
		info:      info,
		tr:        tr,
		logger:    slog.Default(),
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		prompts:   make(map[string]*Prompt),
		logLevel:  LogLevelInfo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Use registers middleware to be applied to every request handler.
// Middleware must be installed before Start.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// Handler returns the underlying protocol handler. It is nil until Start.
func (s *Server) Handler() *handler.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

// Start connects the transport, registers the standard MCP methods and
// starts the protocol handler. Calling Start on a running server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if err := s.tr.Connect(ctx); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("connect transport: %w", err)
	}

	opts := append([]handler.Option{handler.WithLogger(s.logger)}, s.handlerOpts...)
	s.h = handler.New(s.tr, opts...)
	s.registerMethods()
	s.running = true
	s.mu.Unlock()

	if err := s.h.Start(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.tr.Close()
		return fmt.Errorf("start handler: %w", err)
	}

	s.logger.Info("server started", "name", s.info.Name, "version", s.info.Version)
	return nil
}

// Stop stops the handler and closes the transport. Safe to call twice.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	h := s.h
	s.mu.Unlock()

	h.Stop()
	err := s.tr.Close()
	s.logger.Info("server stopped", "name", s.info.Name)
	return err
}

// Running reports whether the server has been started and not yet stopped.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// registerMethods wires the standard MCP methods into the handler, with
// the installed middleware chain applied to each. Caller holds s.mu.
func (s *Server) registerMethods() {
	chain := middleware.Chain(s.middleware...)

	register := func(method string, fn middleware.HandlerFunc) {
		s.h.RegisterRequestHandler(method, handler.RequestHandler(chain(fn)))
	}

	register(protocol.MethodInitialize, s.handleInitialize)
	register(protocol.MethodShutdown, s.handleShutdown)
	register(protocol.MethodToolsList, s.handleToolsList)
	register(protocol.MethodToolsCall, s.handleToolsCall)
	register(protocol.MethodResourcesList, s.handleResourcesList)
	register(protocol.MethodResourcesRead, s.handleResourcesRead)
	register(protocol.MethodPromptsList, s.handlePromptsList)
	register(protocol.MethodPromptsGet, s.handlePromptsGet)
	register(protocol.MethodLoggingSetLevel, s.handleSetLevel)

	s.h.RegisterNotificationHandler(protocol.MethodInitialized, s.handleInitialized)
}

func (s *Server) handleInitialize(ctx context.Context, req *protocol.Request) (map[string]any, error) {
	if v, ok := req.Params["protocolVersion"].(string); ok && v != protocol.MCPVersion {
		s.logger.Warn("client requested different protocol version",
			"client", v, "server", protocol.MCPVersion)
	}

	info := s.Info()
	return map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"serverInfo": map[string]any{
			"name":    info.Name,
			"version": info.Version,
		},
		"capabilities": info.Capabilities,
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, _ *protocol.Notification) error {
	s.logger.Debug("client initialized")
	if len(s.Tools()) > 0 {
		return s.h.SendNotification(ctx, protocol.MethodToolsUpdated, nil)
	}
	return nil
}

// handleShutdown acknowledges the request, then tears the server down once
// the reply has gone out.
func (s *Server) handleShutdown(ctx context.Context, _ *protocol.Request) (map[string]any, error) {
	go func() {
		// Give the acknowledgement a chance to flush before the
		// transport goes away.
		time.Sleep(100 * time.Millisecond)
		if err := s.Stop(); err != nil {
			s.logger.Error("shutdown", "error", err)
		}
	}()
	return map[string]any{}, nil
}

func (s *Server) handleSetLevel(_ context.Context, req *protocol.Request) (map[string]any, error) {
	raw, ok := req.Params["level"].(string)
	if !ok {
		return nil, protocol.NewInvalidParams("missing level")
	}
	level := LogLevel(raw)
	if !level.Valid() {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("unknown log level %q", raw))
	}

	s.mu.Lock()
	s.logLevel = level
	s.mu.Unlock()
	return map[string]any{}, nil
}
