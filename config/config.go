// Package config loads runtime configuration from the environment.
//
// Values come from MCP_* environment variables, optionally seeded from a
// .env file in the working directory. Unset values fall back to defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the environment does not override a value.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPollInterval      = 1 * time.Second
	DefaultKeepaliveInterval = 30 * time.Second
	DefaultMaxConnections    = 100
	DefaultLogLevel          = "info"
)

// Config holds the runtime configuration for an MCP endpoint.
type Config struct {
	// ConnectTimeout bounds transport connection establishment.
	ConnectTimeout time.Duration
	// ReadTimeout bounds a single read on the transport.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write on the transport.
	WriteTimeout time.Duration
	// RequestTimeout is the default deadline for outbound requests.
	RequestTimeout time.Duration
	// PollInterval is the delay between polls on the polling transport.
	PollInterval time.Duration
	// KeepaliveInterval is the websocket ping interval.
	KeepaliveInterval time.Duration
	// MaxConnections caps concurrent sessions on the poll server.
	MaxConnections int

	ServerName    string
	ServerVersion string
	LogLevel      string
}

// Default returns a Config populated with the package defaults.
func Default() Config {
	return Config{
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		PollInterval:      DefaultPollInterval,
		KeepaliveInterval: DefaultKeepaliveInterval,
		MaxConnections:    DefaultMaxConnections,
		ServerName:        "mcp-server",
		ServerVersion:     "0.0.0",
		LogLevel:          DefaultLogLevel,
	}
}

// Load reads configuration from the environment, seeding it from .env if
// one exists. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from MCP_* environment variables without
// touching .env.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	if cfg.ConnectTimeout, err = durationEnv("MCP_CONNECT_TIMEOUT", cfg.ConnectTimeout); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = durationEnv("MCP_READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = durationEnv("MCP_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = durationEnv("MCP_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = durationEnv("MCP_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return cfg, err
	}
	if cfg.KeepaliveInterval, err = durationEnv("MCP_KEEPALIVE_INTERVAL", cfg.KeepaliveInterval); err != nil {
		return cfg, err
	}
	if cfg.MaxConnections, err = intEnv("MCP_MAX_CONNECTIONS", cfg.MaxConnections); err != nil {
		return cfg, err
	}

	cfg.ServerName = stringEnv("MCP_SERVER_NAME", cfg.ServerName)
	cfg.ServerVersion = stringEnv("MCP_SERVER_VERSION", cfg.ServerVersion)
	cfg.LogLevel = stringEnv("MCP_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.MaxConnections < 1 {
		return fmt.Errorf("config: max connections must be positive, got %d", c.MaxConnections)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %s", c.PollInterval)
	}
	for name, d := range map[string]time.Duration{
		"connect timeout": c.ConnectTimeout,
		"read timeout":    c.ReadTimeout,
		"write timeout":   c.WriteTimeout,
		"request timeout": c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are taken as seconds.
		if secs, serr := strconv.Atoi(v); serr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return n, nil
}
