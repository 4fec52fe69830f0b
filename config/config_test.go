package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %s", cfg.ReadTimeout)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.MaxConnections != 100 {
		t.Errorf("MaxConnections = %d", cfg.MaxConnections)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MCP_CONNECT_TIMEOUT", "5s")
	t.Setenv("MCP_READ_TIMEOUT", "45")
	t.Setenv("MCP_MAX_CONNECTIONS", "7")
	t.Setenv("MCP_SERVER_NAME", "wire-test")
	t.Setenv("MCP_LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout)
	}
	// Bare numbers are seconds.
	if cfg.ReadTimeout != 45*time.Second {
		t.Errorf("ReadTimeout = %s", cfg.ReadTimeout)
	}
	if cfg.MaxConnections != 7 {
		t.Errorf("MaxConnections = %d", cfg.MaxConnections)
	}
	if cfg.ServerName != "wire-test" {
		t.Errorf("ServerName = %s", cfg.ServerName)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
	// Untouched values keep defaults.
	if cfg.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("WriteTimeout = %s", cfg.WriteTimeout)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "MCP_POLL_INTERVAL", "soon"},
		{"bad int", "MCP_MAX_CONNECTIONS", "many"},
		{"zero connections", "MCP_MAX_CONNECTIONS", "0"},
		{"negative timeout", "MCP_CONNECT_TIMEOUT", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("FromEnv with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}
