package config

import (
	"net/http"

	"github.com/wirelight/mcp-go/handler"
	"github.com/wirelight/mcp-go/transport"
)

// The bridges below map configuration values onto the transport and handler
// option surfaces, so a binary can go from environment to wired endpoints
// without repeating the mapping.

// HandlerOptions returns the handler options derived from the config.
func (c Config) HandlerOptions() []handler.Option {
	return []handler.Option{
		handler.WithDefaultTimeout(c.RequestTimeout),
	}
}

// SocketOptions returns the websocket transport options derived from the
// config. The read timeout bounds the pong wait after each keepalive ping.
func (c Config) SocketOptions() []transport.SocketOption {
	return []transport.SocketOption{
		transport.WithSocketKeepalive(c.KeepaliveInterval, c.ReadTimeout),
		transport.WithSocketWriteTimeout(c.WriteTimeout),
	}
}

// PollingOptions returns the polling transport options derived from the
// config. The read timeout bounds each poll round trip.
func (c Config) PollingOptions() []transport.PollingOption {
	return []transport.PollingOption{
		transport.WithPollInterval(c.PollInterval),
		transport.WithPollingClient(&http.Client{Timeout: c.ReadTimeout}),
	}
}

// PollServerOptions returns the poll server options derived from the config.
func (c Config) PollServerOptions() []transport.PollServerOption {
	return []transport.PollServerOption{
		transport.WithMaxSessions(c.MaxConnections),
	}
}
