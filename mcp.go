// Package mcp provides a wire-protocol core for MCP (Model Context
// Protocol) endpoints: a JSON-RPC 2.0 message model, pluggable transports
// (stream, websocket, HTTP polling) and a protocol handler that correlates
// requests with responses.
//
// Basic usage:
//
//	srv := mcp.NewServer(mcp.ServerInfo{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	    Capabilities: mcp.Capabilities{Tools: true},
//	}, mcp.NewStdioTransport())
//
//	srv.Tool("search").
//	    Description("Search for items").
//	    Handler(func(ctx context.Context, args map[string]any) (map[string]any, error) {
//	        return map[string]any{"results": []string{"a", "b"}}, nil
//	    })
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
package mcp

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/wirelight/mcp-go/handler"
	"github.com/wirelight/mcp-go/middleware"
	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/server"
	"github.com/wirelight/mcp-go/transport"
)

// Re-export core types for convenience

// ServerInfo contains server metadata exposed to clients.
type ServerInfo = server.Info

// Capabilities declares what features the server supports.
type Capabilities = server.Capabilities

// Server is the MCP server instance.
type Server = server.Server

// ServerOption configures a Server.
type ServerOption = server.Option

// Handler is the protocol handler correlating requests with responses.
type Handler = handler.Handler

// Transport moves protocol messages to and from a peer.
type Transport = transport.Transport

// Message is the JSON-RPC 2.0 wire envelope.
type Message = protocol.Message

// Error is a JSON-RPC 2.0 error object.
type Error = protocol.Error

// Resource types
type ResourceContent = server.ResourceContent
type ResourceInfo = server.ResourceInfo

// Prompt types
type PromptResult = server.PromptResult
type PromptMessage = server.PromptMessage
type PromptArgument = server.PromptArgument
type PromptInfo = server.PromptInfo
type TextContent = server.TextContent

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type LogField = middleware.Field

// NewServer creates a new MCP server speaking over tr.
func NewServer(info ServerInfo, tr Transport, opts ...ServerOption) *Server {
	return server.New(info, tr, opts...)
}

// NewHandler creates a protocol handler on top of tr, for callers that
// want the wire core without the server registries.
func NewHandler(tr Transport, opts ...handler.Option) *Handler {
	return handler.New(tr, opts...)
}

// NewStdioTransport returns a stream transport over stdin/stdout, the
// conventional MCP server wiring.
func NewStdioTransport(opts ...transport.StreamOption) *transport.Stream {
	return transport.NewStream(os.Stdin, os.Stdout, opts...)
}

// NewStreamTransport returns a line-delimited JSON transport over the
// given reader and writer.
func NewStreamTransport(in io.Reader, out io.Writer, opts ...transport.StreamOption) *transport.Stream {
	return transport.NewStream(in, out, opts...)
}

// NewSocketTransport returns a websocket transport dialing url.
func NewSocketTransport(url string, opts ...transport.SocketOption) *transport.Socket {
	return transport.NewSocket(url, opts...)
}

// NewPollingTransport returns an HTTP polling transport against baseURL.
func NewPollingTransport(baseURL string, opts ...transport.PollingOption) *transport.Polling {
	return transport.NewPolling(baseURL, opts...)
}

// ServeStdio starts srv and blocks until ctx is cancelled, then stops it.
// The server must have been built over a stdio (or other stream) transport.
func ServeStdio(ctx context.Context, srv *Server) error {
	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return srv.Stop()
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to
// internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// RateLimit returns middleware that limits request rate.
func RateLimit(rate, burst int, opts ...middleware.RateLimitOption) Middleware {
	return middleware.RateLimit(rate, burst, opts...)
}

// OTel returns middleware that adds OpenTelemetry tracing and metrics.
func OTel(opts ...middleware.OTelOption) Middleware {
	return middleware.OTel(opts...)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout
// middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}
