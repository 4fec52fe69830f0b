// Package transport provides MCP transport implementations.
//
// A Transport is a bidirectional message channel: connect it, send one
// message at a time, and range over the lazy inbound sequence until the
// channel ends. Three implementations are provided.
//
// # Stream Transport
//
// Newline-delimited JSON over a persistent duplex byte stream, suitable for
// stdio integrations:
//
//	t := transport.NewStream(os.Stdin, os.Stdout)
//	err := t.Connect(ctx)
//
// # Socket Transport
//
// One JSON object per text frame over a full-duplex WebSocket connection,
// with bounded reconnect backoff and an idle ping/pong keepalive:
//
//	t := transport.NewSocket("ws://localhost:8080/mcp")
//	err := t.Connect(ctx)
//
// # Polling Transport
//
// A session-oriented HTTP transport: connecting creates a server-side
// session, sends are POSTed against it, and inbound messages are fetched by
// polling a session-scoped endpoint at a fixed interval:
//
//	t := transport.NewPolling("http://localhost:8080",
//	    transport.WithPollInterval(time.Second),
//	)
//	err := t.Connect(ctx)
//
// PollServer implements the server side of that wire contract as an
// http.Handler.
//
// # Failure Semantics
//
// All transport-level I/O failures are wrapped as either *ConnectionError
// (the channel is unusable) or *MessageError (one operation failed); raw
// errors never leak past this package. Operations on a transport that is
// not connected fail immediately with ErrNotConnected, and a closed
// transport stays closed.
package transport
