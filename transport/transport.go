package transport

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/wirelight/mcp-go/protocol"
)

// Transport is a bidirectional MCP message channel. Implementations must be
// safe for concurrent Send calls; Messages is consumed by exactly one reader.
type Transport interface {
	// Connect establishes the channel. It is idempotent when already
	// connected and leaves the transport unconnected on failure.
	Connect(ctx context.Context) error

	// Close tears down the channel and ends the inbound sequence. It is
	// idempotent, and a closed transport cannot be reconnected.
	Close() error

	// Send serializes and transmits one message. A message is either
	// transmitted or reported failed, never silently dropped.
	Send(ctx context.Context, msg *protocol.Message) error

	// Messages returns a lazy, unbounded sequence of decoded inbound
	// messages. Malformed frames are logged and skipped; the sequence ends
	// only when the transport is closed or the underlying channel ends.
	Messages() iter.Seq[*protocol.Message]

	// Connected reports whether the channel is currently established.
	Connected() bool
}

// Sentinel conditions surfaced inside *ConnectionError.
var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("transport closed")
)

// ConnectionError reports that the transport channel is unreachable or
// closed. It is fatal to the transport instance that raised it.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MessageError reports that a single send or receive operation failed
// without invalidating the channel as a whole.
type MessageError struct {
	Op  string
	Err error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

func connErr(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}

func msgErr(op string, err error) error {
	return &MessageError{Op: op, Err: err}
}
