// Package testutil provides testing utilities for code built on the MCP
// wire core: an in-memory Transport with scripted inbound traffic, and a
// Pipe helper linking two transports back to back so a real client-side and
// server-side handler can talk inside one test.
package testutil

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/transport"
)

// Transport is an in-memory transport.Transport implementation. Outbound
// messages are recorded for assertions; inbound messages are injected by
// the test.
type Transport struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	sent      []*protocol.Message
	sendErr   error
	onSend    func(*protocol.Message)
	inbound   chan *protocol.Message
	stop      chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates an unconnected in-memory transport.
func NewTransport() *Transport {
	return &Transport{
		inbound: make(chan *protocol.Message, 64),
		stop:    make(chan struct{}),
	}
}

// Scripted creates a transport whose inbound sequence is preloaded with
// the given messages, delivered in order once a consumer iterates.
func Scripted(msgs ...*protocol.Message) *Transport {
	t := NewTransport()
	for _, msg := range msgs {
		t.Inject(msg)
	}
	return t
}

// Connect marks the transport connected. Idempotent; fails after Close.
func (t *Transport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return &transport.ConnectionError{Op: "connect", Err: transport.ErrClosed}
	}
	t.connected = true
	return nil
}

// Close marks the transport closed and ends the inbound sequence.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.connected = false
	close(t.stop)
	return nil
}

// Connected reports connection state.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Send records msg, invokes any OnSend hook, and fails when a send error
// has been scripted.
func (t *Transport) Send(_ context.Context, msg *protocol.Message) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return &transport.ConnectionError{Op: "send", Err: transport.ErrNotConnected}
	}
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return err
	}
	t.sent = append(t.sent, msg)
	hook := t.onSend
	t.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

// Messages yields injected messages until the transport is closed.
func (t *Transport) Messages() iter.Seq[*protocol.Message] {
	return func(yield func(*protocol.Message) bool) {
		for {
			select {
			case <-t.stop:
				return
			case msg := <-t.inbound:
				if !yield(msg) {
					return
				}
			}
		}
	}
}

// Inject queues an inbound message for the consumer.
func (t *Transport) Inject(msg *protocol.Message) {
	t.inbound <- msg
}

// FailSends makes every subsequent Send return err; pass nil to restore.
func (t *Transport) FailSends(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// OnSend installs a hook invoked after every successful Send, typically an
// auto-responder echoing scripted responses back through Inject.
func (t *Transport) OnSend(fn func(*protocol.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

// Sent returns a snapshot of all recorded outbound messages.
func (t *Transport) Sent() []*protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*protocol.Message, len(t.sent))
	copy(out, t.sent)
	return out
}

// WaitSent polls until at least n messages have been sent or the deadline
// passes, returning the snapshot either way.
func (t *Transport) WaitSent(n int, d time.Duration) []*protocol.Message {
	deadline := time.Now().Add(d)
	for {
		if got := t.Sent(); len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(time.Millisecond)
	}
}

// Pipe returns two connected transports wired back to back: everything sent
// on one side arrives in the other side's inbound sequence.
func Pipe() (*Transport, *Transport) {
	a := NewTransport()
	b := NewTransport()
	a.connected = true
	b.connected = true
	a.onSend = func(msg *protocol.Message) { b.Inject(msg) }
	b.onSend = func(msg *protocol.Message) { a.Inject(msg) }
	return a, b
}
