package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/wirelight/mcp-go/protocol"
)

// Stream implements the MCP transport over a persistent duplex byte stream:
// one JSON object per line outbound, one line parsed per message inbound.
// It is the transport used for stdio integrations.
type Stream struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	// maxLineBytes bounds a single inbound frame.
	maxLineBytes int

	mu        sync.Mutex
	connected bool
	closed    bool
	done      chan struct{}
	msgs      chan *protocol.Message
}

// StreamOption configures a Stream transport.
type StreamOption func(*Stream)

// WithStreamLogger sets the logger for skipped frames and lifecycle events.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = l
	}
}

// WithStreamMaxLineBytes sets the maximum accepted inbound line length.
func WithStreamMaxLineBytes(n int) StreamOption {
	return func(s *Stream) {
		s.maxLineBytes = n
	}
}

// NewStream creates a stream transport reading from in and writing to out.
func NewStream(in io.Reader, out io.Writer, opts ...StreamOption) *Stream {
	s := &Stream{
		in:           in,
		out:          out,
		logger:       slog.Default(),
		maxLineBytes: 4 * 1024 * 1024,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect starts the background reader. It is a no-op when already
// connected and fails once the transport has been closed.
func (s *Stream) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return connErr("connect", ErrClosed)
	}
	if s.connected {
		return nil
	}

	s.done = make(chan struct{})
	s.msgs = make(chan *protocol.Message)
	s.connected = true

	go s.readLoop(s.done, s.msgs)

	s.logger.Debug("stream transport connected")
	return nil
}

// Close stops the reader and ends the inbound sequence. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.connected = false
	if s.done != nil {
		close(s.done)
	}

	s.logger.Debug("stream transport closed")
	return nil
}

// Connected reports whether the transport is connected.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Send writes one message followed by a newline.
func (s *Stream) Send(_ context.Context, msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return msgErr("send", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return connErr("send", ErrNotConnected)
	}

	if _, err := s.out.Write(data); err != nil {
		return msgErr("send", err)
	}
	if _, err := s.out.Write([]byte("\n")); err != nil {
		return msgErr("send", err)
	}
	return nil
}

// Messages returns the inbound sequence. The sequence ends when the input
// stream ends or the transport is closed; malformed lines are skipped.
func (s *Stream) Messages() iter.Seq[*protocol.Message] {
	s.mu.Lock()
	msgs := s.msgs
	s.mu.Unlock()

	return func(yield func(*protocol.Message) bool) {
		if msgs == nil {
			return
		}
		for msg := range msgs {
			if !yield(msg) {
				return
			}
		}
	}
}

func (s *Stream) readLoop(done chan struct{}, msgs chan *protocol.Message) {
	defer close(msgs)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), s.maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Error("skipping malformed frame", "error", err)
			continue
		}

		select {
		case msgs <- &msg:
		case <-done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("stream read failed", "error", err)
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}
