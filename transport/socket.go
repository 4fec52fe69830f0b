package transport

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirelight/mcp-go/protocol"
)

// Socket implements the MCP transport over a full-duplex WebSocket
// connection: one JSON object per text frame. Connecting retries under a
// bounded backoff, and an idle ping/pong keepalive detects silently-dead
// connections.
type Socket struct {
	url     string
	dialer  *websocket.Dialer
	backoff Backoff
	logger  *slog.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	msgs      chan *protocol.Message
	readerWG  sync.WaitGroup
	stopPing  chan struct{}
}

// SocketOption configures a Socket transport.
type SocketOption func(*Socket)

// WithSocketBackoff sets the connect retry schedule.
func WithSocketBackoff(b Backoff) SocketOption {
	return func(s *Socket) {
		s.backoff = b
	}
}

// WithSocketLogger sets the logger.
func WithSocketLogger(l *slog.Logger) SocketOption {
	return func(s *Socket) {
		s.logger = l
	}
}

// WithSocketKeepalive sets the ping interval and the pong wait after which
// the connection is considered dead.
func WithSocketKeepalive(interval, timeout time.Duration) SocketOption {
	return func(s *Socket) {
		s.pingInterval = interval
		s.pongTimeout = timeout
	}
}

// WithSocketWriteTimeout sets the per-frame write deadline.
func WithSocketWriteTimeout(d time.Duration) SocketOption {
	return func(s *Socket) {
		s.writeTimeout = d
	}
}

// NewSocket creates a socket transport for the given ws:// or wss:// URL.
func NewSocket(url string, opts ...SocketOption) *Socket {
	s := &Socket{
		url:          url,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff:      DefaultBackoff(),
		logger:       slog.Default(),
		pingInterval: 20 * time.Second,
		pongTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect dials the socket, retrying under the configured backoff. On
// failure the transport is left unconnected.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return connErr("connect", ErrClosed)
	}
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var conn *websocket.Conn
	err := s.backoff.Retry(ctx, func() error {
		c, resp, derr := s.dialer.DialContext(ctx, s.url, nil)
		if derr != nil {
			s.logger.Warn("socket dial failed", "url", s.url, "error", derr)
			return derr
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		conn = c
		return nil
	})
	if err != nil {
		return connErr("connect", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return connErr("connect", ErrClosed)
	}
	if s.connected {
		// A concurrent Connect won the race; discard the duplicate.
		conn.Close()
		return nil
	}

	s.conn = conn
	s.connected = true
	s.msgs = make(chan *protocol.Message)
	s.stopPing = make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(s.pingInterval + s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pingInterval + s.pongTimeout))
	})

	s.readerWG.Add(2)
	go s.readLoop(conn, s.msgs, s.stopPing)
	go s.pingLoop(conn, s.stopPing)

	s.logger.Info("socket transport connected", "url", s.url)
	return nil
}

// Close sends a close frame, tears down the connection, and ends the
// inbound sequence. Idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	stopPing := s.stopPing
	s.mu.Unlock()

	if stopPing != nil {
		close(stopPing)
	}
	if conn != nil {
		deadline := time.Now().Add(s.writeTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	s.readerWG.Wait()

	s.logger.Info("socket transport closed", "url", s.url)
	return nil
}

// Connected reports whether the socket is currently established.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Meta returns the transport metadata for the current connection.
func (s *Socket) Meta() protocol.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := protocol.Meta{"url": s.url}
	if s.conn != nil {
		meta["remote_addr"] = s.conn.RemoteAddr().String()
	}
	return meta
}

// Send transmits one message as a single text frame.
func (s *Socket) Send(_ context.Context, msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return msgErr("send", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.conn == nil {
		return connErr("send", ErrNotConnected)
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return msgErr("send", err)
	}
	return nil
}

// Messages returns the inbound sequence. A peer-initiated normal close ends
// the sequence gracefully; an unexpected close ends it after logging.
func (s *Socket) Messages() iter.Seq[*protocol.Message] {
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

func (s *Socket) readLoop(conn *websocket.Conn, msgs chan *protocol.Message, stop chan struct{}) {
	defer s.readerWG.Done()
	defer close(msgs)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.connected = false
			s.mu.Unlock()

			switch {
			case wasClosed:
				// Local Close already tore the connection down.
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Info("socket closed by peer", "url", s.url)
			default:
				s.logger.Error("socket closed unexpectedly", "url", s.url, "error", err)
			}
			return
		}

		// Inbound traffic counts as liveness just like a pong.
		conn.SetReadDeadline(time.Now().Add(s.pingInterval + s.pongTimeout))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error("skipping malformed frame", "error", err)
			continue
		}

		select {
		case msgs <- &msg:
		case <-stop:
			return
		}
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	defer s.readerWG.Done()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.pongTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Warn("keepalive ping failed", "url", s.url, "error", err)
				// A failed ping means the connection is dead; unblock the
				// read loop so the sequence can end.
				_ = conn.Close()
				return
			}
		}
	}
}
