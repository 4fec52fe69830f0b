package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/wirelight/mcp-go/protocol"
)

// MessageFunc receives a message a polling client delivered, tagged with
// the session that sent it.
type MessageFunc func(sessionID string, msg *protocol.Message)

// PollServer implements the server side of the polling wire contract as an
// http.Handler: session creation and teardown, message delivery, and a
// per-session outbox drained by client polls.
type PollServer struct {
	logger      *slog.Logger
	maxSessions int
	onMessage   MessageFunc

	mu       sync.Mutex
	sessions map[string][]*protocol.Message
}

// PollServerOption configures a PollServer.
type PollServerOption func(*PollServer)

// WithPollServerLogger sets the logger.
func WithPollServerLogger(l *slog.Logger) PollServerOption {
	return func(s *PollServer) {
		s.logger = l
	}
}

// WithMaxSessions caps concurrently open sessions; session creation beyond
// the cap is rejected with 503.
func WithMaxSessions(n int) PollServerOption {
	return func(s *PollServer) {
		s.maxSessions = n
	}
}

// WithMessageFunc sets the callback invoked for every delivered message.
func WithMessageFunc(fn MessageFunc) PollServerOption {
	return func(s *PollServer) {
		s.onMessage = fn
	}
}

// NewPollServer creates a poll server.
func NewPollServer(opts ...PollServerOption) *PollServer {
	s := &PollServer{
		logger:      slog.Default(),
		maxSessions: 100,
		sessions:    make(map[string][]*protocol.Message),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Push queues a message on a session's outbox for pickup by the next poll.
func (s *PollServer) Push(sessionID string, msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return connErr("push", ErrNotConnected)
	}
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// SessionCount returns the number of open sessions.
func (s *PollServer) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ServeHTTP routes the polling protocol endpoints.
func (s *PollServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == pathSessionCreate:
		s.handleSessionCreate(w)
	case r.Method == http.MethodPost && r.URL.Path == pathSessionClose:
		s.handleSessionClose(w, r)
	case r.Method == http.MethodPost && r.URL.Path == pathMessage:
		s.handleMessage(w, r)
	case r.Method == http.MethodGet && r.URL.Path == pathMessages:
		s.handleMessages(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *PollServer) handleSessionCreate(w http.ResponseWriter) {
	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		http.Error(w, "session limit reached", http.StatusServiceUnavailable)
		return
	}
	id := uuid.NewString()
	s.sessions[id] = nil
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", id)
	writeJSON(w, map[string]string{"session_id": id})
}

func (s *PollServer) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.sessions, body.SessionID)
	s.mu.Unlock()

	s.logger.Info("session closed", "session_id", body.SessionID)
	writeJSON(w, map[string]string{})
}

func (s *PollServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	var envelope sessionEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, ok := s.sessions[envelope.SessionID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if envelope.Message == nil {
		http.Error(w, "missing message", http.StatusBadRequest)
		return
	}

	if s.onMessage != nil {
		s.onMessage(envelope.SessionID, envelope.Message)
	}
	writeJSON(w, map[string]string{})
}

func (s *PollServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	s.mu.Lock()
	outbox, ok := s.sessions[sessionID]
	if ok {
		s.sessions[sessionID] = nil
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	if outbox == nil {
		outbox = []*protocol.Message{}
	}
	writeJSON(w, map[string]any{"messages": outbox})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
