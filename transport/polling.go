package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wirelight/mcp-go/protocol"
)

// Polling wire endpoints, shared with PollServer.
const (
	pathSessionCreate = "/session/create"
	pathSessionClose  = "/session/close"
	pathMessage       = "/message"
	pathMessages      = "/messages"
)

// Polling implements the MCP transport over a session-oriented HTTP
// protocol: connecting creates a server-side session, every send is POSTed
// tagged with the session id, and inbound messages are fetched by polling a
// session-scoped endpoint at a fixed interval.
type Polling struct {
	baseURL  string
	client   *http.Client
	interval time.Duration
	backoff  Backoff
	logger   *slog.Logger

	mu        sync.Mutex
	sessionID string
	connected bool
	closed    bool
	msgs      chan *protocol.Message
	stopPoll  chan struct{}
	pollWG    sync.WaitGroup
}

// PollingOption configures a Polling transport.
type PollingOption func(*Polling)

// WithPollInterval sets the minimum time between polls. The loop never
// polls tighter than this, and empty polls simply wait for the next tick.
func WithPollInterval(d time.Duration) PollingOption {
	return func(p *Polling) {
		p.interval = d
	}
}

// WithPollingClient sets the HTTP client, controlling connect/read/write
// timeouts and connection limits.
func WithPollingClient(c *http.Client) PollingOption {
	return func(p *Polling) {
		p.client = c
	}
}

// WithPollingBackoff sets the send retry schedule.
func WithPollingBackoff(b Backoff) PollingOption {
	return func(p *Polling) {
		p.backoff = b
	}
}

// WithPollingLogger sets the logger.
func WithPollingLogger(l *slog.Logger) PollingOption {
	return func(p *Polling) {
		p.logger = l
	}
}

// NewPolling creates a polling transport against the given base URL.
func NewPolling(baseURL string, opts ...PollingOption) *Polling {
	p := &Polling{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		interval: time.Second,
		backoff:  DefaultBackoff(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// sessionEnvelope is the body of a POST /message delivery.
type sessionEnvelope struct {
	SessionID string            `json:"session_id"`
	Message   *protocol.Message `json:"message"`
}

// Connect establishes a server-side session and starts the poll loop.
func (p *Polling) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return connErr("connect", ErrClosed)
	}
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := p.post(ctx, pathSessionCreate, nil, &created); err != nil {
		return connErr("connect", err)
	}
	if created.SessionID == "" {
		return connErr("connect", fmt.Errorf("server returned empty session id"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return connErr("connect", ErrClosed)
	}
	if p.connected {
		// A concurrent Connect won the race; release the duplicate session.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			body := map[string]string{"session_id": created.SessionID}
			if err := p.post(ctx, pathSessionClose, body, nil); err != nil {
				p.logger.Warn("failed to close duplicate session", "session_id", created.SessionID, "error", err)
			}
		}()
		return nil
	}

	p.sessionID = created.SessionID
	p.connected = true
	p.msgs = make(chan *protocol.Message)
	p.stopPoll = make(chan struct{})

	p.pollWG.Add(1)
	go p.pollLoop(p.sessionID, p.msgs, p.stopPoll)

	p.logger.Info("polling transport connected", "session_id", created.SessionID)
	return nil
}

// Close performs a best-effort session close, stops the poll loop, and ends
// the inbound sequence. Idempotent.
func (p *Polling) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.connected = false
	sessionID := p.sessionID
	stopPoll := p.stopPoll
	p.mu.Unlock()

	if sessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		body := map[string]string{"session_id": sessionID}
		if err := p.post(ctx, pathSessionClose, body, nil); err != nil {
			p.logger.Warn("failed to close session gracefully", "session_id", sessionID, "error", err)
		}
	}

	if stopPoll != nil {
		close(stopPoll)
	}
	p.pollWG.Wait()

	p.logger.Info("polling transport closed", "session_id", sessionID)
	return nil
}

// Connected reports whether a session is established.
func (p *Polling) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Meta returns the transport metadata for the current session.
func (p *Polling) Meta() protocol.Meta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.Meta{"session_id": p.sessionID}
}

// Send POSTs one message tagged with the session id, retrying transient
// failures under the configured backoff.
func (p *Polling) Send(ctx context.Context, msg *protocol.Message) error {
	p.mu.Lock()
	sessionID := p.sessionID
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return connErr("send", ErrNotConnected)
	}

	envelope := sessionEnvelope{SessionID: sessionID, Message: msg}
	err := p.backoff.Retry(ctx, func() error {
		return p.post(ctx, pathMessage, envelope, nil)
	})
	if err != nil {
		return msgErr("send", err)
	}
	return nil
}

// Messages returns the inbound sequence fed by the poll loop.
func (p *Polling) Messages() iter.Seq[*protocol.Message] {
	p.mu.Lock()
	msgs := p.msgs
	p.mu.Unlock()

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

func (p *Polling) pollLoop(sessionID string, msgs chan *protocol.Message, stop chan struct{}) {
	defer p.pollWG.Done()
	defer close(msgs)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		batch, err := p.poll(ctx, sessionID)
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			// Transient poll failures never terminate the sequence.
			p.logger.Warn("poll failed", "session_id", sessionID, "error", err)
			continue
		}

		for _, raw := range batch {
			var msg protocol.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				p.logger.Error("skipping malformed message", "error", err)
				continue
			}
			select {
			case msgs <- &msg:
			case <-stop:
				return
			}
		}
	}
}

func (p *Polling) poll(ctx context.Context, sessionID string) ([]json.RawMessage, error) {
	u := fmt.Sprintf("%s%s?session_id=%s", p.baseURL, pathMessages, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var body struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (p *Polling) post(ctx context.Context, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}
