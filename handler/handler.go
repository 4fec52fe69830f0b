package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/transport"
)

// Lifecycle errors.
var (
	// ErrNotRunning is returned when an operation requires a started handler.
	ErrNotRunning = errors.New("handler not running")
	// ErrStopped resolves pending requests interrupted by Stop.
	ErrStopped = errors.New("handler stopped")
	// ErrConnectionClosed resolves pending requests when the transport's
	// inbound sequence ends while the handler is still running.
	ErrConnectionClosed = errors.New("connection closed")
)

// RequestHandler processes one inbound request and returns its result map.
// Returning a *protocol.Error selects that exact wire code; any other error
// is reported to the peer as an internal error.
type RequestHandler func(ctx context.Context, req *protocol.Request) (map[string]any, error)

// NotificationHandler processes one inbound notification. Errors are logged
// and swallowed; notifications never produce a response.
type NotificationHandler func(ctx context.Context, n *protocol.Notification) error

// result is the single-assignment value of a pending-request slot.
type result struct {
	result map[string]any
	err    error
}

// Handler routes MCP messages between a transport and registered callbacks.
type Handler struct {
	transport      transport.Transport
	logger         *slog.Logger
	defaultTimeout time.Duration

	// nextID is the monotonic request-id sequence, never reused within the
	// handler's lifetime.
	nextID atomic.Int64

	// mu guards the tables and lifecycle state below. It is held only for
	// table updates, never across an I/O call.
	mu            sync.Mutex
	requests      map[string]RequestHandler
	notifications map[string]NotificationHandler
	pending       map[protocol.ID]chan result
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithDefaultTimeout sets the timeout applied when SendRequest is called
// with a non-positive one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.defaultTimeout = d
	}
}

// New creates a handler bound to the given transport. The transport must
// already be managed by the caller; the handler never connects or closes it.
func New(t transport.Transport, opts ...Option) *Handler {
	h := &Handler{
		transport:      t,
		logger:         slog.Default(),
		defaultTimeout: 30 * time.Second,
		requests:       make(map[string]RequestHandler),
		notifications:  make(map[string]NotificationHandler),
		pending:        make(map[protocol.ID]chan result),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// RegisterRequestHandler installs fn for inbound requests naming method.
// The last registration for a method wins.
func (h *Handler) RegisterRequestHandler(method string, fn RequestHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests[method] = fn
	h.logger.Debug("registered request handler", "method", method)
}

// RegisterNotificationHandler installs fn for inbound notifications naming
// method. The last registration for a method wins.
func (h *Handler) RegisterNotificationHandler(method string, fn NotificationHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications[method] = fn
	h.logger.Debug("registered notification handler", "method", method)
}

// Unregister removes any request and notification handlers for method.
func (h *Handler) Unregister(method string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.requests, method)
	delete(h.notifications, method)
	h.logger.Debug("unregistered handlers", "method", method)
}

// Start spawns the message-consumption goroutine. Calling Start on a
// running handler is a no-op.
func (h *Handler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running = true

	go h.consume(ctx, h.done)

	h.logger.Info("protocol handler started")
	return nil
}

// Stop cancels the consumption goroutine, waits for it to finish, and fails
// every still-pending request with ErrStopped. Idempotent.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	done := h.done
	h.mu.Unlock()

	cancel()
	<-done

	h.failPending(ErrStopped)
	h.logger.Info("protocol handler stopped")
}

// Running reports whether the handler has been started and not yet stopped.
func (h *Handler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SendRequest allocates the next request id, transmits the request, and
// waits until the matching response arrives, the timeout elapses, the
// context ends, or the handler stops. The pending slot is removed on every
// exit path.
func (h *Handler) SendRequest(ctx context.Context, method string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	if !h.Running() {
		return nil, ErrNotRunning
	}
	if timeout <= 0 {
		timeout = h.defaultTimeout
	}

	rawID := protocol.NumberID(h.nextID.Add(1))
	id, _ := protocol.ParseID(rawID)

	slot := make(chan result, 1)
	h.mu.Lock()
	// Re-check under the lock: a Stop between the Running check and here
	// has already swept pending, and a slot inserted now would wait out
	// its full timeout instead of failing promptly.
	if !h.running {
		h.mu.Unlock()
		return nil, ErrNotRunning
	}
	h.pending[id] = slot
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	msg, err := protocol.NewRequest(rawID, method, params)
	if err != nil {
		return nil, err
	}
	if err := h.transport.Send(ctx, msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-slot:
		return r.result, r.err
	case <-timer.C:
		h.logger.Error("request timed out", "method", method, "id", string(id), "timeout", timeout)
		return nil, protocol.NewTimeoutError(fmt.Sprintf("request %s timed out after %s", method, timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendNotification transmits a notification and returns once transmitted;
// it never waits for a reply.
func (h *Handler) SendNotification(ctx context.Context, method string, params map[string]any) error {
	if !h.Running() {
		return ErrNotRunning
	}

	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return h.transport.Send(ctx, msg)
}

// SendResponse transmits a successful response for the given request id.
func (h *Handler) SendResponse(ctx context.Context, id json.RawMessage, resultMap map[string]any) error {
	if !h.Running() {
		return ErrNotRunning
	}

	msg, err := protocol.NewResponse(id, resultMap)
	if err != nil {
		return err
	}
	return h.transport.Send(ctx, msg)
}

// SendError transmits an error response for the given request id.
func (h *Handler) SendError(ctx context.Context, id json.RawMessage, perr *protocol.Error) error {
	if !h.Running() {
		return ErrNotRunning
	}
	return h.transport.Send(ctx, protocol.NewErrorResponse(id, perr))
}

// consume drains the transport's inbound sequence until the sequence ends
// or the handler is stopped.
func (h *Handler) consume(ctx context.Context, done chan struct{}) {
	defer close(done)

	inbound := make(chan *protocol.Message)
	go func() {
		defer close(inbound)
		for msg := range h.transport.Messages() {
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				// The transport ended under us: fail waiters rather than
				// leaving them suspended until their timeouts.
				h.logger.Warn("inbound sequence ended")
				h.failPending(ErrConnectionClosed)
				return
			}
			h.dispatch(ctx, msg)
		}
	}
}

// metaProvider is implemented by transports that can describe their peer,
// such as the polling session id or the socket remote address.
type metaProvider interface {
	Meta() protocol.Meta
}

// dispatch classifies one inbound message and routes it.
func (h *Handler) dispatch(ctx context.Context, msg *protocol.Message) {
	if mp, ok := h.transport.(metaProvider); ok {
		ctx = protocol.ContextWithMeta(ctx, mp.Meta())
	}
	switch msg.Kind() {
	case protocol.KindRequest:
		h.handleRequest(ctx, msg)
	case protocol.KindResponse:
		h.handleResponse(msg)
	case protocol.KindNotification:
		h.handleNotification(ctx, msg)
	default:
		// Reject when an id is recoverable; otherwise there is no one to
		// answer, so drop after logging.
		if id, ok := protocol.ParseID(msg.ID); ok {
			h.logger.Error("rejecting invalid message", "id", string(id))
			h.replyError(ctx, msg.ID, protocol.NewInvalidRequest("invalid message"))
		} else {
			h.logger.Error("dropping invalid message without id")
		}
	}
}

func (h *Handler) handleRequest(ctx context.Context, msg *protocol.Message) {
	req, err := msg.AsRequest()
	if err != nil {
		h.logger.Error("invalid request", "method", msg.Method, "error", err)
		h.replyError(ctx, msg.ID, protocol.NewInvalidRequest(err.Error()))
		return
	}

	h.mu.Lock()
	fn, ok := h.requests[req.Method]
	h.mu.Unlock()
	if !ok {
		h.replyError(ctx, req.ID, protocol.NewMethodNotFound(fmt.Sprintf("method %q not found", req.Method)))
		return
	}

	h.logger.Debug("request received", "method", req.Method, "id", string(req.ID))

	resultMap, err := fn(ctx, req)
	if err != nil {
		h.logger.Error("request handler failed", "method", req.Method, "error", err)
		var perr *protocol.Error
		if !errors.As(err, &perr) {
			perr = protocol.NewInternalError(err.Error())
		}
		h.replyError(ctx, req.ID, perr)
		return
	}

	if err := h.SendResponse(ctx, req.ID, resultMap); err != nil {
		h.logger.Error("failed to send response", "method", req.Method, "error", err)
	}
}

func (h *Handler) handleResponse(msg *protocol.Message) {
	resp, err := msg.AsResponse()
	if err != nil {
		h.logger.Error("invalid response", "error", err)
		return
	}

	id, ok := protocol.ParseID(resp.ID)
	if !ok {
		h.logger.Error("response with unusable id", "id", string(resp.ID))
		return
	}

	h.mu.Lock()
	slot, found := h.pending[id]
	if found {
		delete(h.pending, id)
	}
	h.mu.Unlock()

	if !found {
		h.logger.Warn("unexpected response", "id", string(id))
		return
	}

	if resp.Error != nil {
		slot <- result{err: resp.Error}
		return
	}
	slot <- result{result: resp.Result}
}

func (h *Handler) handleNotification(ctx context.Context, msg *protocol.Message) {
	n, err := msg.AsNotification()
	if err != nil {
		h.logger.Error("invalid notification", "method", msg.Method, "error", err)
		return
	}

	h.mu.Lock()
	fn, ok := h.notifications[n.Method]
	h.mu.Unlock()
	if !ok {
		h.logger.Warn("no handler for notification", "method", n.Method)
		return
	}

	// Notification handler failures are never surfaced to the peer.
	if err := fn(ctx, n); err != nil {
		h.logger.Error("notification handler failed", "method", n.Method, "error", err)
	}
}

// replyError sends an error response, logging delivery failures.
func (h *Handler) replyError(ctx context.Context, id json.RawMessage, perr *protocol.Error) {
	if err := h.transport.Send(ctx, protocol.NewErrorResponse(id, perr)); err != nil {
		h.logger.Error("failed to send error response", "error", err)
	}
}

// failPending resolves every outstanding slot with err and clears the table.
func (h *Handler) failPending(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, slot := range h.pending {
		slot <- result{err: err}
		delete(h.pending, id)
	}
}

// PendingCount reports the number of outstanding correlation entries.
func (h *Handler) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
