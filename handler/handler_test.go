package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/testutil"
)

func startedHandler(t *testing.T, opts ...Option) (*Handler, *testutil.Transport) {
	t.Helper()
	tr := testutil.NewTransport()
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h := New(tr, opts...)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		h.Stop()
		tr.Close()
	})
	return h, tr
}

// respond echoes a canned result for the next request the transport sees.
func respond(tr *testutil.Transport, result map[string]any) {
	tr.OnSend(func(msg *protocol.Message) {
		if msg.Kind() != protocol.KindRequest {
			return
		}
		resp, err := protocol.NewResponse(msg.ID, result)
		if err != nil {
			panic(err)
		}
		tr.Inject(resp)
	})
}

func TestSendRequest_ReturnsMatchingResult(t *testing.T) {
	h, tr := startedHandler(t)
	respond(tr, map[string]any{"tools": []any{}})

	got, err := h.SendRequest(context.Background(), protocol.MethodToolsList, map[string]any{}, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	tools, ok := got["tools"].([]any)
	if !ok || len(tools) != 0 {
		t.Errorf("result = %v, want empty tools list", got)
	}
	if n := h.PendingCount(); n != 0 {
		t.Errorf("correlation table has %d entries after resolution, want 0", n)
	}
}

func TestSendRequest_OutOfOrderResponses(t *testing.T) {
	h, tr := startedHandler(t)

	var mu sync.Mutex
	var requests []*protocol.Message
	tr.OnSend(func(msg *protocol.Message) {
		if msg.Kind() != protocol.KindRequest {
			return
		}
		mu.Lock()
		requests = append(requests, msg)
		n := len(requests)
		mu.Unlock()

		// Once both requests are in flight, answer them in reverse order.
		if n == 2 {
			mu.Lock()
			first, second := requests[0], requests[1]
			mu.Unlock()
			r2, _ := protocol.NewResponse(second.ID, map[string]any{"seq": "second"})
			r1, _ := protocol.NewResponse(first.ID, map[string]any{"seq": "first"})
			tr.Inject(r2)
			tr.Inject(r1)
		}
	})

	var wg sync.WaitGroup
	results := make([]map[string]any, 2)
	errs := make([]error, 2)
	for i, method := range []string{"first/method", "second/method"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.SendRequest(context.Background(), method, nil, 5*time.Second)
		}()
		// Keep request ids ordered with the goroutine index.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if results[0]["seq"] != "first" {
		t.Errorf("first caller got %v", results[0])
	}
	if results[1]["seq"] != "second" {
		t.Errorf("second caller got %v", results[1])
	}
	if n := h.PendingCount(); n != 0 {
		t.Errorf("correlation table has %d entries, want 0", n)
	}
}

func TestSendRequest_Timeout(t *testing.T) {
	h, _ := startedHandler(t)

	start := time.Now()
	_, err := h.SendRequest(context.Background(), "slow", map[string]any{}, 50*time.Millisecond)
	elapsed := time.Since(start)

	var perr *protocol.Error
	if !errors.As(err, &perr) || perr.Code != protocol.CodeTimeoutError {
		t.Fatalf("err = %v, want timeout error", err)
	}
	if !containsAll(perr.Message, "slow", "50ms") {
		t.Errorf("timeout message %q should name method and duration", perr.Message)
	}
	if elapsed > time.Second {
		t.Errorf("timed out after %v, want ~50ms", elapsed)
	}
	if n := h.PendingCount(); n != 0 {
		t.Errorf("correlation table has %d entries after timeout, want 0", n)
	}
}

func TestSendRequest_RemoteError(t *testing.T) {
	h, tr := startedHandler(t)
	tr.OnSend(func(msg *protocol.Message) {
		if msg.Kind() != protocol.KindRequest {
			return
		}
		tr.Inject(protocol.NewErrorResponse(msg.ID, protocol.NewToolError("backend unavailable")))
	})

	_, err := h.SendRequest(context.Background(), protocol.MethodToolsCall, nil, time.Second)

	var perr *protocol.Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *protocol.Error", err)
	}
	if perr.Code != protocol.CodeToolError || perr.Message != "backend unavailable" {
		t.Errorf("got code=%d msg=%q, want remote code and message", perr.Code, perr.Message)
	}
}

func TestSendRequest_NotRunning(t *testing.T) {
	tr := testutil.NewTransport()
	tr.Connect(context.Background())
	h := New(tr)

	if _, err := h.SendRequest(context.Background(), "x", nil, time.Second); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
	if err := h.SendNotification(context.Background(), "x", nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
	if err := h.SendResponse(context.Background(), protocol.NumberID(1), nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestStop_FailsSuspendedCallers(t *testing.T) {
	h, _ := startedHandler(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.SendRequest(context.Background(), "hangs", nil, time.Minute)
		errCh <- err
	}()

	// Let the request register its pending slot before stopping.
	deadline := time.Now().Add(time.Second)
	for h.PendingCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	h.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("err = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("caller still suspended after Stop")
	}
	if n := h.PendingCount(); n != 0 {
		t.Errorf("correlation table has %d entries after Stop, want 0", n)
	}
}

func TestStop_RacesWithSendRequest(t *testing.T) {
	h, _ := startedHandler(t)

	// Senders racing a concurrent Stop must fail promptly, never wait out
	// their full timeout.
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.SendRequest(context.Background(), "hangs", nil, time.Minute)
			results[i] = err
		}(i)
	}

	close(start)
	h.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("senders still suspended after Stop")
	}
	for i, err := range results {
		if !errors.Is(err, ErrStopped) && !errors.Is(err, ErrNotRunning) {
			t.Errorf("sender %d: err = %v, want ErrStopped or ErrNotRunning", i, err)
		}
	}
	if n := h.PendingCount(); n != 0 {
		t.Errorf("correlation table has %d entries after Stop, want 0", n)
	}
}

func TestStop_Idempotent(t *testing.T) {
	h, _ := startedHandler(t)
	h.Stop()
	h.Stop()
	if h.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := h.Start(); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	if !h.Running() {
		t.Error("Running() = false after restart")
	}
}

func TestInboundRequest_Dispatched(t *testing.T) {
	h, tr := startedHandler(t)
	h.RegisterRequestHandler(protocol.MethodToolsList, func(_ context.Context, req *protocol.Request) (map[string]any, error) {
		return map[string]any{"tools": []any{}}, nil
	})

	req, _ := protocol.NewRequest(protocol.NumberID(9), protocol.MethodToolsList, nil)
	tr.Inject(req)

	sent := tr.WaitSent(1, time.Second)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].Kind() != protocol.KindResponse || sent[0].Error != nil {
		t.Errorf("reply = %+v, want successful response", sent[0])
	}
	if string(sent[0].ID) != "9" {
		t.Errorf("reply id = %s, want 9", sent[0].ID)
	}
}

// metaTransport is a mock transport that reports peer metadata.
type metaTransport struct {
	*testutil.Transport
	meta protocol.Meta
}

func (m *metaTransport) Meta() protocol.Meta { return m.meta }

func TestInboundRequest_SeesTransportMeta(t *testing.T) {
	tr := &metaTransport{
		Transport: testutil.NewTransport(),
		meta:      protocol.Meta{"session_id": "s-1"},
	}
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h := New(tr)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		h.Stop()
		tr.Close()
	})

	h.RegisterRequestHandler("session/whoami", func(ctx context.Context, _ *protocol.Request) (map[string]any, error) {
		return map[string]any{"session": protocol.MetaValue(ctx, "session_id")}, nil
	})

	req, _ := protocol.NewRequest(protocol.NumberID(3), "session/whoami", nil)
	tr.Inject(req)

	sent := tr.WaitSent(1, time.Second)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	var result struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(sent[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Session != "s-1" {
		t.Errorf("session = %q, want s-1", result.Session)
	}
}

func TestInboundRequest_MethodNotFound(t *testing.T) {
	_, tr := startedHandler(t)

	req, _ := protocol.NewRequest(protocol.NumberID(4), "no/such/method", nil)
	tr.Inject(req)

	sent := tr.WaitSent(1, time.Second)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].Error == nil || sent[0].Error.Code != protocol.CodeMethodNotFound {
		t.Errorf("reply = %+v, want METHOD_NOT_FOUND", sent[0])
	}
}

func TestInboundRequest_HandlerErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "plain error becomes internal",
			err:      errors.New("boom"),
			wantCode: protocol.CodeInternalError,
		},
		{
			name:     "protocol error keeps its code",
			err:      protocol.NewToolError("tool exploded"),
			wantCode: protocol.CodeToolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, tr := startedHandler(t)
			h.RegisterRequestHandler("failing", func(context.Context, *protocol.Request) (map[string]any, error) {
				return nil, tt.err
			})

			req, _ := protocol.NewRequest(protocol.NumberID(1), "failing", nil)
			tr.Inject(req)

			sent := tr.WaitSent(1, time.Second)
			if len(sent) != 1 || sent[0].Error == nil {
				t.Fatalf("want one error response, got %v", sent)
			}
			if sent[0].Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", sent[0].Error.Code, tt.wantCode)
			}
		})
	}
}

func TestInboundNotification_NeverAnswered(t *testing.T) {
	h, tr := startedHandler(t)

	called := make(chan struct{}, 1)
	h.RegisterNotificationHandler(protocol.MethodInitialized, func(context.Context, *protocol.Notification) error {
		called <- struct{}{}
		return errors.New("handler failure must be swallowed")
	})

	n, _ := protocol.NewNotification(protocol.MethodInitialized, nil)
	tr.Inject(n)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("notification handler not invoked")
	}

	// Unregistered notifications are also silently discarded.
	unknown, _ := protocol.NewNotification("notifications/unknown", nil)
	tr.Inject(unknown)

	time.Sleep(50 * time.Millisecond)
	if sent := tr.Sent(); len(sent) != 0 {
		t.Errorf("notifications produced %d outbound messages, want 0", len(sent))
	}
}

func TestUnexpectedResponse_Discarded(t *testing.T) {
	h, tr := startedHandler(t)
	respond(tr, map[string]any{"ok": true})

	// A stray response must not disturb a live pending entry.
	stray, _ := protocol.NewResponse(protocol.NumberID(999), map[string]any{})
	tr.Inject(stray)

	got, err := h.SendRequest(context.Background(), "live", nil, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if got["ok"] != true {
		t.Errorf("result = %v", got)
	}
}

func TestMalformedInbound_EchoesRecoverableID(t *testing.T) {
	_, tr := startedHandler(t)

	// No jsonrpc tag, no method: invalid, but the id is recoverable.
	tr.Inject(&protocol.Message{ID: json.RawMessage(`7`)})

	sent := tr.WaitSent(1, time.Second)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].Error == nil || sent[0].Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("reply = %+v, want INVALID_REQUEST", sent[0])
	}
	if string(sent[0].ID) != "7" {
		t.Errorf("reply id = %s, want 7", sent[0].ID)
	}

	// Without an id there is no one to answer.
	tr.Inject(&protocol.Message{JSONRPC: "1.0"})
	time.Sleep(50 * time.Millisecond)
	if sent := tr.Sent(); len(sent) != 1 {
		t.Errorf("idless invalid message produced a reply: %v", sent)
	}
}

func TestResponseIDTypeMismatch_StillCorrelates(t *testing.T) {
	h, tr := startedHandler(t)
	tr.OnSend(func(msg *protocol.Message) {
		if msg.Kind() != protocol.KindRequest {
			return
		}
		// Peer echoes our numeric id back as a string.
		resp, _ := protocol.NewResponse(protocol.StringID(string(msg.ID)), map[string]any{"matched": true})
		tr.Inject(resp)
	})

	got, err := h.SendRequest(context.Background(), "typed", nil, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if got["matched"] != true {
		t.Errorf("result = %v", got)
	}
}

func TestTransportEnd_FailsPending(t *testing.T) {
	h, tr := startedHandler(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.SendRequest(context.Background(), "doomed", nil, time.Minute)
		errCh <- err
	}()

	deadline := time.Now().Add(time.Second)
	for h.PendingCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	tr.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("caller still suspended after transport close")
	}
}

func TestRequestIDs_MonotonicAcrossCalls(t *testing.T) {
	h, tr := startedHandler(t)
	respond(tr, map[string]any{})

	for i := 1; i <= 3; i++ {
		if _, err := h.SendRequest(context.Background(), "seq", nil, time.Second); err != nil {
			t.Fatalf("SendRequest %d: %v", i, err)
		}
	}

	sent := tr.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d requests, want 3", len(sent))
	}
	for i, msg := range sent {
		want := string(protocol.NumberID(int64(i + 1)))
		if string(msg.ID) != want {
			t.Errorf("request %d id = %s, want %s", i, msg.ID, want)
		}
	}
}

func TestLastRegistrationWins(t *testing.T) {
	h, tr := startedHandler(t)
	h.RegisterRequestHandler("m", func(context.Context, *protocol.Request) (map[string]any, error) {
		return map[string]any{"version": "old"}, nil
	})
	h.RegisterRequestHandler("m", func(context.Context, *protocol.Request) (map[string]any, error) {
		return map[string]any{"version": "new"}, nil
	})

	req, _ := protocol.NewRequest(protocol.NumberID(1), "m", nil)
	tr.Inject(req)

	sent := tr.WaitSent(1, time.Second)
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	var result map[string]any
	if err := json.Unmarshal(sent[0].Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["version"] != "new" {
		t.Errorf("result = %v, want the last registration", result)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
