package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wirelight/mcp-go/handler"
	"github.com/wirelight/mcp-go/protocol"
	"github.com/wirelight/mcp-go/testutil"
	"github.com/wirelight/mcp-go/transport"
)

func TestHandlerOptions_DefaultTimeout(t *testing.T) {
	cfg := Default()
	cfg.RequestTimeout = 20 * time.Millisecond

	tr := testutil.NewTransport()
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h := handler.New(tr, cfg.HandlerOptions()...)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		h.Stop()
		tr.Close()
	})

	// Timeout 0 selects the configured default; the peer never answers.
	start := time.Now()
	_, err := h.SendRequest(context.Background(), protocol.MethodToolsList, nil, 0)
	var perr *protocol.Error
	if !errors.As(err, &perr) || perr.Code != protocol.CodeTimeoutError {
		t.Fatalf("err = %v, want timeout error", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %s, want roughly the configured 20ms", elapsed)
	}
}

func TestPollServerOptions_SessionCap(t *testing.T) {
	cfg := Default()
	cfg.MaxConnections = 1

	srv := httptest.NewServer(transport.NewPollServer(cfg.PollServerOptions()...))
	defer srv.Close()

	first, err := http.Post(srv.URL+"/session/create", "application/json", nil)
	if err != nil {
		t.Fatalf("first session/create: %v", err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first session/create status = %d, want %d", first.StatusCode, http.StatusOK)
	}

	second, err := http.Post(srv.URL+"/session/create", "application/json", nil)
	if err != nil {
		t.Fatalf("second session/create: %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second session/create status = %d, want %d", second.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestPollingOptions_Interval(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 10 * time.Millisecond

	ps := transport.NewPollServer()
	srv := httptest.NewServer(ps)
	defer srv.Close()

	p := transport.NewPolling(srv.URL, cfg.PollingOptions()...)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer p.Close()

	msg, _ := protocol.NewNotification(protocol.MethodToolsUpdated, nil)
	if err := ps.Push(p.Meta()["session_id"], msg); err != nil {
		t.Fatalf("Push: %v", err)
	}

	got := make(chan *protocol.Message, 1)
	go func() {
		for m := range p.Messages() {
			got <- m
			return
		}
	}()

	select {
	case m := <-got:
		if m.Method != protocol.MethodToolsUpdated {
			t.Errorf("method = %q, want %q", m.Method, protocol.MethodToolsUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("pushed message never polled back within the configured interval")
	}
}
