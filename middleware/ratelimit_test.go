package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wirelight/mcp-go/middleware"
	"github.com/wirelight/mcp-go/protocol"
)

func okHandler(ctx context.Context, req *protocol.Request) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRateLimit(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		m := middleware.RateLimit(10, 10)
		handler := m(okHandler)

		req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}
		for i := 0; i < 5; i++ {
			result, err := handler(context.Background(), req)
			if err != nil {
				t.Fatalf("request %d: unexpected error: %v", i, err)
			}
			if result == nil {
				t.Fatalf("request %d: expected result", i)
			}
		}
	})

	t.Run("rejects requests exceeding limit", func(t *testing.T) {
		m := middleware.RateLimit(1, 1)
		handler := m(okHandler)

		req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}

		if _, err := handler(context.Background(), req); err != nil {
			t.Fatalf("first request failed: %v", err)
		}

		_, err := handler(context.Background(), req)
		if err == nil {
			t.Fatal("expected rate limit error")
		}

		var perr *protocol.Error
		if !errors.As(err, &perr) {
			t.Fatalf("expected protocol.Error, got %T", err)
		}
		if perr.Code != protocol.CodeRateLimited {
			t.Errorf("expected code %d, got %d", protocol.CodeRateLimited, perr.Code)
		}
	})

	t.Run("respects burst capacity", func(t *testing.T) {
		m := middleware.RateLimit(1, 5)
		handler := m(okHandler)

		req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}

		for i := 0; i < 5; i++ {
			if _, err := handler(context.Background(), req); err != nil {
				t.Fatalf("burst request %d failed: %v", i, err)
			}
		}
		if _, err := handler(context.Background(), req); err == nil {
			t.Fatal("expected rate limit error after burst")
		}
	})
}

func TestRateLimitByMethod(t *testing.T) {
	m := middleware.RateLimitByMethod(1, 1)
	handler := m(okHandler)

	method1 := &protocol.Request{ID: json.RawMessage(`1`), Method: "method1"}
	method2 := &protocol.Request{ID: json.RawMessage(`2`), Method: "method2"}

	if _, err := handler(context.Background(), method1); err != nil {
		t.Fatalf("method1 first request failed: %v", err)
	}
	if _, err := handler(context.Background(), method2); err != nil {
		t.Fatalf("method2 first request failed: %v", err)
	}
	if _, err := handler(context.Background(), method1); err == nil {
		t.Fatal("expected method1 to be rate limited")
	}
}

func TestRateLimitByClient(t *testing.T) {
	m := middleware.RateLimitByClient(1, 1)
	handler := m(okHandler)

	client1 := &protocol.Request{
		ID:     json.RawMessage(`1`),
		Method: "test",
		Params: map[string]any{"client_id": "client1"},
	}
	client2 := &protocol.Request{
		ID:     json.RawMessage(`2`),
		Method: "test",
		Params: map[string]any{"client_id": "client2"},
	}

	if _, err := handler(context.Background(), client1); err != nil {
		t.Fatalf("client1 first request failed: %v", err)
	}
	if _, err := handler(context.Background(), client2); err != nil {
		t.Fatalf("client2 first request failed: %v", err)
	}
	if _, err := handler(context.Background(), client1); err == nil {
		t.Fatal("expected client1 to be rate limited")
	}
}

func TestRateLimitByClient_SessionMeta(t *testing.T) {
	m := middleware.RateLimitByClient(1, 1)
	handler := m(okHandler)

	req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}
	ctxA := protocol.ContextWithMeta(context.Background(), protocol.Meta{"session_id": "a"})
	ctxB := protocol.ContextWithMeta(context.Background(), protocol.Meta{"session_id": "b"})

	if _, err := handler(ctxA, req); err != nil {
		t.Fatalf("session a first request failed: %v", err)
	}
	if _, err := handler(ctxB, req); err != nil {
		t.Fatalf("session b first request failed: %v", err)
	}
	if _, err := handler(ctxA, req); err == nil {
		t.Fatal("expected session a to be rate limited")
	}
}

func TestRateLimit_Concurrent(t *testing.T) {
	m := middleware.RateLimit(10, 10)
	handler := m(okHandler)

	var wg sync.WaitGroup
	var allowed, denied int
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}
			_, err := handler(context.Background(), req)

			mu.Lock()
			if err == nil {
				allowed++
			} else {
				denied++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if allowed < 5 || allowed > 15 {
		t.Errorf("expected around 10 allowed, got %d", allowed)
	}
	if denied < 5 || denied > 15 {
		t.Errorf("expected around 10 denied, got %d", denied)
	}
}

func TestRateLimit_Recovery(t *testing.T) {
	m := middleware.RateLimit(10, 1)
	handler := m(okHandler)

	req := &protocol.Request{ID: json.RawMessage(`1`), Method: "test"}

	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := handler(context.Background(), req); err == nil {
		t.Fatal("expected rate limit")
	}

	// One token refills after 100ms at 10/s.
	time.Sleep(150 * time.Millisecond)

	if _, err := handler(context.Background(), req); err != nil {
		t.Fatalf("after recovery: %v", err)
	}
}
