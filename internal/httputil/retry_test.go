package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var errFlaky = errors.New("connection reset")

// failN returns an op that fails its first n calls, then succeeds.
func failN(n int32, calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if calls.Add(1) <= n {
			return "", errFlaky
		}
		return "ok", nil
	}
}

func TestCall_SucceedsAfterKFailures(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, Backoff: time.Millisecond, Operation: "test"}

	for k := int32(0); k < 5; k++ {
		var calls atomic.Int32
		v, attempts, err := Call(context.Background(), cfg, failN(k, &calls))
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if v != "ok" {
			t.Fatalf("k=%d: got %q", k, v)
		}
		if attempts != int(k)+1 || calls.Load() != k+1 {
			t.Fatalf("k=%d: expected %d attempts, got %d (calls %d)", k, k+1, attempts, calls.Load())
		}
	}
}

func TestCall_ExhaustsAfterMaxAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond, Operation: "test"}

	for _, k := range []int32{3, 4, 100} {
		var calls atomic.Int32
		_, attempts, err := Call(context.Background(), cfg, failN(k, &calls))
		if !errors.Is(err, ErrExhausted) {
			t.Fatalf("k=%d: expected ErrExhausted, got %v", k, err)
		}
		if !errors.Is(err, errFlaky) {
			t.Fatalf("k=%d: last error should be wrapped: %v", k, err)
		}
		if attempts != 3 || calls.Load() != 3 {
			t.Fatalf("k=%d: expected exactly 3 attempts, got %d (calls %d)", k, attempts, calls.Load())
		}
		var ex *ExhaustedError
		if !errors.As(err, &ex) || ex.Attempts != 3 {
			t.Fatalf("k=%d: expected ExhaustedError with 3 attempts, got %v", k, err)
		}
	}
}

func TestCall_ConstantBackoff(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, Backoff: 40 * time.Millisecond, Operation: "test"}

	var calls atomic.Int32
	start := time.Now()
	_, _, err := Call(context.Background(), cfg, failN(10, &calls))
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected error")
	}
	// three waits of 40ms; doubling would take 280ms
	if elapsed < 120*time.Millisecond || elapsed > 240*time.Millisecond {
		t.Fatalf("expected ~120ms of backoff, took %s", elapsed)
	}
}

func TestCall_PerAttemptTimeout(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond, AttemptTimeout: 20 * time.Millisecond, Operation: "test"}

	var calls atomic.Int32
	_, attempts, err := Call(context.Background(), cfg, func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		if n == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("second attempt should succeed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestCall_PermanentStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, Backoff: time.Millisecond, Operation: "test"}
	bad := errors.New("invalid payload")

	var calls atomic.Int32
	_, attempts, err := Call(context.Background(), cfg, func(context.Context) (int, error) {
		calls.Add(1)
		return 0, Permanent(bad)
	})
	if !errors.Is(err, bad) || errors.Is(err, ErrExhausted) {
		t.Fatalf("expected the permanent error unwrapped, got %v", err)
	}
	if attempts != 1 || calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestCall_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxAttempts: 10, Backoff: 500 * time.Millisecond, Operation: "test"}
	var calls atomic.Int32
	_, _, err := Call(ctx, cfg, failN(100, &calls))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Fatal("cancellation must not be reported as exhaustion")
	}
	t.Logf("Cancelled: %v", err)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond, AttemptTimeout: time.Second}

	resp, attempts, err := Do(context.Background(), client, cfg, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	// body must still be readable after the attempt context is gone
	body, err := io.ReadAll(resp.Body)
	if err != nil || string(body) != `{"ok":true}` {
		t.Fatalf("body: %q, %v", body, err)
	}
}

func TestDo_RetriesOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond}

	resp, attempts, err := Do(context.Background(), client, cfg, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || attempts != 3 || hits.Load() != 3 {
		t.Fatalf("expected 200 on third attempt, got %d after %d attempts", resp.StatusCode, attempts)
	}
}

func TestDo_AllAttemptsFail(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream error"))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond}

	_, _, err := Do(context.Background(), client, cfg, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
	t.Logf("Error after retries: %v", err)
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	cfg := RetryConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond}

	resp, _, err := Do(context.Background(), client, cfg, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if hits.Load() != 1 {
		t.Fatalf("should not retry on 4xx, got %d attempts", hits.Load())
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
