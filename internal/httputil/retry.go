package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjannette/smartprice/internal/metrics"
)

// ErrExhausted is matched by every error returned after the attempt budget
// runs out.
var ErrExhausted = errors.New("retry attempts exhausted")

type RetryConfig struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
	// Operation labels log lines and metrics, e.g. "availability".
	Operation string
}

var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	Backoff:        2 * time.Second,
	AttemptTimeout: 15 * time.Second,
	Operation:      "call",
}

// ExhaustedError carries the attempt count and the last failure.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all %d attempts failed, last error: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Call returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Call runs op until it succeeds, returns a Permanent error, or the attempt
// budget is spent. Each attempt gets its own timeout; failures wait a fixed
// backoff. The attempt count is returned in every case.
func Call[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if cfg.Operation == "" {
		cfg.Operation = DefaultRetry.Operation
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := runAttempt(ctx, cfg.AttemptTimeout, op)
		if err == nil {
			metrics.ObserveAttempt(cfg.Operation, "success")
			return v, attempt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			metrics.ObserveAttempt(cfg.Operation, "permanent")
			return zero, attempt, perm.err
		}
		metrics.ObserveAttempt(cfg.Operation, "failure")
		lastErr = err

		if ctx.Err() != nil {
			return zero, attempt, fmt.Errorf("%s: %w", cfg.Operation, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		fmt.Printf("[RETRY] %s attempt %d/%d failed: %v - retrying in %s\n",
			cfg.Operation, attempt, cfg.MaxAttempts, lastErr, cfg.Backoff)

		if cfg.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, attempt, fmt.Errorf("%s: %w", cfg.Operation, ctx.Err())
			case <-time.After(cfg.Backoff):
			}
		}
	}

	metrics.ObserveExhausted(cfg.Operation)
	return zero, cfg.MaxAttempts, &ExhaustedError{Operation: cfg.Operation, Attempts: cfg.MaxAttempts, Last: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(actx)
}

// Do executes an HTTP request under Call. buildReq is invoked on every
// attempt with that attempt's context. 5xx and 429 responses are retried;
// other statuses are returned to the caller. The body is read inside the
// attempt, so the returned response outlives the attempt timeout.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, int, error) {
	return Call(ctx, cfg, func(actx context.Context) (*http.Response, error) {
		req, err := buildReq(actx)
		if err != nil {
			return nil, Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 512))
		}

		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
