package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kjannette/smartprice/internal/models"
)

type mockCounter struct {
	count int
	err   error
	calls int
}

func (m *mockCounter) CountToday(_ context.Context) (int, error) {
	m.calls++
	return m.count, m.err
}

func lp(price float64) models.ListingPrice {
	return models.ListingPrice{ListingID: 1, Price: price}
}

func TestCheck_NonPositiveBlocked(t *testing.T) {
	g := NewGuard(Limits{}, nil)
	if err := g.Check(context.Background(), lp(0)); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected zero price blocked, got %v", err)
	}
	if err := g.Check(context.Background(), lp(85)); err != nil {
		t.Fatalf("expected allowed with no limits, got %v", err)
	}
}

func TestCheck_AbsoluteBounds(t *testing.T) {
	g := NewGuard(Limits{AbsoluteMinPrice: 40, AbsoluteMaxPrice: 400}, nil)

	tests := []struct {
		price   float64
		blocked bool
	}{
		{39.99, true},
		{40, false},
		{400, false},
		{400.01, true},
	}
	for _, tt := range tests {
		err := g.Check(context.Background(), lp(tt.price))
		if tt.blocked != (err != nil) {
			t.Errorf("price %.2f: blocked=%v, err=%v", tt.price, tt.blocked, err)
		}
	}
}

func TestCheck_DailyBudget(t *testing.T) {
	counter := &mockCounter{count: 8}
	g := NewGuard(Limits{MaxDailySubmissions: 10}, counter)
	ctx := context.Background()

	if err := g.Check(ctx, lp(90)); err != nil {
		t.Fatalf("9/10 should pass: %v", err)
	}
	if err := g.Check(ctx, lp(90)); err != nil {
		t.Fatalf("10/10 should pass: %v", err)
	}
	err := g.Check(ctx, lp(90))
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected budget exhausted, got %v", err)
	}
	t.Logf("Correctly blocked: %v", err)

	if counter.calls != 1 {
		t.Fatalf("counter should be read once, got %d", counter.calls)
	}

	g.Release()
	if err := g.Check(ctx, lp(90)); err != nil {
		t.Fatalf("released slot should be reusable: %v", err)
	}
}

func TestCheck_CounterError(t *testing.T) {
	g := NewGuard(Limits{MaxDailySubmissions: 10}, &mockCounter{err: fmt.Errorf("db down")})
	if err := g.Check(context.Background(), lp(90)); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected fail-closed on counter error, got %v", err)
	}
}

func TestCheck_ConcurrentBudget(t *testing.T) {
	g := NewGuard(Limits{MaxDailySubmissions: 25}, &mockCounter{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Check(context.Background(), lp(90)) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 25 {
		t.Fatalf("expected exactly 25 allowed, got %d", allowed)
	}
}

func TestForMode_DryRunSkipsBudget(t *testing.T) {
	limits := Limits{MaxDailySubmissions: 2, AbsoluteMaxPrice: 400}

	counter := &mockCounter{count: 2}
	g := NewGuard(limits.ForMode(models.SubmissionDryRun), counter)
	for i := 0; i < 5; i++ {
		if err := g.Check(context.Background(), lp(100)); err != nil {
			t.Fatalf("dry-run check %d blocked: %v", i, err)
		}
	}
	if counter.calls != 0 {
		t.Fatalf("dry run should not read the submission log, got %d calls", counter.calls)
	}
	if err := g.Check(context.Background(), lp(401)); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected price bound to hold in dry run, got %v", err)
	}

	live := NewGuard(limits.ForMode(models.SubmissionSent), &mockCounter{count: 2})
	if err := live.Check(context.Background(), lp(100)); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected live budget exhausted, got %v", err)
	}
}
