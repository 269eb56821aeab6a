package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kjannette/smartprice/internal/models"
)

var ErrBlocked = errors.New("submission blocked")

// DailySubmissionCounter abstracts the submission log so Guard can be
// tested without a real database.
type DailySubmissionCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the submission guard thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxDailySubmissions int
	AbsoluteMinPrice    float64
	AbsoluteMaxPrice    float64
}

// ForMode adjusts the limits for a delivery mode. Dry-run rates never reach
// the channel and are not counted by the submission log, so they do not
// draw on the daily budget; the price bounds still apply.
func (l Limits) ForMode(mode models.SubmissionStatus) Limits {
	if mode == models.SubmissionDryRun {
		l.MaxDailySubmissions = 0
	}
	return l
}

// Guard vets each outgoing rate. It is safe for concurrent use; the
// daily count is read once and tracked locally for the guard's lifetime,
// so build one Guard per run.
type Guard struct {
	limits  Limits
	counter DailySubmissionCounter

	mu     sync.Mutex
	loaded bool
	base   int
	used   int
}

func NewGuard(limits Limits, counter DailySubmissionCounter) *Guard {
	return &Guard{limits: limits, counter: counter}
}

// Check validates lp and, if allowed, reserves one slot of the daily
// budget. Returns nil if the submission may go out.
func (g *Guard) Check(ctx context.Context, lp models.ListingPrice) error {
	if lp.Price <= 0 {
		return fmt.Errorf("%w: non-positive price %.2f for listing %d", ErrBlocked, lp.Price, lp.ListingID)
	}
	if g.limits.AbsoluteMinPrice > 0 && lp.Price < g.limits.AbsoluteMinPrice {
		return fmt.Errorf("%w: price %.2f below absolute minimum %.2f", ErrBlocked, lp.Price, g.limits.AbsoluteMinPrice)
	}
	if g.limits.AbsoluteMaxPrice > 0 && lp.Price > g.limits.AbsoluteMaxPrice {
		return fmt.Errorf("%w: price %.2f above absolute maximum %.2f", ErrBlocked, lp.Price, g.limits.AbsoluteMaxPrice)
	}

	if g.limits.MaxDailySubmissions <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.loaded && g.counter != nil {
		n, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("%w: unable to verify daily submission count: %v", ErrBlocked, err)
		}
		g.base = n
		g.loaded = true
	}
	if g.base+g.used >= g.limits.MaxDailySubmissions {
		return fmt.Errorf("%w: daily limit of %d submissions reached (%d sent today)",
			ErrBlocked, g.limits.MaxDailySubmissions, g.base+g.used)
	}
	g.used++
	return nil
}

// Release returns a reserved slot after a delivery that did not happen.
func (g *Guard) Release() {
	if g.limits.MaxDailySubmissions <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used > 0 {
		g.used--
	}
}
