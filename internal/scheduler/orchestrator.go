package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/smartprice/internal/metrics"
	"github.com/kjannette/smartprice/internal/models"
	"github.com/kjannette/smartprice/internal/pricing"
)

// AvailabilityChecker reports which tracked listings are free on a date.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, date time.Time, listings []int64) (models.OccupancySample, error)
}

// RateSubmitter delivers one listing price. Mode is the status recorded
// for a successful delivery.
type RateSubmitter interface {
	SubmitRate(ctx context.Context, lp models.ListingPrice) (int, error)
	Mode() models.SubmissionStatus
}

// SubmissionGuard vets each outgoing rate before it is sent.
type SubmissionGuard interface {
	Check(ctx context.Context, lp models.ListingPrice) error
	Release()
}

type QuoteRecorder interface {
	Record(ctx context.Context, q *models.PriceQuote) (*models.PriceQuote, error)
}

type SubmissionRecorder interface {
	Record(ctx context.Context, s *models.Submission) (*models.Submission, error)
}

type RunRecorder interface {
	Record(ctx context.Context, rep *models.RunReport) error
}

type OrchestratorConfig struct {
	Property    string
	Listings    []int64 // priority order
	Engine      *pricing.Engine
	Calendar    pricing.Lookup
	Occupancy   AvailabilityChecker
	Submitter   RateSubmitter
	Concurrency int

	// Optional. NewGuard is called once per run.
	NewGuard    func() SubmissionGuard
	Quotes      QuoteRecorder
	Submissions SubmissionRecorder
	Runs        RunRecorder

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator prices and submits a window of dates for one property.
type Orchestrator struct {
	cfg OrchestratorConfig
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	var missing []string
	if cfg.Property == "" {
		missing = append(missing, "property")
	}
	if len(cfg.Listings) == 0 {
		missing = append(missing, "listings")
	}
	if cfg.Engine == nil {
		missing = append(missing, "engine")
	}
	if cfg.Calendar == nil {
		missing = append(missing, "calendar")
	}
	if cfg.Occupancy == nil {
		missing = append(missing, "occupancy checker")
	}
	if cfg.Submitter == nil {
		missing = append(missing, "submitter")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator: missing %s", strings.Join(missing, ", "))
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orchestrator{cfg: cfg}, nil
}

func (o *Orchestrator) Property() string {
	return o.cfg.Property
}

// DateResult is the outcome of processing one date.
type DateResult struct {
	Date     time.Time
	Outcome  string
	Quote    *models.PriceQuote
	Sent     int
	Failed   int
	Blocked  int
	Failures []models.RunFailure
}

// Run processes start .. start+daysAhead inclusive. Dates are independent:
// a failure on one is recorded and the run moves on. Only ctx cancellation
// stops the run early, in which case the partial report is returned with
// the context error.
func (o *Orchestrator) Run(ctx context.Context, start time.Time, daysAhead int) (*models.RunReport, error) {
	now := o.cfg.Clock()
	first := models.Day(start)

	rep := &models.RunReport{
		ID:        uuid.NewString(),
		Property:  o.cfg.Property,
		StartDate: first,
		Days:      daysAhead + 1,
		DryRun:    o.cfg.Submitter.Mode() == models.SubmissionDryRun,
		StartedAt: now,
		Skipped:   make(map[string]int),
	}

	var guard SubmissionGuard
	if o.cfg.NewGuard != nil {
		guard = o.cfg.NewGuard()
	}

	fmt.Printf("[PRICER] Run %s: %s, %s .. %s (%d dates, concurrency %d, %s)\n",
		rep.ID, o.cfg.Property, models.FormatDate(first),
		models.FormatDate(first.AddDate(0, 0, daysAhead)), rep.Days, o.cfg.Concurrency,
		submitMode(rep.DryRun))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	for i := 0; i <= daysAhead; i++ {
		if ctx.Err() != nil {
			mu.Lock()
			rep.Skipped[models.DateSkipCancelled] += daysAhead + 1 - i
			mu.Unlock()
			break
		}
		date := first.AddDate(0, 0, i)
		g.Go(func() error {
			res := o.processDate(ctx, rep.ID, date, now, guard)
			mu.Lock()
			mergeResult(rep, res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	rep.FinishedAt = o.cfg.Clock()
	metrics.ObserveRun(o.cfg.Property, rep.FinishedAt.Sub(rep.StartedAt).Seconds())

	fmt.Printf("[PRICER] Run %s finished: %d priced, %d skipped, %d sent, %d failed, %d blocked\n",
		rep.ID, rep.Priced, rep.SkippedTotal(), rep.Sent, rep.Failed, rep.Blocked)

	if o.cfg.Runs != nil {
		// the run record outlives a cancelled run context
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := o.cfg.Runs.Record(rctx, rep); err != nil {
			fmt.Printf("[PRICER] Warning: could not record run %s: %v\n", rep.ID, err)
		}
		cancel()
	}

	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("run %s interrupted: %w", rep.ID, err)
	}
	return rep, nil
}

// ProcessDate prices and submits a single date outside of a run. Submissions
// are not budget-checked unless a guard factory is configured.
func (o *Orchestrator) ProcessDate(ctx context.Context, date, now time.Time) DateResult {
	var guard SubmissionGuard
	if o.cfg.NewGuard != nil {
		guard = o.cfg.NewGuard()
	}
	return o.processDate(ctx, uuid.NewString(), models.Day(date), now, guard)
}

// Quote computes the quote and ladder for a date without submitting
// anything. The outcome is DatePriced on success or a skip reason.
func (o *Orchestrator) Quote(ctx context.Context, date, now time.Time) (*models.PriceQuote, []models.ListingPrice, string, error) {
	sample, err := o.cfg.Occupancy.CheckAvailability(ctx, date, o.cfg.Listings)
	if err != nil {
		return nil, nil, models.DateSkipAvailability, err
	}

	q, err := o.cfg.Engine.Compute(sample.Ratio, date, now, o.cfg.Calendar)
	if err != nil {
		return nil, nil, skipReason(err), err
	}
	q.Property = o.cfg.Property

	ordered := pricing.OrderByPriority(o.cfg.Listings, sample.Available)
	if len(ordered) == 0 {
		return q, nil, models.DateSkipNoAvailable, nil
	}
	return q, pricing.Distribute(q, ordered), models.DatePriced, nil
}

func (o *Orchestrator) processDate(ctx context.Context, runID string, date, now time.Time, guard SubmissionGuard) DateResult {
	res := DateResult{Date: date}
	day := models.FormatDate(date)

	q, prices, outcome, err := o.Quote(ctx, date, now)
	res.Outcome = outcome
	res.Quote = q
	metrics.ObserveDate(o.cfg.Property, outcome)

	switch {
	case err != nil:
		fmt.Printf("[PRICER] Skipping %s (%s): %v\n", day, outcome, err)
		return res
	case outcome != models.DatePriced:
		fmt.Printf("[PRICER] Skipping %s: no available listings\n", day)
		return res
	}

	q.RunID = runID
	metrics.SetBasePrice(o.cfg.Property, string(q.Regime), q.BasePrice)
	if o.cfg.Quotes != nil {
		if _, err := o.cfg.Quotes.Record(context.WithoutCancel(ctx), q); err != nil {
			fmt.Printf("[PRICER] Warning: could not record quote for %s: %v\n", day, err)
		}
	}

	// sequential within a date keeps per-listing submissions ordered
	for _, lp := range prices {
		sub := o.submit(ctx, runID, lp, guard)
		switch sub.Status {
		case models.SubmissionBlocked:
			res.Blocked++
		case models.SubmissionFailed:
			res.Failed++
		default:
			res.Sent++
		}
		if sub.Error != nil {
			res.Failures = append(res.Failures, models.RunFailure{ListingID: lp.ListingID, Date: date, Reason: *sub.Error})
		}
	}

	score := "-"
	if q.CompositeScore != nil {
		score = fmt.Sprintf("%.4f", *q.CompositeScore)
	}
	fmt.Printf("[PRICER] Date %s, Occupancy %.2f, x=%s, Base Price %.2f (%s, %d/%d listings)\n",
		day, q.Occupancy, score, q.BasePrice, q.Regime, res.Sent, len(prices))
	return res
}

func (o *Orchestrator) submit(ctx context.Context, runID string, lp models.ListingPrice, guard SubmissionGuard) *models.Submission {
	sub := &models.Submission{
		RunID:     runID,
		Property:  o.cfg.Property,
		ListingID: lp.ListingID,
		Date:      lp.Date,
		Price:     lp.Price,
	}

	var err error
	if guard != nil {
		err = guard.Check(ctx, lp)
	}
	if err != nil {
		sub.Status = models.SubmissionBlocked
		fmt.Printf("[RISK] %v\n", err)
	} else {
		sub.Attempts, err = o.cfg.Submitter.SubmitRate(ctx, lp)
		if err != nil {
			sub.Status = models.SubmissionFailed
			if guard != nil {
				guard.Release()
			}
			fmt.Printf("[PRICER] Rate for listing %d on %s failed after %d attempts: %v\n",
				lp.ListingID, models.FormatDate(lp.Date), sub.Attempts, err)
		} else {
			sub.Status = o.cfg.Submitter.Mode()
		}
	}
	if err != nil {
		msg := err.Error()
		sub.Error = &msg
	}

	metrics.ObserveSubmission(o.cfg.Property, string(sub.Status))
	if o.cfg.Submissions != nil {
		// outcomes are recorded even when the run is being cancelled
		if _, rerr := o.cfg.Submissions.Record(context.WithoutCancel(ctx), sub); rerr != nil {
			fmt.Printf("[PRICER] Warning: could not record submission: %v\n", rerr)
		}
	}
	return sub
}

func mergeResult(rep *models.RunReport, res DateResult) {
	if res.Outcome == models.DatePriced {
		rep.Priced++
	} else {
		rep.Skipped[res.Outcome]++
	}
	rep.Sent += res.Sent
	rep.Failed += res.Failed
	rep.Blocked += res.Blocked
	rep.Failures = append(rep.Failures, res.Failures...)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, pricing.ErrOutOfHorizon):
		return models.DateSkipOutOfHorizon
	case errors.Is(err, pricing.ErrCalendarMiss):
		return models.DateSkipCalendarMiss
	case errors.Is(err, pricing.ErrUnknownOccupancy):
		return models.DateSkipBadOccupancy
	default:
		return models.DateSkipEngine
	}
}

func submitMode(dryRun bool) string {
	if dryRun {
		return "DRY RUN"
	}
	return "LIVE"
}
