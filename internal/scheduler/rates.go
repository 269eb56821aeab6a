package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/smartprice/internal/models"
)

// Runner is one property's pricing pass. *Orchestrator implements it.
type Runner interface {
	Property() string
	Run(ctx context.Context, start time.Time, daysAhead int) (*models.RunReport, error)
}

var (
	ErrRunInProgress    = errors.New("pricing run already in progress")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

type RateSchedulerConfig struct {
	Interval   time.Duration // e.g. 6*time.Hour
	DaysAhead  int           // e.g. 210
	RunTimeout time.Duration // bounds a single pass over all properties
	OnRun      func(rep *models.RunReport, err error)
	Clock      func() time.Time
}

// RateScheduler reprices every property on a fixed interval. Passes never
// overlap: a tick or trigger that arrives while a pass is running is
// refused. Every pass, scheduled or manual, runs under the scheduler's
// context, so Stop cancels it and waits until its outcomes are reported.
type RateScheduler struct {
	runners []Runner
	cfg     RateSchedulerConfig

	mu      sync.Mutex
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	passes  sync.WaitGroup
	busy    bool
	last    map[string]*models.RunReport
}

func NewRateScheduler(runners []Runner, cfg RateSchedulerConfig) *RateScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 210
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.Interval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RateScheduler{
		runners: runners,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		last:    make(map[string]*models.RunReport),
	}
}

func (s *RateScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		fmt.Println("[SCHEDULER] Already running")
		return
	}
	if s.stopped {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.stopped = false
	}
	s.running = true
	s.done = make(chan struct{})
	ctx, done := s.ctx, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		// initial pass on startup
		s.tick()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	fmt.Printf("[SCHEDULER] Started (%d properties every %s, %d days ahead)\n",
		len(s.runners), s.cfg.Interval, s.cfg.DaysAhead)
}

// Stop cancels every pass in flight, including manual ones, and returns
// once they have reported and the ticker loop has exited.
func (s *RateScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	wasRunning := s.running
	s.running = false
	done := s.done
	s.mu.Unlock()

	if wasRunning {
		<-done
	}
	s.passes.Wait()
	fmt.Println("[SCHEDULER] Stopped")
}

func (s *RateScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Busy reports whether a pass is in flight.
func (s *RateScheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// RunNow manually runs a pass and waits for it. The pass ends when ctx or
// the scheduler is done, whichever comes first.
func (s *RateScheduler) RunNow(ctx context.Context) ([]*models.RunReport, error) {
	pctx, release, err := s.reserve(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	fmt.Println("[SCHEDULER] Manual pricing run triggered")
	return s.runAll(pctx)
}

// Trigger claims the pass slot and runs the pass in the background,
// bounded by the run timeout. It returns ErrRunInProgress when a pass is
// already running and ErrSchedulerStopped after Stop.
func (s *RateScheduler) Trigger() error {
	pctx, release, err := s.reserve(context.Background())
	if err != nil {
		return err
	}
	fmt.Println("[SCHEDULER] Manual pricing run triggered")

	go func() {
		defer release()
		tctx, cancel := context.WithTimeout(pctx, s.cfg.RunTimeout)
		defer cancel()
		if _, err := s.runAll(tctx); err != nil {
			fmt.Printf("[SCHEDULER] Triggered run failed: %v\n", err)
		}
	}()
	return nil
}

// LastReport returns the most recent report for a property, or nil.
func (s *RateScheduler) LastReport(property string) *models.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[property]
}

func (s *RateScheduler) tick() {
	pctx, release, err := s.reserve(context.Background())
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			fmt.Println("[SCHEDULER] Previous pass still running, skipping tick")
		}
		return
	}
	defer release()

	tctx, cancel := context.WithTimeout(pctx, s.cfg.RunTimeout)
	defer cancel()
	if _, err := s.runAll(tctx); err != nil {
		fmt.Printf("[SCHEDULER] Pricing run failed: %v\n", err)
	}
}

// reserve claims the single pass slot and registers the pass with Stop.
// The returned context is cancelled when parent is done or the scheduler
// stops; release must be called exactly once.
func (s *RateScheduler) reserve(parent context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, nil, ErrSchedulerStopped
	}
	if s.busy {
		return nil, nil, ErrRunInProgress
	}
	s.busy = true
	s.passes.Add(1)

	ctx, cancel := context.WithCancel(parent)
	unhook := context.AfterFunc(s.ctx, cancel)
	release := func() {
		unhook()
		cancel()
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.passes.Done()
	}
	return ctx, release, nil
}

func (s *RateScheduler) runAll(ctx context.Context) ([]*models.RunReport, error) {
	var reports []*models.RunReport
	var errs []error
	start := models.Day(s.cfg.Clock())

	for _, r := range s.runners {
		rep, err := r.Run(ctx, start, s.cfg.DaysAhead)
		if rep != nil {
			s.mu.Lock()
			s.last[r.Property()] = rep
			s.mu.Unlock()
			reports = append(reports, rep)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Property(), err))
		}
		if s.cfg.OnRun != nil {
			s.cfg.OnRun(rep, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return reports, errors.Join(errs...)
}
