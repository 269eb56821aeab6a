package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/smartprice/internal/calendar"
	"github.com/kjannette/smartprice/internal/config"
	"github.com/kjannette/smartprice/internal/external"
	"github.com/kjannette/smartprice/internal/models"
	"github.com/kjannette/smartprice/internal/pricing"
	"github.com/kjannette/smartprice/internal/repository"
	"github.com/kjannette/smartprice/internal/risk"
	"github.com/kjannette/smartprice/internal/scheduler"
)

// Repos groups the Postgres repositories. A nil *Repos runs everything
// in memory with calendars read from CSV.
type Repos struct {
	Calendar    *repository.CalendarRepo
	Quotes      *repository.QuoteRepo
	Submissions *repository.SubmissionRepo
	Runs        *repository.RunRepo
}

func NewRepos(pool *pgxpool.Pool) *Repos {
	return &Repos{
		Calendar:    repository.NewCalendarRepo(pool),
		Quotes:      repository.NewQuoteRepo(pool),
		Submissions: repository.NewSubmissionRepo(pool),
		Runs:        repository.NewRunRepo(pool),
	}
}

// Service holds one orchestrator and calendar per configured property.
type Service struct {
	Orchestrators []*scheduler.Orchestrator
	Calendars     map[string]*calendar.Store
}

// Options overrides the clients Build would otherwise create from config.
type Options struct {
	Occupancy scheduler.AvailabilityChecker
	Submitter scheduler.RateSubmitter
	Clock     func() time.Time
}

func Build(ctx context.Context, cfg *config.Config, repos *Repos, opts Options) (*Service, error) {
	smoobu := external.NewSmoobuClient(external.SmoobuOptions{
		APIKey:     cfg.SmoobuAPIKey,
		CustomerID: cfg.SmoobuCustomerID,
		BaseURL:    cfg.SmoobuBaseURL,
		Retry:      cfg.Retry("smoobu"),
	})

	occupancy := opts.Occupancy
	if occupancy == nil {
		if cfg.SmoobuAPIKey == "" {
			fmt.Println("[SMOOBU] Warning: SMOOBU_API_KEY not set - availability lookups will fail")
		}
		occupancy = smoobu
	}

	submitter := opts.Submitter
	if submitter == nil {
		if cfg.DryRun {
			submitter = external.NewDryRunSubmitter()
		} else {
			submitter = smoobu
		}
	}

	var counter risk.DailySubmissionCounter
	if repos != nil {
		counter = repos.Submissions
	}
	limits := cfg.RiskLimits().ForMode(submitter.Mode())
	newGuard := func() scheduler.SubmissionGuard {
		return risk.NewGuard(limits, counter)
	}

	svc := &Service{Calendars: make(map[string]*calendar.Store)}
	for _, p := range cfg.Properties {
		var calRepo *repository.CalendarRepo
		if repos != nil {
			calRepo = repos.Calendar
		}
		store, err := LoadCalendar(ctx, p, calRepo)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}

		engine, err := pricing.NewEngine(cfg.Policy(p))
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}

		oc := scheduler.OrchestratorConfig{
			Property:    p.Name,
			Listings:    p.Listings,
			Engine:      engine,
			Calendar:    store,
			Occupancy:   occupancy,
			Submitter:   submitter,
			Concurrency: cfg.RunConcurrency,
			NewGuard:    newGuard,
			Clock:       opts.Clock,
		}
		if repos != nil {
			oc.Quotes = repos.Quotes
			oc.Submissions = repos.Submissions
			oc.Runs = repos.Runs
		}

		o, err := scheduler.NewOrchestrator(oc)
		if err != nil {
			return nil, err
		}
		svc.Orchestrators = append(svc.Orchestrators, o)
		svc.Calendars[p.Name] = store
		fmt.Printf("[PRICER] %s ready: %d listings, %d calendar rows\n", p.Name, len(p.Listings), store.Len())
	}
	return svc, nil
}

func (s *Service) Runners() []scheduler.Runner {
	out := make([]scheduler.Runner, len(s.Orchestrators))
	for i, o := range s.Orchestrators {
		out[i] = o
	}
	return out
}

// Orchestrator returns the named property's orchestrator.
func (s *Service) Orchestrator(property string) (*scheduler.Orchestrator, bool) {
	for _, o := range s.Orchestrators {
		if o.Property() == property {
			return o, true
		}
	}
	return nil, false
}

// LoadCalendar prefers rows already in Postgres and falls back to the
// property's CSV export, seeding Postgres from it when a repo is given.
func LoadCalendar(ctx context.Context, p config.Property, repo *repository.CalendarRepo) (*calendar.Store, error) {
	if repo != nil {
		entries, err := repo.LoadAll(ctx, p.Name)
		if err != nil {
			return nil, fmt.Errorf("load calendar: %w", err)
		}
		if len(entries) > 0 {
			return calendar.New(entries)
		}
	}

	if p.CalendarFile == "" {
		return nil, fmt.Errorf("no calendar rows stored and no calendar_file configured")
	}
	entries, err := ReadCalendarFile(p.CalendarFile)
	if err != nil {
		return nil, err
	}
	store, err := calendar.New(entries)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		n, err := repo.Upsert(ctx, p.Name, entries)
		if err != nil {
			return nil, fmt.Errorf("seed calendar: %w", err)
		}
		fmt.Printf("[DB] Seeded %d calendar rows for %s from %s\n", n, p.Name, p.CalendarFile)
	}
	return store, nil
}

func ReadCalendarFile(path string) ([]models.CalendarEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	entries, err := calendar.ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
