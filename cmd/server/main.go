package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/smartprice/internal/api"
	"github.com/kjannette/smartprice/internal/config"
	"github.com/kjannette/smartprice/internal/db"
	"github.com/kjannette/smartprice/internal/models"
	"github.com/kjannette/smartprice/internal/notifications"
	"github.com/kjannette/smartprice/internal/scheduler"
	"github.com/kjannette/smartprice/internal/service"
)

const banner = `
╔══════════════════════════════════════╗
║     SmartPrice Rate Engine v1.0      ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(context.Background(), cfg.DSN(), cfg.DBMaxConns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	if err := db.TestConnection(context.Background(), pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Migration failed: %v\n", err)
		os.Exit(1)
	}

	// Repos + per-property orchestrators
	repos := service.NewRepos(pool)
	svc, err := service.Build(ctx, cfg, repos, service.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[PRICER] Setup failed: %v\n", err)
		os.Exit(1)
	}

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	// 1. Rate scheduler
	sched := scheduler.NewRateScheduler(svc.Runners(), scheduler.RateSchedulerConfig{
		Interval:  time.Duration(cfg.RunIntervalMinutes) * time.Minute,
		DaysAhead: cfg.RunDaysAhead,
		OnRun: func(rep *models.RunReport, err error) {
			notify.RunSummary(rep, err)
		},
	})

	// 2. API server
	calendars := make(map[string]api.CalendarLookup, len(svc.Calendars))
	properties := make([]string, 0, len(cfg.Properties))
	for _, p := range cfg.Properties {
		calendars[p.Name] = svc.Calendars[p.Name]
		properties = append(properties, p.Name)
	}
	srv := api.NewServer(api.Deps{
		DB:          pool,
		Quotes:      repos.Quotes,
		Submissions: repos.Submissions,
		Runs:        repos.Runs,
		Calendars:   calendars,
		Scheduler:   sched,
		Properties:  properties,
	}, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	mode := "LIVE MODE"
	if cfg.DryRun {
		mode = "DRY RUN"
	}
	notify.Send(fmt.Sprintf("Starting SmartPrice (%d properties) - %s", len(properties), mode))
	sched.Start()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
