package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/smartprice/internal/config"
	"github.com/kjannette/smartprice/internal/db"
	"github.com/kjannette/smartprice/internal/models"
	"github.com/kjannette/smartprice/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "quote":
		cmdQuote(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  pricer run    [--property zed] [--start 2026-06-01] [--days 210] [--db] [--live]")
	fmt.Println("  pricer import --property zed --file data/data_zed.csv")
	fmt.Println("  pricer quote  --property zed --date 2026-08-14")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - run prices every date in the window once; DRY_RUN decides submit vs print unless --live")
	fmt.Println("  - import validates the CSV export and upserts it into Postgres")
	fmt.Println("  - quote prints one date's price ladder without submitting")
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	property := fs.String("property", "", "Property name (default: all)")
	start := fs.String("start", "", "First date YYYY-MM-DD (default: today)")
	days := fs.Int("days", -1, "Days ahead of start (default: RUN_DAYS_AHEAD)")
	useDB := fs.Bool("db", false, "Load calendars from and record results to Postgres")
	live := fs.Bool("live", false, "Submit rates even if DRY_RUN is set")
	_ = fs.Parse(args)

	cfg := loadConfig()
	if *live {
		cfg.DryRun = false
	}
	if err := cfg.Validate(); err != nil {
		fatal("%v", err)
	}
	if *days < 0 {
		*days = cfg.RunDaysAhead
	}
	first := models.Day(time.Now())
	if *start != "" {
		d, err := models.ParseDate(*start)
		if err != nil {
			fatal("--start: %v", err)
		}
		first = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repos *service.Repos
	if *useDB {
		pool := connect(ctx, cfg)
		defer pool.Close()
		repos = service.NewRepos(pool)
	}

	svc, err := service.Build(ctx, cfg, repos, service.Options{})
	if err != nil {
		fatal("%v", err)
	}

	failed := false
	for _, r := range svc.Runners() {
		if *property != "" && r.Property() != *property {
			continue
		}
		rep, err := r.Run(ctx, first, *days)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[PRICER] %s: %v\n", r.Property(), err)
			failed = true
		}
		if rep != nil && rep.Failed > 0 {
			failed = true
		}
	}
	fmt.Println("\nFinished processing all valid dates.")
	if failed {
		os.Exit(1)
	}
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	property := fs.String("property", "", "Property name")
	file := fs.String("file", "", "Calendar CSV export (default: property calendar_file)")
	_ = fs.Parse(args)

	if *property == "" {
		fmt.Println("--property is required")
		os.Exit(2)
	}

	cfg := loadConfig()
	p, ok := cfg.Property(*property)
	if !ok {
		fatal("unknown property %q", *property)
	}
	path := *file
	if path == "" {
		path = p.CalendarFile
	}
	if path == "" {
		fatal("--file is required when %s has no calendar_file", p.Name)
	}

	p.CalendarFile = path
	// validates before anything is written
	if _, err := service.LoadCalendar(context.Background(), p, nil); err != nil {
		fatal("%v", err)
	}
	entries, err := service.ReadCalendarFile(path)
	if err != nil {
		fatal("%v", err)
	}

	ctx := context.Background()
	pool := connect(ctx, cfg)
	defer pool.Close()

	n, err := service.NewRepos(pool).Calendar.Upsert(ctx, p.Name, entries)
	if err != nil {
		fatal("import: %v", err)
	}
	fmt.Printf("Imported %d calendar rows for %s from %s\n", n, p.Name, path)
}

func cmdQuote(args []string) {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	property := fs.String("property", "", "Property name")
	date := fs.String("date", "", "Stay date YYYY-MM-DD")
	_ = fs.Parse(args)

	if *property == "" || *date == "" {
		fmt.Println("--property and --date are required")
		os.Exit(2)
	}
	d, err := models.ParseDate(*date)
	if err != nil {
		fatal("--date: %v", err)
	}

	cfg := loadConfig()
	p, ok := cfg.Property(*property)
	if !ok {
		fatal("unknown property %q", *property)
	}
	cfg.Properties = []config.Property{p}

	ctx := context.Background()
	svc, err := service.Build(ctx, cfg, nil, service.Options{})
	if err != nil {
		fatal("%v", err)
	}
	o, _ := svc.Orchestrator(p.Name)

	q, prices, outcome, err := o.Quote(ctx, d, time.Now())
	if err != nil {
		fatal("%s: %v", outcome, err)
	}
	score := "-"
	if q.CompositeScore != nil {
		score = fmt.Sprintf("%.4f", *q.CompositeScore)
	}
	fmt.Printf("Date %s | %s | lead %d days | occupancy %.2f | x=%s | base %.2f\n",
		models.FormatDate(q.Date), q.Regime, q.LeadDays, q.Occupancy, score, q.BasePrice)
	if outcome != models.DatePriced {
		fmt.Println("No available listings")
		return
	}
	for _, lp := range prices {
		fmt.Printf("  listing %-10d %8.2f\n", lp.ListingID, lp.Price)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("config load error: %v", err)
	}
	return cfg
}

func connect(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	fmt.Printf("[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxConns)
	if err != nil {
		fatal("[DB] Connection failed: %v", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		fatal("[DB] Migration failed: %v", err)
	}
	return pool
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
