package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kjannette/smartprice/internal/httputil"
	"github.com/kjannette/smartprice/internal/pricing"
	"github.com/kjannette/smartprice/internal/risk"
)

type Config struct {
	// Secrets (from .env)
	SmoobuAPIKey     string
	SmoobuCustomerID int
	SmoobuBaseURL    string
	WebhookURL       string
	BotName          string
	APIKey           string
	CORSAllowOrigin  string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// Pricing
	HorizonDays            int
	LongTermBoundaryDays   int
	SameDayHorizonHours    int
	SameDayPolicy          string
	OccupancyFactorCap     float64
	DefaultLongTermPremium float64

	// Run
	RunDaysAhead       int
	RunConcurrency     int
	RunIntervalMinutes int
	DryRun             bool
	APIPort            int

	// Retry
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	RequestTimeout   time.Duration

	// Risk
	MaxDailySubmissions int
	AbsoluteMinPrice    float64
	AbsoluteMaxPrice    float64

	// Properties (from PROPERTY_FILE)
	PropertyFile string
	Properties   []Property
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		SmoobuAPIKey:     envStr("SMOOBU_API_KEY", ""),
		SmoobuCustomerID: envInt("SMOOBU_CUSTOMER_ID", 0),
		SmoobuBaseURL:    envStr("SMOOBU_BASE_URL", "https://login.smoobu.com"),
		WebhookURL:       envStr("WEBHOOK_URL", ""),
		BotName:          envStr("BOT_NAME", "SmartPrice"),
		APIKey:           envStr("API_KEY", ""),
		CORSAllowOrigin:  envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "smartprice"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),
		DBMaxConns: envInt("DB_MAX_CONNS", 10),

		// Pricing
		HorizonDays:            envInt("PRICING_HORIZON_DAYS", 365),
		LongTermBoundaryDays:   envInt("LONG_TERM_BOUNDARY_DAYS", 240),
		SameDayHorizonHours:    envInt("SAME_DAY_HORIZON_HOURS", 263),
		SameDayPolicy:          envStr("SAME_DAY_POLICY", string(pricing.SameDayHourly)),
		OccupancyFactorCap:     envFloat("OCCUPANCY_FACTOR_CAP", 2),
		DefaultLongTermPremium: envFloat("DEFAULT_LONG_TERM_PREMIUM", 20),

		// Run
		RunDaysAhead:       envInt("RUN_DAYS_AHEAD", 210),
		RunConcurrency:     envInt("RUN_CONCURRENCY", 1),
		RunIntervalMinutes: envInt("RUN_INTERVAL_MINUTES", 360),
		DryRun:             envBool("DRY_RUN", true),
		APIPort:            envInt("API_PORT", 3001),

		// Retry
		RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoff:     envDuration("RETRY_BACKOFF", 2*time.Second),
		RequestTimeout:   envDuration("REQUEST_TIMEOUT", 15*time.Second),

		// Risk
		MaxDailySubmissions: envInt("MAX_DAILY_SUBMISSIONS", 0),
		AbsoluteMinPrice:    envFloat("ABSOLUTE_MIN_PRICE", 0),
		AbsoluteMaxPrice:    envFloat("ABSOLUTE_MAX_PRICE", 0),

		PropertyFile: envStr("PROPERTY_FILE", "properties.yaml"),
	}

	if cfg.PropertyFile != "" {
		props, err := LoadProperties(cfg.PropertyFile)
		if err != nil {
			return nil, fmt.Errorf("load properties: %w", err)
		}
		cfg.Properties = props
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if !c.DryRun {
		if c.SmoobuAPIKey == "" {
			errs = append(errs, "SMOOBU_API_KEY is required when DRY_RUN is false")
		}
		if c.SmoobuCustomerID == 0 {
			errs = append(errs, "SMOOBU_CUSTOMER_ID is required when DRY_RUN is false")
		}
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RunDaysAhead < 0 {
		errs = append(errs, "RUN_DAYS_AHEAD must not be negative")
	}
	if c.RunConcurrency < 1 {
		errs = append(errs, "RUN_CONCURRENCY must be at least 1")
	}
	if c.DBMaxConns < 0 {
		errs = append(errs, "DB_MAX_CONNS must not be negative")
	}
	if c.AbsoluteMaxPrice > 0 && c.AbsoluteMinPrice > c.AbsoluteMaxPrice {
		errs = append(errs, "ABSOLUTE_MIN_PRICE exceeds ABSOLUTE_MAX_PRICE")
	}
	if _, err := pricing.ParseSameDayPolicy(c.SameDayPolicy); err != nil {
		errs = append(errs, err.Error())
	}

	if len(c.Properties) == 0 {
		errs = append(errs, fmt.Sprintf("no properties configured (PROPERTY_FILE=%q)", c.PropertyFile))
	}
	seen := map[string]bool{}
	for _, p := range c.Properties {
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("property %q defined twice", p.Name))
		}
		seen[p.Name] = true
		errs = append(errs, p.problems()...)
		if err := c.Policy(p).Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("property %q: %v", p.Name, err))
		}
	}

	if c.DryRun {
		fmt.Println("[WARN] DRY_RUN enabled - rates will be printed, not submitted")
	}
	if c.MaxDailySubmissions == 0 {
		fmt.Println("[WARN] MAX_DAILY_SUBMISSIONS is 0 - no daily submission budget")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set - REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Policy builds the pricing policy for one property: global knobs from env,
// premium and floors from the property with env/default fallbacks.
func (c *Config) Policy(p Property) pricing.Policy {
	sameDay, _ := pricing.ParseSameDayPolicy(c.SameDayPolicy)

	premium := c.DefaultLongTermPremium
	if p.LongTermPremium != nil {
		premium = *p.LongTermPremium
	}

	var perListing map[int64]float64
	if len(p.LongTermPremiums) > 0 {
		perListing = make(map[int64]float64, len(p.LongTermPremiums))
		for id, v := range p.LongTermPremiums {
			perListing[id] = v
		}
	}

	floors := pricing.DefaultSameDayFloor()
	for m, v := range p.SameDayFloor {
		floors[time.Month(m)] = v
	}

	return pricing.Policy{
		HorizonDays:          c.HorizonDays,
		LongTermBoundaryDays: c.LongTermBoundaryDays,
		SameDayHorizonHours:  c.SameDayHorizonHours,
		OccupancyFactorCap:   c.OccupancyFactorCap,
		LongTermPremium:      premium,
		ListingPremiums:      perListing,
		SameDay:              sameDay,
		SameDayFloor:         floors,
	}
}

func (c *Config) Retry(operation string) httputil.RetryConfig {
	return httputil.RetryConfig{
		MaxAttempts:    c.RetryMaxAttempts,
		Backoff:        c.RetryBackoff,
		AttemptTimeout: c.RequestTimeout,
		Operation:      operation,
	}
}

func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxDailySubmissions: c.MaxDailySubmissions,
		AbsoluteMinPrice:    c.AbsoluteMinPrice,
		AbsoluteMaxPrice:    c.AbsoluteMaxPrice,
	}
}

func (c *Config) Print() {
	fmt.Println("=== SmartPrice Rate Engine Configuration ===")

	if c.DryRun {
		fmt.Println("════════════════════════════════════════")
		fmt.Println("  DRY RUN MODE ENABLED")
		fmt.Println("  Rates are printed, nothing is sent")
		fmt.Println("════════════════════════════════════════")
	} else {
		fmt.Println("  LIVE MODE - rates are pushed to Smoobu")
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Smoobu: %s (customer %d)\n", c.SmoobuBaseURL, c.SmoobuCustomerID)
	fmt.Printf("Horizon: %d days | Long-term after: %d days\n", c.HorizonDays, c.LongTermBoundaryDays)
	fmt.Printf("Same-day policy: %s (horizon %dh)\n", c.SameDayPolicy, c.SameDayHorizonHours)
	fmt.Printf("Occupancy factor cap: %s\n", boolLabel(c.OccupancyFactorCap > 0, fmt.Sprintf("%.2f", c.OccupancyFactorCap), "off"))
	fmt.Println("--------------------------------------")
	fmt.Printf("Run window: today + %d days | concurrency %d | every %d min\n",
		c.RunDaysAhead, c.RunConcurrency, c.RunIntervalMinutes)
	fmt.Printf("Retry: %d attempts, %s backoff, %s per attempt\n",
		c.RetryMaxAttempts, c.RetryBackoff, c.RequestTimeout)
	fmt.Println("--------------------------------------")
	fmt.Println("Properties:")
	for _, p := range c.Properties {
		pol := c.Policy(p)
		fmt.Printf("  %s: %d listings, long-term premium %.2f (%d listing overrides)\n",
			p.Name, len(p.Listings), pol.LongTermPremium, len(pol.ListingPremiums))
	}
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Property returns the named property.
func (c *Config) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration accepts Go durations ("2s") or bare seconds ("2").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
