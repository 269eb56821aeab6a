package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS calendar_entries (
		property             TEXT NOT NULL,
		date                 DATE NOT NULL,
		min_price            DOUBLE PRECISION NOT NULL,
		target_price         DOUBLE PRECISION NOT NULL,
		max_price            DOUBLE PRECISION NOT NULL,
		cumulative_occupancy DOUBLE PRECISION NOT NULL,
		day_offset           INTEGER,
		hour_offset          INTEGER,
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (property, date)
	)`,
	`CREATE TABLE IF NOT EXISTS price_quotes (
		id              BIGSERIAL PRIMARY KEY,
		run_id          TEXT NOT NULL,
		property        TEXT NOT NULL,
		date            DATE NOT NULL,
		base_price      DOUBLE PRECISION NOT NULL,
		composite_score DOUBLE PRECISION,
		min_price       DOUBLE PRECISION,
		max_price       DOUBLE PRECISION,
		occupancy       DOUBLE PRECISION NOT NULL,
		lead_days       INTEGER NOT NULL,
		regime          TEXT NOT NULL,
		flat_prices     JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE price_quotes ADD COLUMN IF NOT EXISTS flat_prices JSONB`,
	`CREATE INDEX IF NOT EXISTS idx_price_quotes_property_date ON price_quotes (property, date)`,
	`CREATE INDEX IF NOT EXISTS idx_price_quotes_run ON price_quotes (run_id)`,
	`CREATE TABLE IF NOT EXISTS rate_submissions (
		id         BIGSERIAL PRIMARY KEY,
		run_id     TEXT NOT NULL,
		property   TEXT NOT NULL,
		listing_id BIGINT NOT NULL,
		date       DATE NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		status     TEXT NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0,
		error      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_submissions_property_date ON rate_submissions (property, date)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_submissions_created ON rate_submissions (created_at)`,
	`CREATE TABLE IF NOT EXISTS pricing_runs (
		id          TEXT PRIMARY KEY,
		property    TEXT NOT NULL,
		start_date  DATE NOT NULL,
		days        INTEGER NOT NULL,
		dry_run     BOOLEAN NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		priced      INTEGER NOT NULL,
		skipped     JSONB NOT NULL DEFAULT '{}',
		sent        INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		blocked     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pricing_runs_property_started ON pricing_runs (property, started_at DESC)`,
}

// Migrate creates any missing tables and indexes. Safe to call on every start.
func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	fmt.Printf("[DB] Schema ready (%d statements)\n", len(schema))
	return nil
}
