package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/smartprice/internal/models"
)

type QuoteRepo struct {
	pool *pgxpool.Pool
}

func NewQuoteRepo(pool *pgxpool.Pool) *QuoteRepo {
	return &QuoteRepo{pool: pool}
}

const quoteColumns = `id, run_id, property, date, base_price, composite_score,
	min_price, max_price, occupancy, lead_days, regime, flat_prices, created_at`

func (r *QuoteRepo) Record(ctx context.Context, q *models.PriceQuote) (*models.PriceQuote, error) {
	var flat []byte
	if len(q.FlatPrices) > 0 {
		var err error
		if flat, err = json.Marshal(q.FlatPrices); err != nil {
			return nil, fmt.Errorf("marshal flat prices: %w", err)
		}
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO price_quotes
		 (run_id, property, date, base_price, composite_score,
		  min_price, max_price, occupancy, lead_days, regime, flat_prices)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING `+quoteColumns,
		q.RunID, q.Property, models.Day(q.Date), q.BasePrice, q.CompositeScore,
		q.MinPrice, q.MaxPrice, q.Occupancy, q.LeadDays, string(q.Regime), flat,
	)
	return scanQuote(row)
}

// GetByDate returns every quote computed for a stay date, newest first.
func (r *QuoteRepo) GetByDate(ctx context.Context, property string, date time.Time) ([]models.PriceQuote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quoteColumns+` FROM price_quotes
		 WHERE property = $1 AND date = $2 ORDER BY created_at DESC`,
		property, models.Day(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanQuote)
}

// GetLatestRun returns the quotes of the most recent run that produced any,
// ordered by stay date. Nil when nothing has been recorded.
func (r *QuoteRepo) GetLatestRun(ctx context.Context, property string) ([]models.PriceQuote, error) {
	var runID string
	err := r.pool.QueryRow(ctx,
		`SELECT run_id FROM price_quotes WHERE property = $1
		 ORDER BY created_at DESC LIMIT 1`,
		property,
	).Scan(&runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+quoteColumns+` FROM price_quotes
		 WHERE run_id = $1 ORDER BY date ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanQuote)
}

func scanQuote(row scannable) (*models.PriceQuote, error) {
	var q models.PriceQuote
	var regime string
	var flat []byte
	err := row.Scan(
		&q.ID, &q.RunID, &q.Property, &q.Date, &q.BasePrice, &q.CompositeScore,
		&q.MinPrice, &q.MaxPrice, &q.Occupancy, &q.LeadDays, &regime, &flat, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(flat) > 0 {
		if err := json.Unmarshal(flat, &q.FlatPrices); err != nil {
			return nil, fmt.Errorf("unmarshal flat prices: %w", err)
		}
	}
	q.Regime = models.Regime(regime)
	q.Date = models.Day(q.Date)
	return &q, nil
}
