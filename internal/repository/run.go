package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/smartprice/internal/models"
)

type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, property, start_date, days, dry_run, started_at, finished_at,
	priced, skipped, sent, failed, blocked`

func (r *RunRepo) Record(ctx context.Context, rep *models.RunReport) error {
	skipped, err := json.Marshal(rep.Skipped)
	if err != nil {
		return fmt.Errorf("marshal skipped: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO pricing_runs (`+runColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rep.ID, rep.Property, models.Day(rep.StartDate), rep.Days, rep.DryRun,
		rep.StartedAt, rep.FinishedAt, rep.Priced, skipped, rep.Sent, rep.Failed, rep.Blocked,
	)
	return err
}

// GetLatest returns the newest run for a property, or nil if none exist.
func (r *RunRepo) GetLatest(ctx context.Context, property string) (*models.RunReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pricing_runs
		 WHERE property = $1 ORDER BY started_at DESC LIMIT 1`,
		property,
	)
	rep, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

func scanRun(row scannable) (*models.RunReport, error) {
	var rep models.RunReport
	var skipped []byte
	err := row.Scan(
		&rep.ID, &rep.Property, &rep.StartDate, &rep.Days, &rep.DryRun,
		&rep.StartedAt, &rep.FinishedAt, &rep.Priced, &skipped,
		&rep.Sent, &rep.Failed, &rep.Blocked,
	)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		if err := json.Unmarshal(skipped, &rep.Skipped); err != nil {
			return nil, fmt.Errorf("unmarshal skipped: %w", err)
		}
	}
	rep.StartDate = models.Day(rep.StartDate)
	return &rep, nil
}
