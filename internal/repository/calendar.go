package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/smartprice/internal/models"
)

type CalendarRepo struct {
	pool *pgxpool.Pool
}

func NewCalendarRepo(pool *pgxpool.Pool) *CalendarRepo {
	return &CalendarRepo{pool: pool}
}

const calendarColumns = `date, min_price, target_price, max_price, cumulative_occupancy, day_offset, hour_offset`

// Upsert writes entries for a property in one transaction, replacing rows
// that share a date.
func (r *CalendarRepo) Upsert(ctx context.Context, property string, entries []models.CalendarEntry) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO calendar_entries
			 (property, `+calendarColumns+`, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
			 ON CONFLICT (property, date) DO UPDATE SET
			   min_price = EXCLUDED.min_price,
			   target_price = EXCLUDED.target_price,
			   max_price = EXCLUDED.max_price,
			   cumulative_occupancy = EXCLUDED.cumulative_occupancy,
			   day_offset = EXCLUDED.day_offset,
			   hour_offset = EXCLUDED.hour_offset,
			   updated_at = NOW()`,
			property, models.Day(e.Date), e.MinPrice, e.TargetPrice, e.MaxPrice,
			e.CumulativeOccupancy, e.DayOffset, e.HourOffset,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("upsert %s: %w", models.FormatDate(entries[i].Date), err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// LoadAll returns every calendar row for a property ordered by date.
func (r *CalendarRepo) LoadAll(ctx context.Context, property string) ([]models.CalendarEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+calendarColumns+` FROM calendar_entries
		 WHERE property = $1 ORDER BY date ASC`,
		property,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanCalendarEntry)
}

// Range returns rows with from <= date <= to.
func (r *CalendarRepo) Range(ctx context.Context, property string, from, to time.Time) ([]models.CalendarEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+calendarColumns+` FROM calendar_entries
		 WHERE property = $1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`,
		property, models.Day(from), models.Day(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanCalendarEntry)
}

func scanCalendarEntry(row scannable) (*models.CalendarEntry, error) {
	var e models.CalendarEntry
	err := row.Scan(&e.Date, &e.MinPrice, &e.TargetPrice, &e.MaxPrice,
		&e.CumulativeOccupancy, &e.DayOffset, &e.HourOffset)
	if err != nil {
		return nil, err
	}
	e.Date = models.Day(e.Date)
	return &e, nil
}
