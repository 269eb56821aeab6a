package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/smartprice/internal/models"
)

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

const submissionColumns = `id, run_id, property, listing_id, date, price, status, attempts, error, created_at`

func (r *SubmissionRepo) Record(ctx context.Context, s *models.Submission) (*models.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO rate_submissions
		 (run_id, property, listing_id, date, price, status, attempts, error)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+submissionColumns,
		s.RunID, s.Property, s.ListingID, models.Day(s.Date), s.Price,
		string(s.Status), s.Attempts, s.Error,
	)
	return scanSubmission(row)
}

// GetByDate returns the delivery log for one stay date, oldest first.
func (r *SubmissionRepo) GetByDate(ctx context.Context, property string, date time.Time) ([]models.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM rate_submissions
		 WHERE property = $1 AND date = $2 ORDER BY created_at ASC, id ASC`,
		property, models.Day(date),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, scanSubmission)
}

// CountToday counts rates actually delivered since midnight UTC, across
// all properties. Dry runs and failures do not count.
func (r *SubmissionRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_submissions WHERE status = $1 AND created_at >= $2`,
		string(models.SubmissionSent), models.Day(time.Now().UTC()),
	).Scan(&count)
	return count, err
}

// GetStats aggregates outcomes for one run.
func (r *SubmissionRepo) GetStats(ctx context.Context, runID string) (*models.SubmissionStats, error) {
	var s models.SubmissionStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'sent' THEN 1 END),
			COUNT(CASE WHEN status = 'dry_run' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COUNT(CASE WHEN status = 'blocked' THEN 1 END)
		 FROM rate_submissions WHERE run_id = $1`,
		runID,
	).Scan(&s.Total, &s.Sent, &s.DryRun, &s.Failed, &s.Blocked)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSubmission(row scannable) (*models.Submission, error) {
	var s models.Submission
	var status string
	err := row.Scan(
		&s.ID, &s.RunID, &s.Property, &s.ListingID, &s.Date, &s.Price,
		&status, &s.Attempts, &s.Error, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.SubmissionStatus(status)
	s.Date = models.Day(s.Date)
	return &s, nil
}
