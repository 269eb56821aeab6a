package models

import "time"

type SubmissionStatus string

const (
	SubmissionSent    SubmissionStatus = "sent"
	SubmissionDryRun  SubmissionStatus = "dry_run"
	SubmissionFailed  SubmissionStatus = "failed"
	SubmissionBlocked SubmissionStatus = "blocked"
)

// Submission is the delivery outcome for one (listing, date) price.
type Submission struct {
	ID        int64            `json:"id,omitempty"`
	RunID     string           `json:"runId"`
	Property  string           `json:"property"`
	ListingID int64            `json:"listingId"`
	Date      time.Time        `json:"date"`
	Price     float64          `json:"price"`
	Status    SubmissionStatus `json:"status"`
	Attempts  int              `json:"attempts"`
	Error     *string          `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt,omitempty"`
}

type SubmissionStats struct {
	Total   int64 `json:"total"`
	Sent    int64 `json:"sent"`
	DryRun  int64 `json:"dryRun"`
	Failed  int64 `json:"failed"`
	Blocked int64 `json:"blocked"`
}
