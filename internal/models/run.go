package models

import "time"

// Date outcomes recorded per run. Anything other than DatePriced is a skip.
const (
	DatePriced           = "priced"
	DateSkipAvailability = "availability_error"
	DateSkipNoAvailable  = "no_available_listings"
	DateSkipOutOfHorizon = "out_of_horizon"
	DateSkipCalendarMiss = "calendar_miss"
	DateSkipBadOccupancy = "unknown_occupancy"
	DateSkipEngine       = "engine_error"
	DateSkipCancelled    = "cancelled"
)

// RunReport summarizes one pass over the date window for a property.
type RunReport struct {
	ID         string         `json:"id"`
	Property   string         `json:"property"`
	StartDate  time.Time      `json:"startDate"`
	Days       int            `json:"days"`
	DryRun     bool           `json:"dryRun"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Priced     int            `json:"priced"`
	Skipped    map[string]int `json:"skipped"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Blocked    int            `json:"blocked"`
	Failures   []RunFailure   `json:"failures,omitempty"`
}

// RunFailure identifies one (listing, date) that did not get its price.
type RunFailure struct {
	ListingID int64     `json:"listingId"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

func (r *RunReport) SkippedTotal() int {
	n := 0
	for _, v := range r.Skipped {
		n += v
	}
	return n
}
