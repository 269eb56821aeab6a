package models

import "time"

// CalendarEntry is one row of the reference calendar. Pacing offsets are
// optional: a row may carry a day offset, an hour offset, both or neither.
type CalendarEntry struct {
	Date                time.Time `json:"date"`
	MinPrice            float64   `json:"minPrice"`
	TargetPrice         float64   `json:"targetPrice"`
	MaxPrice            float64   `json:"maxPrice"`
	CumulativeOccupancy float64   `json:"cumulativeOccupancy"`
	DayOffset           *int      `json:"dayOffset,omitempty"`
	HourOffset          *int      `json:"hourOffset,omitempty"`
}

// OffsetUnit selects which pacing curve a lookup runs against.
type OffsetUnit string

const (
	UnitDays  OffsetUnit = "days"
	UnitHours OffsetUnit = "hours"
)

// Offset returns the row's offset for the given unit.
func (e *CalendarEntry) Offset(unit OffsetUnit) (int, bool) {
	var p *int
	switch unit {
	case UnitDays:
		p = e.DayOffset
	case UnitHours:
		p = e.HourOffset
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}
