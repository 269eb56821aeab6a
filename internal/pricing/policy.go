package pricing

import (
	"fmt"
	"strings"
	"time"
)

// SameDayPolicy selects how a date priced on its own arrival day is handled.
type SameDayPolicy string

const (
	// SameDayHourly scores the remaining hours of the day against the
	// hourly pacing curve, floored by the monthly same-day minimum.
	SameDayHourly SameDayPolicy = "hourly"
	// SameDayFloor prices every same-day night at the monthly minimum.
	SameDayFloor SameDayPolicy = "floor"
)

func ParseSameDayPolicy(s string) (SameDayPolicy, error) {
	switch p := SameDayPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SameDayHourly, SameDayFloor:
		return p, nil
	case "":
		return SameDayHourly, nil
	default:
		return "", fmt.Errorf("unknown same-day policy %q (want %q or %q)", s, SameDayHourly, SameDayFloor)
	}
}

// Policy holds every knob the engine reads. One Policy prices one property.
type Policy struct {
	HorizonDays          int
	LongTermBoundaryDays int
	SameDayHorizonHours  int
	// OccupancyFactorCap bounds the occupancy ratio factor; 0 disables it.
	OccupancyFactorCap float64
	// LongTermPremium applies to listings without a ListingPremiums entry.
	LongTermPremium float64
	ListingPremiums map[int64]float64
	SameDay         SameDayPolicy
	SameDayFloor    map[time.Month]float64
}

func DefaultPolicy() Policy {
	return Policy{
		HorizonDays:          365,
		LongTermBoundaryDays: 240,
		SameDayHorizonHours:  263,
		OccupancyFactorCap:   2,
		LongTermPremium:      20,
		SameDay:              SameDayHourly,
		SameDayFloor:         DefaultSameDayFloor(),
	}
}

// DefaultSameDayFloor is the seasonal same-day minimum used by both
// properties the engine was first tuned on.
func DefaultSameDayFloor() map[time.Month]float64 {
	return map[time.Month]float64{
		time.January: 50, time.February: 50, time.March: 55, time.April: 60,
		time.May: 70, time.June: 80, time.July: 80, time.August: 80,
		time.September: 80, time.October: 70, time.November: 50, time.December: 50,
	}
}

func (p Policy) Validate() error {
	var errs []string
	if p.HorizonDays <= 0 {
		errs = append(errs, "horizon days must be positive")
	}
	if p.LongTermBoundaryDays <= 0 || p.LongTermBoundaryDays > p.HorizonDays {
		errs = append(errs, fmt.Sprintf("long-term boundary %d must be in (0, %d]", p.LongTermBoundaryDays, p.HorizonDays))
	}
	if p.SameDayHorizonHours <= 0 {
		errs = append(errs, "same-day horizon hours must be positive")
	}
	if p.OccupancyFactorCap != 0 && p.OccupancyFactorCap < 1 {
		errs = append(errs, fmt.Sprintf("occupancy factor cap %.2f must be 0 (off) or >= 1", p.OccupancyFactorCap))
	}
	if p.LongTermPremium < 0 {
		errs = append(errs, "long-term premium must not be negative")
	}
	for id, v := range p.ListingPremiums {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("long-term premium for listing %d is negative", id))
		}
	}
	if _, err := ParseSameDayPolicy(string(p.SameDay)); err != nil {
		errs = append(errs, err.Error())
	}
	for m, v := range p.SameDayFloor {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("same-day floor for %s is negative", m))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pricing policy invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
