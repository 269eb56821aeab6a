package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kjannette/smartprice/internal/models"
)

var (
	ErrOutOfHorizon     = errors.New("date outside pricing horizon")
	ErrCalendarMiss     = errors.New("no calendar entry for date")
	ErrUnknownOccupancy = errors.New("occupancy ratio unknown or outside [0,1]")
)

// IsNotPriceable reports whether err is a policy skip rather than a fault.
func IsNotPriceable(err error) bool {
	return errors.Is(err, ErrOutOfHorizon) || errors.Is(err, ErrCalendarMiss)
}

// Lookup is the read-only calendar contract the engine prices against.
type Lookup interface {
	Lookup(date time.Time) (*models.CalendarEntry, error)
	PacingAt(unit models.OffsetUnit, offset int) (*models.CalendarEntry, error)
	ClosestByOccupancy(unit models.OffsetUnit, ratio float64) (*models.CalendarEntry, error)
}

type Engine struct {
	policy Policy
}

func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p}, nil
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Compute prices target as seen from now. The returned quote is flat (nil
// Min/Max) in the long-term regime.
func (e *Engine) Compute(occupancy float64, target, now time.Time, cal Lookup) (*models.PriceQuote, error) {
	if math.IsNaN(occupancy) || occupancy < 0 || occupancy > 1 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownOccupancy, occupancy)
	}

	lead := models.DaysBetween(now, target)
	if lead < 0 || lead > e.policy.HorizonDays {
		return nil, fmt.Errorf("%w: %s is %d days out", ErrOutOfHorizon, models.FormatDate(target), lead)
	}

	row, err := cal.Lookup(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCalendarMiss, models.FormatDate(target), err)
	}

	q := &models.PriceQuote{
		Date:      models.Day(target),
		Occupancy: occupancy,
		LeadDays:  lead,
	}

	if lead > e.policy.LongTermBoundaryDays {
		q.Regime = models.RegimeLongTerm
		q.BasePrice = longTermPrice(row, e.policy.LongTermPremium)
		if len(e.policy.ListingPremiums) > 0 {
			q.FlatPrices = make(map[int64]float64, len(e.policy.ListingPremiums))
			for id, premium := range e.policy.ListingPremiums {
				q.FlatPrices[id] = longTermPrice(row, premium)
			}
		}
		return q, nil
	}

	minPrice := row.MinPrice
	maxPrice := row.MaxPrice
	q.Regime = models.RegimeNearTerm

	unit := models.UnitDays
	leadUnit := lead
	horizon := e.policy.LongTermBoundaryDays

	if lead == 0 {
		q.Regime = models.RegimeSameDay
		if floor, ok := e.policy.SameDayFloor[target.Month()]; ok {
			minPrice = floor
		}
		if e.policy.SameDay == SameDayFloor {
			q.BasePrice = round(minPrice, 2)
			q.MinPrice, q.MaxPrice = &minPrice, &maxPrice
			return q, nil
		}
		unit = models.UnitHours
		leadUnit = 23 - now.Hour()
		horizon = e.policy.SameDayHorizonHours
	}
	if leadUnit < 1 {
		leadUnit = 1
	}

	x := e.score(occupancy, unit, leadUnit, horizon, cal)
	price := interpolate(x, minPrice, row.TargetPrice, maxPrice)

	score := round(x, 4)
	q.BasePrice = round(price, 2)
	q.CompositeScore = &score
	q.MinPrice, q.MaxPrice = &minPrice, &maxPrice
	return q, nil
}

func longTermPrice(row *models.CalendarEntry, premium float64) float64 {
	return round(math.Min(row.TargetPrice+premium, row.MaxPrice), 2)
}

// score is the composite pacing score for a near-term or same-day date.
func (e *Engine) score(occupancy float64, unit models.OffsetUnit, leadUnit, horizon int, cal Lookup) float64 {
	lu := float64(leadUnit)
	if occupancy == 0 {
		return (lu - float64(horizon)) / lu
	}

	// No pacing curve for this unit means no evidence either way.
	plan, err := cal.ClosestByOccupancy(unit, occupancy)
	if err != nil {
		return 0
	}
	planOffset, _ := plan.Offset(unit)
	pace := (lu - float64(planOffset)) / lu

	expected := occupancy
	if row, err := cal.PacingAt(unit, leadUnit); err == nil {
		expected = row.CumulativeOccupancy
	}
	return pace * occupancyFactor(occupancy, expected, e.policy.OccupancyFactorCap)
}

// occupancyFactor is max/min of actual and expected occupancy, neutral (1)
// when the smaller side is zero, optionally capped.
func occupancyFactor(actual, expected, limit float64) float64 {
	lo, hi := math.Min(actual, expected), math.Max(actual, expected)
	if lo <= 0 {
		return 1
	}
	f := hi / lo
	if limit > 0 && f > limit {
		f = limit
	}
	return f
}

// interpolate blends toward max for x >= 0 and toward min for x < 0, then
// clamps into [min, max]. A floor above max wins.
func interpolate(x, minPrice, target, maxPrice float64) float64 {
	var p float64
	if x >= 0 {
		p = target + x*(maxPrice-target)
	} else {
		p = target + x*(target-minPrice)
	}
	return math.Max(minPrice, math.Min(p, maxPrice))
}
