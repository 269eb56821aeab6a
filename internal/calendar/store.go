package calendar

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kjannette/smartprice/internal/models"
)

var ErrNotFound = errors.New("calendar: entry not found")

// ValidationError lists every row that broke a load-time invariant.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("calendar validation failed:\n  %s", strings.Join(e.Problems, "\n  "))
}

type curvePoint struct {
	occupancy float64
	row       int
}

// Store is an immutable, indexed view over the reference calendar. It is
// safe for concurrent readers once built.
type Store struct {
	entries []models.CalendarEntry
	byDate  map[time.Time]int

	offsetIdx map[models.OffsetUnit]map[int]int
	curves    map[models.OffsetUnit][]curvePoint
}

// New validates entries and builds the date, offset and occupancy indexes.
// The slice is copied; callers may reuse it afterwards.
func New(entries []models.CalendarEntry) (*Store, error) {
	s := &Store{
		entries: make([]models.CalendarEntry, len(entries)),
		byDate:  make(map[time.Time]int, len(entries)),
		offsetIdx: map[models.OffsetUnit]map[int]int{
			models.UnitDays:  {},
			models.UnitHours: {},
		},
		curves: map[models.OffsetUnit][]curvePoint{},
	}
	copy(s.entries, entries)

	var problems []string
	for i := range s.entries {
		e := &s.entries[i]
		e.Date = models.Day(e.Date)
		key := models.FormatDate(e.Date)

		if e.MinPrice > e.TargetPrice || e.TargetPrice > e.MaxPrice {
			problems = append(problems, fmt.Sprintf("%s: expected min <= target <= max, got %.2f / %.2f / %.2f",
				key, e.MinPrice, e.TargetPrice, e.MaxPrice))
		}
		if e.MinPrice < 0 {
			problems = append(problems, fmt.Sprintf("%s: negative min price %.2f", key, e.MinPrice))
		}
		if math.IsNaN(e.CumulativeOccupancy) || e.CumulativeOccupancy < 0 || e.CumulativeOccupancy > 1 {
			problems = append(problems, fmt.Sprintf("%s: cumulative occupancy %.4f outside [0,1]", key, e.CumulativeOccupancy))
		}
		if prev, dup := s.byDate[e.Date]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate date (rows %d and %d)", key, prev+1, i+1))
			continue
		}
		s.byDate[e.Date] = i

		for _, unit := range []models.OffsetUnit{models.UnitDays, models.UnitHours} {
			off, ok := e.Offset(unit)
			if !ok {
				continue
			}
			// first row wins for a repeated offset
			if _, seen := s.offsetIdx[unit][off]; !seen {
				s.offsetIdx[unit][off] = i
			}
			s.curves[unit] = append(s.curves[unit], curvePoint{occupancy: e.CumulativeOccupancy, row: i})
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	for unit := range s.curves {
		pts := s.curves[unit]
		sort.SliceStable(pts, func(i, j int) bool {
			return pts[i].occupancy < pts[j].occupancy
		})
	}
	return s, nil
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Lookup returns the entry for the given calendar date.
func (s *Store) Lookup(date time.Time) (*models.CalendarEntry, error) {
	i, ok := s.byDate[models.Day(date)]
	if !ok {
		return nil, ErrNotFound
	}
	e := s.entries[i]
	return &e, nil
}

// PacingAt returns the pacing-curve row whose offset in unit equals offset.
func (s *Store) PacingAt(unit models.OffsetUnit, offset int) (*models.CalendarEntry, error) {
	i, ok := s.offsetIdx[unit][offset]
	if !ok {
		return nil, ErrNotFound
	}
	e := s.entries[i]
	return &e, nil
}

// ClosestByOccupancy returns the pacing-curve row in unit whose cumulative
// occupancy is nearest to ratio. Ties go to the earlier calendar row.
func (s *Store) ClosestByOccupancy(unit models.OffsetUnit, ratio float64) (*models.CalendarEntry, error) {
	pts := s.curves[unit]
	if len(pts) == 0 || math.IsNaN(ratio) {
		return nil, ErrNotFound
	}

	// first point with occupancy >= ratio
	hi := sort.Search(len(pts), func(i int) bool { return pts[i].occupancy >= ratio })

	best := -1
	bestDiff := math.Inf(1)
	consider := func(k int) {
		d := math.Abs(pts[k].occupancy - ratio)
		if d < bestDiff || (d == bestDiff && pts[k].row < pts[best].row) {
			best, bestDiff = k, d
		}
	}

	// Equal occupancies sit in a contiguous run; walk each neighbouring run
	// so the tie-break on row order sees every candidate.
	if hi < len(pts) {
		v := pts[hi].occupancy
		for k := hi; k < len(pts) && pts[k].occupancy == v; k++ {
			consider(k)
		}
	}
	if hi > 0 {
		v := pts[hi-1].occupancy
		for k := hi - 1; k >= 0 && pts[k].occupancy == v; k-- {
			consider(k)
		}
	}

	e := s.entries[pts[best].row]
	return &e, nil
}

// Range returns entries whose date falls in [from, to], in date order.
func (s *Store) Range(from, to time.Time) []models.CalendarEntry {
	from, to = models.Day(from), models.Day(to)
	var out []models.CalendarEntry
	for _, e := range s.entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
