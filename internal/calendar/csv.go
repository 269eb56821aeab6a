package calendar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/smartprice/internal/models"
)

// Column names of the spreadsheet export.
const (
	colDate      = "date"
	colMin       = "min_price"
	colTarget    = "target_price"
	colMax       = "max_price"
	colOccupancy = "sum_occupancy_days_ahead"
	colDays      = "days_diff"
	colHours     = "hours_diff"
)

var dateLayouts = []string{models.DateLayout, "01/02/2006", "2006-01-02 15:04:05"}

// ParseCSV reads a calendar export. The header row is required; column
// order is free. Rows are returned as read, unvalidated.
func ParseCSV(r io.Reader) ([]models.CalendarEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colDate, colMin, colTarget, colMax} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []models.CalendarEntry
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		if field(colDate) == "" {
			continue
		}
		date, err := parseDate(field(colDate))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		e := models.CalendarEntry{Date: date}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{colMin, &e.MinPrice},
			{colTarget, &e.TargetPrice},
			{colMax, &e.MaxPrice},
			{colOccupancy, &e.CumulativeOccupancy},
		} {
			v := field(f.name)
			if v == "" {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.name, err)
			}
			*f.dst = n
		}

		if e.DayOffset, err = parseOffset(field(colDays)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colDays, err)
		}
		if e.HourOffset, err = parseOffset(field(colHours)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, colHours, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}

// parseOffset accepts integral values written as floats ("12.0"), which is
// how spreadsheet exports emit whole numbers.
func parseOffset(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("offset %q is not a whole number", v)
	}
	n := int(f)
	return &n, nil
}
