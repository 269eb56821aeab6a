package calendar

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	in := `date,min_price,target_price,max_price,sum_occupancy_days_ahead,days_diff,hours_diff
2026-06-01,50,90,150,0.1,120.0,
06/02/2026, 55, 95, 160, 0.3, 60, 12
,,,,,,
2026-06-03,60,100,170,,,
`
	entries, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (blank row skipped), got %d", len(entries))
	}

	if entries[0].DayOffset == nil || *entries[0].DayOffset != 120 {
		t.Fatalf("row 1 day offset: %v", entries[0].DayOffset)
	}
	if entries[0].HourOffset != nil {
		t.Fatalf("row 1 hour offset should be nil, got %d", *entries[0].HourOffset)
	}
	if got := entries[1].Date.Format("2006-01-02"); got != "2026-06-02" {
		t.Fatalf("US-format date parsed as %s", got)
	}
	if entries[1].HourOffset == nil || *entries[1].HourOffset != 12 {
		t.Fatalf("row 2 hour offset: %v", entries[1].HourOffset)
	}
	if entries[2].CumulativeOccupancy != 0 || entries[2].DayOffset != nil {
		t.Fatalf("row 3 should have no pacing data: %+v", entries[2])
	}

	if _, err := New(entries); err != nil {
		t.Fatalf("parsed rows should validate: %v", err)
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"missing column": "date,min_price,target_price\n2026-06-01,1,2\n",
		"bad date":       "date,min_price,target_price,max_price\nnot-a-date,1,2,3\n",
		"bad number":     "date,min_price,target_price,max_price\n2026-06-01,x,2,3\n",
		"fractional day": "date,min_price,target_price,max_price,days_diff\n2026-06-01,1,2,3,1.5\n",
	}
	for name, in := range tests {
		if _, err := ParseCSV(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		} else {
			t.Logf("%s: %v", name, err)
		}
	}
}
