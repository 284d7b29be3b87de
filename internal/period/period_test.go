package period

import (
	"testing"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

func TestLoadLocation(t *testing.T) {
	tests := []struct {
		name         string
		tz           string
		expectOffset int
		expectError  bool
	}{
		{name: "empty is UTC", tz: "", expectOffset: 0},
		{name: "UTC", tz: "UTC", expectOffset: 0},
		{name: "positive whole offset", tz: "UTC+2", expectOffset: 2 * 3600},
		{name: "negative fractional offset", tz: "UTC-3.5", expectOffset: -(3*3600 + 1800)},
		{name: "quarter offset", tz: "UTC+5.75", expectOffset: 5*3600 + 45*60},
		{name: "IANA name", tz: "Asia/Tokyo", expectOffset: 9 * 3600},
		{name: "out of range", tz: "UTC+15", expectError: true},
		{name: "unknown", tz: "Mars/Olympus", expectError: true},
	}

	ref := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadLocation(tt.tz)
			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.tz)
				}
				if !errors.IsInvalidInput(err) {
					t.Errorf("Expected invalid input error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			_, offset := ref.In(loc).Zone()
			if offset != tt.expectOffset {
				t.Errorf("Expected offset %d, got %d", tt.expectOffset, offset)
			}
		})
	}
}

func TestParse(t *testing.T) {
	loc := MustLoadLocation("UTC")
	// Wednesday
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, loc)

	tests := []struct {
		name        string
		period      string
		date        string
		expectStart string
		expectEnd   string
		expectError bool
	}{
		{name: "day today", period: "day", date: "today", expectStart: "2026-10-14", expectEnd: "2026-10-15"},
		{name: "day yesterday", period: "day", date: "yesterday", expectStart: "2026-10-13", expectEnd: "2026-10-14"},
		{name: "explicit day", period: "day", date: "2026-02-28", expectStart: "2026-02-28", expectEnd: "2026-03-01"},
		{name: "week starts monday", period: "week", date: "today", expectStart: "2026-10-12", expectEnd: "2026-10-19"},
		{name: "week from sunday", period: "week", date: "2026-10-18", expectStart: "2026-10-12", expectEnd: "2026-10-19"},
		{name: "month", period: "month", date: "2026-02-10", expectStart: "2026-02-01", expectEnd: "2026-03-01"},
		{name: "year", period: "year", date: "today", expectStart: "2026-01-01", expectEnd: "2027-01-01"},
		{name: "range explicit", period: "range", date: "2026-10-01,2026-10-03", expectStart: "2026-10-01", expectEnd: "2026-10-04"},
		{name: "range last7", period: "range", date: "last7", expectStart: "2026-10-08", expectEnd: "2026-10-15"},
		{name: "range previous7", period: "range", date: "previous7", expectStart: "2026-10-07", expectEnd: "2026-10-14"},
		{name: "range reversed", period: "range", date: "2026-10-03,2026-10-01", expectError: true},
		{name: "range one part", period: "range", date: "2026-10-03", expectError: true},
		{name: "unknown period", period: "decade", date: "today", expectError: true},
		{name: "bad date", period: "day", date: "14/10/2026", expectError: true},
		{name: "missing date", period: "day", date: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.period, tt.date, loc, now)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got range %v", r)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := r.Start.Format(dateLayout); got != tt.expectStart {
				t.Errorf("Expected start %s, got %s", tt.expectStart, got)
			}
			if got := r.End.Format(dateLayout); got != tt.expectEnd {
				t.Errorf("Expected end %s, got %s", tt.expectEnd, got)
			}
		})
	}
}

func TestRangeKeyAndContains(t *testing.T) {
	loc := MustLoadLocation("Europe/Berlin")
	r, err := ForDate(Day, time.Date(2026, 3, 29, 15, 0, 0, 0, loc), loc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if r.Key() != "2026-03-29,2026-03-29" {
		t.Errorf("Unexpected key %s", r.Key())
	}
	// DST switch day is 23 hours long in Berlin
	if got := r.End.Sub(r.Start); got != 23*time.Hour {
		t.Errorf("Expected 23h day on DST switch, got %v", got)
	}
	if !r.Contains(r.Start) {
		t.Error("Range must contain its start")
	}
	if r.Contains(r.End) {
		t.Error("Range must not contain its end")
	}
}

func TestDayStartUsesLocalCalendar(t *testing.T) {
	loc := MustLoadLocation("UTC+10")
	// 20:00 UTC is already the next day at UTC+10
	instant := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

	start := DayStart(instant, loc)
	if start.Format(dateLayout) != "2026-05-02" {
		t.Errorf("Expected local day 2026-05-02, got %s", start.Format(dateLayout))
	}
	if !start.Equal(time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected local midnight at 14:00 UTC, got %s", start.UTC())
	}
}
