package services

import (
	"context"
	"testing"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/internal/period"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

func TestCurrentRanges(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		expect []string
	}{
		{
			// Sunday: yesterday and today share week, month and year
			name: "same week",
			now:  time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
			expect: []string{
				"day(2026-10-17,2026-10-17)",
				"week(2026-10-12,2026-10-18)",
				"month(2026-10-01,2026-10-31)",
				"year(2026-01-01,2026-12-31)",
				"day(2026-10-18,2026-10-18)",
			},
		},
		{
			name: "new year",
			now:  time.Date(2027, 1, 1, 8, 0, 0, 0, time.UTC),
			expect: []string{
				"day(2026-12-31,2026-12-31)",
				"week(2026-12-28,2027-01-03)",
				"month(2026-12-01,2026-12-31)",
				"year(2026-01-01,2026-12-31)",
				"day(2027-01-01,2027-01-01)",
				"month(2027-01-01,2027-01-31)",
				"year(2027-01-01,2027-12-31)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := CurrentRanges(tt.now, time.UTC)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(ranges) != len(tt.expect) {
				t.Fatalf("Expected %d ranges, got %v", len(tt.expect), ranges)
			}
			for i, r := range ranges {
				if r.String() != tt.expect[i] {
					t.Errorf("Range %d: expected %s, got %s", i, tt.expect[i], r.String())
				}
			}
		})
	}
}

func TestArchiverArchiveAll(t *testing.T) {
	sites := &fakeSites{timezones: map[int]string{1: "UTC", 3: "Bogus/Zone"}}
	log := &fakeLog{rows: []models.VisitAggregateRow{{
		Label:          "2.35|48.85",
		Continent:      "eur",
		Country:        "fr",
		City:           "Paris",
		Latitude:       floatPtr(48.85),
		Longitude:      floatPtr(2.35),
		UniqueVisitors: 2,
		Visits:         4,
		LastActionTime: fixedNow,
	}}}
	archive := &fakeArchive{}

	a := NewArchiver(sites, log, archive, testLogger(), metrics.NewMetrics())
	a.now = func() time.Time { return fixedNow }

	stats, err := a.ArchiveAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.Sites != 1 || stats.Errors != 1 {
		t.Errorf("Expected 1 archived site and 1 failure, got %+v", stats)
	}
	if stats.Records != 5 || len(archive.saves) != 5 {
		t.Errorf("Expected 5 records, got stats %d saves %d", stats.Records, len(archive.saves))
	}

	for _, call := range archive.saves {
		if call.name != models.GeoVisitsRecord || call.segment != "" || call.siteID != 1 {
			t.Errorf("Unexpected save %+v", call)
		}
	}

	day, _ := period.Parse("day", "2026-10-18", time.UTC, fixedNow)
	table := archive.saved[day.String()]
	if table == nil || table.RowCount() != 1 {
		t.Fatalf("Expected today's record with 1 row")
	}
	if v, _ := table.Rows()[0].GetColumn("2"); v != int64(4) {
		t.Errorf("Expected nb_visits 4, got %v", v)
	}
}

func TestArchiverStorageFailure(t *testing.T) {
	sites := &fakeSites{timezones: map[int]string{1: "UTC"}}
	a := NewArchiver(sites, &fakeLog{}, &fakeArchive{err: errors.ErrDatabaseConnection}, testLogger(), metrics.NewMetrics())
	a.now = func() time.Time { return fixedNow }

	written, err := a.ArchiveSite(context.Background(), 1)
	if written != 0 {
		t.Errorf("Expected no records written, got %d", written)
	}
	if !errors.Is(err, errors.ErrDatabaseConnection) {
		t.Errorf("Expected joined storage error, got %v", err)
	}
}
