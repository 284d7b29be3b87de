package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/internal/period"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fakeAccess struct {
	allowed map[int]bool
	err     error
}

func (f *fakeAccess) CheckViewAccess(ctx context.Context, siteID int) error {
	if f.err != nil {
		return f.err
	}
	if !f.allowed[siteID] {
		return errors.Wrapf(errors.ErrForbidden, "site %d", siteID)
	}
	return nil
}

type fakeSites struct {
	timezones map[int]string
}

func (f *fakeSites) GetTimezone(ctx context.Context, siteID int) (string, error) {
	tz, ok := f.timezones[siteID]
	if !ok {
		return "", errors.ErrSiteNotFound
	}
	return tz, nil
}

func (f *fakeSites) ListSiteIDs(ctx context.Context) ([]int, error) {
	var ids []int
	for id := range f.timezones {
		ids = append(ids, id)
	}
	return ids, nil
}

type archiveCall struct {
	siteID  int
	rng     period.Range
	segment string
	name    string
}

type fakeArchive struct {
	mu     sync.Mutex
	tables map[string]*datatable.Table
	err    error
	gets   []archiveCall
	saves  []archiveCall
	saved  map[string]*datatable.Table
}

func (f *fakeArchive) GetRecord(ctx context.Context, siteID int, rng period.Range, segment, name string) (*datatable.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, archiveCall{siteID: siteID, rng: rng, segment: segment, name: name})
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tables[rng.String()]
	if !ok {
		return nil, errors.Wrap(errors.ErrArchiveNotFound, rng.String())
	}
	return t, nil
}

func (f *fakeArchive) SaveRecord(ctx context.Context, siteID int, rng period.Range, segment, name string, table *datatable.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves = append(f.saves, archiveCall{siteID: siteID, rng: rng, segment: segment, name: name})
	if f.saved == nil {
		f.saved = make(map[string]*datatable.Table)
	}
	f.saved[rng.String()] = table
	return nil
}

type liveCall struct {
	since  time.Time
	siteID int
	limit  int
}

type fakeLog struct {
	rows  []models.VisitAggregateRow
	err   error
	calls []liveCall
}

func (f *fakeLog) QueryLiveVisits(ctx context.Context, since time.Time, siteID int, limit int) ([]models.VisitAggregateRow, error) {
	f.calls = append(f.calls, liveCall{since: since, siteID: siteID, limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeLog) AggregateVisits(ctx context.Context, siteID int, start, end time.Time) ([]models.VisitAggregateRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func floatPtr(v float64) *float64 { return &v }
