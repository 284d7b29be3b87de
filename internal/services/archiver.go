package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/internal/period"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// SiteLister enumerates archivable sites.
type SiteLister interface {
	ListSiteIDs(ctx context.Context) ([]int, error)
	GetTimezone(ctx context.Context, siteID int) (string, error)
}

// VisitAggregator groups logged visits by location over a time range.
type VisitAggregator interface {
	AggregateVisits(ctx context.Context, siteID int, start, end time.Time) ([]models.VisitAggregateRow, error)
}

// ArchiveWriter persists report tables.
type ArchiveWriter interface {
	SaveRecord(ctx context.Context, siteID int, r period.Range, segment, name string, table *datatable.Table) error
}

// ArchivePeriods are the period types written on every run.
var ArchivePeriods = []string{period.Day, period.Week, period.Month, period.Year}

// ArchiveStats summarizes one archiving run
type ArchiveStats struct {
	Sites   int
	Records int
	Errors  int
}

// Archiver builds the GeoIPMap_visits record from the visit log.
type Archiver struct {
	sites   SiteLister
	visits  VisitAggregator
	archive ArchiveWriter
	now     func() time.Time
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewArchiver(sites SiteLister, visits VisitAggregator, archive ArchiveWriter, logger *logrus.Logger, m *metrics.Metrics) *Archiver {
	return &Archiver{
		sites:   sites,
		visits:  visits,
		archive: archive,
		now:     time.Now,
		logger:  logger,
		metrics: m,
	}
}

// ArchiveAll refreshes every period containing yesterday or today for every site.
// A failing site is logged and counted; the run continues with the next one.
func (a *Archiver) ArchiveAll(ctx context.Context) (*ArchiveStats, error) {
	siteIDs, err := a.sites.ListSiteIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list sites")
	}

	stats := &ArchiveStats{}
	for _, siteID := range siteIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		written, err := a.ArchiveSite(ctx, siteID)
		stats.Records += written
		if err != nil {
			stats.Errors++
			a.logger.WithError(err).WithField("site_id", siteID).Error("Failed to archive site")
			continue
		}
		stats.Sites++
	}

	a.logger.WithFields(logrus.Fields{
		"sites":   stats.Sites,
		"records": stats.Records,
		"errors":  stats.Errors,
	}).Info("Geo archive run completed")

	return stats, nil
}

// ArchiveSite writes the current periods for one site and returns how many records were saved.
func (a *Archiver) ArchiveSite(ctx context.Context, siteID int) (int, error) {
	tz, err := a.sites.GetTimezone(ctx, siteID)
	if err != nil {
		return 0, err
	}
	loc, err := period.LoadLocation(tz)
	if err != nil {
		return 0, errors.Wrapf(err, "site %d timezone", siteID)
	}

	ranges, err := CurrentRanges(a.now(), loc)
	if err != nil {
		return 0, err
	}

	written := 0
	var errs []error
	for _, rng := range ranges {
		if err := a.ArchivePeriod(ctx, siteID, rng); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}

	return written, errors.Join(errs...)
}

// ArchivePeriod aggregates one range and upserts its record.
func (a *Archiver) ArchivePeriod(ctx context.Context, siteID int, rng period.Range) error {
	rows, err := a.visits.AggregateVisits(ctx, siteID, rng.Start, rng.End)
	if err != nil {
		a.metrics.RecordArchive(rng.Period, false)
		return errors.Wrapf(err, "aggregate %s", rng)
	}

	if err := a.archive.SaveRecord(ctx, siteID, rng, "", models.GeoVisitsRecord, models.VisitTable(rows)); err != nil {
		a.metrics.RecordArchive(rng.Period, false)
		return errors.Wrapf(err, "save %s", rng)
	}

	a.metrics.RecordArchive(rng.Period, true)
	a.logger.WithFields(logrus.Fields{
		"site_id": siteID,
		"period":  rng.String(),
		"rows":    len(rows),
	}).Debug("Archived geo visits")

	return nil
}

// CurrentRanges lists the distinct archive periods containing yesterday or today in loc.
func CurrentRanges(now time.Time, loc *time.Location) ([]period.Range, error) {
	today := period.DayStart(now, loc)
	days := []time.Time{today.AddDate(0, 0, -1), today}

	seen := make(map[string]bool)
	var ranges []period.Range
	for _, day := range days {
		for _, p := range ArchivePeriods {
			rng, err := period.ForDate(p, day, loc)
			if err != nil {
				return nil, err
			}
			if seen[rng.String()] {
				continue
			}
			seen[rng.String()] = true
			ranges = append(ranges, rng)
		}
	}
	return ranges, nil
}
