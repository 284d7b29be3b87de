package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/internal/period"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// AccessChecker gates every geo query on site view permission.
type AccessChecker interface {
	CheckViewAccess(ctx context.Context, siteID int) error
}

// ArchiveReader returns pre-aggregated report tables.
type ArchiveReader interface {
	GetRecord(ctx context.Context, siteID int, r period.Range, segment, name string) (*datatable.Table, error)
}

// LiveVisitQuerier reads location-grouped visits straight from the visit log.
type LiveVisitQuerier interface {
	QueryLiveVisits(ctx context.Context, since time.Time, siteID int, limit int) ([]models.VisitAggregateRow, error)
}

// TimezoneResolver returns a site's configured timezone.
type TimezoneResolver interface {
	GetTimezone(ctx context.Context, siteID int) (string, error)
}

// VisitsRequest selects an archived geo report.
type VisitsRequest struct {
	SiteID   int
	Period   string
	Date     string
	Segment  string
	Expanded bool
}

// LiveVisitsRequest selects recent visits. Timestamp is Unix seconds, 0 for none.
type LiveVisitsRequest struct {
	SiteID    int
	Limit     int
	Timestamp int64
}

// GeoVisitsService answers location-keyed visit queries from the archive or the live log.
type GeoVisitsService struct {
	access   AccessChecker
	archive  ArchiveReader
	live     LiveVisitQuerier
	sites    TimezoneResolver
	maxLimit int
	now      func() time.Time
	logger   *logrus.Logger
	metrics  *metrics.Metrics
}

func NewGeoVisitsService(
	access AccessChecker,
	archive ArchiveReader,
	live LiveVisitQuerier,
	sites TimezoneResolver,
	cfg config.LiveConfig,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *GeoVisitsService {
	return &GeoVisitsService{
		access:   access,
		archive:  archive,
		live:     live,
		sites:    sites,
		maxLimit: cfg.MaxLimit,
		now:      time.Now,
		logger:   logger,
		metrics:  m,
	}
}

// GetVisits returns the archived GeoIPMap_visits table for the requested period.
// Each row whose label is "longitude|latitude" gains matching location metadata.
func (s *GeoVisitsService) GetVisits(ctx context.Context, req VisitsRequest) (*datatable.Table, error) {
	if err := s.access.CheckViewAccess(ctx, req.SiteID); err != nil {
		s.recordDenied("visits", err)
		return nil, err
	}

	loc, err := s.siteLocation(ctx, req.SiteID)
	if err != nil {
		s.metrics.RecordGeoQuery("visits", 0, err)
		return nil, err
	}

	rng, err := period.Parse(req.Period, req.Date, loc, s.now())
	if err != nil {
		s.metrics.RecordGeoQuery("visits", 0, err)
		return nil, err
	}

	table, err := s.archive.GetRecord(ctx, req.SiteID, rng, req.Segment, models.GeoVisitsRecord)
	if err != nil {
		s.metrics.RecordGeoQuery("visits", 0, err)
		return nil, err
	}

	if req.Expanded {
		table.QueueFilter(datatable.ReplaceColumnNames())
	}

	for _, row := range table.Rows() {
		label, _ := row.GetColumn(models.ColumnLabel)
		text, _ := label.(string)
		lon, lat, ok := models.SplitLocationLabel(text)
		if !ok {
			continue
		}
		row.AddMetadata(models.MetadataLongitude, lon)
		row.AddMetadata(models.MetadataLatitude, lat)
	}

	table.ApplyQueuedFilters()

	s.logger.WithFields(logrus.Fields{
		"site_id": req.SiteID,
		"period":  rng.String(),
		"rows":    table.RowCount(),
	}).Debug("Served archived geo visits")
	s.metrics.RecordGeoQuery("visits", table.RowCount(), nil)

	return table, nil
}

// GetLiveVisits groups the site's located visits since the live window start by coordinates,
// most recently active first.
func (s *GeoVisitsService) GetLiveVisits(ctx context.Context, req LiveVisitsRequest) (*datatable.Table, error) {
	if err := s.access.CheckViewAccess(ctx, req.SiteID); err != nil {
		s.recordDenied("live", err)
		return nil, err
	}

	if req.Limit < 1 {
		err := errors.InvalidInputf("limit must be a positive integer, got %d", req.Limit)
		s.metrics.RecordGeoQuery("live", 0, err)
		return nil, err
	}
	limit := req.Limit
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}

	loc, err := s.siteLocation(ctx, req.SiteID)
	if err != nil {
		s.metrics.RecordGeoQuery("live", 0, err)
		return nil, err
	}

	window := LiveWindow(s.now(), loc, req.Timestamp)

	rows, err := s.live.QueryLiveVisits(ctx, window.Start, req.SiteID, limit)
	if err != nil {
		s.metrics.RecordGeoQuery("live", 0, err)
		return nil, err
	}

	table := models.VisitTable(rows)

	s.logger.WithFields(logrus.Fields{
		"site_id": req.SiteID,
		"since":   window.Start.Format(time.RFC3339),
		"limit":   limit,
		"rows":    table.RowCount(),
	}).Debug("Served live geo visits")
	s.metrics.RecordGeoQuery("live", table.RowCount(), nil)

	return table, nil
}

// LiveWindow computes the live query window ending at now. Its start is local midnight
// of the day 24 hours ago, moved forward to timestamp when that is later, and never
// past now.
func LiveWindow(now time.Time, loc *time.Location, timestamp int64) models.QueryWindow {
	start := period.DayStart(now.Add(-24*time.Hour), loc)

	if timestamp != 0 {
		if override := time.Unix(timestamp, 0); override.After(start) {
			start = override
		}
	}
	if start.After(now) {
		start = now
	}

	return models.QueryWindow{Start: start.UTC(), End: now.UTC()}
}

func (s *GeoVisitsService) siteLocation(ctx context.Context, siteID int) (*time.Location, error) {
	tz, err := s.sites.GetTimezone(ctx, siteID)
	if err != nil {
		return nil, err
	}
	loc, err := period.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "site %d timezone", siteID)
	}
	return loc, nil
}

func (s *GeoVisitsService) recordDenied(path string, err error) {
	if errors.IsForbidden(err) {
		s.metrics.RecordAccessDenied(path)
		return
	}
	s.metrics.RecordGeoQuery(path, 0, err)
}
