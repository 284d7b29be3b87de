package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// VisitLocationStore is the part of the visit log the enricher reads and writes.
type VisitLocationStore interface {
	ListUnlocatedVisits(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.UnlocatedVisit, error)
	UpdateVisitLocation(ctx context.Context, idVisit int64, loc *models.GeoLocation) error
}

// EnrichStats summarizes one enrichment run
type EnrichStats struct {
	Scanned    int
	Located    int
	Unresolved int
	Failed     int
}

// LocationEnricher fills in coordinates for recent visits logged with only an IP.
type LocationEnricher struct {
	store     VisitLocationStore
	locator   Locator
	batchSize int
	lookback  time.Duration
	now       func() time.Time
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewLocationEnricher(store VisitLocationStore, locator Locator, cfg config.GeoIPConfig, logger *logrus.Logger, m *metrics.Metrics) *LocationEnricher {
	return &LocationEnricher{
		store:     store,
		locator:   locator,
		batchSize: cfg.BatchSize,
		lookback:  cfg.Lookback,
		now:       time.Now,
		logger:    logger,
		metrics:   m,
	}
}

// EnrichRecent pages through unlocated visits inside the lookback window.
// Visits the database cannot place are skipped and retried on later runs until
// they age out of the window.
func (e *LocationEnricher) EnrichRecent(ctx context.Context) (*EnrichStats, error) {
	since := e.now().Add(-e.lookback)
	stats := &EnrichStats{}

	var afterID int64
	for {
		visits, err := e.store.ListUnlocatedVisits(ctx, since, afterID, e.batchSize)
		if err != nil {
			return stats, errors.Wrap(err, "list unlocated visits")
		}

		for _, v := range visits {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			afterID = v.IDVisit
			stats.Scanned++
			e.enrichVisit(ctx, v, stats)
		}

		if len(visits) < e.batchSize {
			break
		}
	}

	e.logger.WithFields(logrus.Fields{
		"scanned":    stats.Scanned,
		"located":    stats.Located,
		"unresolved": stats.Unresolved,
		"failed":     stats.Failed,
	}).Info("Visit location enrichment completed")

	return stats, nil
}

func (e *LocationEnricher) enrichVisit(ctx context.Context, v models.UnlocatedVisit, stats *EnrichStats) {
	loc, err := e.locator.Locate(v.IP)
	if err != nil {
		stats.Unresolved++
		e.metrics.RecordVisitLocated("unresolved")
		e.logger.WithFields(logrus.Fields{
			"idvisit": v.IDVisit,
			"error":   err.Error(),
		}).Debug("Could not locate visit")
		return
	}

	if err := e.store.UpdateVisitLocation(ctx, v.IDVisit, loc); err != nil {
		stats.Failed++
		e.metrics.RecordVisitLocated("failed")
		e.logger.WithError(err).WithField("idvisit", v.IDVisit).Warn("Failed to store visit location")
		return
	}

	stats.Located++
	e.metrics.RecordVisitLocated("located")
}
