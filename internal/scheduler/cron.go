package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/services"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// GeoArchiver refreshes the archived geo reports.
type GeoArchiver interface {
	ArchiveAll(ctx context.Context) (*services.ArchiveStats, error)
}

// VisitEnricher backfills visit locations.
type VisitEnricher interface {
	EnrichRecent(ctx context.Context) (*services.EnrichStats, error)
}

// DBStatsSource exposes connection pool statistics; *sql.DB satisfies it.
type DBStatsSource interface {
	Stats() sql.DBStats
}

type CronScheduler struct {
	cron           *cron.Cron
	archiver       GeoArchiver
	enricher       VisitEnricher
	db             DBStatsSource
	cfg            config.SchedulerConfig
	logger         *logrus.Logger
	metrics        *metrics.Metrics
	jobTimeout     time.Duration
	activeJobs     sync.WaitGroup
	jobNames       map[cron.EntryID]string
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewCronScheduler builds the scheduler. enricher may be nil when no GeoIP database is configured.
func NewCronScheduler(
	archiver GeoArchiver,
	enricher VisitEnricher,
	db DBStatsSource,
	cfg config.SchedulerConfig,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}

	return &CronScheduler{
		cron:           cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger)))),
		archiver:       archiver,
		enricher:       enricher,
		db:             db,
		cfg:            cfg,
		logger:         logger,
		metrics:        m,
		jobTimeout:     jobTimeout,
		jobNames:       make(map[cron.EntryID]string),
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start registers the jobs and starts the cron loop. An invalid schedule is a
// configuration error and nothing is started.
func (s *CronScheduler) Start() error {
	if err := s.schedule("Geo Archive", s.cfg.ArchiveSchedule, func(ctx context.Context) error {
		_, err := s.archiver.ArchiveAll(ctx)
		return err
	}); err != nil {
		return err
	}

	if s.enricher != nil {
		if err := s.schedule("Location Enrichment", s.cfg.EnrichSchedule, func(ctx context.Context) error {
			_, err := s.enricher.EnrichRecent(ctx)
			return err
		}); err != nil {
			return err
		}
	} else {
		s.logger.Info("GeoIP database not configured, location enrichment disabled")
	}

	if s.db != nil {
		if err := s.schedule("DB Stats", s.cfg.DBStatsSchedule, func(ctx context.Context) error {
			s.metrics.UpdateDatabaseStats(s.db.Stats())
			return nil
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.jobNames)).Info("Cron scheduler started successfully")
	return nil
}

func (s *CronScheduler) schedule(jobName, spec string, jobFunc func(context.Context) error) error {
	id, err := s.cron.AddFunc(spec, s.createJobWrapper(jobName, jobFunc))
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", jobName, spec, err)
	}
	s.jobNames[id] = jobName
	return nil
}

// createJobWrapper wraps a job with context, timeout, logging, metrics, and panic recovery
func (s *CronScheduler) createJobWrapper(jobName string, jobFunc func(context.Context) error) func() {
	return func() {
		s.activeJobs.Add(1)
		defer s.activeJobs.Done()

		ctx, cancel := context.WithTimeout(s.shutdownCtx, s.jobTimeout)
		defer cancel()

		startTime := time.Now()

		s.logger.WithFields(logrus.Fields{
			"job":       jobName,
			"timestamp": startTime.UTC(),
		}).Debug("Starting scheduled job")

		// Panic recovery
		defer func() {
			if r := recover(); r != nil {
				s.metrics.RecordSchedulerJob(jobName, false, time.Since(startTime))
				s.logger.WithFields(logrus.Fields{
					"job":   jobName,
					"panic": r,
				}).Error("Job panicked")
			}
		}()

		err := jobFunc(ctx)

		duration := time.Since(startTime)
		s.metrics.RecordSchedulerJob(jobName, err == nil, duration)

		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":      jobName,
				"duration": duration.String(),
				"error":    err.Error(),
			}).Error("Job failed")
		} else {
			s.logger.WithFields(logrus.Fields{
				"job":      jobName,
				"duration": duration.String(),
			}).Debug("Job completed successfully")
		}

		if ctx.Err() == context.DeadlineExceeded {
			s.logger.WithFields(logrus.Fields{
				"job":     jobName,
				"timeout": s.jobTimeout.String(),
			}).Warn("Job timed out")
		}
	}
}

func (s *CronScheduler) Stop() {
	s.logger.Info("Stopping cron scheduler...")

	// Stop accepting new jobs
	ctx := s.cron.Stop()

	// Cancel all running jobs
	s.shutdownCancel()

	// Wait for running jobs to complete (with timeout)
	done := make(chan struct{})
	go func() {
		s.activeJobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All jobs completed, cron scheduler stopped")
	case <-ctx.Done():
		s.logger.Info("Cron scheduler stopped")
	case <-time.After(1 * time.Minute):
		s.logger.Warn("Timeout waiting for jobs to complete, forcing shutdown")
	}
}

// GetSchedulerStatus returns the current status of the scheduler
func (s *CronScheduler) GetSchedulerStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"name":     s.jobNames[entry.ID],
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
