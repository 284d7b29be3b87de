package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geoipmap"

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Geo query metrics
	GeoQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geo",
			Name:      "queries_total",
			Help:      "Total number of geo visit queries by path and outcome",
		},
		[]string{"path", "status"},
	)

	GeoRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "geo",
			Name:      "rows_returned",
			Help:      "Number of location rows returned per query",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 250, 500, 1000},
		},
		[]string{"path"},
	)

	AccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geo",
			Name:      "access_denied_total",
			Help:      "Requests rejected for missing view access",
		},
		[]string{"path"},
	)

	// Database metrics
	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_active",
			Help:      "Number of active database connections",
		},
	)

	DatabaseConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query_type"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"query_type"},
	)

	// Cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Site cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	// Archiver metrics
	ArchiveRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archiver",
			Name:      "records_total",
			Help:      "Archive records written by period type and outcome",
		},
		[]string{"period", "status"},
	)

	// Location enrichment metrics
	VisitsLocatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enricher",
			Name:      "visits_total",
			Help:      "Visits processed by the GeoIP location enricher",
		},
		[]string{"status"},
	)

	// Scheduler metrics
	SchedulerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Total number of scheduled jobs executed",
		},
		[]string{"job_name", "status"},
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"job_name"},
	)

	LastSchedulerJobTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_job_timestamp",
			Help:      "Unix timestamp of last job execution",
		},
		[]string{"job_name"},
	)

	// Rate limiter metrics
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limiter",
			Name:      "requests_total",
			Help:      "Total number of requests seen by the rate limiter",
		},
		[]string{"allowed"},
	)
)

// Metrics provides convenience methods for recording metrics
type Metrics struct{}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordGeoQuery records the outcome of a getVisits/getLiveVisits call
func (m *Metrics) RecordGeoQuery(path string, rows int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	GeoQueriesTotal.WithLabelValues(path, status).Inc()
	if err == nil {
		GeoRowsReturned.WithLabelValues(path).Observe(float64(rows))
	}
}

// RecordAccessDenied records a rejected request
func (m *Metrics) RecordAccessDenied(path string) {
	AccessDeniedTotal.WithLabelValues(path).Inc()
}

// RecordDatabaseQuery records a database query metric
func (m *Metrics) RecordDatabaseQuery(queryType string, duration time.Duration, err error) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
	if err != nil {
		DatabaseErrorsTotal.WithLabelValues(queryType).Inc()
	}
}

// UpdateDatabaseStats copies pool statistics into the connection gauges
func (m *Metrics) UpdateDatabaseStats(stats sql.DBStats) {
	DatabaseConnectionsActive.Set(float64(stats.InUse))
	DatabaseConnectionsIdle.Set(float64(stats.Idle))
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

// RecordArchive records one archive record write
func (m *Metrics) RecordArchive(period string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	ArchiveRecordsTotal.WithLabelValues(period, status).Inc()
}

// RecordVisitLocated records one enrichment outcome: located, unresolved or failed
func (m *Metrics) RecordVisitLocated(status string) {
	VisitsLocatedTotal.WithLabelValues(status).Inc()
}

// RecordSchedulerJob records a scheduler job execution
func (m *Metrics) RecordSchedulerJob(jobName string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	SchedulerJobsTotal.WithLabelValues(jobName, status).Inc()
	SchedulerJobDuration.WithLabelValues(jobName).Observe(duration.Seconds())
	LastSchedulerJobTime.WithLabelValues(jobName).SetToCurrentTime()
}

// RecordRateLimit records a rate limiter decision
func (m *Metrics) RecordRateLimit(allowed bool) {
	RateLimitRequestsTotal.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
