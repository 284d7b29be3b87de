package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SchedulerStatusProvider reports background job state.
type SchedulerStatusProvider interface {
	GetSchedulerStatus() map[string]interface{}
}

type HealthHandler struct {
	db        *sql.DB
	scheduler SchedulerStatusProvider
	logger    *logrus.Logger
	version   string
}

func NewHealthHandler(db *sql.DB, scheduler SchedulerStatusProvider, logger *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: scheduler,
		logger:    logger,
		version:   version,
	}
}

// Health performs a basic health check
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	// Check database connection
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WithError(err).Error("Database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC(),
			"version":   h.version,
			"error":     "database unavailable",
		})
		return
	}

	stats := h.db.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"database": gin.H{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	})
}

// SchedulerStatus reports registered jobs and their next run
func (h *HealthHandler) SchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, h.scheduler.GetSchedulerStatus())
}
