package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
)

// Timeout bounds the request context. Handlers pass that context to every query,
// so a slow query is cancelled by the driver and the handler returns promptly.
// If the deadline passed and nothing was written yet, a 504 is sent.
func Timeout(timeout time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() != context.DeadlineExceeded || c.Writer.Written() {
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"timeout":    timeout.String(),
		}).Warn("Request timeout")

		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
			"error":      models.NewTimeoutError("Request took too long to process"),
			"request_id": GetRequestID(c),
		})
	}
}
