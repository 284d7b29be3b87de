package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StructuredLogger creates a structured logger middleware
func StructuredLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		startTime := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.Query())

		// Process request
		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"request_id":  GetRequestID(c),
			"method":      c.Request.Method,
			"path":        path,
			"query":       query,
			"status":      statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"error_count": len(c.Errors),
		})

		// Log with appropriate level
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("Request completed with errors")
		} else if statusCode >= 500 {
			entry.Error("Request failed with server error")
		} else if statusCode >= 400 {
			entry.Warn("Request failed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// redactQuery renders the query string with token_auth masked.
func redactQuery(values url.Values) string {
	if _, ok := values["token_auth"]; ok {
		values.Set("token_auth", "REDACTED")
	}
	return values.Encode()
}
