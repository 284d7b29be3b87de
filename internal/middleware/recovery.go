package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
)

// Recovery creates a panic recovery middleware with custom logging
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithFields(logrus.Fields{
					"request_id": GetRequestID(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"client_ip":  c.ClientIP(),
					"panic":      err,
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				appErr := models.NewInternalError("An unexpected error occurred. Please try again later.", fmt.Errorf("panic: %v", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      appErr,
					"request_id": GetRequestID(c),
				})
			}
		}()

		c.Next()
	}
}
