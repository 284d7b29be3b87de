package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	logger  *logrus.Logger
	metrics *metrics.Metrics
	limit   int           // Max requests
	window  time.Duration // Time window
	every   rate.Limit
	done    chan struct{}
	once    sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter allowing limit requests per window,
// with bursts of up to limit requests.
func NewRateLimiter(limit int, window time.Duration, logger *logrus.Logger, m *metrics.Metrics) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		logger:  logger,
		metrics: m,
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		done:    make(chan struct{}),
	}

	// Cleanup goroutine to remove idle clients
	go rl.cleanup()

	return rl
}

// Middleware returns a gin middleware handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed := rl.allowRequest(clientIP)
		rl.metrics.RecordRateLimit(allowed)

		if !allowed {
			rl.logger.WithFields(logrus.Fields{
				"client_ip":  clientIP,
				"request_id": GetRequestID(c),
				"path":       c.Request.URL.Path,
			}).Warn("Rate limit exceeded")

			appErr := models.NewRateLimitError("Too many requests. Please try again later.").
				WithMetadata("retry_after", rl.window.Seconds())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      appErr,
				"request_id": GetRequestID(c),
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allowRequest(clientIP string) bool {
	rl.mu.Lock()
	client, exists := rl.clients[clientIP]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[clientIP] = client
	}
	client.lastSeen = time.Now()
	rl.mu.Unlock()

	return client.limiter.Allow()
}

// cleanup periodically removes clients idle for two windows
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, client := range rl.clients {
				if now.Sub(client.lastSeen) > rl.window*2 {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"total_clients": len(rl.clients),
		"limit":         rl.limit,
		"window":        rl.window.String(),
	}
}
