package middleware

import (
	"github.com/gin-gonic/gin"
)

// Security adds security headers to API responses
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()

		// Prevent clickjacking
		h.Set("X-Frame-Options", "DENY")
		// Prevent MIME type sniffing
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Responses are JSON only
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		// Visit data is per-user and must not land in shared caches
		h.Set("Cache-Control", "no-store")

		c.Next()
	}
}
