package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kyvra-tech/geoipmap-backend/internal/auth"
)

// Auth moves the caller's token_auth into the request context. Requests without a
// token continue as the anonymous login; access is checked per site downstream.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Query("token_auth"), c.GetHeader("Authorization"))
		c.Request = c.Request.WithContext(auth.WithToken(c.Request.Context(), token))
		c.Next()
	}
}
