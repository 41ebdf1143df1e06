package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/promptmart/internal/logger"
)

// AdminTokenHeader authenticates admin requests.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth guards the admin routes with a shared token. An empty token
// disables the admin API altogether.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin API is disabled"})
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.CtxWarn(c.Request.Context(), "Rejected admin request: path=%s, client_ip=%s",
				c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin token"})
			return
		}
		c.Next()
	}
}
