package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth requires "Authorization: Bearer <token>". Browser stream clients
// cannot set headers and may pass ?token= instead. With no token configured
// the admin routes answer 404.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		provided := ""
		if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
			provided = authHeader[7:]
		}
		if provided == "" {
			provided = c.Query("token")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
