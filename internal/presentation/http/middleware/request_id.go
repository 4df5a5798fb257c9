package middleware

import (
	"context"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when sent.
// The id is stored on the gin context and on the request context so channel
// loggers built with WithContext pick it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = security.GenerateULID()
		}
		c.Set(string(logging.RequestIDKey), id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logging.RequestIDKey, id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(string(logging.RequestIDKey))
}
