package middleware

import (
	"strconv"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request counts and latency per route.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.HTTPRequestDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
		m.HTTPRequests.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
