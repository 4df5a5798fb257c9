package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Counter reports a size.
type Counter interface {
	Len() int
}

// HealthHandlers reports service health.
type HealthHandlers struct {
	db      Pinger
	pending Counter
	clients func() int
}

// NewHealthHandlers creates health handlers. clients may be nil.
func NewHealthHandlers(db Pinger, pending Counter, clients func() int) *HealthHandlers {
	return &HealthHandlers{db: db, pending: pending, clients: clients}
}

// Health serves GET /health.
func (h *HealthHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok"}
	if err := h.db.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	if h.pending != nil {
		body["pendingPages"] = h.pending.Len()
	}
	if h.clients != nil {
		body["streamClients"] = h.clients()
	}
	c.JSON(status, body)
}
