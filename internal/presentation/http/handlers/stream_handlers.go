package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// StreamHandlers upgrades dashboard connections onto the live event stream.
type StreamHandlers struct {
	broadcaster *messaging.StreamBroadcaster
	upgrader    websocket.Upgrader
	logger      *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers. An empty origin list accepts
// any origin.
func NewStreamHandlers(broadcaster *messaging.StreamBroadcaster, allowedOrigins []string, logger *logging.ChanneledLogger) *StreamHandlers {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StreamHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		logger: logger,
	}
}

// Stream serves GET /api/v1/datalayer/stream. It blocks for the lifetime of
// the connection.
func (h *StreamHandlers) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Stream().Warn("Stream upgrade failed", "error", err.Error())
		return
	}
	h.logger.Stream().Info("Stream client connected", "remoteAddr", c.ClientIP())
	h.broadcaster.Serve(messaging.NewStreamClient(conn))
	h.logger.Stream().Info("Stream client disconnected", "remoteAddr", c.ClientIP())
}
