package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// LogHandlers serves the admin log stream and per-channel log levels.
type LogHandlers struct {
	logger *logging.ChanneledLogger
}

// NewLogHandlers creates log handlers.
func NewLogHandlers(logger *logging.ChanneledLogger) *LogHandlers {
	return &LogHandlers{logger: logger}
}

// parseLevelName accepts DEBUG, INFO, WARN and ERROR in any case.
func parseLevelName(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// StreamLogs handles GET /api/v1/logs/stream as server-sent events.
// ?channel= and ?level= filter the entries.
func (h *LogHandlers) StreamLogs(c *gin.Context) {
	broadcaster := h.logger.Broadcaster()
	if broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Log streaming is disabled"})
		return
	}

	level, ok := parseLevelName(c.DefaultQuery("level", "INFO"))
	if !ok {
		level = slog.LevelInfo
	}
	client := broadcaster.NewClient(logging.AppliedFilters{
		Channel: logging.Channel(c.DefaultQuery("channel", "all")),
		Level:   level,
	})
	broadcaster.RegisterClient(client)
	defer broadcaster.UnregisterClient(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels handles GET /api/v1/logs/levels.
func (h *LogHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/v1/logs/levels.
func (h *LogHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	level, ok := parseLevelName(req.Level)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "channel": req.Channel, "level": level.String()})
}
