package logging

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// SSEWriter is an io.Writer that turns log lines into LogEntry values and
// hands them to a LogBroadcaster.
type SSEWriter struct {
	broadcaster *LogBroadcaster
	channel     Channel
}

// NewSSEWriter creates a writer for one channel's logger.
func NewSSEWriter(b *LogBroadcaster, channel Channel) *SSEWriter {
	return &SSEWriter{broadcaster: b, channel: channel}
}

// Write parses a JSON log line. Text lines are forwarded whole as the message.
func (w *SSEWriter) Write(p []byte) (n int, err error) {
	var rawLog map[string]any
	if err := json.Unmarshal(p, &rawLog); err != nil {
		w.broadcaster.SubmitLog(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     slog.LevelInfo.String(),
			Channel:   string(w.channel),
			Message:   strings.TrimSpace(string(p)),
		})
		return len(p), nil
	}

	entry := LogEntry{
		Timestamp: getString(rawLog, "time"),
		Level:     getString(rawLog, "level"),
		Channel:   getString(rawLog, "channel"),
		Message:   getString(rawLog, "msg"),
		RequestID: getString(rawLog, "requestId"),
	}
	if entry.Channel == "" {
		entry.Channel = string(w.channel)
	}
	w.broadcaster.SubmitLog(entry)
	return len(p), nil
}

func getString(data map[string]any, key string) string {
	if val, ok := data[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}
