// Package logging provides structured logging channels for ClickTrail
// operations.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"   // General system operations
	ChannelStartup  Channel = "startup"  // Application startup and initialization
	ChannelShutdown Channel = "shutdown" // Application shutdown and cleanup

	// Engine channels
	ChannelAttribution Channel = "attribution" // Capture, resolve and page-view emission
	ChannelConsent     Channel = "consent"     // Consent gating and signals
	ChannelStorage     Channel = "storage"     // Cookie and key-value persistence
	ChannelForms       Channel = "forms"       // Form adapters and lead events
	ChannelPII         Channel = "pii"         // PII scanning and risk reporting

	// Infrastructure channels
	ChannelDatabase Channel = "database" // Lead and risk log
	ChannelHTTP     Channel = "http"     // Request handling
	ChannelEmail    Channel = "email"    // Lead notifications
	ChannelStream   Channel = "stream"   // Live dataLayer stream

	ChannelDebug Channel = "debug"
)

var allChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelAttribution, ChannelConsent, ChannelStorage, ChannelForms, ChannelPII,
	ChannelDatabase, ChannelHTTP, ChannelEmail, ChannelStream,
	ChannelDebug,
}

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels map[Channel]*slog.Logger
	config   *LoggerConfig
	files    []*os.File
	configMu sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool      // Whether to write logs to files, one per channel
	OutputToConsole bool      // Whether to write logs to stdout
	LogDirectory    string    // Directory for log files
	Writer          io.Writer // Extra destination; used by tests

	// Broadcaster, when set, receives every line for live streaming.
	Broadcaster *LogBroadcaster

	JSONFormat    bool // Use JSON format for structured logging
	IncludeSource bool // Include source file and line in logs

	DefaultLevel  slog.Level
	ChannelLevels map[Channel]slog.Level
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.ChannelLevels == nil {
		config.ChannelLevels = make(map[Channel]slog.Level)
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	for _, channel := range allChannels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// NewDiscardLogger returns a logger that drops everything. Handy in tests.
func NewDiscardLogger() *ChanneledLogger {
	logger, _ := NewChanneledLogger(&LoggerConfig{
		Writer:        io.Discard,
		DefaultLevel:  slog.LevelError + 1,
		ChannelLevels: make(map[Channel]slog.Level),
	})
	return logger
}

// createChannelLogger creates a slog.Logger for a specific channel
func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		path := filepath.Join(cl.config.LogDirectory, fmt.Sprintf("%s.log", string(channel)))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		cl.files = append(cl.files, file)
		writers = append(writers, file)
	}

	if cl.config.Writer != nil {
		writers = append(writers, cl.config.Writer)
	}

	if cl.config.Broadcaster != nil {
		writers = append(writers, NewSSEWriter(cl.config.Broadcaster, channel))
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger      { return cl.GetChannel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger     { return cl.GetChannel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger    { return cl.GetChannel(ChannelShutdown) }
func (cl *ChanneledLogger) Attribution() *slog.Logger { return cl.GetChannel(ChannelAttribution) }
func (cl *ChanneledLogger) Consent() *slog.Logger     { return cl.GetChannel(ChannelConsent) }
func (cl *ChanneledLogger) Storage() *slog.Logger     { return cl.GetChannel(ChannelStorage) }
func (cl *ChanneledLogger) Forms() *slog.Logger       { return cl.GetChannel(ChannelForms) }
func (cl *ChanneledLogger) PII() *slog.Logger         { return cl.GetChannel(ChannelPII) }
func (cl *ChanneledLogger) Database() *slog.Logger    { return cl.GetChannel(ChannelDatabase) }
func (cl *ChanneledLogger) HTTP() *slog.Logger        { return cl.GetChannel(ChannelHTTP) }
func (cl *ChanneledLogger) Email() *slog.Logger       { return cl.GetChannel(ChannelEmail) }
func (cl *ChanneledLogger) Stream() *slog.Logger      { return cl.GetChannel(ChannelStream) }
func (cl *ChanneledLogger) Debug() *slog.Logger       { return cl.GetChannel(ChannelDebug) }

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithOperation returns a logger with operation context
func (cl *ChanneledLogger) WithOperation(channel Channel, operation string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("operation", operation))
}

// WithContext returns a logger carrying the request id stored in ctx, if any.
func (cl *ChanneledLogger) WithContext(channel Channel, ctx context.Context) *slog.Logger {
	logger := cl.GetChannel(channel)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With(slog.String("requestId", requestID))
	}
	return logger
}

type contextKey string

// RequestIDKey is the context key under which the HTTP layer stores request ids.
const RequestIDKey contextKey = "requestId"

// LogSlowQuery logs a slow database query
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration) {
	cl.Database().Warn("Slow query detected",
		slog.String("query", cl.sanitizeQuery(query)),
		slog.Duration("duration", duration),
	)
}

// LogError logs an error with appropriate context and channel
func (cl *ChanneledLogger) LogError(channel Channel, operation string, err error, metadata map[string]any) {
	logger := cl.GetChannel(channel).With(
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}
	logger.Error("Operation failed")
}

// LogStartupPhase logs application startup phases
func (cl *ChanneledLogger) LogStartupPhase(phase string, duration time.Duration, success bool, metadata map[string]any) {
	logger := cl.Startup().With(
		slog.String("phase", phase),
		slog.Duration("duration", duration),
		slog.Bool("success", success),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}
	if success {
		logger.Info("Startup phase completed")
	} else {
		logger.Error("Startup phase failed")
	}
}

// sanitizeQuery flattens whitespace and truncates long queries
func (cl *ChanneledLogger) sanitizeQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 500 {
		query = query[:500] + "..."
	}
	return query
}

// Broadcaster returns the live log broadcaster, or nil when streaming is off.
func (cl *ChanneledLogger) Broadcaster() *LogBroadcaster {
	return cl.config.Broadcaster
}

// Close closes any log files opened by the logger and stops the broadcaster.
func (cl *ChanneledLogger) Close() error {
	cl.System().Info("Channeled logger shutting down")
	if cl.config.Broadcaster != nil {
		cl.config.Broadcaster.Shutdown()
	}
	var firstErr error
	for _, f := range cl.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetChannelLevel dynamically sets the log level for a specific channel
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	defer cl.configMu.Unlock()

	if _, exists := cl.channels[channel]; !exists {
		return fmt.Errorf("channel %s does not exist", channel)
	}

	cl.config.ChannelLevels[channel] = level

	newLogger, err := cl.createChannelLogger(channel)
	if err != nil {
		return fmt.Errorf("failed to recreate logger for channel %s: %w", channel, err)
	}
	cl.channels[channel] = newLogger
	return nil
}

// GetChannelLevels returns the current log levels for all channels.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	levels := make(map[string]string)
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
