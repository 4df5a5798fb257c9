// Package cleanup provides the background worker that evicts expired pages.
package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

// Purger drops expired entries and reports how many it removed.
type Purger interface {
	PurgeExpired() int
	Len() int
}

// Worker handles background cache cleanup operations
type Worker struct {
	store   Purger
	config  *Config
	logger  *logging.ChanneledLogger
	onPurge func(removed int)
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(store Purger, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		store:  store,
		config: config,
		logger: logger,
	}
}

// OnPurge registers a hook called after each sweep that removed pages.
func (w *Worker) OnPurge(fn func(removed int)) {
	w.onPurge = fn
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.System().Info("Page cleanup worker started", "interval", w.config.CleanupInterval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown().Info("Page cleanup worker stopping")
			return
		case <-ticker.C:
			w.performCleanup()
		}
	}
}

// performCleanup runs one sweep.
func (w *Worker) performCleanup() int {
	start := time.Now()
	removed := w.store.PurgeExpired()

	if removed > 0 {
		w.logger.Consent().Info("Expired pending pages evicted",
			"removed", removed, "remaining", w.store.Len(), "duration", time.Since(start))
		if w.onPurge != nil {
			w.onPurge(removed)
		}
	} else if w.config.VerboseReporting {
		w.logger.System().Debug("Page cleanup completed - no expired pages", "duration", time.Since(start))
	}
	return removed
}
