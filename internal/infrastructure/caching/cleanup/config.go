package cleanup

import (
	"time"

	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
)

// Config holds cleanup worker configuration.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
}

// NewConfig creates a cleanup configuration from the page settings.
func NewConfig(pages config.Pages) *Config {
	return &Config{
		CleanupInterval: pages.CleanupInterval,
	}
}
