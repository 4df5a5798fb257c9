package database

import (
	"strings"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

// DefaultSlowQueryThreshold applies when no threshold is configured.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// SlowQueryThreshold returns the configured slow query threshold.
func (db *DB) SlowQueryThreshold() time.Duration {
	if db.slowQuery <= 0 {
		return DefaultSlowQueryThreshold
	}
	return db.slowQuery
}

// CheckAndLogSlowQuery checks if a query duration exceeds threshold
// and logs it using the database channel if it does
func (db *DB) CheckAndLogSlowQuery(query string, duration time.Duration) {
	threshold := db.SlowQueryThreshold()

	// Schema creation runs many statements in one go
	if strings.HasPrefix(query, "SCHEMA_") {
		threshold *= 3
	}

	if duration > threshold && db.logger != nil {
		db.logger.LogSlowQuery(query, duration)
	}
}

// Logger returns the logger the connection was opened with.
func (db *DB) Logger() *logging.ChanneledLogger {
	return db.logger
}
