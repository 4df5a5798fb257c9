// Package database provides the core functionality for creating and managing
// the lead log connection.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Options describes how to reach the lead log.
type Options struct {
	Driver             string
	DSN                string
	AuthToken          string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	SlowQueryThreshold time.Duration
}

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string

	logger    *logging.ChanneledLogger
	slowQuery time.Duration
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", opts.Driver)

	db, err := sql.Open(opts.Driver, DataSourceName(opts))
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", opts.Driver)
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", opts.Driver)
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	wrapped := &DB{DB: db, Driver: opts.Driver, logger: logger, slowQuery: opts.SlowQueryThreshold}
	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", opts.Driver, "duration", duration)
	wrapped.CheckAndLogSlowQuery("DATABASE_CONNECTION", duration)

	return wrapped, nil
}

// DataSourceName builds the driver DSN. Remote libsql databases carry their
// auth token as a query parameter.
func DataSourceName(opts Options) string {
	if opts.Driver == "libsql" && opts.AuthToken != "" {
		return fmt.Sprintf("%s?authToken=%s", opts.DSN, opts.AuthToken)
	}
	return opts.DSN
}
