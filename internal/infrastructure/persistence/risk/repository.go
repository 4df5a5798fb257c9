// Package risk stores PII risk reports.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/database"
)

// Risk is one reported PII exposure.
type Risk struct {
	ID        string
	PageURL   string
	CreatedAt time.Time
}

// SQLRiskRepository is the SQL-based PII risk log.
type SQLRiskRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLRiskRepository creates a new instance of the repository.
func NewSQLRiskRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLRiskRepository {
	return &SQLRiskRepository{db: db, logger: logger}
}

// Store saves a risk report.
func (r *SQLRiskRepository) Store(ctx context.Context, risk *Risk) error {
	const query = `INSERT INTO pii_risks (id, page_url, created_at) VALUES (?, ?, ?)`

	start := time.Now()
	if _, err := r.db.ExecContext(ctx, query, risk.ID, risk.PageURL, risk.CreatedAt.UTC()); err != nil {
		r.logger.Database().Error("PII risk insert failed", "error", err.Error(), "id", risk.ID)
		return fmt.Errorf("failed to insert pii risk: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("PII risk recorded", "id", risk.ID, "duration", duration)
	r.db.CheckAndLogSlowQuery(query, duration)
	return nil
}

// CountSince returns how many risks were recorded at or after since.
func (r *SQLRiskRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM pii_risks WHERE created_at >= ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pii risks: %w", err)
	}
	return count, nil
}
