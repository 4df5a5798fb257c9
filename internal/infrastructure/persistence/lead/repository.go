// Package lead provides the SQL-based lead log.
package lead

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/database"
)

// SQLLeadRepository is the SQL-based implementation of the lead log.
type SQLLeadRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLLeadRepository creates a new instance of the repository.
func NewSQLLeadRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLLeadRepository {
	return &SQLLeadRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a new lead. The attribution snapshot is stored as JSON.
func (r *SQLLeadRepository) Store(ctx context.Context, lead *forms.Lead) error {
	const query = `INSERT INTO leads (id, provider, form_id, attribution, created_at) VALUES (?, ?, ?, ?, ?)`

	payload, err := json.Marshal(lead.Attribution)
	if err != nil {
		return fmt.Errorf("failed to encode lead attribution: %w", err)
	}

	start := time.Now()
	r.logger.Database().Debug("Executing lead insert", "id", lead.ID, "provider", lead.Provider)

	if _, err := r.db.ExecContext(ctx, query, lead.ID, lead.Provider, lead.FormID, string(payload), lead.CreatedAt.UTC()); err != nil {
		r.logger.Database().Error("Lead insert failed", "error", err.Error(), "id", lead.ID, "provider", lead.Provider)
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Lead insert completed", "id", lead.ID, "provider", lead.Provider, "duration", duration)
	r.db.CheckAndLogSlowQuery(query, duration)
	return nil
}

// FindByID retrieves a lead by its id. A missing lead is (nil, nil).
func (r *SQLLeadRepository) FindByID(ctx context.Context, id string) (*forms.Lead, error) {
	const query = `SELECT id, provider, form_id, attribution, created_at FROM leads WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading lead by ID", "id", id)

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Database().Debug("Lead not found by ID", "id", id)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load lead by ID", "error", err.Error(), "id", id)
		return nil, err
	}

	r.db.CheckAndLogSlowQuery(query, time.Since(start))
	return lead, nil
}

// ListRecent returns up to limit leads, newest first.
func (r *SQLLeadRepository) ListRecent(ctx context.Context, limit int) ([]*forms.Lead, error) {
	const query = `SELECT id, provider, form_id, attribution, created_at FROM leads ORDER BY created_at DESC, id DESC LIMIT ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to list leads", "error", err.Error())
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*forms.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	r.db.CheckAndLogSlowQuery(query, time.Since(start))
	return leads, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*forms.Lead, error) {
	var (
		lead    forms.Lead
		payload string
	)
	if err := row.Scan(&lead.ID, &lead.Provider, &lead.FormID, &payload, &lead.CreatedAt); err != nil {
		return nil, err
	}
	if payload != "" && payload != "null" {
		var record attribution.Record
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("failed to decode attribution for lead %s: %w", lead.ID, err)
		}
		lead.Attribution = &record
	}
	return &lead, nil
}
