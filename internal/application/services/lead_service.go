package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/metrics"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
)

// LeadRepository persists leads.
type LeadRepository interface {
	Store(ctx context.Context, lead *forms.Lead) error
	FindByID(ctx context.Context, id string) (*forms.Lead, error)
	ListRecent(ctx context.Context, limit int) ([]*forms.Lead, error)
}

// LeadService records form submissions in the lead log and sends the
// optional notification email. It is the adapters' LeadRecorder.
type LeadService struct {
	repo    LeadRepository
	mailer  email.Service
	metrics *metrics.Metrics
	logger  *logging.ChanneledLogger
	now     func() time.Time
}

// NewLeadService creates a lead service. mailer may be nil.
func NewLeadService(repo LeadRepository, mailer email.Service, m *metrics.Metrics, logger *logging.ChanneledLogger) *LeadService {
	return &LeadService{repo: repo, mailer: mailer, metrics: m, logger: logger, now: time.Now}
}

// RecordLead assigns the lead an id and timestamp and stores it. A failed
// notification is logged and does not fail the call.
func (s *LeadService) RecordLead(ctx context.Context, lead *forms.Lead) error {
	lead.ID = security.GenerateULID()
	lead.CreatedAt = s.now().UTC()

	if err := s.repo.Store(ctx, lead); err != nil {
		return fmt.Errorf("failed to store lead: %w", err)
	}
	s.metrics.Leads.WithLabelValues(lead.Provider).Inc()
	s.logger.Forms().Info("Lead recorded", "leadId", lead.ID, "provider", lead.Provider, "formId", lead.FormID)

	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendLeadNotification(ctx, lead); err != nil {
		s.logger.Email().Error("Failed to send lead notification", "leadId", lead.ID, "error", err.Error())
	}
	return nil
}

// Get returns a stored lead, or nil when id is unknown.
func (s *LeadService) Get(ctx context.Context, id string) (*forms.Lead, error) {
	return s.repo.FindByID(ctx, id)
}

// Recent returns the newest leads, newest first.
func (s *LeadService) Recent(ctx context.Context, limit int) ([]*forms.Lead, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, limit)
}
