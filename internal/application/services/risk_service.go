package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/risk"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
)

var (
	ErrUnknownAction = errors.New("unknown ajax action")
	ErrNoPIIReported = errors.New("pii_found must be true")
)

// RiskRepository persists PII risk reports.
type RiskRepository interface {
	Store(ctx context.Context, r *risk.Risk) error
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// NonceVerifier checks a nonce issued for an action.
type NonceVerifier interface {
	Verify(nonce, action string) error
}

// RiskReport is the form posted by the tag's PII reporter.
type RiskReport struct {
	Action   string
	PIIFound string
	Nonce    string
	PageURL  string
}

// RiskService handles the ct_log_pii_risk AJAX action.
type RiskService struct {
	repo   RiskRepository
	nonces NonceVerifier
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewRiskService creates a risk service.
func NewRiskService(repo RiskRepository, nonces NonceVerifier, logger *logging.ChanneledLogger) *RiskService {
	return &RiskService{repo: repo, nonces: nonces, logger: logger, now: time.Now}
}

// Log verifies the report's nonce and stores it.
func (s *RiskService) Log(ctx context.Context, report RiskReport) (*risk.Risk, error) {
	if report.Action != security.NonceAction {
		return nil, ErrUnknownAction
	}
	if err := s.nonces.Verify(report.Nonce, security.NonceAction); err != nil {
		s.logger.PII().Warn("Rejected PII risk report", "error", err.Error())
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(report.PIIFound), "true") {
		return nil, ErrNoPIIReported
	}

	r := &risk.Risk{
		ID:        security.GenerateULID(),
		PageURL:   report.PageURL,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Store(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to store pii risk: %w", err)
	}
	s.logger.PII().Warn("PII risk logged", "riskId", r.ID, "pageUrl", r.PageURL)
	return r, nil
}

// CountLastDay returns the number of risks logged in the past 24 hours.
func (s *RiskService) CountLastDay(ctx context.Context) (int, error) {
	return s.repo.CountSince(ctx, s.now().Add(-24*time.Hour))
}
