package services

import (
	"context"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/page"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

// SubmitResult is what a submission produced on the page.
type SubmitResult struct {
	PageID    string
	DataLayer []events.Event
	Lead      *forms.Lead
}

// FormService renders hidden fields and dispatches submissions through the
// adapter registry on a page rebuilt from the visitor's storage.
type FormService struct {
	registry *forms.Registry
	pages    *AttributionService
	logger   *logging.ChanneledLogger
}

// NewFormService creates a form service.
func NewFormService(registry *forms.Registry, pages *AttributionService, logger *logging.ChanneledLogger) *FormService {
	return &FormService{registry: registry, pages: pages, logger: logger}
}

// Registry returns the adapter registry.
func (s *FormService) Registry() *forms.Registry {
	return s.registry
}

func (s *FormService) open(ctx context.Context, req CollectRequest) (*PageSession, context.Context, error) {
	sess, err := s.pages.Open(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	sess.Page.SetAttribution(sess.Manager.Load())
	return sess, page.NewContext(ctx, sess.Page), nil
}

// Fields returns the hidden fields provider's form should render.
func (s *FormService) Fields(ctx context.Context, provider string, req CollectRequest) (forms.HiddenFields, error) {
	if _, err := s.registry.Lookup(provider); err != nil {
		return nil, err
	}
	_, pageCtx, err := s.open(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.registry.Fields(pageCtx, provider)
}

// Submit fires provider's submission hook for sub.
func (s *FormService) Submit(ctx context.Context, provider string, req CollectRequest, sub *forms.Submission) (*SubmitResult, error) {
	if _, err := s.registry.Lookup(provider); err != nil {
		return nil, err
	}
	sess, pageCtx, err := s.open(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Submit(pageCtx, provider, sub); err != nil {
		return nil, err
	}

	s.logger.Forms().Debug("Submission dispatched", "provider", provider, "pageId", sess.Page.ID, "recorded", sub.Lead != nil)
	return &SubmitResult{
		PageID:    sess.Page.ID,
		DataLayer: sess.Emitted(),
		Lead:      sub.Lead,
	}, nil
}
