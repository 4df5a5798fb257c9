// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/services"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/pii"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/caching/pages"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/metrics"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/lead"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/risk"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/reporting"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	Config  *config.Config
	Logger  *logging.ChanneledLogger
	Metrics *metrics.Metrics
	DB      *database.DB

	// Application Services
	AttributionService *services.AttributionService
	FormService        *services.FormService
	LeadService        *services.LeadService
	RiskService        *services.RiskService

	// Infrastructure Dependencies
	PageStore   *pages.Store[*services.PageSession]
	Stream      *messaging.StreamBroadcaster
	Nonces      *security.NonceIssuer
	PIIReporter *reporting.PIIReporter
	Mailer      email.Service
	Forms       *forms.Registry
}

// NewContainer creates and wires all singleton services
func NewContainer(cfg *config.Config, logger *logging.ChanneledLogger, db *database.DB) (*Container, error) {
	secret := cfg.Attribution.NonceSecret
	if secret == "" {
		generated, err := security.GenerateSecureKey(64)
		if err != nil {
			return nil, fmt.Errorf("failed to generate nonce secret: %w", err)
		}
		secret = generated
		logger.Startup().Warn("CT_NONCE_SECRET not set, nonces will not survive a restart")
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		DB:        db,
		PageStore: pages.NewStore[*services.PageSession](cfg.Pages.TTL),
		Stream:    messaging.NewStreamBroadcaster(logger),
		Nonces:    security.NewNonceIssuer(secret, cfg.Attribution.NonceTTL),
	}

	var reporter pii.Reporter
	if cfg.Attribution.AjaxURL != "" {
		c.PIIReporter = reporting.NewPIIReporter(cfg.Attribution.AjaxURL, c.Nonces, nil, logger)
		reporter = c.PIIReporter
	}

	if cfg.Email.Enabled() {
		mailer, err := email.NewService(email.Options{
			APIKey:   cfg.Email.APIKey,
			To:       cfg.Email.NotifyTo,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
		c.Mailer = mailer
	}

	c.LeadService = services.NewLeadService(lead.NewSQLLeadRepository(db, logger), c.Mailer, c.Metrics, logger)
	c.RiskService = services.NewRiskService(risk.NewSQLRiskRepository(db, logger), c.Nonces, logger)

	c.AttributionService = services.NewAttributionService(
		cfg.Attribution,
		pii.NewScanner(reporter, logger.PII()),
		c.PageStore,
		c.Stream,
		c.Nonces,
		c.Metrics,
		logger,
	)

	c.Forms = forms.NewRegistry(forms.NewPlatformSet(cfg.Forms.Platforms...), forms.Settings{
		RequireConsent: cfg.Attribution.RequireConsent,
		Recorder:       c.LeadService,
		Logger:         logger.Forms(),
	})
	c.FormService = services.NewFormService(c.Forms, c.AttributionService, logger)

	active := c.Forms.Active()
	providers := make([]string, 0, len(active))
	for _, a := range active {
		providers = append(providers, a.Provider())
	}
	logger.Forms().Info("Form adapters active", "providers", providers, "count", len(providers))

	return c, nil
}

// Close waits for in-flight PII reports and closes the database.
func (c *Container) Close() error {
	if c.PIIReporter != nil {
		c.PIIReporter.Wait()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
