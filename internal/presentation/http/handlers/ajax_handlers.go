package handlers

import (
	"errors"
	"net/http"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/services"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// AjaxHandlers serves the site's AJAX endpoint.
type AjaxHandlers struct {
	riskService *services.RiskService
	logger      *logging.ChanneledLogger
}

// NewAjaxHandlers creates ajax handlers with injected dependencies
func NewAjaxHandlers(riskService *services.RiskService, logger *logging.ChanneledLogger) *AjaxHandlers {
	return &AjaxHandlers{riskService: riskService, logger: logger}
}

// Handle dispatches on the posted action field.
func (h *AjaxHandlers) Handle(c *gin.Context) {
	report := services.RiskReport{
		Action:   c.PostForm("action"),
		PIIFound: c.PostForm("pii_found"),
		Nonce:    c.PostForm("nonce"),
		PageURL:  c.PostForm("page_url"),
	}
	if report.PageURL == "" {
		report.PageURL = c.GetHeader("Referer")
	}

	risk, err := h.riskService.Log(c.Request.Context(), report)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"id": risk.ID}})
	case errors.Is(err, security.ErrInvalidNonce):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "invalid nonce"})
	case errors.Is(err, services.ErrUnknownAction), errors.Is(err, services.ErrNoPIIReported):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Ajax request failed", "action", report.Action, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

// GetRiskSummary returns how many PII risks were logged in the past day.
func (h *AjaxHandlers) GetRiskSummary(c *gin.Context) {
	n, err := h.riskService.CountLastDay(c.Request.Context())
	if err != nil {
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Failed to count pii risks", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count risks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastDay": n})
}
