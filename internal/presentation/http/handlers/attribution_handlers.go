// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/services"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/consent"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/storage"
	"github.com/gin-gonic/gin"
)

// CollectRequest is the body the tag posts on every page load.
type CollectRequest struct {
	URL       string            `json:"url" binding:"required"`
	Referrer  string            `json:"referrer"`
	Storage   map[string]string `json:"storage"`
	DataLayer []events.Event    `json:"dataLayer"`
}

// ConsentRequest delivers a consent signal to a page waiting for it.
type ConsentRequest struct {
	PageID string            `json:"pageId" binding:"required"`
	Event  string            `json:"event" binding:"required"`
	Detail *consent.Decision `json:"detail"`
}

// PageResponse is the state the tag applies after collect or consent.
type PageResponse struct {
	PageID      string              `json:"pageId"`
	Status      string              `json:"status"`
	Attribution *attribution.Record `json:"attribution"`
	DataLayer   []events.Event      `json:"dataLayer"`
	Storage     map[string]string   `json:"storage"`
	PIIFound    bool                `json:"piiFound"`
}

// AttributionHandlers contains the capture pipeline endpoints
type AttributionHandlers struct {
	attributionService *services.AttributionService
	logger             *logging.ChanneledLogger
}

// NewAttributionHandlers creates attribution handlers with injected dependencies
func NewAttributionHandlers(attributionService *services.AttributionService, logger *logging.ChanneledLogger) *AttributionHandlers {
	return &AttributionHandlers{
		attributionService: attributionService,
		logger:             logger,
	}
}

// GetConfig returns the tag configuration with a fresh nonce.
func (h *AttributionHandlers) GetConfig(c *gin.Context) {
	cfg, err := h.attributionService.TagConfig()
	if err != nil {
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Failed to build tag config", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, cfg)
}

// Collect runs the capture pipeline for one page load.
func (h *AttributionHandlers) Collect(c *gin.Context) {
	start := time.Now()
	h.logger.HTTP().Debug("Received collect request", "method", c.Request.Method, "path", c.Request.URL.Path)

	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.attributionService.Collect(c.Request.Context(), services.CollectRequest{
		URL:       req.URL,
		Referrer:  req.Referrer,
		Cookies:   requestCookies(c),
		Storage:   req.Storage,
		DataLayer: req.DataLayer,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.HTTP().Info("Collect request completed", "pageId", result.PageID, "status", result.Outcome.String(), "duration", time.Since(start))
	h.writePage(c, result)
}

// Consent delivers a consent signal to a pending page.
func (h *AttributionHandlers) Consent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.attributionService.DeliverConsent(c.Request.Context(), req.PageID, req.Event, req.Detail)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writePage(c, result)
}

// requestCookies reads the Cookie header without net/http's value
// validation, which drops raw JSON values.
func requestCookies(c *gin.Context) []*http.Cookie {
	return storage.ParseCookieHeader(c.Request.Header.Values("Cookie"))
}

func (h *AttributionHandlers) writePage(c *gin.Context, result *services.CollectResult) {
	for _, cookie := range result.Cookies {
		http.SetCookie(c.Writer, cookie)
	}
	c.JSON(http.StatusOK, PageResponse{
		PageID:      result.PageID,
		Status:      result.Outcome.String(),
		Attribution: result.Attribution,
		DataLayer:   result.DataLayer,
		Storage:     result.Storage,
		PIIFound:    result.PIIFound,
	})
}

func (h *AttributionHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingURL), errors.Is(err, services.ErrUnknownSignal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Attribution request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
