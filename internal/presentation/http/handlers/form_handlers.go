package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/services"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

const maxFormMemory = 1 << 20

// SubmitRequest is the JSON form of a submission. Form-encoded posts carry
// the same data as plain fields.
type SubmitRequest struct {
	URL      string            `json:"url"`
	Referrer string            `json:"referrer"`
	FormID   string            `json:"formId"`
	Fields   map[string]string `json:"fields"`
	Storage  map[string]string `json:"storage"`

	// Gtag is set when the page has a global gtag function to forward to.
	Gtag bool `json:"gtag"`
}

// GtagEvent is one call the tag replays on the page's gtag function.
type GtagEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// SubmitResponse reports the events a submission pushed.
type SubmitResponse struct {
	PageID    string         `json:"pageId"`
	DataLayer []events.Event `json:"dataLayer"`
	LeadID    string         `json:"leadId,omitempty"`
	Gtag      []GtagEvent    `json:"gtag,omitempty"`
}

// LeadResponse is a stored lead.
type LeadResponse struct {
	ID          string              `json:"id"`
	Provider    string              `json:"provider"`
	FormID      string              `json:"formId"`
	Attribution *attribution.Record `json:"attribution"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// FormHandlers contains the form adapter endpoints
type FormHandlers struct {
	formService *services.FormService
	leadService *services.LeadService
	logger      *logging.ChanneledLogger
}

// NewFormHandlers creates form handlers with injected dependencies
func NewFormHandlers(formService *services.FormService, leadService *services.LeadService, logger *logging.ChanneledLogger) *FormHandlers {
	return &FormHandlers{
		formService: formService,
		leadService: leadService,
		logger:      logger,
	}
}

// GetProviders lists every adapter and whether its platform is installed.
func (h *FormHandlers) GetProviders(c *gin.Context) {
	adapters := h.formService.Registry().Adapters()
	providers := make([]gin.H, 0, len(adapters))
	for _, a := range adapters {
		providers = append(providers, gin.H{
			"provider": a.Provider(),
			"platform": a.PlatformName(),
			"active":   a.IsActive(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers, "count": len(providers)})
}

// GetFields returns the hidden attribution fields for a provider's form.
func (h *FormHandlers) GetFields(c *gin.Context) {
	provider := c.Param("provider")

	fields, err := h.formService.Fields(c.Request.Context(), provider, services.CollectRequest{
		URL:     pageURL(c, c.Query("url")),
		Cookies: requestCookies(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "fields": fields})
}

// Submit dispatches a submission through the provider's adapter.
func (h *FormHandlers) Submit(c *gin.Context) {
	start := time.Now()
	provider := c.Param("provider")

	req, err := bindSubmission(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var tagged []GtagEvent
	var tagger events.Tagger
	if req.Gtag {
		tagger = events.TaggerFunc(func(name string, params map[string]any) {
			tagged = append(tagged, GtagEvent{Name: name, Params: params})
		})
	}

	sub := &forms.Submission{FormID: req.FormID, Fields: req.Fields}
	result, err := h.formService.Submit(c.Request.Context(), provider, services.CollectRequest{
		URL:      pageURL(c, req.URL),
		Referrer: req.Referrer,
		Cookies:  requestCookies(c),
		Storage:  req.Storage,
		Tagger:   tagger,
	}, sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := SubmitResponse{PageID: result.PageID, DataLayer: result.DataLayer, Gtag: tagged}
	if result.Lead != nil {
		resp.LeadID = result.Lead.ID
	}
	h.logger.HTTP().Info("Form submission completed", "provider", provider, "leadId", resp.LeadID, "duration", time.Since(start))
	c.JSON(http.StatusOK, resp)
}

// GetRecentLeads returns the newest entries of the lead log.
func (h *FormHandlers) GetRecentLeads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	leads, err := h.leadService.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Failed to list leads", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list leads"})
		return
	}
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, toLeadResponse(l))
	}
	c.JSON(http.StatusOK, gin.H{"leads": out, "count": len(out)})
}

// GetLead returns one lead by id.
func (h *FormHandlers) GetLead(c *gin.Context) {
	lead, err := h.leadService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Failed to load lead", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load lead"})
		return
	}
	if lead == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}
	c.JSON(http.StatusOK, toLeadResponse(lead))
}

func (h *FormHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, forms.ErrUnknownProvider), errors.Is(err, forms.ErrInactiveProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrMissingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.WithContext(logging.ChannelHTTP, c.Request.Context()).Error("Form request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toLeadResponse(l *forms.Lead) LeadResponse {
	return LeadResponse{
		ID:          l.ID,
		Provider:    l.Provider,
		FormID:      l.FormID,
		Attribution: l.Attribution,
		CreatedAt:   l.CreatedAt,
	}
}

// bindSubmission reads a JSON body or a url-encoded/multipart form. Only the
// first value of a repeated form field is kept.
func bindSubmission(c *gin.Context) (*SubmitRequest, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		if req.Fields == nil {
			req.Fields = map[string]string{}
		}
		return &req, nil
	}

	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	req := &SubmitRequest{Fields: make(map[string]string, len(c.Request.PostForm))}
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			req.Fields[key] = values[0]
		}
	}
	req.URL = c.Query("url")
	req.Gtag = c.Query("gtag") == "1"
	return req, nil
}

// pageURL prefers an explicit page url and falls back to the Referer header,
// which is the page the form was posted from.
func pageURL(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.GetHeader("Referer")
}
