package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/container"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/forms"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
	"github.com/gin-gonic/gin"
)

const (
	pageURL    = "https://shop.test/landing?utm_source=google&utm_medium=cpc"
	adminToken = "admin-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *container.Container) {
	t.Helper()
	logger := logging.NewDiscardLogger()
	db, err := database.NewConnectionWithLogger(database.Options{Driver: "sqlite3", DSN: "file::memory:", MaxOpenConns: 1}, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.NewTableCreator().CreateSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}

	cfg := &config.Config{
		Attribution: config.Attribution{
			CookieName:     "ct_attribution",
			CookieDays:     90,
			RequireConsent: true,
			NonceSecret:    "test-secret",
			NonceTTL:       time.Hour,
		},
		Server: config.Server{AdminToken: adminToken},
		Forms:  config.Forms{Platforms: forms.Providers},
		Pages:  config.Pages{TTL: time.Minute, CleanupInterval: time.Minute},
	}
	c, err := container.NewContainer(cfg, logger, db)
	if err != nil {
		t.Fatalf("container: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return SetupRoutes(c), c
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := newJSONRequest(t, method, path, body)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return serve(t, r, req)
}

func doAdmin(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := newJSONRequest(t, method, path, body)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return serve(t, r, req)
}

func consentCookie() *http.Cookie {
	return &http.Cookie{Name: "ct_consent", Value: url.QueryEscape(`{"marketing":true,"analytics":false}`)}
}

func firstTouchSource(t *testing.T, body map[string]any) string {
	t.Helper()
	rec, ok := body["attribution"].(map[string]any)
	if !ok {
		t.Fatalf("no attribution in %v", body)
	}
	ft, _ := rec["first_touch"].(map[string]any)
	source, _ := ft["utm_source"].(string)
	return source
}

func TestCollectThenConsent(t *testing.T) {
	r, c := newRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/attribution/collect", gin.H{"url": pageURL, "storage": gin.H{}})
	if w.Code != http.StatusOK || body["status"] != "pending" {
		t.Fatalf("collect = %d %v", w.Code, body)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("pending collect must not set cookies")
	}
	pageID, _ := body["pageId"].(string)
	if c.PageStore.Len() != 1 {
		t.Fatalf("pending pages = %d", c.PageStore.Len())
	}

	w, body = doJSON(t, r, http.MethodPost, "/api/v1/attribution/consent", gin.H{
		"pageId": pageID,
		"event":  "consent_granted",
		"detail": gin.H{"marketing": true},
	})
	if w.Code != http.StatusOK || body["status"] != "granted" {
		t.Fatalf("consent = %d %v", w.Code, body)
	}
	if firstTouchSource(t, body) != "google" {
		t.Fatalf("attribution = %v", body["attribution"])
	}
	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "ct_attribution" {
			cookie = ck
		}
	}
	if cookie == nil || cookie.Path != "/" || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("attribution cookie = %+v", cookie)
	}
	storage, _ := body["storage"].(map[string]any)
	if _, ok := storage["ct_attribution"]; !ok {
		t.Fatalf("storage writes = %v", storage)
	}
	dataLayer, _ := body["dataLayer"].([]any)
	if len(dataLayer) != 1 {
		t.Fatalf("dataLayer = %v", dataLayer)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/attribution/consent", gin.H{"pageId": pageID, "event": "consent_granted"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("released page should be gone, got %d", w.Code)
	}
}

func TestCollectValidation(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{name: "missing url", path: "/api/v1/attribution/collect", body: gin.H{"referrer": "x"}, want: http.StatusBadRequest},
		{name: "blank url", path: "/api/v1/attribution/collect", body: gin.H{"url": " "}, want: http.StatusBadRequest},
		{name: "unknown signal", path: "/api/v1/attribution/consent", body: gin.H{"pageId": "p", "event": "banner_closed"}, want: http.StatusBadRequest},
		{name: "unknown page", path: "/api/v1/attribution/consent", body: gin.H{"pageId": "p", "event": "ct_consent_updated"}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w, body := doJSON(t, r, http.MethodPost, tt.path, tt.body); w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", w.Code, tt.want, body)
			}
		})
	}
}

func TestFormSubmissionRecordsLead(t *testing.T) {
	r, _ := newRouter(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/attribution/collect", gin.H{"url": pageURL}, consentCookie())
	if w.Code != http.StatusOK || body["status"] != "granted" {
		t.Fatalf("collect = %d %v", w.Code, body)
	}
	cookies := append(w.Result().Cookies(), consentCookie())

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/forms/gravity-forms/fields?url="+url.QueryEscape("https://shop.test/contact"), nil, cookies...)
	if w.Code != http.StatusOK {
		t.Fatalf("fields = %d %v", w.Code, body)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["ct_ft_source"] != "google" || fields["ct_session_count"] != "1" {
		t.Fatalf("fields = %v", fields)
	}

	form := url.Values{"_wpcf7": {"42"}, "your-email": {"a@b.c"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/contact-form-7/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "https://shop.test/contact")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d %s", w.Code, w.Body.String())
	}
	var submitted map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	leadID, _ := submitted["leadId"].(string)
	if leadID == "" {
		t.Fatalf("no lead id in %v", submitted)
	}
	events, _ := submitted["dataLayer"].([]any)
	if len(events) != 2 {
		t.Fatalf("dataLayer = %v", events)
	}
	first, _ := events[0].(map[string]any)
	if first["event"] != "lead_submit" || first["form_id"] != "42" || first["ft_source"] != "google" {
		t.Fatalf("lead event = %v", first)
	}

	w, body = doAdmin(t, r, http.MethodGet, "/api/v1/leads/"+leadID, nil)
	if w.Code != http.StatusOK || body["provider"] != forms.ProviderCF7 || firstTouchSource(t, body) != "google" {
		t.Fatalf("lead = %d %v", w.Code, body)
	}
	w, body = doAdmin(t, r, http.MethodGet, "/api/v1/leads?limit=5", nil)
	if w.Code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("leads = %d %v", w.Code, body)
	}
}

func TestFormSubmissionForwardsToGtag(t *testing.T) {
	r, _ := newRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/attribution/collect", gin.H{"url": pageURL}, consentCookie())
	cookies := append(w.Result().Cookies(), consentCookie())

	tests := []struct {
		name string
		gtag bool
		want int
	}{
		{name: "gtag present", gtag: true, want: 1},
		{name: "no gtag", gtag: false, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doJSON(t, r, http.MethodPost, "/api/v1/forms/contact-form-7/submit", gin.H{
				"url":    "https://shop.test/contact",
				"formId": "42",
				"fields": gin.H{"_wpcf7": "42"},
				"gtag":   tt.gtag,
			}, cookies...)
			if w.Code != http.StatusOK {
				t.Fatalf("submit = %d %v", w.Code, body)
			}
			calls, _ := body["gtag"].([]any)
			if len(calls) != tt.want {
				t.Fatalf("gtag = %v", body["gtag"])
			}
			if tt.want == 0 {
				return
			}
			call, _ := calls[0].(map[string]any)
			params, _ := call["params"].(map[string]any)
			if call["name"] != "lead_submit" || params["ft_source"] != "google" || params["event"] != nil {
				t.Fatalf("gtag call = %v", call)
			}
		})
	}
}

func TestFormProviders(t *testing.T) {
	r, _ := newRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/forms", nil)
	if w.Code != http.StatusOK || body["count"] != float64(len(forms.Providers)) {
		t.Fatalf("providers = %d %v", w.Code, body)
	}
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/forms/typeform/submit", gin.H{"url": pageURL, "fields": gin.H{}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown provider = %d", w.Code)
	}
	w, _ = doAdmin(t, r, http.MethodGet, "/api/v1/leads/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing lead = %d", w.Code)
	}
}

func postAjax(t *testing.T, r http.Handler, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ajax", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConfigNonceAuthorisesRiskReport(t *testing.T) {
	r, _ := newRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/attribution/config", nil)
	if w.Code != http.StatusOK || body["cookieName"] != "ct_attribution" || body["requireConsent"] != true {
		t.Fatalf("config = %d %v", w.Code, body)
	}
	nonce, _ := body["nonce"].(string)
	if nonce == "" {
		t.Fatal("config should carry a nonce")
	}

	if w := postAjax(t, r, map[string]string{"action": "ct_log_pii_risk", "pii_found": "true", "nonce": nonce}); w.Code != http.StatusOK {
		t.Fatalf("risk report = %d %s", w.Code, w.Body.String())
	}
	if w := postAjax(t, r, map[string]string{"action": "ct_log_pii_risk", "pii_found": "true", "nonce": "forged"}); w.Code != http.StatusForbidden {
		t.Fatalf("forged nonce = %d", w.Code)
	}
	if w := postAjax(t, r, map[string]string{"action": "heartbeat"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action = %d", w.Code)
	}

	w, body = doAdmin(t, r, http.MethodGet, "/api/v1/risks/summary", nil)
	if w.Code != http.StatusOK || body["lastDay"] != float64(1) {
		t.Fatalf("risk summary = %d %v", w.Code, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newRouter(t)

	w, body := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" || body["pendingPages"] != float64(0) {
		t.Fatalf("health = %d %v", w.Code, body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "clicktrail_http_requests_total") {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _ := newRouter(t)

	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/leads", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("leads without token = %d", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodGet, "/api/v1/logs/levels?token="+adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("query token = %d", w.Code)
	}

	w, body := doAdmin(t, r, http.MethodPost, "/api/v1/logs/levels", gin.H{"channel": "pii", "level": "debug"})
	if w.Code != http.StatusOK || body["level"] != "DEBUG" {
		t.Fatalf("set level = %d %v", w.Code, body)
	}
	w, body = doAdmin(t, r, http.MethodGet, "/api/v1/logs/levels", nil)
	if w.Code != http.StatusOK || body["pii"] != "DEBUG" {
		t.Fatalf("levels = %d %v", w.Code, body)
	}
	if w, _ := doAdmin(t, r, http.MethodPost, "/api/v1/logs/levels", gin.H{"channel": "pii", "level": "loud"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad level = %d", w.Code)
	}
	if w, _ := doAdmin(t, r, http.MethodGet, "/api/v1/logs/stream", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("stream without broadcaster = %d", w.Code)
	}
}

func collectWithCookieHeader(t *testing.T, r http.Handler, target, header string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := newJSONRequest(t, http.MethodPost, "/api/v1/attribution/collect", gin.H{"url": target})
	req.Header.Set("Cookie", header)
	return serve(t, r, req)
}

func TestRawJSONCookies(t *testing.T) {
	r, _ := newRouter(t)

	t.Run("consent cookie", func(t *testing.T) {
		w, body := collectWithCookieHeader(t, r, pageURL, `ct_consent={"marketing":true}`)
		if w.Code != http.StatusOK || body["status"] != "granted" {
			t.Fatalf("collect = %d %v", w.Code, body)
		}
		if firstTouchSource(t, body) != "google" {
			t.Fatalf("attribution = %v", body["attribution"])
		}
	})

	t.Run("legacy attribution cookie", func(t *testing.T) {
		stored := `{"first_touch":{"utm_source":"google","utm_medium":"cpc"},"last_touch":{"utm_source":"google","utm_medium":"cpc"},"session_count":2}`
		header := `ct_consent={"marketing":true}; attribution=` + stored

		w, body := collectWithCookieHeader(t, r, "https://shop.test/?utm_source=bing&utm_medium=cpc", header)
		if w.Code != http.StatusOK || body["status"] != "granted" {
			t.Fatalf("collect = %d %v", w.Code, body)
		}
		if got := firstTouchSource(t, body); got != "google" {
			t.Fatalf("first touch replaced by %q", got)
		}
		rec, _ := body["attribution"].(map[string]any)
		if rec["session_count"] != float64(3) {
			t.Fatalf("session_count = %v", rec["session_count"])
		}
		lt, _ := rec["last_touch"].(map[string]any)
		if lt["utm_source"] != "bing" {
			t.Fatalf("last touch = %v", lt)
		}
	})

	t.Run("form fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/forms/contact-form-7/fields?url="+url.QueryEscape("https://shop.test/contact"), nil)
		req.Header.Set("Cookie", `ct_consent={"marketing":true}; attribution={"first_touch":{"utm_source":"google"},"last_touch":{"utm_source":"google"},"session_count":4}`)
		w, body := serve(t, r, req)
		fields, _ := body["fields"].(map[string]any)
		if w.Code != http.StatusOK || fields["ct_ft_source"] != "google" || fields["ct_session_count"] != "4" {
			t.Fatalf("fields = %d %v", w.Code, body)
		}
	})
}
