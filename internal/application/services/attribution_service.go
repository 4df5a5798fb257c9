// Package services provides application-level orchestration services
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/consent"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/page"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/pii"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/caching/pages"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/metrics"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/storage"
	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
)

var (
	ErrMissingURL    = errors.New("page url is required")
	ErrPageNotFound  = errors.New("page not found or expired")
	ErrUnknownSignal = errors.New("unknown consent signal")
)

// CollectRequest describes one page load as reported by the tag.
type CollectRequest struct {
	URL      string
	Referrer string
	Cookies  []*http.Cookie
	Storage  map[string]string

	// DataLayer holds the entries already on the page's queue before the tag ran.
	DataLayer []events.Event
	Tagger    events.Tagger
}

// CollectResult is what the tag must apply after a collect or consent call.
type CollectResult struct {
	PageID      string
	Outcome     consent.Outcome
	Attribution *attribution.Record
	DataLayer   []events.Event
	Cookies     []*http.Cookie
	Storage     map[string]string
	PIIFound    bool
}

// TagConfig is the browser-side configuration object.
type TagConfig struct {
	CookieName     string `json:"cookieName"`
	CookieDays     int    `json:"cookieDays"`
	RequireConsent bool   `json:"requireConsent"`
	AjaxURL        string `json:"ajaxUrl"`
	Nonce          string `json:"nonce,omitempty"`
}

// NonceSource issues nonces for an action.
type NonceSource interface {
	Issue(action string) (string, error)
}

// PageSession ties a page to the storage channels it was opened with.
type PageSession struct {
	Page    *page.Page
	Jar     *storage.CookieJar
	KV      *storage.MemoryStore
	Manager *storage.Manager

	seeded int

	mu       sync.Mutex
	ctx      context.Context
	runs     int
	piiFound bool
}

func (s *PageSession) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *PageSession) setContext(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
}

// Runs returns how many times capture has run on the page.
func (s *PageSession) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Emitted returns the queue entries pushed after the page was opened.
func (s *PageSession) Emitted() []events.Event {
	return s.Page.Queue.Since(s.seeded)
}

func (s *PageSession) result(outcome consent.Outcome) *CollectResult {
	s.mu.Lock()
	found := s.piiFound
	s.mu.Unlock()
	return &CollectResult{
		PageID:      s.Page.ID,
		Outcome:     outcome,
		Attribution: s.Page.Attribution(),
		DataLayer:   s.Emitted(),
		Cookies:     s.Jar.Written(),
		Storage:     s.KV.Changes(),
		PIIFound:    found,
	}
}

// AttributionService runs the capture pipeline for each page load: consent
// gate, extraction, storage read, resolve, storage write, page-view event and
// PII scan.
type AttributionService struct {
	cfg       config.Attribution
	scanner   *pii.Scanner
	pending   *pages.Store[*PageSession]
	publisher messaging.Publisher
	nonces    NonceSource
	metrics   *metrics.Metrics
	logger    *logging.ChanneledLogger
	now       func() time.Time
}

// NewAttributionService creates the pipeline. publisher and nonces may be nil.
func NewAttributionService(
	cfg config.Attribution,
	scanner *pii.Scanner,
	pending *pages.Store[*PageSession],
	publisher messaging.Publisher,
	nonces NonceSource,
	m *metrics.Metrics,
	logger *logging.ChanneledLogger,
) *AttributionService {
	return &AttributionService{
		cfg:       cfg,
		scanner:   scanner,
		pending:   pending,
		publisher: publisher,
		nonces:    nonces,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// TagConfig returns the tag options with a fresh PII reporting nonce.
func (s *AttributionService) TagConfig() (*TagConfig, error) {
	cfg := &TagConfig{
		CookieName:     s.cfg.CookieName,
		CookieDays:     s.cfg.CookieDays,
		RequireConsent: s.cfg.RequireConsent,
		AjaxURL:        s.cfg.AjaxURL,
	}
	if s.nonces == nil {
		return cfg, nil
	}
	nonce, err := s.nonces.Issue(security.NonceAction)
	if err != nil {
		return nil, err
	}
	cfg.Nonce = nonce
	return cfg, nil
}

// Open builds the page for req with its storage channels. Nothing is read
// from storage yet.
func (s *AttributionService) Open(ctx context.Context, req CollectRequest) (*PageSession, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, ErrMissingURL
	}

	jar := storage.NewCookieJar(req.Cookies, storage.DefaultCookieOptions(s.cfg.CookieDays), s.now)
	kv := storage.NewMemoryStore(req.Storage)
	p := page.New(page.Options{
		ID:        security.GenerateULID(),
		URL:       req.URL,
		Referrer:  req.Referrer,
		Cookies:   jar,
		Tagger:    req.Tagger,
		CreatedAt: s.now().UTC(),
	})
	for _, e := range req.DataLayer {
		p.Queue.Push(e)
	}
	if s.publisher != nil {
		p.Queue.Subscribe(func(e events.Event) { s.publisher.Publish(p.ID, e) })
	}

	manager := storage.NewManager(s.cfg.CookieName, s.logger, jar, kv)
	manager.OnReadFailure(func(backend string) {
		s.metrics.StorageReadFailures.WithLabelValues(backend).Inc()
	})

	sess := &PageSession{
		Page:    p,
		Jar:     jar,
		KV:      kv,
		Manager: manager,
		seeded:  len(req.DataLayer),
		ctx:     ctx,
	}
	return sess, nil
}

// Collect runs the pipeline for a page load. When consent is required and not
// yet given the page is parked until DeliverConsent grants it.
func (s *AttributionService) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	start := time.Now()

	sess, err := s.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	p := sess.Page

	gate := consent.NewGate(s.cfg.RequireConsent, p, p.Signals)
	outcome := gate.Evaluate(func() { s.run(sess.context(), sess) })
	if outcome == consent.Pending {
		s.pending.Put(p.ID, sess)
		s.logger.Consent().Debug("Capture waiting for marketing consent", "pageId", p.ID)
	}

	s.metrics.ObserveCollect(outcome.String(), start)
	return sess.result(outcome), nil
}

// DeliverConsent raises a consent signal on a parked page. A nil detail is a
// bare signal: nothing is recorded and the page keeps reading the consent
// cookie.
func (s *AttributionService) DeliverConsent(ctx context.Context, pageID, signal string, detail *consent.Decision) (*CollectResult, error) {
	if signal != consent.SignalUpdated && signal != consent.SignalGranted {
		return nil, ErrUnknownSignal
	}
	sess, ok := s.pending.Get(pageID)
	if !ok {
		return nil, ErrPageNotFound
	}

	var decision consent.Decision
	if detail != nil {
		decision = *detail
		sess.Page.RecordDecision(decision)
	}
	sess.setContext(ctx)
	listeners := sess.Page.Signals.Emit(signal, decision)
	s.metrics.ConsentSignals.WithLabelValues(signal).Inc()

	s.logger.Consent().Debug("Consent signal delivered",
		"pageId", pageID, "signal", signal, "hasDetail", detail != nil, "marketing", decision.Marketing, "listeners", listeners)

	if sess.Runs() == 0 {
		return sess.result(consent.Pending), nil
	}
	s.pending.Delete(pageID)
	return sess.result(consent.Granted), nil
}

// run is the capture step. It is not idempotent: running it twice on the
// same page merges the same touch twice.
func (s *AttributionService) run(ctx context.Context, sess *PageSession) {
	p := sess.Page

	candidate := attribution.Extract(p.URL, p.Referrer, p.InternalHost)
	existing := sess.Manager.Load()
	res := attribution.Resolve(candidate, existing, p.URL, s.now().UTC())

	if res.Changed {
		if err := sess.Manager.Save(res.Record); err != nil {
			s.logger.Storage().Warn("Attribution record not fully persisted", "pageId", p.ID, "error", err.Error())
		}
		s.metrics.TouchesCaptured.Inc()
		s.logger.Attribution().Debug("Touch captured",
			"pageId", p.ID, "params", candidate.Len(), "sessionCount", res.Record.SessionCount)
	} else {
		s.logger.Attribution().Debug("No qualifying touch", "pageId", p.ID)
	}

	p.SetAttribution(res.Record)
	p.Bridge.EmitPageView(res.Record)

	granted := p.MarketingGranted()
	scan := s.scanner.Check(ctx, p.Queue.Snapshot(), granted, p.URL)
	if scan.Found {
		action := "blocked"
		if scan.Reported {
			action = "reported"
		} else if granted {
			action = "detected"
		}
		s.metrics.PIIDetections.WithLabelValues(action).Inc()
	}

	sess.mu.Lock()
	sess.runs++
	sess.piiFound = sess.piiFound || scan.Found
	sess.mu.Unlock()
}
