// Package page holds the runtime state owned by a single page load.
package page

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/consent"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
)

// CookieReader reads request cookies by name, already decoded.
type CookieReader interface {
	Read(key string) (string, bool)
}

// Options describes a page load.
type Options struct {
	ID           string
	URL          string
	Referrer     string
	InternalHost string
	Cookies      CookieReader
	Tagger       events.Tagger
	CreatedAt    time.Time
}

// Page is the process-wide state of one page load: its event queue, consent
// signal bus and the live attribution record.
type Page struct {
	ID           string
	URL          string
	Referrer     string
	InternalHost string
	CreatedAt    time.Time

	Queue   *events.DataLayer
	Signals *consent.Signals
	Bridge  *events.Bridge

	cookies CookieReader

	mu          sync.RWMutex
	attribution *attribution.Record
	decision    *consent.Decision
}

// New creates a page. InternalHost defaults to the host of URL.
func New(opts Options) *Page {
	if opts.InternalHost == "" {
		opts.InternalHost = attribution.HostOf(opts.URL)
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = time.Now().UTC()
	}
	queue := events.NewDataLayer()
	return &Page{
		ID:           opts.ID,
		URL:          opts.URL,
		Referrer:     opts.Referrer,
		InternalHost: opts.InternalHost,
		CreatedAt:    opts.CreatedAt,
		Queue:        queue,
		Signals:      consent.NewSignals(),
		Bridge:       events.NewBridge(queue, opts.Tagger),
		cookies:      opts.Cookies,
	}
}

// Attribution returns the live record, or nil before the first resolve.
func (p *Page) Attribution() *attribution.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attribution
}

// SetAttribution replaces the live record.
func (p *Page) SetAttribution(r *attribution.Record) {
	p.mu.Lock()
	p.attribution = r
	p.mu.Unlock()
}

// Decision returns the visitor's consent decision. A decision recorded with
// RecordDecision takes precedence over the consent cookie. An unreadable
// cookie counts as undecided.
func (p *Page) Decision() *consent.Decision {
	p.mu.RLock()
	d := p.decision
	p.mu.RUnlock()
	if d != nil {
		return d
	}
	if p.cookies == nil {
		return nil
	}
	raw, ok := p.cookies.Read(consent.CookieName)
	if !ok {
		return nil
	}
	parsed, err := consent.Parse(raw)
	if err != nil {
		return nil
	}
	return parsed
}

// RecordDecision stores the decision carried by a consent signal.
func (p *Page) RecordDecision(d consent.Decision) {
	p.mu.Lock()
	p.decision = &d
	p.mu.Unlock()
}

// MarketingGranted reports whether the current decision allows marketing.
func (p *Page) MarketingGranted() bool {
	return consent.IsGranted(p.Decision())
}

type contextKey struct{}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p *Page) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the page carried by ctx, or nil.
func FromContext(ctx context.Context) *Page {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(contextKey{}).(*Page)
	return p
}
