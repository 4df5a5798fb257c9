// Package forms connects form platforms to attribution: adapters render hidden
// attribution fields into forms and turn submissions into lead events.
package forms

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/domain/page"
)

// FieldPrefix namespaces hidden attribution fields inside host forms.
const FieldPrefix = "ct_"

// SessionCountField carries the record's session count alongside the flat keys.
const SessionCountField = "session_count"

// FieldMapping is every attribution key a form may carry.
var FieldMapping = append(append([]string{}, events.FlatKeys...), SessionCountField)

// FieldName returns the hidden field name for an attribution key.
func FieldName(key string) string {
	return FieldPrefix + key
}

// HiddenFields maps hidden field names to values.
type HiddenFields map[string]string

// Submission is a posted form as the platform hands it over.
type Submission struct {
	// FormID overrides the id the adapter would read from Fields.
	FormID string
	Fields map[string]string

	// Lead is set once the submission has been recorded.
	Lead *Lead
}

// Lead is a recorded form submission with its attribution snapshot.
type Lead struct {
	ID          string
	Provider    string
	FormID      string
	Attribution *attribution.Record
	CreatedAt   time.Time
}

// LeadRecorder persists leads. Implementations assign ID and CreatedAt.
type LeadRecorder interface {
	RecordLead(ctx context.Context, lead *Lead) error
}

// Adapter integrates one form platform.
type Adapter interface {
	Provider() string
	PlatformName() string
	IsActive() bool
	RegisterHooks(h *Hooks)

	// FieldsHook and SubmitHook name the platform hooks the adapter binds.
	FieldsHook() string
	SubmitHook() string

	PopulateFields(ctx context.Context, fields HiddenFields) HiddenFields
	OnSubmission(ctx context.Context, sub *Submission)
}

// Settings are shared by every adapter.
type Settings struct {
	RequireConsent bool
	Recorder       LeadRecorder
	Logger         *slog.Logger
}

// base carries the behaviour common to all adapters. Platform differences are
// the hook names, how hidden fields come back in a post, and where the form id
// lives.
type base struct {
	provider   string
	platform   string
	fieldsHook string
	submitHook string

	env      Environment
	settings Settings

	postedNames func(field string) []string
	formID      func(sub *Submission) string
}

func (b *base) Provider() string     { return b.provider }
func (b *base) PlatformName() string { return b.platform }
func (b *base) FieldsHook() string   { return b.fieldsHook }
func (b *base) SubmitHook() string   { return b.submitHook }

func (b *base) IsActive() bool {
	return b.env != nil && b.env.HasPlatform(b.provider)
}

func (b *base) logger() *slog.Logger {
	if b.settings.Logger != nil {
		return b.settings.Logger
	}
	return slog.Default()
}

func (b *base) shouldPopulate(p *page.Page) bool {
	return !b.settings.RequireConsent || p.MarketingGranted()
}

// PopulateFields adds a hidden field for every attribution key. Without a page
// or without consent when consent is required, fields are returned untouched.
func (b *base) PopulateFields(ctx context.Context, fields HiddenFields) HiddenFields {
	p := page.FromContext(ctx)
	if p == nil || !b.shouldPopulate(p) {
		return fields
	}

	out := make(HiddenFields, len(fields)+len(FieldMapping))
	for k, v := range fields {
		out[k] = v
	}
	live := p.Attribution()
	for key, value := range events.Flatten(live) {
		out[FieldName(key)] = value
	}
	count := ""
	if live != nil {
		count = strconv.Itoa(live.SessionCount)
	}
	out[FieldName(SessionCountField)] = count
	return out
}

// OnSubmission emits a lead event for sub and records it. Attribution posted
// in hidden fields wins over the page's live record.
func (b *base) OnSubmission(ctx context.Context, sub *Submission) {
	if sub == nil {
		return
	}
	p := page.FromContext(ctx)
	if p == nil {
		return
	}

	record := b.postedAttribution(sub)
	source := "hidden_fields"
	if record == nil {
		record = p.Attribution()
		source = "live_record"
	}

	formID := sub.FormID
	if formID == "" && b.formID != nil {
		formID = b.formID(sub)
	}

	p.Bridge.EmitLead(b.provider, formID, record)
	b.logger().Debug("Lead event emitted", "provider", b.provider, "formId", formID, "source", source)

	if b.settings.Recorder == nil {
		return
	}
	lead := &Lead{Provider: b.provider, FormID: formID, Attribution: record.Clone()}
	if err := b.settings.Recorder.RecordLead(ctx, lead); err != nil {
		b.logger().Error("Failed to record lead", "provider", b.provider, "formId", formID, "error", err.Error())
		return
	}
	sub.Lead = lead
}

// postedAttribution rebuilds a record from the hidden fields in sub, or
// returns nil when the post carries none.
func (b *base) postedAttribution(sub *Submission) *attribution.Record {
	found := make(map[string]string)
	for _, key := range FieldMapping {
		for _, name := range b.names(FieldName(key)) {
			if v, ok := sub.Fields[name]; ok {
				found[key] = strings.TrimSpace(v)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	record := events.Unflatten(found)
	record.SessionCount = 1
	if n, err := strconv.Atoi(found[SessionCountField]); err == nil && n > 0 {
		record.SessionCount = n
	}
	return record
}

func (b *base) names(field string) []string {
	if b.postedNames == nil {
		return []string{field}
	}
	return b.postedNames(field)
}

// RegisterHooks binds PopulateFields and OnSubmission to the platform hooks.
func (b *base) RegisterHooks(h *Hooks) {
	h.AddFilter(b.fieldsHook, b.PopulateFields)
	h.AddAction(b.submitHook, b.OnSubmission)
}

// firstField returns the first non-empty value among keys.
func firstField(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(fields[key]); v != "" {
			return v
		}
	}
	return ""
}
