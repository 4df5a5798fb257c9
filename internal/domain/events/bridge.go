package events

import "github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"

// Tagger is a global analytics reporting function (gtag-style) that accepts
// an event name and its parameters.
type Tagger interface {
	Event(name string, params map[string]any)
}

// TaggerFunc adapts a plain function to Tagger.
type TaggerFunc func(name string, params map[string]any)

func (f TaggerFunc) Event(name string, params map[string]any) { f(name, params) }

// Bridge pushes attribution events onto a page's queue.
type Bridge struct {
	queue  *DataLayer
	tagger Tagger
}

// NewBridge creates a bridge writing to queue. tagger may be nil.
func NewBridge(queue *DataLayer, tagger Tagger) *Bridge {
	return &Bridge{queue: queue, tagger: tagger}
}

// EmitPageView pushes the page-view event carrying the full record, which may be nil.
func (b *Bridge) EmitPageView(r *attribution.Record) {
	b.queue.Push(Event{
		"event":          EventPageView,
		"ct_attribution": r.Clone(),
	})
}

// EmitLead pushes the flattened lead event followed by the legacy ct_lead
// shape, and forwards the flattened event to the tagger when one is attached.
func (b *Bridge) EmitLead(provider, formID string, r *attribution.Record) {
	payload := LeadPayload(provider, formID, r)
	b.queue.Push(payload)

	b.queue.Push(Event{
		"event":          EventLegacyLead,
		"form_provider":  provider,
		"form_id":        formID,
		"ct_attribution": r.Clone(),
	})

	if b.tagger != nil {
		params := make(map[string]any, len(payload)-1)
		for k, v := range payload {
			if k != "event" {
				params[k] = v
			}
		}
		b.tagger.Event(payload.Name(), params)
	}
}

// LeadPayload builds the canonical flattened lead event.
func LeadPayload(provider, formID string, r *attribution.Record) Event {
	flat := Flatten(r)
	payload := make(Event, len(flat)+3)
	payload["event"] = EventLead
	payload["form_provider"] = provider
	payload["form_id"] = formID
	for k, v := range flat {
		payload[k] = v
	}
	return payload
}
