package events

import (
	"strings"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/attribution"
)

// Touch prefixes used in flattened payloads.
const (
	PrefixFirstTouch = "ft_"
	PrefixLastTouch  = "lt_"
)

var utmNames = map[string]string{
	"utm_source":   "source",
	"utm_medium":   "medium",
	"utm_campaign": "campaign",
	"utm_term":     "term",
	"utm_content":  "content",
}

// touchFieldOrder lists the touch fields that make up a flattened touch.
var touchFieldOrder = append(append([]string{}, attribution.CaptureParams...),
	attribution.KeyReferrer, attribution.KeyLandingPage, attribution.KeyTimestamp)

// MapKey returns the flattened name of a touch field.
func MapKey(key string) string {
	if mapped, ok := utmNames[key]; ok {
		return mapped
	}
	return key
}

// FlatKeys is the fixed, ordered key set of every flattened payload.
var FlatKeys = func() []string {
	keys := make([]string, 0, 2*len(touchFieldOrder))
	for _, prefix := range []string{PrefixFirstTouch, PrefixLastTouch} {
		for _, field := range touchFieldOrder {
			keys = append(keys, prefix+MapKey(field))
		}
	}
	return keys
}()

var flatKeyFields = func() map[string]string {
	m := make(map[string]string, len(FlatKeys))
	for _, field := range touchFieldOrder {
		m[MapKey(field)] = field
	}
	return m
}()

// Payload is a flattened attribution record.
type Payload map[string]string

// Flatten turns r into the fixed-shape payload. Every key in FlatKeys is
// present; fields the record lacks are "". A nil record yields all defaults.
func Flatten(r *attribution.Record) Payload {
	flat := make(Payload, len(FlatKeys))
	for _, key := range FlatKeys {
		flat[key] = ""
	}
	if r == nil {
		return flat
	}
	assign := func(prefix string, t attribution.Touch) {
		for _, field := range touchFieldOrder {
			flat[prefix+MapKey(field)] = t.Get(field)
		}
	}
	assign(PrefixFirstTouch, r.FirstTouch)
	assign(PrefixLastTouch, r.LastTouch)
	return flat
}

// Unflatten rebuilds a record from flattened values. Unknown keys are ignored.
// The record's session count is left at zero for the caller to fill.
func Unflatten(values map[string]string) *attribution.Record {
	first := make(map[string]string)
	last := make(map[string]string)
	for key, value := range values {
		target := first
		name, ok := strings.CutPrefix(key, PrefixFirstTouch)
		if !ok {
			target = last
			if name, ok = strings.CutPrefix(key, PrefixLastTouch); !ok {
				continue
			}
		}
		if field, ok := flatKeyFields[name]; ok {
			target[field] = value
		}
	}
	return &attribution.Record{
		FirstTouch: attribution.NewTouch(first),
		LastTouch:  attribution.NewTouch(last),
	}
}
