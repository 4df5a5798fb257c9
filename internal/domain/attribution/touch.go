// Package attribution defines touches, attribution records and the rules that
// turn a page visit into first-touch/last-touch attribution.
package attribution

import (
	"encoding/json"
	"fmt"
)

// Touch metadata keys. These are not capture parameters; the resolver stamps
// them onto a touch once it qualifies.
const (
	KeyReferrer    = "referrer"
	KeyTimestamp   = "timestamp"
	KeyLandingPage = "landing_page"
)

// TimestampLayout is the ISO-8601 layout used for touch timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// CaptureParams is the ordered allow-list of query parameters worth keeping.
var CaptureParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "wbraid", "gbraid", "msclkid", "ttclid", "twclid", "sc_click_id", "epik",
}

var captureSet = func() map[string]bool {
	set := make(map[string]bool, len(CaptureParams))
	for _, p := range CaptureParams {
		set[p] = true
	}
	return set
}()

// IsCaptureParam reports whether name is on the capture allow-list.
func IsCaptureParam(name string) bool {
	return captureSet[name]
}

// Touch is an immutable set of marketing signals observed on one visit.
// The zero value is an empty touch.
type Touch struct {
	fields map[string]string
}

// NewTouch copies fields into a new Touch. Empty values are dropped.
func NewTouch(fields map[string]string) Touch {
	t := Touch{fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		if v != "" {
			t.fields[k] = v
		}
	}
	return t
}

// Get returns the value stored under key, or "".
func (t Touch) Get(key string) string {
	return t.fields[key]
}

// Has reports whether key carries a value.
func (t Touch) Has(key string) bool {
	_, ok := t.fields[key]
	return ok
}

// Len returns the number of populated fields.
func (t Touch) Len() int {
	return len(t.fields)
}

// IsZero reports whether the touch carries no fields at all.
func (t Touch) IsZero() bool {
	return len(t.fields) == 0
}

// Fields returns a copy of the underlying mapping.
func (t Touch) Fields() map[string]string {
	out := make(map[string]string, len(t.fields))
	for k, v := range t.fields {
		out[k] = v
	}
	return out
}

// With returns a copy of t with key set to value.
func (t Touch) With(key, value string) Touch {
	out := t.Fields()
	out[key] = value
	return NewTouch(out)
}

// HasCaptureParams reports whether at least one allow-listed parameter is present.
func (t Touch) HasCaptureParams() bool {
	for k := range t.fields {
		if captureSet[k] {
			return true
		}
	}
	return false
}

func (t Touch) Referrer() string { return t.fields[KeyReferrer] }

// Equal reports whether two touches carry identical fields.
func (t Touch) Equal(other Touch) bool {
	if len(t.fields) != len(other.fields) {
		return false
	}
	for k, v := range t.fields {
		if ov, ok := other.fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the touch as a flat object of strings.
func (t Touch) MarshalJSON() ([]byte, error) {
	if t.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.fields)
}

// UnmarshalJSON accepts a flat object. Scalar values are stringified and
// nested values are ignored, so records written by older tags still load.
func (t *Touch) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode touch: %w", err)
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64, bool:
			fields[k] = fmt.Sprint(val)
		}
	}
	*t = NewTouch(fields)
	return nil
}
