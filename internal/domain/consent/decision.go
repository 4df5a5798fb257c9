// Package consent reads visitor consent decisions and gates capture on them.
package consent

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// CookieName is the cookie that carries the visitor's consent decision.
const CookieName = "ct_consent"

// Signal names raised by consent management platforms.
const (
	SignalUpdated = "ct_consent_updated"
	SignalGranted = "consent_granted"
)

// Decision is a visitor's consent choice. Categories other than marketing are
// kept verbatim in Other.
type Decision struct {
	Marketing bool
	Other     map[string]any
}

// MarshalJSON flattens the decision back into a single object.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Other)+1)
	for k, v := range d.Other {
		out[k] = v
	}
	out["marketing"] = d.Marketing
	return json.Marshal(out)
}

// UnmarshalJSON reads {marketing: bool, ...}. A non-boolean marketing value is
// treated as not granted.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("consent decision is null")
	}
	marketing, _ := raw["marketing"].(bool)
	delete(raw, "marketing")
	*d = Decision{Marketing: marketing, Other: raw}
	return nil
}

// Parse decodes a stored decision. The value may be percent-encoded.
func Parse(raw string) (*Decision, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty consent value")
	}
	if !strings.HasPrefix(raw, "{") {
		if unescaped, err := url.QueryUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("parse consent decision: %w", err)
	}
	return &d, nil
}

// Source returns the current decision, or nil when the visitor has not decided.
type Source interface {
	Decision() *Decision
}

// IsGranted reports whether d allows marketing capture.
func IsGranted(d *Decision) bool {
	return d != nil && d.Marketing
}
