// Package pii detects personal data pushed into the event queue.
package pii

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Keys are the field names treated as personal data, compared lowercased.
var Keys = []string{
	"email", "phone", "firstname", "lastname",
	"first_name", "last_name", "customeremail", "customer_email",
}

var keySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Keys))
	for _, k := range Keys {
		m[k] = struct{}{}
	}
	return m
}()

// Scan reports whether any value in snapshot sits under a PII key and
// stringifies to more than two characters. snapshot is normalised through
// JSON first, so structs and typed maps are walked like plain objects.
func Scan(snapshot any) bool {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return false
	}
	var normalised any
	if err := json.Unmarshal(data, &normalised); err != nil {
		return false
	}
	return walk(normalised)
}

func walk(v any) bool {
	switch node := v.(type) {
	case map[string]any:
		for key, value := range node {
			switch value.(type) {
			case map[string]any, []any:
				if walk(value) {
					return true
				}
				continue
			}
			if _, ok := keySet[strings.ToLower(key)]; ok && looksLikePII(value) {
				return true
			}
		}
	case []any:
		for _, item := range node {
			if walk(item) {
				return true
			}
		}
	}
	return false
}

// looksLikePII rejects empty, zero and false values, then checks the
// stringified length.
func looksLikePII(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && len(strconv.FormatFloat(val, 'f', -1, 64)) > 2
	case string:
		return len(val) > 2
	}
	return false
}

// Reporter forwards a PII risk to the site's reporting endpoint.
type Reporter interface {
	ReportRisk(ctx context.Context, pageURL string)
}

// Result describes one scan.
type Result struct {
	Found    bool
	Reported bool
}

// Scanner scans a page's events and reports findings when allowed.
type Scanner struct {
	reporter Reporter
	logger   *slog.Logger
}

// NewScanner builds a scanner. A nil reporter disables reporting.
func NewScanner(reporter Reporter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{reporter: reporter, logger: logger}
}

// Check scans snapshot. A finding is only reported when marketing consent has
// been given, whatever the gating setting.
func (s *Scanner) Check(ctx context.Context, snapshot any, marketingGranted bool, pageURL string) Result {
	if !Scan(snapshot) {
		return Result{}
	}
	if !marketingGranted {
		s.logger.Warn("PII detected but logging blocked until user grants marketing consent", "pageUrl", pageURL)
		return Result{Found: true}
	}
	s.logger.Warn("PII detected in data layer", "pageUrl", pageURL)
	if s.reporter == nil {
		return Result{Found: true}
	}
	s.reporter.ReportRisk(ctx, pageURL)
	return Result{Found: true, Reported: true}
}
