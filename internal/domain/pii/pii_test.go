package pii

import (
	"context"
	"testing"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
)

type countingReporter struct {
	calls []string
}

func (c *countingReporter) ReportRisk(_ context.Context, pageURL string) {
	c.calls = append(c.calls, pageURL)
}

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"email", []events.Event{{"name": "x", "email": "a@b.com"}}, true},
		{"uppercase key", map[string]any{"Customer_Email": "a@b.com"}, true},
		{"camel case key", map[string]any{"customerEmail": "a@b.com"}, true},
		{"nested", []any{map[string]any{"user": map[string]any{"phone": "5551234"}}}, true},
		{"inside array", map[string]any{"items": []any{map[string]any{"last_name": "Doe"}}}, true},
		{"too short", map[string]any{"email": "ab"}, false},
		{"empty", map[string]any{"email": ""}, false},
		{"number", map[string]any{"phone": 5551234}, true},
		{"short number", map[string]any{"phone": 12}, false},
		{"false", map[string]any{"email": false}, false},
		{"true", map[string]any{"email": true}, true},
		{"null", map[string]any{"email": nil}, false},
		{"object under pii key is walked", map[string]any{"email": map[string]any{"domain": "b.com"}}, false},
		{"other keys", map[string]any{"event": "ct_page_view", "name": "Jane Doe"}, false},
		{"nothing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scan(tt.in); got != tt.want {
				t.Fatalf("Scan(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheckWithoutConsentDoesNotReport(t *testing.T) {
	reporter := &countingReporter{}
	s := NewScanner(reporter, nil)
	snapshot := []events.Event{{"name": "x", "email": "a@b.com"}}

	res := s.Check(context.Background(), snapshot, false, "https://shop.test/")
	if !res.Found || res.Reported {
		t.Fatalf("result = %+v", res)
	}
	if len(reporter.calls) != 0 {
		t.Fatalf("no network call expected, got %d", len(reporter.calls))
	}
}

func TestCheckWithConsentReports(t *testing.T) {
	reporter := &countingReporter{}
	s := NewScanner(reporter, nil)

	res := s.Check(context.Background(), []events.Event{{"email": "a@b.com"}}, true, "https://shop.test/")
	if !res.Found || !res.Reported {
		t.Fatalf("result = %+v", res)
	}
	if len(reporter.calls) != 1 || reporter.calls[0] != "https://shop.test/" {
		t.Fatalf("calls = %v", reporter.calls)
	}
}

func TestCheckWithoutReporter(t *testing.T) {
	res := NewScanner(nil, nil).Check(context.Background(), map[string]any{"email": "a@b.com"}, true, "")
	if !res.Found || res.Reported {
		t.Fatalf("result = %+v", res)
	}
}

func TestCheckClean(t *testing.T) {
	reporter := &countingReporter{}
	res := NewScanner(reporter, nil).Check(context.Background(), []events.Event{{"event": "ct_page_view"}}, true, "")
	if res.Found || len(reporter.calls) != 0 {
		t.Fatalf("result = %+v", res)
	}
}
