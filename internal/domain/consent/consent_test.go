package consent

import (
	"encoding/json"
	"net/url"
	"testing"
)

type staticSource struct{ d *Decision }

func (s staticSource) Decision() *Decision { return s.d }

func TestGateNotRequiredRunsImmediately(t *testing.T) {
	signals := NewSignals()
	runs := 0

	outcome := NewGate(false, staticSource{}, signals).Evaluate(func() { runs++ })
	if outcome != Granted || runs != 1 {
		t.Fatalf("outcome=%v runs=%d, want granted/1", outcome, runs)
	}
	if signals.Count(SignalUpdated)+signals.Count(SignalGranted) != 0 {
		t.Fatal("expected no listeners")
	}
}

func TestGateExistingDecision(t *testing.T) {
	runs := 0
	outcome := NewGate(true, staticSource{d: &Decision{Marketing: true}}, NewSignals()).Evaluate(func() { runs++ })
	if outcome != Granted || runs != 1 {
		t.Fatalf("outcome=%v runs=%d, want granted/1", outcome, runs)
	}
}

func TestGateWaitsForMarketingSignalAndFiresOnce(t *testing.T) {
	signals := NewSignals()
	runs := 0

	outcome := NewGate(true, staticSource{}, signals).Evaluate(func() { runs++ })
	if outcome != Pending {
		t.Fatalf("outcome = %v, want pending", outcome)
	}
	if runs != 0 {
		t.Fatal("capture ran before consent")
	}

	signals.Emit(SignalUpdated, Decision{Marketing: false})
	if runs != 0 {
		t.Fatal("capture ran on a denying signal")
	}
	if signals.Count(SignalUpdated) != 1 || signals.Count(SignalGranted) != 1 {
		t.Fatal("listeners removed before grant")
	}

	signals.Emit(SignalGranted, Decision{Marketing: true})
	if runs != 1 {
		t.Fatalf("runs = %d after grant, want 1", runs)
	}
	if signals.Count(SignalUpdated)+signals.Count(SignalGranted) != 0 {
		t.Fatal("listeners still registered after grant")
	}

	signals.Emit(SignalUpdated, Decision{Marketing: true})
	signals.Emit(SignalGranted, Decision{Marketing: true})
	if runs != 1 {
		t.Fatalf("runs = %d after further signals, want 1", runs)
	}
}

func TestGateDeniedDecisionStillWaits(t *testing.T) {
	signals := NewSignals()
	runs := 0
	outcome := NewGate(true, staticSource{d: &Decision{Marketing: false}}, signals).Evaluate(func() { runs++ })
	if outcome != Pending || runs != 0 {
		t.Fatalf("outcome=%v runs=%d, want pending/0", outcome, runs)
	}
}

func TestParseDecision(t *testing.T) {
	raw := `{"marketing":true,"analytics":false}`

	tests := []struct {
		name  string
		value string
		ok    bool
		want  bool
	}{
		{name: "raw json", value: raw, ok: true, want: true},
		{name: "percent encoded", value: url.QueryEscape(raw), ok: true, want: true},
		{name: "marketing not bool", value: `{"marketing":"yes"}`, ok: true, want: false},
		{name: "garbage", value: "{oops", ok: false},
		{name: "null", value: "null", ok: false},
		{name: "empty", value: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.value)
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if d.Marketing != tt.want {
				t.Fatalf("marketing = %v, want %v", d.Marketing, tt.want)
			}
		})
	}
}

func TestDecisionKeepsOtherCategories(t *testing.T) {
	d, err := Parse(`{"marketing":true,"analytics":false}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["analytics"] != false || out["marketing"] != true {
		t.Fatalf("unexpected round trip: %v", out)
	}
}

func TestIsGranted(t *testing.T) {
	tests := []struct {
		name string
		d    *Decision
		want bool
	}{
		{name: "undecided", d: nil, want: false},
		{name: "denied", d: &Decision{Marketing: false}, want: false},
		{name: "granted", d: &Decision{Marketing: true}, want: true},
	}
	for _, tt := range tests {
		if got := IsGranted(tt.d); got != tt.want {
			t.Fatalf("%s: IsGranted = %v, want %v", tt.name, got, tt.want)
		}
	}
	if Granted.String() != "granted" || Pending.String() != "pending" {
		t.Fatalf("outcome names = %q, %q", Granted, Pending)
	}
}
