package consent

import "sync"

// Outcome reports how the gate handled a capture request.
type Outcome int

const (
	// Granted means capture ran synchronously inside Evaluate.
	Granted Outcome = iota
	// Pending means capture is parked until a granting signal arrives.
	Pending
)

func (o Outcome) String() string {
	if o == Granted {
		return "granted"
	}
	return "pending"
}

// Gate decides whether capture may run now or must wait for consent.
type Gate struct {
	required bool
	source   Source
	signals  *Signals
}

// NewGate builds a gate. When required is false the gate always grants.
func NewGate(required bool, source Source, signals *Signals) *Gate {
	return &Gate{required: required, source: source, signals: signals}
}

// Evaluate runs fn immediately when consent is not required or marketing
// consent has already been given. Otherwise it subscribes to both consent
// signals and runs fn once, on the first signal granting marketing, after
// removing its listeners. There is no timeout.
func (g *Gate) Evaluate(fn func()) Outcome {
	if !g.required {
		fn()
		return Granted
	}

	if g.source != nil && IsGranted(g.source.Decision()) {
		fn()
		return Granted
	}

	var (
		once sync.Once
		offs []func()
	)
	listener := func(d Decision) {
		if !d.Marketing {
			return
		}
		once.Do(func() {
			for _, off := range offs {
				off()
			}
			fn()
		})
	}
	offs = append(offs,
		g.signals.On(SignalUpdated, listener),
		g.signals.On(SignalGranted, listener),
	)

	return Pending
}
