// Package events owns the page's analytics event queue and the bridge that
// translates attribution into the events downstream tag managers consume.
package events

import "sync"

// Event names pushed onto the queue.
const (
	EventPageView   = "ct_page_view"
	EventLead       = "lead_submit"
	EventLegacyLead = "ct_lead"
)

// Event is a single queue entry. Values are JSON-encodable.
type Event map[string]any

// Name returns the entry's "event" field.
func (e Event) Name() string {
	name, _ := e["event"].(string)
	return name
}

// Subscriber observes every push. It runs synchronously on the pushing goroutine.
type Subscriber func(e Event)

// DataLayer is an ordered, append-only event queue.
type DataLayer struct {
	mu          sync.RWMutex
	entries     []Event
	subscribers []Subscriber
}

// NewDataLayer creates an empty queue.
func NewDataLayer() *DataLayer {
	return &DataLayer{}
}

// Push appends e and notifies subscribers.
func (d *DataLayer) Push(e Event) {
	d.mu.Lock()
	d.entries = append(d.entries, e)
	subs := append([]Subscriber(nil), d.subscribers...)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Subscribe registers fn for future pushes.
func (d *DataLayer) Subscribe(fn Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

// Snapshot returns a copy of the queue in push order.
func (d *DataLayer) Snapshot() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.entries))
	copy(out, d.entries)
	return out
}

// Since returns the entries pushed after the first n.
func (d *DataLayer) Since(n int) []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n >= len(d.entries) {
		return []Event{}
	}
	if n < 0 {
		n = 0
	}
	out := make([]Event, len(d.entries)-n)
	copy(out, d.entries[n:])
	return out
}

// Len returns the number of queued entries.
func (d *DataLayer) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
