package consent

import (
	"sort"
	"sync"
)

// Listener receives the decision carried by a consent signal.
type Listener func(d Decision)

// Signals is a named event bus scoped to a single page.
type Signals struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]Listener
}

// NewSignals creates an empty bus.
func NewSignals() *Signals {
	return &Signals{listeners: make(map[string]map[int]Listener)}
}

// On subscribes fn to name and returns a function that removes it.
func (s *Signals) On(name string, fn Listener) (off func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if s.listeners[name] == nil {
		s.listeners[name] = make(map[int]Listener)
	}
	s.listeners[name][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[name], id)
	}
}

// Emit delivers d to every listener subscribed to name, in subscription
// order. Listeners may unsubscribe while being called.
func (s *Signals) Emit(name string, d Decision) int {
	s.mu.Lock()
	subs := s.listeners[name]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Ints(ids)

	delivered := 0
	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.listeners[name][id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		fn(d)
		delivered++
	}
	return delivered
}

// Count returns the number of listeners currently subscribed to name.
func (s *Signals) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[name])
}
