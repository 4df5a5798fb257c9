// Package pages parks page loads that are waiting for a consent signal.
package pages

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Store is an in-memory TTL cache keyed by page id.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose entries live for ttl.
func NewStore[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{entries: make(map[string]*entry[T]), ttl: ttl, now: time.Now}
}

// Put parks v under id until its TTL passes.
func (s *Store[T]) Put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry[T]{value: v, expiresAt: s.now().Add(s.ttl)}
}

// Get returns the value parked under id if it has not expired.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Delete removes the entry under id.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len returns the number of parked entries, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (s *Store[T]) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
