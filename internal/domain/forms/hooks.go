package forms

import (
	"context"
	"sync"
)

// FieldFilter transforms the hidden fields a platform renders into a form.
type FieldFilter func(ctx context.Context, fields HiddenFields) HiddenFields

// SubmitAction reacts to a form submission.
type SubmitAction func(ctx context.Context, sub *Submission)

// Hooks is a named action/filter registry in the style of the host CMS. Each
// form platform fires its own hook names and adapters bind to them.
type Hooks struct {
	mu      sync.RWMutex
	filters map[string][]FieldFilter
	actions map[string][]SubmitAction
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{
		filters: make(map[string][]FieldFilter),
		actions: make(map[string][]SubmitAction),
	}
}

// AddFilter appends fn to the filters of name.
func (h *Hooks) AddFilter(name string, fn FieldFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters[name] = append(h.filters[name], fn)
}

// AddAction appends fn to the actions of name.
func (h *Hooks) AddAction(name string, fn SubmitAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[name] = append(h.actions[name], fn)
}

// ApplyFilters threads fields through every filter of name, in registration order.
func (h *Hooks) ApplyFilters(ctx context.Context, name string, fields HiddenFields) HiddenFields {
	h.mu.RLock()
	filters := append([]FieldFilter(nil), h.filters[name]...)
	h.mu.RUnlock()

	for _, fn := range filters {
		fields = fn(ctx, fields)
	}
	return fields
}

// DoAction runs every action of name and returns how many ran.
func (h *Hooks) DoAction(ctx context.Context, name string, sub *Submission) int {
	h.mu.RLock()
	actions := append([]SubmitAction(nil), h.actions[name]...)
	h.mu.RUnlock()

	for _, fn := range actions {
		fn(ctx, sub)
	}
	return len(actions)
}

// HasFilter reports whether any filter is bound to name.
func (h *Hooks) HasFilter(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.filters[name]) > 0
}

// HasAction reports whether any action is bound to name.
func (h *Hooks) HasAction(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.actions[name]) > 0
}
