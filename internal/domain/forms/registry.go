package forms

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnknownProvider  = errors.New("unknown form provider")
	ErrInactiveProvider = errors.New("form provider is not active")
)

// Providers lists every supported form platform, in registration order.
var Providers = []string{
	ProviderCF7,
	ProviderFluentForms,
	ProviderGravityForms,
	ProviderNinjaForms,
	ProviderWPForms,
}

// Environment reports which form platforms are installed.
type Environment interface {
	HasPlatform(provider string) bool
}

// PlatformSet is an Environment backed by a fixed set of provider ids.
type PlatformSet map[string]struct{}

// NewPlatformSet builds a set from provider ids, ignoring blanks and case.
func NewPlatformSet(providers ...string) PlatformSet {
	set := make(PlatformSet, len(providers))
	for _, p := range providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

func (s PlatformSet) HasPlatform(provider string) bool {
	_, ok := s[provider]
	return ok
}

// Registry owns every adapter and the hooks the active ones are bound to.
type Registry struct {
	adapters []Adapter
	active   map[string]Adapter
	hooks    *Hooks
}

// NewRegistry instantiates every adapter and registers hooks for those whose
// platform is present in env.
func NewRegistry(env Environment, settings Settings) *Registry {
	r := &Registry{
		adapters: []Adapter{
			NewCF7Adapter(env, settings),
			NewFluentFormsAdapter(env, settings),
			NewGravityFormsAdapter(env, settings),
			NewNinjaFormsAdapter(env, settings),
			NewWPFormsAdapter(env, settings),
		},
		active: make(map[string]Adapter),
		hooks:  NewHooks(),
	}
	for _, a := range r.adapters {
		if a.IsActive() {
			a.RegisterHooks(r.hooks)
			r.active[a.Provider()] = a
		}
	}
	return r
}

// Hooks returns the registry's hook table.
func (r *Registry) Hooks() *Hooks { return r.hooks }

// Adapters returns every adapter, active or not.
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

// Active returns the adapters whose platform is installed.
func (r *Registry) Active() []Adapter {
	out := make([]Adapter, 0, len(r.active))
	for _, a := range r.adapters {
		if _, ok := r.active[a.Provider()]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Lookup returns the active adapter for provider.
func (r *Registry) Lookup(provider string) (Adapter, error) {
	if a, ok := r.active[provider]; ok {
		return a, nil
	}
	for _, a := range r.adapters {
		if a.Provider() == provider {
			return nil, ErrInactiveProvider
		}
	}
	return nil, ErrUnknownProvider
}

// Fields renders the hidden fields for a provider's form by firing its
// fields hook.
func (r *Registry) Fields(ctx context.Context, provider string) (HiddenFields, error) {
	a, err := r.Lookup(provider)
	if err != nil {
		return nil, err
	}
	return r.hooks.ApplyFilters(ctx, a.FieldsHook(), HiddenFields{}), nil
}

// Submit fires the provider's submission hook for sub.
func (r *Registry) Submit(ctx context.Context, provider string, sub *Submission) error {
	a, err := r.Lookup(provider)
	if err != nil {
		return err
	}
	r.hooks.DoAction(ctx, a.SubmitHook(), sub)
	return nil
}
