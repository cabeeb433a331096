package cachecontext

import (
	"context"
	"errors"
	"slices"
)

// Provider resolves the discriminators it knows about.
//
// PopulateEntries receives every requested name and appends an Entry for each
// name it handles, ignoring the rest. Values must depend only on state carried
// by ctx, so repeated calls within one request agree.
type Provider interface {
	PopulateEntries(ctx context.Context, names []string, entries []Entry) ([]Entry, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, names []string, entries []Entry) ([]Entry, error)

// PopulateEntries calls f.
func (f ProviderFunc) PopulateEntries(ctx context.Context, names []string, entries []Entry) ([]Entry, error) {
	return f(ctx, names, entries)
}

// Func returns a Provider that resolves a single discriminator name.
func Func(name string, resolve func(ctx context.Context) (string, error)) Provider {
	return ProviderFunc(func(ctx context.Context, names []string, entries []Entry) ([]Entry, error) {
		if !slices.Contains(names, name) {
			return entries, nil
		}
		v, err := resolve(ctx)
		if err != nil {
			return entries, err
		}
		return append(entries, Entry{Name: name, Value: v}), nil
	})
}

// Manager resolves discriminator names through a fixed set of providers.
type Manager struct {
	providers []Provider
}

// NewManager creates a manager over providers. Nil providers are dropped.
func NewManager(providers ...Provider) *Manager {
	m := &Manager{providers: make([]Provider, 0, len(providers))}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

// Discriminators resolves names into entries, aggregating every provider.
// Names no provider handles contribute nothing: an unknown dimension behaves
// as if it always had the same value.
func (m *Manager) Discriminators(ctx context.Context, names []string) ([]Entry, error) {
	names = normalize(names)
	if len(names) == 0 {
		return nil, nil
	}

	var entries []Entry
	for _, p := range m.providers {
		var err error
		if entries, err = p.PopulateEntries(ctx, names, entries); err != nil {
			return nil, errors.Join(ErrResolveDiscriminator, err)
		}
	}

	return entries, nil
}

// normalize returns names sorted and deduplicated, without blanks.
func normalize(names []string) []string {
	set := make(map[string]struct{}, len(names))
	addAll(set, names)
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
