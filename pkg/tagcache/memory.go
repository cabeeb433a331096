package tagcache

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process TagCache. It is only suitable when every
// process sharing the store also shares this index, i.e. a single process.
//
// Every membership carries the version of the Tag call that last wrote it,
// which lets Prune skip keys tagged again while it was checking them.
type Memory struct {
	handlers
	tags    map[string]map[string]uint64
	version uint64
	mu      sync.RWMutex
}

// NewMemory creates an empty in-memory tag index.
func NewMemory() *Memory {
	return &Memory{tags: make(map[string]map[string]uint64)}
}

// Tag associates key with tags.
func (m *Memory) Tag(_ context.Context, key string, tags ...string) error {
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	for _, tag := range normalizeTags(tags) {
		set, ok := m.tags[tag]
		if !ok {
			set = make(map[string]uint64)
			m.tags[tag] = set
		}
		set[key] = m.version
	}
	return nil
}

// Keys returns the keys carrying tag.
func (m *Memory) Keys(_ context.Context, tag string) ([]string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.tags[tag])), nil
}

// Tags returns every tag that currently has at least one key, sorted.
func (m *Memory) Tags() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.tags))
}

// Invalidate notifies handlers with the keys of tag and drops them.
// Handlers run without the lock held, so they may tag keys; a key tagged
// again meanwhile keeps its new membership.
func (m *Memory) Invalidate(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrEmptyTag
	}

	m.mu.RLock()
	snapshot := maps.Clone(m.tags[tag])
	m.mu.RUnlock()
	if len(snapshot) == 0 {
		return nil
	}

	if err := m.notify(ctx, tag, slices.Sorted(maps.Keys(snapshot))); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.tags[tag]
	for k, v := range snapshot {
		if cur, ok := set[k]; ok && cur == v {
			delete(set, k)
		}
	}
	if len(set) == 0 {
		delete(m.tags, tag)
	}
	return nil
}

// Prune drops keys for which exists reports false. A membership written
// after the snapshot was taken is kept.
func (m *Memory) Prune(ctx context.Context, exists ExistsFunc) (int, error) {
	type membership struct{ tag, key string }

	m.mu.RLock()
	snapshot := make(map[membership]uint64)
	candidates := make(map[string]struct{})
	for tag, set := range m.tags {
		for key, v := range set {
			snapshot[membership{tag, key}] = v
			candidates[key] = struct{}{}
		}
	}
	m.mu.RUnlock()

	dead := make(map[string]struct{})
	for key := range candidates {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ok, err := exists(ctx, key)
		if err != nil {
			return 0, err
		}
		if !ok {
			dead[key] = struct{}{}
		}
	}
	if len(dead) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for mb, v := range snapshot {
		if _, ok := dead[mb.key]; !ok {
			continue
		}
		set := m.tags[mb.tag]
		if cur, ok := set[mb.key]; !ok || cur != v {
			continue
		}
		delete(set, mb.key)
		removed++
		if len(set) == 0 {
			delete(m.tags, mb.tag)
		}
	}
	return removed, nil
}

var _ TagCache = (*Memory)(nil)
