package dynamiccache

import (
	"context"
	"sync"
)

type scopeCtx struct{}

// scope is the per-request read cache. It makes values written during a
// request readable by that request even if the store is eventually
// consistent or slow to accept writes.
type scope struct {
	items map[string]string
	mu    sync.RWMutex
}

// WithScope attaches a fresh local read cache to ctx. Calling it on a context
// that already carries one returns ctx unchanged.
//
// Use one scope per request; it lives as long as ctx and is never shared
// between requests.
func WithScope(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeCtx{}, &scope{items: make(map[string]string)})
}

// HasScope reports whether ctx carries a local read cache.
func HasScope(ctx context.Context) bool {
	return scopeFrom(ctx) != nil
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeCtx{}).(*scope)
	return s
}

func (s *scope) get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *scope) put(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *scope) drop(keys ...string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
}
