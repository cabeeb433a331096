package tagcache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// Handler is notified when a tag is invalidated.
//
// TagRemoved receives the keys that carried the tag at the time of the call.
// Removing a key that no longer exists must not be an error.
type Handler interface {
	TagRemoved(ctx context.Context, tag string, keys []string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, tag string, keys []string) error

// TagRemoved calls f.
func (f HandlerFunc) TagRemoved(ctx context.Context, tag string, keys []string) error {
	return f(ctx, tag, keys)
}

// ExistsFunc reports whether the entry stored under key is still alive.
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// TagCache maps tags to the cache keys they were attached to.
type TagCache interface {
	// Tag associates key with every tag. Blank tags are ignored.
	Tag(ctx context.Context, key string, tags ...string) error

	// Keys returns the keys currently carrying tag, sorted.
	Keys(ctx context.Context, tag string) ([]string, error)

	// Invalidate hands the keys of tag to every subscribed handler, then drops
	// exactly those keys from the tag. Keys tagged or tagged again while
	// handlers run keep their membership.
	// If a handler fails the tag is left intact so the call can be retried.
	Invalidate(ctx context.Context, tag string) error

	// Prune removes keys whose entries no longer exist and returns how many
	// tag memberships were dropped.
	Prune(ctx context.Context, exists ExistsFunc) (int, error)

	// Subscribe registers h for every subsequent invalidation.
	Subscribe(h Handler)
}

// handlers is the subscriber list shared by the implementations.
type handlers struct {
	list []Handler
	mu   sync.RWMutex
}

func (h *handlers) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	h.mu.Lock()
	h.list = append(h.list, handler)
	h.mu.Unlock()
}

// notify calls every handler, even after a failure, and joins the errors.
func (h *handlers) notify(ctx context.Context, tag string, keys []string) error {
	h.mu.RLock()
	list := slices.Clone(h.list)
	h.mu.RUnlock()

	var errs []error
	for _, handler := range list {
		if err := handler.TagRemoved(ctx, tag, slices.Clone(keys)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(ErrHandler, errors.Join(errs...))
	}
	return nil
}

// normalizeTags trims tags and drops blanks and duplicates.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
