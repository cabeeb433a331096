package cachecontext

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Context describes what a cached fragment varies by, how long it lives and
// which tags invalidate it.
//
// Build it with the chained methods before the first lookup; the service
// never retains it past a single call.
//
//	c := cachecontext.New("menu-main").
//	    AddContext("culture", "user.roles").
//	    AddTag("menu", "content:42").
//	    WithExpiryAfter(10 * time.Minute)
type Context struct {
	// ExpiresOn is a fixed expiration instant. Zero means unset.
	ExpiresOn time.Time

	// ExpiresAfter is a lifetime counted from the write. Zero means unset.
	ExpiresAfter time.Duration

	// ExpiresSliding is an idle timeout reset by every read. Zero means unset.
	ExpiresSliding time.Duration

	contexts map[string]struct{}
	tags     map[string]struct{}
	cacheID  string
}

// New creates a context for the fragment identified by cacheID.
func New(cacheID string) *Context {
	return &Context{
		cacheID:  strings.TrimSpace(cacheID),
		contexts: make(map[string]struct{}),
		tags:     make(map[string]struct{}),
	}
}

// CacheID returns the logical name of the cached fragment.
func (c *Context) CacheID() string {
	return c.cacheID
}

// AddContext adds discriminator names. Blank names and duplicates are ignored.
func (c *Context) AddContext(names ...string) *Context {
	addAll(c.contexts, names)
	return c
}

// RemoveContext drops a discriminator name.
func (c *Context) RemoveContext(name string) *Context {
	delete(c.contexts, strings.TrimSpace(name))
	return c
}

// AddTag adds invalidation tags. Blank tags and duplicates are ignored.
func (c *Context) AddTag(tags ...string) *Context {
	addAll(c.tags, tags)
	return c
}

// WithExpiryOn sets an absolute expiration instant.
func (c *Context) WithExpiryOn(t time.Time) *Context {
	c.ExpiresOn = t
	return c
}

// WithExpiryAfter sets a lifetime counted from the write.
func (c *Context) WithExpiryAfter(d time.Duration) *Context {
	c.ExpiresAfter = d
	return c
}

// WithExpirySliding sets an idle timeout reset by every read.
func (c *Context) WithExpirySliding(d time.Duration) *Context {
	c.ExpiresSliding = d
	return c
}

// Contexts returns the discriminator names, sorted.
func (c *Context) Contexts() []string {
	return slices.Sorted(maps.Keys(c.contexts))
}

// Tags returns the invalidation tags, sorted.
func (c *Context) Tags() []string {
	return slices.Sorted(maps.Keys(c.tags))
}

// HasExpiry reports whether any expiration field is set.
func (c *Context) HasExpiry() bool {
	return !c.ExpiresOn.IsZero() || c.ExpiresAfter != 0 || c.ExpiresSliding != 0
}

// Clone returns a deep copy, e.g. to add tags learned after the lookup.
func (c *Context) Clone() *Context {
	out := *c
	out.contexts = maps.Clone(c.contexts)
	out.tags = maps.Clone(c.tags)
	return &out
}

// Validate checks the context can be used as a cache key source.
func (c *Context) Validate() error {
	if c == nil || c.cacheID == "" {
		return ErrEmptyCacheID
	}
	if c.ExpiresAfter < 0 || c.ExpiresSliding < 0 {
		return ErrInvalidExpiry
	}
	return nil
}

func addAll(set map[string]struct{}, values []string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
}
