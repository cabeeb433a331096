package dyncache

import (
	"context"

	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/discriminator"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

// Type aliases - public API
type (
	// CacheContext describes a fragment: its cache ID, the discriminators
	// its content varies by, its tags and its expiry.
	CacheContext = cachecontext.Context

	// Provider resolves discriminator names to values.
	Provider = cachecontext.Provider

	// ProviderFunc adapts a function to Provider.
	ProviderFunc = cachecontext.ProviderFunc

	// Entry is a resolved discriminator.
	Entry = cachecontext.Entry

	// Store is the byte store holding fragments and their metadata.
	Store = cache.Store

	// TagCache maps tags to the keys carrying them.
	TagCache = tagcache.TagCache

	// RenderFunc produces a value on a cache miss.
	RenderFunc = dynamiccache.RenderFunc

	// Config toggles caching and sets the default sliding expiration.
	Config = dynamiccache.Config

	// Principal is the authenticated caller seen by the user providers.
	Principal = discriminator.Principal
)

// Errors re-exported for errors.Is checks.
var (
	ErrNotFound     = dynamiccache.ErrNotFound
	ErrEmptyCacheID = dynamiccache.ErrEmptyCacheID
)

// Engine is a dynamic cache service together with the backends it owns.
type Engine struct {
	*dynamiccache.Service

	store   Store
	tags    TagCache
	manager *cachecontext.Manager
	owned   Store
}

// New assembles store, tag index, discriminator manager and service.
// Without options it caches in process memory and resolves the built-in
// discriminators.
//
// Example:
//
//	engine := dyncache.New(
//	    dyncache.WithStore(cache.NewRedis(client)),
//	    dyncache.WithTagCache(tagcache.NewRedis(client)),
//	    dyncache.WithLogger(log),
//	)
//	defer engine.Close()
//
//	ctx = dyncache.WithScope(ctx)
//	html, err := engine.GetOrSet(ctx, dyncache.NewContext("menu").AddContext("user.roles").AddTag("menu"), render)
func New(opts ...Option) *Engine {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{store: o.store, tags: o.tags}
	if e.store == nil {
		mem := cache.NewMemory()
		e.store, e.owned = mem, mem
	}
	if e.tags == nil {
		e.tags = tagcache.NewMemory()
	}
	if o.providers == nil {
		o.providers = discriminator.Defaults(o.cultures)
	}
	e.manager = cachecontext.NewManager(o.providers...)

	svcOpts := []dynamiccache.Option{
		dynamiccache.WithLogger(o.logger),
		dynamiccache.WithMetrics(o.metrics),
	}
	if o.config != nil {
		svcOpts = append(svcOpts, dynamiccache.WithConfig(*o.config))
	}
	e.Service = dynamiccache.New(e.manager, e.store, e.tags, svcOpts...)
	return e
}

// Store returns the byte store.
func (e *Engine) Store() Store {
	return e.store
}

// Tags returns the tag index. Subscribe to it to observe invalidations.
func (e *Engine) Tags() TagCache {
	return e.tags
}

// Discriminators resolves names for the request in ctx.
func (e *Engine) Discriminators(ctx context.Context, names ...string) ([]Entry, error) {
	return e.manager.Discriminators(ctx, names)
}

// Close releases the store when the engine created it. Stores passed with
// WithStore are left to the caller.
func (e *Engine) Close() error {
	if e.owned == nil {
		return nil
	}
	return e.owned.Close()
}

// NewContext starts a cache context for cacheID.
func NewContext(cacheID string) *CacheContext {
	return cachecontext.New(cacheID)
}

// WithScope attaches a per-request local read cache to ctx.
func WithScope(ctx context.Context) context.Context {
	return dynamiccache.WithScope(ctx)
}

// DefaultConfig returns caching enabled with a 60 second default sliding
// expiration.
func DefaultConfig() Config {
	return dynamiccache.DefaultConfig()
}

// WithPrincipal places the authenticated caller in ctx for the user
// discriminators.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return discriminator.WithPrincipal(ctx, p)
}
