// Package dyncache caches rendered fragments keyed by what their content
// depends on, and evicts them by tag.
//
// A fragment is described by a [CacheContext]: a cache ID, the names of the
// discriminators its output varies by (user, user.roles, route, query,
// culture, tenant), a set of tags and optional expiry. The cache key is the
// cache ID joined with the resolved discriminator values, so the same
// fragment rendered for two users with different roles lands in two
// entries. Tag invalidation evicts every entry carrying the tag, whatever
// its key.
//
// # Quick Start
//
//	engine := dyncache.New(dyncache.WithLogger(log))
//	defer engine.Close()
//
//	ctx = dyncache.WithScope(ctx)
//	menu := dyncache.NewContext("menu").
//	    AddContext("user.roles").
//	    AddTag("menu").
//	    WithExpirySliding(5 * time.Minute)
//
//	html, err := engine.GetOrSet(ctx, menu, func(ctx context.Context) (string, bool, error) {
//	    out, err := renderMenu(ctx)
//	    return out, err == nil, err
//	})
//
//	// later, after the menu was edited
//	err = engine.InvalidateTag(ctx, "menu")
//
// # Backends
//
// Fragments live in a [Store] and tag memberships in a [TagCache]. Both
// default to process memory. Several processes share a cache through the
// Redis or Postgres stores of pkg/cache and the Redis index of
// pkg/tagcache:
//
//	engine := dyncache.New(
//	    dyncache.WithStore(cache.NewRedis(client)),
//	    dyncache.WithTagCache(tagcache.NewRedis(client)),
//	)
//
// # Request Scope
//
// [WithScope] attaches a local read cache to a request context. Entries
// written or read through the scope are served from it for the rest of the
// request, so a fragment written during the request is visible to it even
// while the shared store lags. The middlewares package installs the scope
// for HTTP handlers.
//
// # Errors
//
// Get returns [ErrNotFound] on a miss and when caching is disabled. Store
// failures are returned to the caller, except by GetOrSet which logs them
// and renders anyway.
package dyncache
