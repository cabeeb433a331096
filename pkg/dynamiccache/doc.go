// Package dynamiccache caches rendered fragments keyed by their cache context.
//
// A fragment is described by a [cachecontext.Context]: its cache ID, the
// discriminators it varies by, its tags and its expiry. The service resolves
// the discriminators for the current request into a store key, and stores the
// fragment together with its metadata under "cachecontext-"+key. The metadata
// is authoritative: a fragment without metadata is a miss.
//
// # Usage
//
//	tags := tagcache.NewRedis(client)
//	svc := dynamiccache.New(manager, store, tags,
//	    dynamiccache.WithLogger(log),
//	    dynamiccache.WithMetrics(m),
//	)
//
//	ctx = dynamiccache.WithScope(ctx) // once per request
//	c := cachecontext.New("menu-main").AddContext("culture").AddTag("menu")
//
//	html, err := svc.GetOrSet(ctx, c, func(ctx context.Context) (string, bool, error) {
//	    out, err := renderMenu(ctx)
//	    return out, err == nil, err
//	})
//
// # Expiration
//
// Entries without ExpiresOn, ExpiresAfter or ExpiresSliding get a sliding
// expiration of one minute (see [Config]), so they stay cached while they are
// being used.
//
// # Invalidation
//
// Writes register the key under each tag of the context once both store
// writes succeed. [Service.InvalidateTag] goes through the tag index, which
// calls back [Service.TagRemoved] to delete the entries. Entries without tags
// only expire.
//
// # Local Scope
//
// [WithScope] attaches a per-request read cache. Values read or written in
// the request are served from it, so a request always sees its own writes
// even when the store is slow or eventually consistent.
package dynamiccache
