// Package tagcache maintains the tag to cache key index used for
// invalidation.
//
// Writers call Tag after an entry is stored. Invalidate hands the keys of a
// tag to every subscribed [Handler] (typically the dynamic cache service,
// which removes the entries) and then drops them from the index:
//
//	tags := tagcache.NewRedis(client, tagcache.WithPrefix("dyncache"))
//	tags.Subscribe(tagcache.HandlerFunc(func(ctx context.Context, tag string, keys []string) error {
//	    return removeEntries(ctx, keys)
//	}))
//	err := tags.Invalidate(ctx, "content:42")
//
// Entries expire on their own, so the index can hold stale keys. Run Prune
// periodically to drop them.
//
// Use [NewMemory] for a single process and [NewRedis] when several processes
// share a distributed store.
package tagcache
