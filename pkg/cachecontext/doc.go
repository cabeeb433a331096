// Package cachecontext describes cacheable fragments and derives their keys.
//
// A [Context] names a fragment (its cache ID), lists the discriminators its
// output varies by ("culture", "user.roles", "query:page"...), the tags that
// invalidate it and its expiration. A [Manager] turns discriminator names into
// resolved [Entry] values through registered [Provider]s, and [Key] folds them
// into a stable key:
//
//	entries, err := manager.Discriminators(ctx, c.Contexts())
//	key := cachecontext.Key(c.CacheID(), entries) // "menu-main/9f86d081884c7d65"
//
// Keys are deterministic: entries are sorted before hashing, so the same
// resolved values always produce the same key whatever order they were
// declared or resolved in. Unknown discriminator names are skipped.
package cachecontext
