// Package cache provides a byte-oriented Store with absolute and sliding
// expiration, with in-memory, Redis and PostgreSQL implementations.
//
// All implementations share the same [Store] interface, making it easy to swap
// backends: in-memory for a single process or tests, Redis or Postgres when
// several processes must see the same entries.
//
// # Interface
//
//   - Get(ctx, key) ([]byte, error) - retrieve a value and slide its expiry
//   - Set(ctx, key, value, opts) error - store a value
//   - Refresh(ctx, key) error - slide expiry without reading
//   - Remove(ctx, key) error - delete a key
//   - Has(ctx, key) (bool, error) - check existence without sliding
//   - Close() error - release resources
//
// # Expiration
//
// [EntryOptions] mirrors the usual distributed cache contract:
//
//	opts := cache.EntryOptions{
//	    AbsoluteExpirationRelativeToNow: time.Hour, // hard limit
//	    SlidingExpiration:               time.Minute, // idle timeout
//	}
//
// The relative lifetime wins over AbsoluteExpiration when both are set.
// With a deadline and a sliding window the entry lives until whichever
// comes first. An entry written with zero options never expires.
//
// # In-Memory Store
//
// Use [NewMemory] for single-process applications or testing.
// It uses a hash map for O(1) lookups and a doubly-linked list for O(1)
// LRU eviction, with a background janitor goroutine removing expired entries:
//
//	s := cache.NewMemory(
//	    cache.WithCleanupInterval(30 * time.Second),
//	    cache.WithMaxEntries(10000),
//	)
//	defer s.Close()
//
// # Redis Store
//
// Use [NewRedis] with a [github.com/redis/go-redis/v9.UniversalClient]
// from [github.com/dmitrymomot/dyncache/pkg/redis]. Every entry is a hash
// holding the payload and its expiration settings:
//
//	s := cache.NewRedis(client, cache.WithPrefix("fragments"))
//
// # Postgres Store
//
// Use [NewPostgres] with a pgx pool after applying [Migrations]:
//
//	if err := db.Migrate(ctx, pool, cache.Migrations, cache.MigrationsDir, "dyncache_migrations", log); err != nil {
//	    return err
//	}
//	s := cache.NewPostgres(pool)
//
// Expired rows stay in the table until [Postgres.DeleteExpired] runs.
//
// # Error Handling
//
//   - [ErrNotFound] - key does not exist or has expired
//   - [ErrClosed] - operation on a closed store
//   - [ErrInvalidExpiration] - negative duration or deadline in the past
//   - [ErrCorruptEntry] - persisted entry cannot be decoded
package cache
