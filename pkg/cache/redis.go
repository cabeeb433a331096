package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields of a stored entry.
const (
	fieldData     = "data"
	fieldAbsolute = "absexp" // unix milliseconds, -1 when unset
	fieldSliding  = "sldexp" // milliseconds, -1 when unset
	notPresent    = -1
)

// Redis is a Store backed by Redis.
//
// Each entry is a hash holding the payload and its expiration settings, so that
// reads can slide the key TTL without knowing how the entry was written.
type Redis struct {
	client redis.UniversalClient
	opts   *redisOptions
}

// NewRedis creates a new Redis-backed store.
// The client should be obtained from pkg/redis.Open or pkg/redis.Connect.
//
// Example:
//
//	client, err := redis.Open(ctx, os.Getenv("REDIS_URL"))
//	if err != nil {
//	    return err
//	}
//	s := cache.NewRedis(client, cache.WithPrefix("fragments"))
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Redis{
		client: client,
		opts:   o,
	}
}

// Get retrieves the payload stored under key and slides its TTL.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.load(ctx, key, true)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set writes the entry hash and its TTL in a single MULTI/EXEC transaction.
func (r *Redis) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	now := r.opts.now()
	if err := opts.Validate(now); err != nil {
		return err
	}

	deadline := opts.deadline(now)
	absolute := int64(notPresent)
	if !deadline.IsZero() {
		absolute = deadline.UnixMilli()
	}
	sliding := int64(notPresent)
	if opts.SlidingExpiration > 0 {
		sliding = opts.SlidingExpiration.Milliseconds()
	}

	ttl := ttlFrom(nextExpiry(deadline, opts.SlidingExpiration, now), now)
	pk := r.prefixedKey(key)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, pk,
			fieldAbsolute, absolute,
			fieldSliding, sliding,
			fieldData, value,
		)
		if ttl > 0 {
			pipe.PExpire(ctx, pk, ttl)
		} else {
			pipe.Persist(ctx, pk)
		}
		return nil
	})
	return err
}

// Refresh slides the TTL of key without transferring its payload.
func (r *Redis) Refresh(ctx context.Context, key string) error {
	_, err := r.load(ctx, key, false)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Remove deletes key from Redis.
func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefixedKey(key)).Err()
}

// Has checks whether key exists in Redis.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefixedKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes all entries.
// If a prefix is configured, only keys matching the prefix are removed using SCAN.
// If no prefix is configured, FLUSHDB is used.
func (r *Redis) Clear(ctx context.Context) error {
	if r.opts.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}
	return r.clearByPrefix(ctx)
}

// Close is a no-op for Redis. The Redis client lifecycle is managed
// separately by the caller (via pkg/redis.Shutdown).
func (r *Redis) Close() error {
	return nil
}

// load reads the entry metadata (and the payload when withData is set)
// and slides the key TTL when the entry has a sliding window.
func (r *Redis) load(ctx context.Context, key string, withData bool) ([]byte, error) {
	pk := r.prefixedKey(key)

	fields := []string{fieldAbsolute, fieldSliding}
	if withData {
		fields = append(fields, fieldData)
	}

	vals, err := r.client.HMGet(ctx, pk, fields...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, ErrNotFound
	}

	absolute, err := parseField(vals[0])
	if err != nil {
		return nil, err
	}
	sliding, err := parseField(vals[1])
	if err != nil {
		return nil, err
	}

	var data []byte
	if withData {
		s, ok := vals[2].(string)
		if !ok {
			return nil, ErrNotFound
		}
		data = []byte(s)
	}

	if sliding != notPresent {
		now := r.opts.now()
		var deadline time.Time
		if absolute != notPresent {
			deadline = time.UnixMilli(absolute)
		}
		if ttl := ttlFrom(nextExpiry(deadline, time.Duration(sliding)*time.Millisecond, now), now); ttl > 0 {
			if err := r.client.PExpire(ctx, pk, ttl).Err(); err != nil {
				return nil, err
			}
		}
	}

	return data, nil
}

// prefixedKey returns the full Redis key with prefix.
func (r *Redis) prefixedKey(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}

// clearByPrefix removes all keys matching the configured prefix using SCAN.
// This is safe for production use as SCAN does not block the server.
func (r *Redis) clearByPrefix(ctx context.Context) error {
	pattern := r.opts.prefix + ":*"
	var cursor uint64

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

func parseField(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, ErrCorruptEntry
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrCorruptEntry, err)
	}
	return n, nil
}

// ttlFrom converts an expiry instant to a TTL. Zero means no expiry.
func ttlFrom(expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	// Never hand Redis a non-positive TTL for an entry that should still exist.
	return max(expiresAt.Sub(now), time.Millisecond)
}

var _ Store = (*Redis)(nil)
