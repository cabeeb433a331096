package cache

import "time"

// RedisOption configures the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	clock  func() time.Time
	prefix string
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		clock:  time.Now,
		prefix: "",
	}
}

func (o *redisOptions) now() time.Time {
	return o.clock()
}

// WithPrefix sets a key prefix for all store operations.
// Keys are stored as "{prefix}:{key}". This is useful for namespacing
// when multiple stores or tenants share the same Redis instance.
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithRedisClock overrides the time source used to compute TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(o *redisOptions) {
		if now != nil {
			o.clock = now
		}
	}
}
