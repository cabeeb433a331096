// Package redis connects to Redis for the Redis-backed store and tag index.
//
// It wraps [github.com/redis/go-redis/v9] with env-driven configuration,
// startup retries, a readiness healthcheck and a shutdown hook.
//
// # Configuration
//
// [Config] is populated from environment variables:
//
//	REDIS_URL             - redis:// or rediss:// URL
//	REDIS_PREFIX          - key namespace (default: dyncache)
//	REDIS_POOL_SIZE       - Maximum connections (default: 10)
//	REDIS_MIN_IDLE_CONNS  - Minimum idle connections (default: 5)
//	REDIS_MAX_IDLE_TIME   - Maximum idle time (default: 10m)
//	REDIS_MAX_ACTIVE_TIME - Maximum connection lifetime (default: 30m)
//	REDIS_READ_TIMEOUT    - Read timeout (default: 3s)
//	REDIS_WRITE_TIMEOUT   - Write timeout (default: 3s)
//	REDIS_DIAL_TIMEOUT    - Dial timeout (default: 5s)
//	REDIS_RETRY_ATTEMPTS  - Startup attempts (default: 3)
//	REDIS_RETRY_INTERVAL  - Base retry interval (default: 5s)
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	store := cache.NewRedis(client, cache.WithPrefix(cfg.Redis.Prefix))
//	tags := tagcache.NewRedis(client, tagcache.WithPrefix(cfg.Redis.Prefix))
//
// # Error Handling
//
//   - [ErrEmptyConnectionURL] - Empty connection URL provided
//   - [ErrFailedToParseURL] - Invalid connection URL format or scheme
//   - [ErrConnectionFailed] - Connection failed after all retry attempts
//   - [ErrHealthcheckFailed] - Redis ping failed
//   - [ErrCloseFailed] - Client close failed during shutdown
package redis
