package tagcache

// RedisOption configures the Redis tag index.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix    string
	scanCount int64
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		prefix:    "dyncache",
		scanCount: 100,
	}
}

// WithPrefix sets the key namespace. Tag sets are stored as "{prefix}:tag:{<tag>}".
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.prefix = prefix
	}
}

// WithScanCount sets the COUNT hint used when listing tags.
func WithScanCount(n int64) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}
