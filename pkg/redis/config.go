package redis

import "time"

// Config holds Redis connection settings for the Redis store and tag index.
// The URL is only required when a Redis backend is selected.
type Config struct {
	// redis:// or rediss:// (TLS) URL, e.g. redis://localhost:6379/0
	URL string `env:"REDIS_URL"`

	// Prefix namespaces every key written by the cache, so several
	// deployments or tenants can share one Redis database.
	Prefix string `env:"REDIS_PREFIX" envDefault:"dyncache"`

	PoolSize      int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns  int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime   time.Duration `env:"REDIS_MAX_IDLE_TIME" envDefault:"10m"`
	MaxActiveTime time.Duration `env:"REDIS_MAX_ACTIVE_TIME" envDefault:"30m"`
	ReadTimeout   time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout  time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	DialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`

	// Startup retry: attempt n waits n*RetryInterval before the next one.
	RetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
}

// DefaultConfig returns the defaults used when Config is built by hand.
func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		Prefix:        "dyncache",
		PoolSize:      10,
		MinIdleConns:  5,
		MaxIdleTime:   10 * time.Minute,
		MaxActiveTime: 30 * time.Minute,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		DialTimeout:   5 * time.Second,
		RetryAttempts: 3,
		RetryInterval: 5 * time.Second,
	}
}
