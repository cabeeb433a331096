package dynamiccache

import "time"

// DefaultSlidingExpiration applies to entries whose context sets no expiry.
const DefaultSlidingExpiration = time.Minute

// DefaultRenderTimeout bounds a shared render in GetOrSet.
const DefaultRenderTimeout = 30 * time.Second

// Config holds service settings.
type Config struct {
	// Enabled turns caching on. A disabled service never reads or writes.
	Enabled bool `env:"DYNCACHE_ENABLED" envDefault:"true"`

	// DefaultSliding is the idle timeout of entries without explicit expiry.
	DefaultSliding time.Duration `env:"DYNCACHE_DEFAULT_SLIDING" envDefault:"60s"`

	// RenderTimeout bounds a render shared by concurrent GetOrSet callers.
	// It runs detached from the caller that started it, so no caller's
	// cancellation fails the others.
	RenderTimeout time.Duration `env:"DYNCACHE_RENDER_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns an enabled configuration with a one minute default
// sliding expiration and a 30 second render timeout.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DefaultSliding: DefaultSlidingExpiration,
		RenderTimeout:  DefaultRenderTimeout,
	}
}
