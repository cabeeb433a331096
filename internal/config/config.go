package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/dyncache/pkg/db"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/logger"
	"github.com/dmitrymomot/dyncache/pkg/redis"
)

// Backend names accepted by DYNCACHE_STORE and DYNCACHE_TAG_INDEX.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Cache  dynamiccache.Config
	Log    logger.Config
	Server Server
	Redis  redis.Config
	DB     db.Config

	// Store selects the fragment store: memory, redis or postgres.
	Store string `env:"DYNCACHE_STORE" envDefault:"memory"`

	// TagIndex selects the tag index: memory or redis.
	TagIndex string `env:"DYNCACHE_TAG_INDEX" envDefault:"memory"`

	// ProfilesFile points to the YAML response cache profiles.
	ProfilesFile string `env:"DYNCACHE_PROFILES"`

	// SweepSchedule is the cron spec of the tag index and expired row sweeper.
	// Empty disables the sweeper.
	SweepSchedule string `env:"DYNCACHE_SWEEP_SCHEDULE" envDefault:"@every 5m"`

	// Cultures lists supported cultures, preferred first.
	Cultures []string `env:"DYNCACHE_CULTURES" envDefault:"en" envSeparator:","`

	// MemoryMaxEntries bounds the in-memory store. Zero means unlimited.
	MemoryMaxEntries int `env:"DYNCACHE_MEMORY_MAX_ENTRIES" envDefault:"0"`
}

// Server holds the HTTP settings of the caching proxy.
type Server struct {
	Addr     string `env:"DYNCACHE_ADDR" envDefault:":8080"`
	Upstream string `env:"DYNCACHE_UPSTREAM"`

	// AdminToken protects the admin API. Empty disables the admin API.
	AdminToken string `env:"DYNCACHE_ADMIN_TOKEN"`

	// Identity headers set by an authenticating gateway in front of the proxy.
	UserHeader  string `env:"DYNCACHE_USER_HEADER" envDefault:"X-User-ID"`
	RolesHeader string `env:"DYNCACHE_ROLES_HEADER" envDefault:"X-User-Roles"`

	ShutdownTimeout time.Duration `env:"DYNCACHE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParse, err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.TagIndex = strings.ToLower(strings.TrimSpace(cfg.TagIndex))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selections and the settings they require.
func (c Config) Validate() error {
	if !slices.Contains([]string{BackendMemory, BackendRedis, BackendPostgres}, c.Store) {
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.TagIndex) {
		return fmt.Errorf("%w: %q", ErrUnknownTagIndex, c.TagIndex)
	}
	if c.NeedsRedis() && c.Redis.URL == "" {
		return errors.Join(ErrMissingSetting, redis.ErrEmptyConnectionURL)
	}
	if c.NeedsPostgres() && c.DB.ConnectionString == "" {
		return errors.Join(ErrMissingSetting, db.ErrEmptyConnectionURL)
	}
	return nil
}

// NeedsRedis reports whether a Redis connection is required.
func (c Config) NeedsRedis() bool {
	return c.Store == BackendRedis || c.TagIndex == BackendRedis
}

// NeedsPostgres reports whether a Postgres connection is required.
func (c Config) NeedsPostgres() bool {
	return c.Store == BackendPostgres
}

// Shared reports whether both the store and the tag index are visible to
// other processes, which the invalidate and keys commands need.
func (c Config) Shared() bool {
	return c.Store != BackendMemory && c.TagIndex == BackendRedis
}

// LocalTagIndex reports whether a store shared with other processes is
// indexed in process memory. Invalidation then misses entries written by
// the other processes.
func (c Config) LocalTagIndex() bool {
	return c.Store != BackendMemory && c.TagIndex == BackendMemory
}
