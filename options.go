package dyncache

import (
	"log/slog"

	"github.com/dmitrymomot/dyncache/pkg/metrics"
)

type options struct {
	store     Store
	tags      TagCache
	providers []Provider
	cultures  []string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	config    *Config
}

// Option configures the Engine.
type Option func(*options)

// WithStore sets the byte store. Defaults to an in-memory store.
func WithStore(s Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithTagCache sets the tag index. Defaults to an in-memory index.
func WithTagCache(t TagCache) Option {
	return func(o *options) {
		o.tags = t
	}
}

// WithProviders replaces the built-in discriminator providers.
func WithProviders(providers ...Provider) Option {
	return func(o *options) {
		o.providers = providers
	}
}

// WithCultures lists the cultures the built-in culture provider negotiates,
// preferred first. Ignored with WithProviders.
func WithCultures(cultures ...string) Option {
	return func(o *options) {
		o.cultures = cultures
	}
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records cache activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConfig replaces the service configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}
