package dynamiccache

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/dyncache/pkg/metrics"
)

// Option configures the Service.
type Option func(*Service)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithEnabled turns caching on or off.
func WithEnabled(enabled bool) Option {
	return func(s *Service) {
		s.cfg.Enabled = enabled
	}
}

// WithDefaultSliding sets the idle timeout of entries without explicit expiry.
func WithDefaultSliding(d time.Duration) Option {
	return func(s *Service) {
		s.cfg.DefaultSliding = d
	}
}

// WithRenderTimeout bounds a render shared by concurrent GetOrSet callers.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.cfg.RenderTimeout = d
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithMetrics records lookups, writes and invalidations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRemoveConcurrency bounds the store deletions issued in parallel while
// handling a tag invalidation. Default: 16.
func WithRemoveConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.removeConcurrency = n
		}
	}
}
