package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/dyncache/internal/config"
	"github.com/dmitrymomot/dyncache/internal/server"
	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/discriminator"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/health"
	"github.com/dmitrymomot/dyncache/pkg/logger"
	"github.com/dmitrymomot/dyncache/pkg/metrics"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

// App holds the assembled cache components of one process.
type App struct {
	log      *slog.Logger
	store    cache.Store
	tags     tagcache.TagCache
	service  *dynamiccache.Service
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	expirer  expirer
	checks   health.Checks
	closers  []server.Hook
	cfg      config.Config
}

// expirer is implemented by stores that keep expired entries until swept.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// New connects the configured backends and assembles the service.
// Postgres migrations are applied before the store is used.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      logger.OrNope(log),
		registry: prometheus.NewRegistry(),
		checks:   health.Checks{},
	}

	if err := a.openBackends(ctx); err != nil {
		return nil, errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry, metrics.DefaultNamespace)

	manager := cachecontext.NewManager(discriminator.Defaults(cfg.Cultures)...)
	a.service = dynamiccache.New(manager, a.store, a.tags,
		dynamiccache.WithConfig(cfg.Cache),
		dynamiccache.WithLogger(a.log),
		dynamiccache.WithMetrics(a.metrics),
	)
	a.checks["store"] = health.StoreCheck(a.store)

	if cfg.LocalTagIndex() {
		a.log.Warn("shared store with a local tag index: invalidation only reaches entries tagged by this process",
			slog.String("store", cfg.Store),
			slog.String("tag_index", cfg.TagIndex),
		)
	}
	a.log.Info("cache assembled",
		slog.String("store", cfg.Store),
		slog.String("tag_index", cfg.TagIndex),
		slog.Bool("enabled", cfg.Cache.Enabled),
	)
	return a, nil
}

// Service returns the dynamic cache service.
func (a *App) Service() *dynamiccache.Service {
	return a.service
}

// Registry returns the Prometheus registry holding the cache collectors.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Checks returns the readiness checks of the configured backends.
func (a *App) Checks() health.Checks {
	return a.checks
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, closer := range slices.Backward(a.closers) {
		if err := closer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
