package app

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/dyncache/internal/config"
	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/db"
	"github.com/dmitrymomot/dyncache/pkg/health"
	"github.com/dmitrymomot/dyncache/pkg/redis"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

// openBackends connects Redis and Postgres when selected and builds the
// store and tag index on top of them.
func (a *App) openBackends(ctx context.Context) error {
	var client goredis.UniversalClient
	if a.cfg.NeedsRedis() {
		var err error
		if client, err = redis.Connect(ctx, a.cfg.Redis); err != nil {
			return err
		}
		a.closers = append(a.closers, redis.Shutdown(client))
		a.checks["redis"] = health.CheckFunc(redis.Healthcheck(client))
	}

	switch a.cfg.Store {
	case config.BackendRedis:
		a.store = cache.NewRedis(client, cache.WithPrefix(a.cfg.Redis.Prefix))

	case config.BackendPostgres:
		pool, err := db.Connect(ctx, a.cfg.DB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Shutdown(pool))
		a.checks["postgres"] = health.CheckFunc(db.Healthcheck(pool))

		if err := db.Migrate(ctx, pool, cache.Migrations, cache.MigrationsDir, a.cfg.DB.MigrationsTable, a.log); err != nil {
			return err
		}
		pg := cache.NewPostgres(pool)
		a.store, a.expirer = pg, pg

	case config.BackendMemory:
		mem := cache.NewMemory(cache.WithMaxEntries(a.cfg.MemoryMaxEntries))
		a.store = mem
		a.closers = append(a.closers, func(context.Context) error { return mem.Close() })

	default:
		return errors.Join(config.ErrUnknownStore, errors.New(a.cfg.Store))
	}

	switch a.cfg.TagIndex {
	case config.BackendRedis:
		a.tags = tagcache.NewRedis(client, tagcache.WithPrefix(a.cfg.Redis.Prefix))
	case config.BackendMemory:
		a.tags = tagcache.NewMemory()
	default:
		return errors.Join(config.ErrUnknownTagIndex, errors.New(a.cfg.TagIndex))
	}

	return nil
}
