// Package db connects to PostgreSQL for the Postgres cache store.
//
// It wraps [github.com/jackc/pgx/v5/pgxpool] with startup retries, a
// readiness healthcheck and [github.com/pressly/goose/v3] migrations.
//
// # Configuration
//
// [Config] is populated from environment variables:
//
//	DATABASE_CONN_URL           - PostgreSQL connection URL
//	DATABASE_MIGRATIONS_TABLE   - goose version table (default: dyncache_migrations)
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 2)
//	DATABASE_HEALTHCHECK_PERIOD - Pool health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//		return err
//	}
//	if err := db.Migrate(ctx, pool, cache.Migrations, cache.MigrationsDir, cfg.Database.MigrationsTable, log); err != nil {
//		return err
//	}
//	store := cache.NewPostgres(pool)
//
// Register [Healthcheck] on the readiness endpoint and [Shutdown] as a
// server shutdown hook.
package db
