package cache

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the goose migrations creating the Postgres store schema.
// Apply them with pkg/db.Migrate(ctx, pool, cache.Migrations, cache.MigrationsDir, ...).
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

const (
	pgGet = `
UPDATE dyncache_entries
SET expires_at = CASE
        WHEN sliding_ms IS NULL THEN expires_at
        WHEN absolute_expiration IS NOT NULL
             AND absolute_expiration < $2::timestamptz + sliding_ms * interval '1 millisecond'
            THEN absolute_expiration
        ELSE $2::timestamptz + sliding_ms * interval '1 millisecond'
    END
WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
RETURNING value`

	pgSet = `
INSERT INTO dyncache_entries (key, value, expires_at, absolute_expiration, sliding_ms)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    absolute_expiration = EXCLUDED.absolute_expiration,
    sliding_ms = EXCLUDED.sliding_ms`

	pgHas = `
SELECT EXISTS (
    SELECT 1 FROM dyncache_entries
    WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
)`

	pgRemove        = `DELETE FROM dyncache_entries WHERE key = $1`
	pgDeleteExpired = `DELETE FROM dyncache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// Postgres is a Store backed by a PostgreSQL table.
//
// Reads are a single UPDATE ... RETURNING statement that checks expiry and
// slides it in the same round-trip. Expired rows are invisible to readers
// and removed by DeleteExpired.
type Postgres struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// NewPostgres creates a Postgres-backed store.
// The schema from Migrations must be applied before use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, clock: time.Now}
}

// Get retrieves the payload stored under key and slides its expiry.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := p.pool.QueryRow(ctx, pgGet, key, p.clock()).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

// Set upserts the entry row.
func (p *Postgres) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	now := p.clock()
	if err := opts.Validate(now); err != nil {
		return err
	}

	deadline := opts.deadline(now)

	var absolute, expiresAt *time.Time
	if !deadline.IsZero() {
		absolute = &deadline
	}
	if exp := nextExpiry(deadline, opts.SlidingExpiration, now); !exp.IsZero() {
		expiresAt = &exp
	}

	var sliding *int64
	if opts.SlidingExpiration > 0 {
		ms := opts.SlidingExpiration.Milliseconds()
		sliding = &ms
	}

	_, err := p.pool.Exec(ctx, pgSet, key, value, expiresAt, absolute, sliding)
	return err
}

// Refresh slides the expiry of key. The payload is read and discarded.
func (p *Postgres) Refresh(ctx context.Context, key string) error {
	if _, err := p.Get(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Remove deletes the row for key.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, pgRemove, key)
	return err
}

// Has reports whether a live row exists for key.
func (p *Postgres) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	if err := p.pool.QueryRow(ctx, pgHas, key, p.clock()).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (p *Postgres) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, pgDeleteExpired, p.clock())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op. The pool lifecycle is managed by the caller (via pkg/db.Shutdown).
func (p *Postgres) Close() error {
	return nil
}

var _ Store = (*Postgres)(nil)
