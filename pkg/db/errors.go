package db

import "errors"

// Connection errors. Underlying pgx errors are joined to them.
var (
	ErrEmptyConnectionURL       = errors.New("db: empty connection URL")
	ErrFailedToParseDBConfig    = errors.New("db: failed to parse database configuration")
	ErrFailedToOpenDBConnection = errors.New("db: failed to open database connection")
	ErrHealthcheckFailed        = errors.New("db: healthcheck failed")
)

// Migration errors returned by Migrate.
var (
	ErrSetDialect      = errors.New("db: failed to set migration dialect")
	ErrApplyMigrations = errors.New("db: failed to apply migrations")
)
