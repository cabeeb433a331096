package logger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// DefaultFlushTimeout bounds FlushSentry when ctx has no deadline.
const DefaultFlushTimeout = 2 * time.Second

// ErrSentryFlush is returned when buffered events outlive the flush timeout.
var ErrSentryFlush = errors.New("logger: sentry events not delivered before timeout")

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel selects what is shipped as logs: warnings and errors by default,
	// errors only when set to slog.LevelError.
	MinLevel slog.Level `env:"SENTRY_MIN_LEVEL" envDefault:"warn"`
}

// newSentryHandler initializes the SDK and returns a handler, or nil when
// Sentry is not configured or fails to start. Init failures are reported
// through fallback so the process keeps logging to stdout.
func newSentryHandler(fallback slog.Handler, cfg SentryConfig) slog.Handler {
	if cfg.DSN == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(fallback).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return nil
	}

	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError}, // errors become issues
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())
}

// FlushSentry waits for buffered Sentry events until the deadline of ctx.
// It does nothing when Sentry was not initialized, so it can always be
// registered as a shutdown hook.
func FlushSentry(ctx context.Context) error {
	if sentry.CurrentHub().Client() == nil {
		return nil
	}

	timeout := DefaultFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 || !sentry.Flush(timeout) {
		return ErrSentryFlush
	}
	return nil
}
