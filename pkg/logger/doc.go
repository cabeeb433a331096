// Package logger builds structured slog loggers with context extraction and
// optional Sentry reporting.
//
// # Usage
//
//	log := logger.New(cfg.Log,
//	    middlewares.RequestIDExtractor(),
//	    logger.CacheKeyExtractor(),
//	)
//	ctx = logger.WithCacheKey(ctx, key)
//	log.WarnContext(ctx, "store write failed", slog.Any("error", err))
//	// {"level":"WARN","msg":"store write failed","error":"...","cache_key":"menu/3f1c..."}
//
// [Config] is populated from the environment (LOG_LEVEL, LOG_FORMAT,
// SENTRY_DSN, SENTRY_ENVIRONMENT, SENTRY_MIN_LEVEL). Without a DSN only the
// local handler is used, so the same code runs in development and production.
//
// # Context Extractors
//
// A [ContextExtractor] turns a context value into an attribute. Extractors run
// on every log call and return false to skip the attribute. [Decorate] adds
// them to any slog.Handler.
//
// Packages that accept an optional logger use [OrNope] to fall back to a
// discarding one.
package logger
