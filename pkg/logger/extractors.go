package logger

import (
	"context"
	"log/slog"
)

type cacheKeyCtx struct{}

// WithCacheKey stores the cache key being worked on so that every log line
// written with ctx carries it.
func WithCacheKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, cacheKeyCtx{}, key)
}

// CacheKeyExtractor adds "cache_key" when WithCacheKey was used.
func CacheKeyExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(cacheKeyCtx{}).(string); ok && v != "" {
			return slog.String("cache_key", v), true
		}
		return slog.Attr{}, false
	}
}
