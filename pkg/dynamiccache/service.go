package dynamiccache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/logger"
	"github.com/dmitrymomot/dyncache/pkg/metrics"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

// MetadataPrefix prefixes the store key of the metadata written next to
// every fragment.
const MetadataPrefix = "cachecontext-"

// Resolver turns discriminator names into values for the current request.
// *cachecontext.Manager implements it.
type Resolver interface {
	Discriminators(ctx context.Context, names []string) ([]cachecontext.Entry, error)
}

// RenderFunc produces a value on a cache miss. cacheable reports whether the
// value may be stored.
type RenderFunc func(ctx context.Context) (value string, cacheable bool, err error)

// Service caches rendered fragments keyed by their cache context.
type Service struct {
	resolver          Resolver
	store             cache.Store
	tags              tagcache.TagCache
	log               *slog.Logger
	metrics           *metrics.Metrics
	group             singleflight.Group
	cfg               Config
	removeConcurrency int
}

// New creates a service over store and subscribes it to tags so that tag
// invalidations remove the affected entries. A nil tags uses an in-memory
// index.
//
// The tag index must be built before the service: it only depends on the
// Handler interface, never on the service itself.
func New(resolver Resolver, store cache.Store, tags tagcache.TagCache, opts ...Option) *Service {
	if tags == nil {
		tags = tagcache.NewMemory()
	}

	s := &Service{
		resolver:          resolver,
		store:             store,
		tags:              tags,
		cfg:               DefaultConfig(),
		removeConcurrency: 16,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = logger.OrNope(s.log)
	if s.cfg.DefaultSliding <= 0 {
		s.cfg.DefaultSliding = DefaultSlidingExpiration
	}
	if s.cfg.RenderTimeout <= 0 {
		s.cfg.RenderTimeout = DefaultRenderTimeout
	}

	tags.Subscribe(s)
	return s
}

// Enabled reports whether caching is on.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Key computes the store key of c for the current request: the cache ID
// alone when no discriminator resolves, otherwise cacheID/hash.
func (s *Service) Key(ctx context.Context, c *cachecontext.Context) (string, error) {
	if err := c.Validate(); err != nil {
		return "", errors.Join(ErrInvalidContext, err)
	}

	names := c.Contexts()
	if len(names) == 0 {
		return c.CacheID(), nil
	}

	entries, err := s.resolver.Discriminators(ctx, names)
	if err != nil {
		return "", err
	}
	return cachecontext.Key(c.CacheID(), entries), nil
}

// Get returns the cached value of c. It returns ErrNotFound on a miss, when
// the metadata is absent or unreadable, and whenever caching is disabled.
func (s *Service) Get(ctx context.Context, c *cachecontext.Context) (string, error) {
	if !s.cfg.Enabled {
		s.metrics.Lookup(metrics.ResultDisabled)
		return "", ErrNotFound
	}

	key, err := s.Key(ctx, c)
	if err != nil {
		return "", err
	}
	return s.get(logger.WithCacheKey(ctx, key), key)
}

// Set stores value for c together with its metadata, then tags it.
// It is a no-op when caching is disabled.
func (s *Service) Set(ctx context.Context, c *cachecontext.Context, value string) error {
	if !s.cfg.Enabled {
		return nil
	}

	key, err := s.Key(ctx, c)
	if err != nil {
		return err
	}
	return s.set(logger.WithCacheKey(ctx, key), key, c, value)
}

// GetOrSet returns the cached value of c, or renders it with fn and stores
// it when fn reports it cacheable. Concurrent misses for the same key share a
// single render. Cache failures are logged and never hide a rendered value.
// Each caller stops waiting when its own ctx is done; the shared render
// carries on for the others.
func (s *Service) GetOrSet(ctx context.Context, c *cachecontext.Context, fn RenderFunc) (string, error) {
	if !s.cfg.Enabled {
		s.metrics.Lookup(metrics.ResultDisabled)
		v, _, err := fn(ctx)
		return v, err
	}

	key, err := s.Key(ctx, c)
	if err != nil {
		if errors.Is(err, ErrInvalidContext) {
			return "", err
		}
		s.log.WarnContext(ctx, "cache key resolution failed, rendering uncached", slog.Any("error", err))
		v, _, err := fn(ctx)
		return v, err
	}
	ctx = logger.WithCacheKey(ctx, key)

	v, err := s.get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.log.WarnContext(ctx, "cache read failed, rendering", slog.Any("error", err))
	}

	ch := s.group.DoChan(key, func() (any, error) {
		return s.render(ctx, key, c, fn)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.Err != nil {
		return "", res.Err
	}

	r := res.Val.(rendered)
	if res.Shared && r.cacheable {
		if meta, err := cachecontext.Marshal(c); err == nil {
			local := scopeFrom(ctx)
			local.put(key, r.value)
			local.put(MetadataPrefix+key, string(meta))
		}
	}
	return r.value, nil
}

type rendered struct {
	value     string
	cacheable bool
}

// render runs fn for every caller waiting on key. It is detached from the
// cancellation of the caller that started it and bounded by RenderTimeout.
// A panic in fn is returned as ErrRenderPanic.
func (s *Service) render(ctx context.Context, key string, c *cachecontext.Context, fn RenderFunc) (out any, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RenderTimeout)
	defer cancel()

	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("%w: %v", ErrRenderPanic, rv)
		}
	}()

	start := time.Now()
	value, cacheable, err := fn(ctx)
	s.metrics.Rendered(time.Since(start))
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.set(ctx, key, c, value); err != nil {
			s.log.WarnContext(ctx, "cache write failed", slog.Any("error", err))
		}
	}
	return rendered{value: value, cacheable: cacheable}, nil
}

// TagRemoved removes every key and its metadata from the store.
// Keys that are already gone are ignored.
func (s *Service) TagRemoved(ctx context.Context, tag string, keys []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.removeConcurrency)

	for _, key := range keys {
		for _, k := range [2]string{key, MetadataPrefix + key} {
			g.Go(func() error {
				if err := s.store.Remove(gctx, k); err != nil && !errors.Is(err, cache.ErrNotFound) {
					return errors.Join(ErrRemove, err)
				}
				return nil
			})
		}
	}

	local := scopeFrom(ctx)
	for _, key := range keys {
		local.drop(key, MetadataPrefix+key)
	}

	if err := g.Wait(); err != nil {
		s.log.ErrorContext(ctx, "tag invalidation failed",
			slog.String("tag", tag),
			slog.Int("keys", len(keys)),
			slog.Any("error", err),
		)
		return err
	}

	s.metrics.Invalidated(len(keys))
	s.log.InfoContext(ctx, "tag invalidated", slog.String("tag", tag), slog.Int("keys", len(keys)))
	return nil
}

// InvalidateTag removes every entry carrying tag, through the tag index so
// that every subscriber is notified.
func (s *Service) InvalidateTag(ctx context.Context, tag string) error {
	return s.tags.Invalidate(ctx, tag)
}

// Keys lists the cache keys currently carrying tag.
func (s *Service) Keys(ctx context.Context, tag string) ([]string, error) {
	return s.tags.Keys(ctx, tag)
}

// Prune drops tag index members whose entries expired on their own.
func (s *Service) Prune(ctx context.Context) (int, error) {
	n, err := s.tags.Prune(ctx, s.Exists)
	if err != nil {
		return n, err
	}
	s.metrics.Pruned(n)
	if n > 0 {
		s.log.InfoContext(ctx, "tag index pruned", slog.Int("keys", n))
	}
	return n, nil
}

// Exists reports whether key still has metadata in the store. It does not
// slide the entry expiry.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	return s.store.Has(ctx, MetadataPrefix+key)
}

func (s *Service) get(ctx context.Context, key string) (string, error) {
	local := scopeFrom(ctx)

	raw, metaLocal, err := s.read(ctx, local, MetadataPrefix+key)
	if err != nil {
		return "", s.lookupFailed(ctx, err)
	}
	if _, err := cachecontext.Unmarshal([]byte(raw)); err != nil {
		s.log.ErrorContext(ctx, "discarding unreadable cache metadata",
			slog.Any("error", errors.Join(ErrCorruptMetadata, err)),
		)
		local.drop(MetadataPrefix + key)
		s.metrics.Lookup(metrics.ResultMiss)
		return "", ErrNotFound
	}

	value, valueLocal, err := s.read(ctx, local, key)
	if err != nil {
		return "", s.lookupFailed(ctx, err)
	}

	if metaLocal && valueLocal {
		s.metrics.Lookup(metrics.ResultHitLocal)
	} else {
		s.metrics.Lookup(metrics.ResultHitStore)
	}
	return value, nil
}

func (s *Service) lookupFailed(ctx context.Context, err error) error {
	if errors.Is(err, ErrNotFound) {
		s.metrics.Lookup(metrics.ResultMiss)
		return err
	}
	s.metrics.Lookup(metrics.ResultError)
	s.log.WarnContext(ctx, "cache read failed", slog.Any("error", err))
	return err
}

// read returns the local copy of key when present, otherwise the store copy,
// which is then kept locally. The flag reports a local hit.
func (s *Service) read(ctx context.Context, local *scope, key string) (string, bool, error) {
	if v, ok := local.get(key); ok {
		return v, true, nil
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", false, ErrNotFound
		}
		return "", false, errors.Join(ErrRead, err)
	}

	v := string(data)
	local.put(key, v)
	return v, false, nil
}

func (s *Service) set(ctx context.Context, key string, c *cachecontext.Context, value string) error {
	meta, err := cachecontext.Marshal(c)
	if err != nil {
		return err
	}
	metaKey := MetadataPrefix + key
	opts := s.entryOptions(c)

	local := scopeFrom(ctx)
	local.put(key, value)
	local.put(metaKey, string(meta))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.store.Set(gctx, key, []byte(value), opts) })
	g.Go(func() error { return s.store.Set(gctx, metaKey, meta, opts) })

	err = g.Wait()
	s.metrics.Write(err)
	if err != nil {
		local.drop(key, metaKey)
		s.log.WarnContext(ctx, "cache write failed", slog.Any("error", err))
		return errors.Join(ErrWrite, err)
	}

	tags := c.Tags()
	if len(tags) == 0 {
		return nil
	}
	if err := s.tags.Tag(ctx, key, tags...); err != nil {
		// An untagged entry would survive invalidation of its tags.
		local.drop(key, metaKey)
		_ = s.store.Remove(ctx, metaKey)
		_ = s.store.Remove(ctx, key)
		s.log.WarnContext(ctx, "cache tagging failed, entry removed", slog.Any("error", err))
		return errors.Join(ErrTag, err)
	}
	return nil
}

// entryOptions maps the context expiry onto store options, falling back to
// the default sliding expiration when the context sets none.
func (s *Service) entryOptions(c *cachecontext.Context) cache.EntryOptions {
	opts := cache.EntryOptions{
		AbsoluteExpiration:              c.ExpiresOn,
		AbsoluteExpirationRelativeToNow: c.ExpiresAfter,
		SlidingExpiration:               c.ExpiresSliding,
	}
	if opts.IsZero() {
		opts.SlidingExpiration = s.cfg.DefaultSliding
	}
	return opts
}

var _ tagcache.Handler = (*Service)(nil)
