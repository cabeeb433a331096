package dynamiccache_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type userCtx struct{}

func withUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userCtx{}, user)
}

// countingResolver resolves "user" from the context and counts calls.
type countingResolver struct {
	calls atomic.Int64
}

func (r *countingResolver) Discriminators(ctx context.Context, names []string) ([]cachecontext.Entry, error) {
	r.calls.Add(1)
	m := cachecontext.NewManager(cachecontext.Func("user", func(ctx context.Context) (string, error) {
		v, _ := ctx.Value(userCtx{}).(string)
		return v, nil
	}))
	return m.Discriminators(ctx, names)
}

type fixture struct {
	svc      *dynamiccache.Service
	store    *cache.Memory
	tags     *tagcache.Memory
	resolver *countingResolver
	clock    *fakeClock
}

func newFixture(t *testing.T, opts ...dynamiccache.Option) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewMemory(cache.WithClock(clock.Now), cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	tags := tagcache.NewMemory()
	resolver := &countingResolver{}

	return &fixture{
		svc:      dynamiccache.New(resolver, store, tags, opts...),
		store:    store,
		tags:     tags,
		resolver: resolver,
		clock:    clock,
	}
}

// laggingStore accepts writes but only makes them visible on flush,
// like a replicated store read from a lagging replica.
type laggingStore struct {
	cache.Store
	pending map[string][]byte
	mu      sync.Mutex
}

func newLaggingStore(t *testing.T) *laggingStore {
	t.Helper()

	inner := cache.NewMemory(cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = inner.Close() })
	return &laggingStore{Store: inner, pending: make(map[string][]byte)}
}

func (s *laggingStore) Set(_ context.Context, key string, value []byte, _ cache.EntryOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = value
	return nil
}

func (s *laggingStore) flush(t *testing.T) {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.pending {
		require.NoError(t, s.Store.Set(context.Background(), k, v, cache.EntryOptions{}))
	}
	clear(s.pending)
}

// failingStore fails every operation on keys with the given prefix.
type failingStore struct {
	cache.Store
	prefix string
	err    error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.HasPrefix(key, s.prefix) {
		return nil, s.err
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte, opts cache.EntryOptions) error {
	if strings.HasPrefix(key, s.prefix) {
		return s.err
	}
	return s.Store.Set(ctx, key, value, opts)
}

var errStoreDown = errors.New("store down")

// failingTags rejects every Tag call.
type failingTags struct {
	*tagcache.Memory
}

func (failingTags) Tag(context.Context, string, ...string) error {
	return errors.New("index down")
}
