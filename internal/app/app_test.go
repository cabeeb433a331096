package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dyncache/internal/app"
	"github.com/dmitrymomot/dyncache/internal/config"
	"github.com/dmitrymomot/dyncache/middlewares"
	"github.com/dmitrymomot/dyncache/pkg/logger"
)

const adminToken = "secret"

type fixture struct {
	app      *app.App
	handler  http.Handler
	upstream *atomic.Int64
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	var calls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		body := "page " + r.URL.Path
		if r.URL.RawQuery != "" {
			body += "?" + r.URL.RawQuery
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(upstream.Close)

	cfg, err := config.LoadFrom(map[string]string{
		"DYNCACHE_UPSTREAM":    upstream.URL,
		"DYNCACHE_ADMIN_TOKEN": adminToken,
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := app.New(context.Background(), cfg, logger.NewNope())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	h, err := a.Handler(cfg.Server.Upstream, []middlewares.Profile{
		{
			Name:    "blog",
			Pattern: "/blog/{slug}",
			Tags:    []string{"post:{slug}"},
		},
		{
			Name:     "search",
			Pattern:  "/search",
			Contexts: []string{"query:x", "query:y"},
		},
	})
	require.NoError(t, err)

	return &fixture{app: a, handler: h, upstream: &calls}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Proxy(t *testing.T) {
	t.Parallel()

	t.Run("profile route is cached", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		first := f.do(t, http.MethodGet, "/blog/hello", "")
		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, middlewares.CacheMiss, first.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "page /blog/hello", first.Body.String())

		second := f.do(t, http.MethodGet, "/blog/hello", "")
		require.Equal(t, http.StatusOK, second.Code)
		require.Equal(t, middlewares.CacheHit, second.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "page /blog/hello", second.Body.String())
		require.Equal(t, "text/plain", second.Header().Get("Content-Type"))

		require.EqualValues(t, 1, f.upstream.Load())
	})

	t.Run("distinct parameters are distinct entries", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		f.do(t, http.MethodGet, "/blog/a", "")
		rec := f.do(t, http.MethodGet, "/blog/b", "")
		require.Equal(t, "page /blog/b", rec.Body.String())
		require.EqualValues(t, 2, f.upstream.Load())
	})

	t.Run("crafted query values do not share an entry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		first := f.do(t, http.MethodGet, "/search?x=p%3Bquery%3Ay%3Dq&y=r", "")
		require.Equal(t, middlewares.CacheMiss, first.Header().Get(middlewares.HeaderCache))

		second := f.do(t, http.MethodGet, "/search?x=p&y=q%3Bquery%3Ay%3Dr", "")
		require.Equal(t, middlewares.CacheMiss, second.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "page /search?x=p&y=q%3Bquery%3Ay%3Dr", second.Body.String())
		require.EqualValues(t, 2, f.upstream.Load())
	})

	t.Run("other paths are proxied uncached", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		for range 2 {
			rec := f.do(t, http.MethodGet, "/about", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Empty(t, rec.Header().Get(middlewares.HeaderCache))
		}
		require.EqualValues(t, 2, f.upstream.Load())
	})

	t.Run("non-GET methods on profile routes bypass the cache", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		for range 2 {
			rec := f.do(t, http.MethodPost, "/blog/hello", "")
			require.Equal(t, http.StatusOK, rec.Code)
		}
		require.EqualValues(t, 2, f.upstream.Load())
	})

	t.Run("disabled cache always reaches upstream", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(cfg *config.Config) { cfg.Cache.Enabled = false })

		for range 2 {
			rec := f.do(t, http.MethodGet, "/blog/hello", "")
			require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
		}
		require.EqualValues(t, 2, f.upstream.Load())
	})
}

func TestHandler_InvalidUpstream(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.app.Handler("not a url", nil)
	require.ErrorIs(t, err, app.ErrInvalidUpstream)
}

func TestHandler_Admin(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing or wrong token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, app.AdminPrefix+"/tags/post:hello", "").Code)
		require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, app.AdminPrefix+"/tags/post:hello/invalidate", "wrong").Code)
	})

	t.Run("lists keys and invalidates a tag", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		f.do(t, http.MethodGet, "/blog/hello", "")

		rec := f.do(t, http.MethodGet, app.AdminPrefix+"/tags/post:hello", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var listed struct {
			Tag  string   `json:"tag"`
			Keys []string `json:"keys"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		require.Equal(t, "post:hello", listed.Tag)
		require.Len(t, listed.Keys, 1)

		rec = f.do(t, http.MethodPost, app.AdminPrefix+"/tags/post:hello/invalidate", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/blog/hello", "")
		require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
		require.EqualValues(t, 2, f.upstream.Load())

		rec = f.do(t, http.MethodGet, app.AdminPrefix+"/tags/unknown", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"tag":"unknown","keys":[]}`, rec.Body.String())
	})

	t.Run("disabled without a token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(cfg *config.Config) { cfg.Server.AdminToken = "" })

		rec := f.do(t, http.MethodPost, app.AdminPrefix+"/tags/post:hello/invalidate", adminToken)
		require.Equal(t, "page "+app.AdminPrefix+"/tags/post:hello/invalidate", rec.Body.String(), "admin paths fall through to the upstream")
	})
}

func TestHandler_Operational(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, app.LivenessPath, "").Code)

	rec := f.do(t, http.MethodGet, app.ReadinessPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"store"`)

	f.do(t, http.MethodGet, "/blog/hello", "")
	rec = f.do(t, http.MethodGet, app.MetricsPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "dyncache_lookups_total"), "lookups counter exported")
	require.Contains(t, body, "dyncache_http_request_duration_seconds")
	require.EqualValues(t, 1, f.upstream.Load())
}

func TestSweeper(t *testing.T) {
	t.Parallel()

	t.Run("sweep prunes the tag index", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		f.do(t, http.MethodGet, "/blog/hello", "")
		require.NoError(t, f.app.Sweep(context.Background()))

		keys, err := f.app.Service().Keys(context.Background(), "post:hello")
		require.NoError(t, err)
		require.Len(t, keys, 1, "live entries survive the sweep")
	})

	t.Run("starts and stops", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		start, stop, err := f.app.Sweeper()
		require.NoError(t, err)
		require.NoError(t, start(context.Background()))
		require.NoError(t, stop(context.Background()))
	})

	t.Run("empty schedule disables it", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(cfg *config.Config) { cfg.SweepSchedule = "" })

		start, stop, err := f.app.Sweeper()
		require.NoError(t, err)
		require.NoError(t, start(context.Background()))
		require.NoError(t, stop(context.Background()))
	})

	t.Run("rejects a bad schedule", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(cfg *config.Config) { cfg.SweepSchedule = "every now and then" })

		_, _, err := f.app.Sweeper()
		require.ErrorIs(t, err, app.ErrInvalidSchedule)
	})
}
