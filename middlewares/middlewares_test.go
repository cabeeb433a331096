package middlewares_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dyncache/middlewares"
	"github.com/dmitrymomot/dyncache/pkg/cache"
	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/discriminator"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/logger"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := middlewares.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = middlewares.GetRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("reuses upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Correlation-ID", "corr-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "corr-1", seen)
		require.Equal(t, "corr-1", rec.Header().Get("X-Request-ID"))
	})

	t.Run("custom generator", func(t *testing.T) {
		t.Parallel()

		h := middlewares.RequestID(middlewares.WithRequestIDGenerator(func() string { return "fixed" }))(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))
	})

	t.Run("extractor", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.NewWithWriter(&buf, logger.Config{}, middlewares.RequestIDExtractor())
		h := middlewares.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			log.InfoContext(r.Context(), "handled")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.Equal(t, "abc", rec["request_id"])
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := middlewares.Recover(middlewares.WithRecoverLogger(log))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, buf.String(), "panic recovered")
	require.Contains(t, buf.String(), "stack")

	require.Panics(t, func() {
		middlewares.Recover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestScope(t *testing.T) {
	t.Parallel()

	h := middlewares.Scope(middlewares.HeaderPrincipal("X-User-ID", "X-User-Roles"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			require.True(t, dynamiccache.HasScope(ctx))
			require.NotNil(t, discriminator.RequestFromContext(ctx))

			p, ok := discriminator.PrincipalFromContext(ctx)
			require.True(t, ok)
			require.Equal(t, "42", p.ID)
			require.Equal(t, []string{"editor", "admin"}, p.Roles)
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "42")
	req.Header.Set("X-User-Roles", "editor, admin,")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, middlewares.Profile{Pattern: "/"}.Validate(), middlewares.ErrInvalidProfile)
	require.ErrorIs(t, middlewares.Profile{Name: "x", Pattern: "blog"}.Validate(), middlewares.ErrInvalidProfile)
	require.ErrorIs(t, middlewares.Profile{Name: "x", Pattern: "/", Sliding: -time.Second}.Validate(), middlewares.ErrInvalidProfile)
	require.NoError(t, middlewares.Profile{Name: "x", Pattern: "/"}.Validate())

	p := middlewares.Profile{
		Name:         "post",
		Pattern:      "/blog/{slug}",
		Contexts:     []string{"culture"},
		Tags:         []string{"blog", "post:{slug}"},
		ExpiresAfter: time.Minute,
	}

	var c *cachecontext.Context
	r := chi.NewRouter()
	r.Get(p.Pattern, func(_ http.ResponseWriter, req *http.Request) {
		c = p.CacheContext(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blog/hello", nil))

	require.NotNil(t, c)
	require.Equal(t, "response:post", c.CacheID())
	require.Equal(t, []string{"culture", "header:accept-encoding", "route"}, c.Contexts())
	require.Equal(t, []string{"blog", "post:hello"}, c.Tags())
	require.Equal(t, time.Minute, c.ExpiresAfter)
}

type proxyFixture struct {
	router http.Handler
	svc    *dynamiccache.Service
	calls  *atomic.Int64
}

func newProxyFixture(t *testing.T, upstream http.HandlerFunc) *proxyFixture {
	t.Helper()

	store := cache.NewMemory(cache.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	manager := cachecontext.NewManager(discriminator.Defaults([]string{"en", "fr"})...)
	svc := dynamiccache.New(manager, store, tagcache.NewMemory())

	var calls atomic.Int64
	p := middlewares.Profile{
		Name:     "post",
		Pattern:  "/blog/{slug}",
		Contexts: []string{"culture"},
		Tags:     []string{"post:{slug}"},
	}

	r := chi.NewRouter()
	r.Use(middlewares.Scope(nil))
	handler := func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		upstream(w, req)
	}
	cached := r.With(middlewares.ResponseCache(svc, p, middlewares.WithMaxBodySize(64)))
	cached.Get(p.Pattern, handler)
	cached.Head(p.Pattern, handler)

	return &proxyFixture{router: r, svc: svc, calls: &calls}
}

func (f *proxyFixture) get(t *testing.T, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestResponseCache(t *testing.T) {
	t.Parallel()

	t.Run("miss then hit", func(t *testing.T) {
		t.Parallel()

		f := newProxyFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("X-Internal", "secret")
			_, _ = w.Write([]byte("<h1>post</h1>"))
		})

		rec := f.get(t, "/blog/hello")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "<h1>post</h1>", rec.Body.String())

		rec = f.get(t, "/blog/hello")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, middlewares.CacheHit, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "<h1>post</h1>", rec.Body.String())
		require.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		require.Empty(t, rec.Header().Get("X-Internal"), "only selected headers are replayed")
		require.Equal(t, int64(1), f.calls.Load())

		f.get(t, "/blog/other")
		require.Equal(t, int64(2), f.calls.Load(), "route params discriminate")
	})

	t.Run("varies by culture", func(t *testing.T) {
		t.Parallel()

		f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(r.Header.Get("Accept-Language")))
		})

		require.Equal(t, "en", f.get(t, "/blog/a", "Accept-Language", "en").Body.String())
		require.Equal(t, "fr", f.get(t, "/blog/a", "Accept-Language", "fr").Body.String())
		require.Equal(t, "fr", f.get(t, "/blog/a", "Accept-Language", "fr").Body.String())
		require.Equal(t, int64(2), f.calls.Load())
	})

	t.Run("tag invalidation from profile and upstream", func(t *testing.T) {
		t.Parallel()

		f := newProxyFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(middlewares.HeaderCacheTags, "author:7, blog")
			_, _ = w.Write([]byte("ok"))
		})

		rec := f.get(t, "/blog/hello")
		require.Empty(t, rec.Header().Get(middlewares.HeaderCacheTags), "tag header is not forwarded")
		f.get(t, "/blog/hello")
		require.Equal(t, int64(1), f.calls.Load())

		ctx := context.Background()
		require.NoError(t, f.svc.InvalidateTag(ctx, "author:7"))
		f.get(t, "/blog/hello")
		require.Equal(t, int64(2), f.calls.Load())

		require.NoError(t, f.svc.InvalidateTag(ctx, "post:hello"))
		f.get(t, "/blog/hello")
		require.Equal(t, int64(3), f.calls.Load())
	})

	t.Run("uncacheable responses", func(t *testing.T) {
		t.Parallel()

		cases := map[string]http.HandlerFunc{
			"not found": http.NotFound,
			"set cookie": func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Set-Cookie", "sid=1")
				_, _ = w.Write([]byte("ok"))
			},
			"no-store": func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				_, _ = w.Write([]byte("ok"))
			},
			"private": func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Cache-Control", "Private, max-age=60")
				_, _ = w.Write([]byte("ok"))
			},
			"too large": func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte("x"), 65))
			},
		}

		for name, upstream := range cases {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				f := newProxyFixture(t, upstream)
				f.get(t, "/blog/hello")
				rec := f.get(t, "/blog/hello")
				require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
				require.Equal(t, int64(2), f.calls.Load())
			})
		}
	})

	t.Run("compressed and identity bodies are cached apart", func(t *testing.T) {
		t.Parallel()

		f := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Accept-Encoding")
			if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				w.Header().Set("Content-Encoding", "gzip")
				_, _ = w.Write([]byte("gzipped"))
				return
			}
			_, _ = w.Write([]byte("plain"))
		})

		rec := f.get(t, "/blog/hello", "Accept-Encoding", "gzip")
		require.Equal(t, "gzipped", rec.Body.String())

		rec = f.get(t, "/blog/hello")
		require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "plain", rec.Body.String())
		require.Empty(t, rec.Header().Get("Content-Encoding"))

		rec = f.get(t, "/blog/hello", "Accept-Encoding", "gzip")
		require.Equal(t, middlewares.CacheHit, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		require.Equal(t, "gzipped", rec.Body.String())

		rec = f.get(t, "/blog/hello")
		require.Equal(t, middlewares.CacheHit, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "plain", rec.Body.String())
		require.Equal(t, int64(2), f.calls.Load())
	})

	t.Run("vary", func(t *testing.T) {
		t.Parallel()

		cases := map[string]struct {
			vary   string
			cached bool
		}{
			"covered by culture": {vary: "Accept-Language", cached: true},
			"covered encoding":   {vary: "accept-encoding, Accept-Language", cached: true},
			"uncovered header":   {vary: "X-Device", cached: false},
			"partly uncovered":   {vary: "Accept-Language, Cookie", cached: false},
			"everything":         {vary: "*", cached: false},
		}

		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				f := newProxyFixture(t, func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Vary", tc.vary)
					_, _ = w.Write([]byte("ok"))
				})
				f.get(t, "/blog/hello")
				rec := f.get(t, "/blog/hello")

				if tc.cached {
					require.Equal(t, middlewares.CacheHit, rec.Header().Get(middlewares.HeaderCache))
					require.Equal(t, tc.vary, rec.Header().Get("Vary"))
					require.Equal(t, int64(1), f.calls.Load())
					return
				}
				require.Equal(t, middlewares.CacheMiss, rec.Header().Get(middlewares.HeaderCache))
				require.Equal(t, int64(2), f.calls.Load())
			})
		}
	})

	t.Run("head uses the cached get", func(t *testing.T) {
		t.Parallel()

		f := newProxyFixture(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("body"))
		})
		f.get(t, "/blog/hello")

		req := httptest.NewRequest(http.MethodHead, "/blog/hello", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, middlewares.CacheHit, rec.Header().Get(middlewares.HeaderCache))
		require.Equal(t, "4", rec.Header().Get("Content-Length"))
		require.Zero(t, rec.Body.Len())
	})
}
