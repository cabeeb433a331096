package discriminator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/discriminator"
)

func resolve(t *testing.T, ctx context.Context, p cachecontext.Provider, names ...string) map[string]string {
	t.Helper()

	entries, err := cachecontext.NewManager(p).Discriminators(ctx, names)
	require.NoError(t, err)

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Value
	}
	return out
}

func requestCtx(r *http.Request) context.Context {
	return discriminator.WithRequest(context.Background(), r)
}

func TestQuery(t *testing.T) {
	t.Parallel()

	t.Run("full query is canonical", func(t *testing.T) {
		t.Parallel()

		a := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/?b=2&a=1&a=0", nil)), discriminator.Query(), "query")
		b := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/?a=0&b=2&a=1", nil)), discriminator.Query(), "query")

		require.Equal(t, "a=0&a=1&b=2", a["query"])
		require.Equal(t, a, b)
	})

	t.Run("single parameter", func(t *testing.T) {
		t.Parallel()

		got := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/?page=2&sort=asc", nil)), discriminator.Query(), "query:page", "query:missing")
		require.Equal(t, map[string]string{"query:page": "2", "query:missing": ""}, got)
	})

	t.Run("repeated values differ from a joined value", func(t *testing.T) {
		t.Parallel()

		joined := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/?t=a,b", nil)), discriminator.Query(), "query:t")
		repeated := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/?t=b&t=a", nil)), discriminator.Query(), "query:t")
		require.NotEqual(t, joined["query:t"], repeated["query:t"])
		require.Equal(t, "a,b", repeated["query:t"])
	})

	t.Run("without request", func(t *testing.T) {
		t.Parallel()

		got := resolve(t, context.Background(), discriminator.Query(), "query")
		require.Equal(t, map[string]string{"query": ""}, got)
	})
}

func TestRoute(t *testing.T) {
	t.Parallel()

	t.Run("uses chi pattern and params", func(t *testing.T) {
		t.Parallel()

		var got map[string]string
		r := chi.NewRouter()
		r.Get("/posts/{slug}/comments/{page}", func(_ http.ResponseWriter, req *http.Request) {
			got = resolve(t, discriminator.WithRequest(req.Context(), req), discriminator.Route(), "route")
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/hello/comments/3", nil))

		require.Equal(t, "/posts/{slug}/comments/{page};page=3;slug=hello", got["route"])
	})

	t.Run("falls back to path", func(t *testing.T) {
		t.Parallel()

		got := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/about?x=1", nil)), discriminator.Route(), "route")
		require.Equal(t, "/about", got["route"])
	})
}

func TestUser(t *testing.T) {
	t.Parallel()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()

		got := resolve(t, context.Background(), discriminator.User(), "user", "user.roles")
		require.Equal(t, map[string]string{"user": "anonymous", "user.roles": "anonymous"}, got)
	})

	t.Run("principal", func(t *testing.T) {
		t.Parallel()

		ctx := discriminator.WithPrincipal(context.Background(), discriminator.Principal{
			ID:    "42",
			Roles: []string{"editor", "admin", "editor"},
		})
		got := resolve(t, ctx, discriminator.User(), "user", "user.roles")
		require.Equal(t, map[string]string{"user": "42", "user.roles": "admin,editor"}, got)
	})

	t.Run("same roles share a value across users", func(t *testing.T) {
		t.Parallel()

		a := discriminator.WithPrincipal(context.Background(), discriminator.Principal{ID: "1", Roles: []string{"editor"}})
		b := discriminator.WithPrincipal(context.Background(), discriminator.Principal{ID: "2", Roles: []string{"editor"}})
		require.Equal(t, resolve(t, a, discriminator.User(), "user.roles"), resolve(t, b, discriminator.User(), "user.roles"))
	})
}

func TestCulture(t *testing.T) {
	t.Parallel()

	p := discriminator.Culture([]string{"en", "fr", "de"})

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{name: "exact match", header: "fr", want: "fr"},
		{name: "region falls back to language", header: "de-AT,de;q=0.9", want: "de"},
		{name: "quality ordering", header: "es;q=1.0,fr;q=0.8,en;q=0.5", want: "fr"},
		{name: "no header uses first culture", header: "", want: "en"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Accept-Language", tc.header)
			}
			require.Equal(t, tc.want, resolve(t, requestCtx(r), p, "culture")["culture"])
		})
	}

	t.Run("pinned culture wins", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept-Language", "fr")
		ctx := discriminator.WithCulture(requestCtx(r), "de")
		require.Equal(t, "de", resolve(t, ctx, p, "culture")["culture"])
	})
}

func TestTenant(t *testing.T) {
	t.Parallel()

	cases := []struct {
		host string
		want string
	}{
		{host: "acme.example.com", want: "acme"},
		{host: "ACME.example.com:8080", want: "acme"},
		{host: "example.com", want: "default"},
		{host: "localhost:8080", want: "default"},
	}

	for _, tc := range cases {
		t.Run(tc.host, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tc.host
			require.Equal(t, tc.want, resolve(t, requestCtx(r), discriminator.Tenant(), "tenant")["tenant"])
		})
	}

	t.Run("pinned tenant wins", func(t *testing.T) {
		t.Parallel()

		ctx := discriminator.WithTenant(context.Background(), "globex")
		require.Equal(t, "globex", resolve(t, ctx, discriminator.Tenant(), "tenant")["tenant"])
	})
}

func TestKnown(t *testing.T) {
	t.Parallel()

	got := resolve(t, context.Background(), discriminator.Known(), "known:v2", "culture")
	require.Equal(t, map[string]string{"known:v2": "v2"}, got)
}

func TestHeader(t *testing.T) {
	t.Parallel()

	t.Run("token order and case do not matter", func(t *testing.T) {
		t.Parallel()

		a := httptest.NewRequest(http.MethodGet, "/", nil)
		a.Header.Set("Accept-Encoding", "gzip, br")
		b := httptest.NewRequest(http.MethodGet, "/", nil)
		b.Header.Add("Accept-Encoding", "BR")
		b.Header.Add("Accept-Encoding", "gzip")

		got := resolve(t, requestCtx(a), discriminator.Header(), "header:accept-encoding")
		require.Equal(t, map[string]string{"header:accept-encoding": "br,gzip"}, got)
		require.Equal(t, got, resolve(t, requestCtx(b), discriminator.Header(), "header:accept-encoding"))
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		got := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/", nil)), discriminator.Header(), "header:accept-encoding", "culture")
		require.Equal(t, map[string]string{"header:accept-encoding": ""}, got)
	})

	t.Run("identity differs from gzip", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept-Encoding", "gzip")
		gzip := resolve(t, requestCtx(r), discriminator.Header(), "header:accept-encoding")
		plain := resolve(t, requestCtx(httptest.NewRequest(http.MethodGet, "/", nil)), discriminator.Header(), "header:accept-encoding")
		require.NotEqual(t, gzip, plain)
	})
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/?page=1", nil)
	r.Host = "acme.example.com"
	r.Header.Set("Accept-Language", "fr")

	m := cachecontext.NewManager(discriminator.Defaults([]string{"en", "fr"})...)
	entries, err := m.Discriminators(requestCtx(r), []string{"culture", "tenant", "query:page", "header:accept-language", "user", "unknown"})
	require.NoError(t, err)
	require.ElementsMatch(t, []cachecontext.Entry{
		{Name: "culture", Value: "fr"},
		{Name: "tenant", Value: "acme"},
		{Name: "query:page", Value: "1"},
		{Name: "header:accept-language", Value: "fr"},
		{Name: "user", Value: "anonymous"},
	}, entries)
}
