package app

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/dyncache/middlewares"
	"github.com/dmitrymomot/dyncache/pkg/health"
	"github.com/dmitrymomot/dyncache/pkg/metrics"
	"github.com/dmitrymomot/dyncache/pkg/tagcache"
)

// Route paths served next to the proxied site.
const (
	LivenessPath  = "/health/live"
	ReadinessPath = "/health/ready"
	MetricsPath   = "/metrics"
	AdminPrefix   = "/_dyncache"
)

// Handler builds the router: health, metrics and admin endpoints, then the
// caching reverse proxy. Each profile is mounted on its pattern; every other
// path is proxied uncached.
func (a *App) Handler(upstream string, profiles []middlewares.Profile) (http.Handler, error) {
	proxy, err := a.newProxy(upstream)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(
		middlewares.RequestID(),
		middlewares.Recover(middlewares.WithRecoverLogger(a.log)),
		a.metrics.Middleware,
	)

	r.Get(LivenessPath, health.LivenessHandler())
	r.Get(ReadinessPath, health.ReadinessHandler(a.checks, health.WithLogger(a.log)))
	r.Handle(MetricsPath, metrics.Handler(a.registry))

	if a.cfg.Server.AdminToken != "" {
		r.Route(AdminPrefix, func(r chi.Router) {
			r.Use(bearerAuth(a.cfg.Server.AdminToken))
			r.Post("/tags/{tag}/invalidate", a.invalidateTag)
			r.Get("/tags/{tag}", a.tagKeys)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Scope(middlewares.HeaderPrincipal(a.cfg.Server.UserHeader, a.cfg.Server.RolesHeader)))

		for _, p := range profiles {
			cached := middlewares.ResponseCache(a.service, p, middlewares.WithResponseCacheLogger(a.log))
			r.Handle(p.Pattern, proxy)
			r.With(cached).Get(p.Pattern, proxy.ServeHTTP)
			r.With(cached).Head(p.Pattern, proxy.ServeHTTP)
		}
		r.Handle("/*", proxy)
	})

	return r, nil
}

func (a *App) newProxy(upstream string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, errors.Join(ErrInvalidUpstream, err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Upstream sites are usually virtual-hosted on the public name.
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			a.log.ErrorContext(r.Context(), "upstream request failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}, nil
}

func (a *App) invalidateTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := a.service.InvalidateTag(r.Context(), tag); err != nil {
		a.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tag": tag, "status": "invalidated"})
}

func (a *App) tagKeys(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	keys, err := a.service.Keys(r.Context(), tag)
	if err != nil {
		a.adminError(w, r, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tag": tag, "keys": keys})
}

func (a *App) adminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tagcache.ErrEmptyTag) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	a.log.ErrorContext(r.Context(), "admin request failed", slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
}

// bearerAuth rejects requests without "Authorization: Bearer <token>".
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="dyncache"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": http.StatusText(http.StatusUnauthorized)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
