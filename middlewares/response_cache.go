package middlewares

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
	"github.com/dmitrymomot/dyncache/pkg/logger"
)

// Response headers used by the response cache.
const (
	HeaderCache     = "X-Cache"
	HeaderCacheTags = "X-Cache-Tags"

	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// DefaultCachedHeaders are the response headers replayed on a hit.
var DefaultCachedHeaders = []string{
	"Content-Type",
	"Content-Language",
	"Content-Encoding",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"Vary",
}

// DefaultMaxBodySize caps the size of cacheable responses.
const DefaultMaxBodySize = 1 << 20

// Cache is the part of the dynamic cache service the middleware uses.
type Cache interface {
	Get(ctx context.Context, c *cachecontext.Context) (string, error)
	Set(ctx context.Context, c *cachecontext.Context, value string) error
}

// ResponseCacheConfig configures the response cache middleware.
type ResponseCacheConfig struct {
	Logger      *slog.Logger
	Headers     []string
	MaxBodySize int
}

// ResponseCacheOption configures ResponseCacheConfig.
type ResponseCacheOption func(*ResponseCacheConfig)

// WithCachedHeaders replaces the list of headers stored with a response.
func WithCachedHeaders(headers ...string) ResponseCacheOption {
	return func(cfg *ResponseCacheConfig) {
		cfg.Headers = headers
	}
}

// WithMaxBodySize sets the largest body that is cached.
func WithMaxBodySize(n int) ResponseCacheOption {
	return func(cfg *ResponseCacheConfig) {
		if n > 0 {
			cfg.MaxBodySize = n
		}
	}
}

// WithResponseCacheLogger sets the logger for cache failures.
func WithResponseCacheLogger(log *slog.Logger) ResponseCacheOption {
	return func(cfg *ResponseCacheConfig) {
		cfg.Logger = log
	}
}

// cachedResponse is the envelope stored in the cache.
type cachedResponse struct {
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
	Status int         `json:"status"`
}

// ResponseCache serves GET and HEAD requests of a profile from svc and
// caches successful GET responses. Mount it on the route matching the
// profile pattern, inside Scope.
//
// A response is stored only if it is a 200 without Set-Cookie, without
// Cache-Control no-store or private, and not larger than the body limit.
// A Vary header must be covered by the profile discriminators: "*" or a
// header the cache context does not vary by keeps the response out.
// Tags listed by the handler in X-Cache-Tags are added to the profile tags
// and the header is not forwarded to clients.
func ResponseCache(svc Cache, p Profile, opts ...ResponseCacheOption) func(http.Handler) http.Handler {
	cfg := &ResponseCacheConfig{
		Headers:     DefaultCachedHeaders,
		MaxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := logger.OrNope(cfg.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cc := p.CacheContext(r)

			raw, err := svc.Get(ctx, cc)
			switch {
			case err == nil:
				if replay(w, r, raw) {
					return
				}
				log.ErrorContext(ctx, "discarding cached response", slog.String("profile", p.Name), slog.Any("error", ErrCorruptResponse))
			case !errors.Is(err, dynamiccache.ErrNotFound):
				log.WarnContext(ctx, "response cache lookup failed", slog.String("profile", p.Name), slog.Any("error", err))
			}

			w.Header().Set(HeaderCache, CacheMiss)
			if r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			rec := &captureWriter{ResponseWriter: w, limit: cfg.MaxBodySize}
			next.ServeHTTP(rec, r)

			if !rec.cacheable() {
				return
			}
			if h, ok := varyCovered(rec.header, cc.Contexts()); !ok {
				log.DebugContext(ctx, "response varies by an uncovered header", slog.String("profile", p.Name), slog.String("header", h))
				return
			}

			data, err := json.Marshal(cachedResponse{
				Status: rec.status(),
				Header: selectHeaders(rec.header, cfg.Headers),
				Body:   rec.body.Bytes(),
			})
			if err != nil {
				log.ErrorContext(ctx, "encoding response failed", slog.Any("error", err))
				return
			}

			if len(rec.tags) > 0 {
				cc = cc.Clone().AddTag(rec.tags...)
			}
			if err := svc.Set(ctx, cc, string(data)); err != nil {
				log.WarnContext(ctx, "response cache write failed", slog.String("profile", p.Name), slog.Any("error", err))
			}
		})
	}
}

// replay writes a cached envelope. It returns false when the envelope is
// unreadable and nothing was written.
func replay(w http.ResponseWriter, r *http.Request, raw string) bool {
	var resp cachedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || resp.Status == 0 {
		return false
	}

	h := w.Header()
	for k, v := range resp.Header {
		h[k] = v
	}
	h.Set(HeaderCache, CacheHit)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)

	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
	return true
}

// varyCovered reports whether every Vary entry of h is discriminated by
// contexts, and otherwise the first entry that is not.
func varyCovered(h http.Header, contexts []string) (string, bool) {
	var covered map[string]bool
	for _, v := range h.Values("Vary") {
		for name := range strings.SplitSeq(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if name == "*" {
				return name, false
			}
			if covered == nil {
				covered = coveredHeaders(contexts)
			}
			if !covered[http.CanonicalHeaderKey(name)] {
				return name, false
			}
		}
	}
	return "", true
}

func selectHeaders(from http.Header, names []string) http.Header {
	out := make(http.Header, len(names))
	for _, name := range names {
		if v := from.Values(name); len(v) > 0 {
			out[http.CanonicalHeaderKey(name)] = v
		}
	}
	return out
}

// captureWriter forwards the response to the client while keeping a copy of
// the status, headers and body.
type captureWriter struct {
	http.ResponseWriter
	header   http.Header
	tags     []string
	body     bytes.Buffer
	code     int
	limit    int
	overflow bool
}

func (c *captureWriter) WriteHeader(code int) {
	if c.code != 0 {
		return
	}
	c.code = code

	h := c.ResponseWriter.Header()
	for _, v := range h.Values(HeaderCacheTags) {
		for tag := range strings.SplitSeq(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				c.tags = append(c.tags, tag)
			}
		}
	}
	h.Del(HeaderCacheTags)
	c.header = h.Clone()

	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.code == 0 {
		c.WriteHeader(http.StatusOK)
	}
	if !c.overflow {
		if c.body.Len()+len(p) > c.limit {
			c.overflow = true
			c.body.Reset()
		} else {
			c.body.Write(p)
		}
	}
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *captureWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

func (c *captureWriter) status() int {
	if c.code == 0 {
		return http.StatusOK
	}
	return c.code
}

func (c *captureWriter) cacheable() bool {
	if c.status() != http.StatusOK || c.overflow || c.header == nil {
		return false
	}
	if c.header.Get("Set-Cookie") != "" {
		return false
	}
	cc := strings.ToLower(c.header.Get("Cache-Control"))
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private")
}
