// Package middlewares provides the net/http middlewares of the caching proxy.
//
// # Request ID
//
// RequestID assigns an ID to each request, reusing X-Request-ID or
// X-Correlation-ID when present. Pair it with RequestIDExtractor so every log
// line carries it:
//
//	log := logger.New(cfg, middlewares.RequestIDExtractor())
//	r.Use(middlewares.RequestID())
//
// # Recover
//
// Recover logs panics with their stack and answers 500.
//
// # Scope
//
// Scope attaches the request, the caller and a per-request read cache to the
// request context. Discriminator providers and the dynamic cache rely on it,
// so mount it on the router before any cached route:
//
//	r.Use(middlewares.Scope(middlewares.HeaderPrincipal("X-User-ID", "X-User-Roles")))
//
// # Response Cache
//
// ResponseCache caches GET responses of a route described by a [Profile]:
//
//	p := middlewares.Profile{
//	    Name:         "blog-post",
//	    Pattern:      "/blog/{slug}",
//	    Contexts:     []string{"culture", "user.roles"},
//	    Tags:         []string{"blog", "post:{slug}"},
//	    ExpiresAfter: 10 * time.Minute,
//	}
//	r.With(middlewares.ResponseCache(svc, p)).Get(p.Pattern, handler)
//
// Responses carry X-Cache: HIT or MISS. Handlers may add tags through the
// X-Cache-Tags response header (comma separated); it is stripped before the
// response reaches the client.
package middlewares
