package middlewares

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/dyncache/pkg/discriminator"
	"github.com/dmitrymomot/dyncache/pkg/dynamiccache"
)

// PrincipalFunc extracts the authenticated caller from a request.
type PrincipalFunc func(r *http.Request) (discriminator.Principal, bool)

// Scope attaches the request and a fresh local read cache to the request
// context, and the caller when principal recognizes one.
func Scope(principal PrincipalFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := dynamiccache.WithScope(r.Context())
			if principal != nil {
				if p, ok := principal(r); ok {
					ctx = discriminator.WithPrincipal(ctx, p)
				}
			}
			r = r.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(discriminator.WithRequest(ctx, r)))
		})
	}
}

// HeaderPrincipal trusts identity headers set by an authenticating gateway:
// the user ID in idHeader and comma-separated roles in rolesHeader.
func HeaderPrincipal(idHeader, rolesHeader string) PrincipalFunc {
	return func(r *http.Request) (discriminator.Principal, bool) {
		id := strings.TrimSpace(r.Header.Get(idHeader))
		if id == "" {
			return discriminator.Principal{}, false
		}

		var roles []string
		for role := range strings.SplitSeq(r.Header.Get(rolesHeader), ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		return discriminator.Principal{ID: id, Roles: roles}, true
	}
}
