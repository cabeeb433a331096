package discriminator

import (
	"context"
	"net/http"
)

type (
	requestKey   struct{}
	principalKey struct{}
	cultureKey   struct{}
	tenantKey    struct{}
)

// Principal is the authenticated caller as seen by the "user" discriminators.
// The host application places it in the request context after authentication.
type Principal struct {
	ID    string
	Roles []string
}

// WithRequest attaches the current request so providers can read it.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFromContext returns the request attached by WithRequest, or nil.
func RequestFromContext(ctx context.Context) *http.Request {
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	return r
}

// WithPrincipal attaches the authenticated caller.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller attached by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// WithCulture pins the culture, overriding Accept-Language negotiation.
func WithCulture(ctx context.Context, culture string) context.Context {
	return context.WithValue(ctx, cultureKey{}, culture)
}

// WithTenant pins the tenant, overriding host-based detection.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

func stringValue(ctx context.Context, key any) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
