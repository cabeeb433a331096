package discriminator

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
)

// Discriminator names handled by this package.
const (
	NameQuery     = "query"
	NameRoute     = "route"
	NameUser      = "user"
	NameUserRoles = "user.roles"
	NameCulture   = "culture"
	NameTenant    = "tenant"

	PrefixQuery  = "query:"
	PrefixHeader = "header:"
	PrefixKnown  = "known:"

	// Anonymous is the value of user discriminators without a principal.
	Anonymous = "anonymous"
	// DefaultTenant is the tenant value for hosts without a subdomain.
	DefaultTenant = "default"
)

// Defaults returns every built-in provider. cultures lists the supported
// cultures, preferred first, for Accept-Language negotiation.
func Defaults(cultures []string) []cachecontext.Provider {
	return []cachecontext.Provider{
		Query(),
		Header(),
		Route(),
		User(),
		Culture(cultures),
		Tenant(),
		Known(),
	}
}

// Query resolves "query" (the whole query string) and "query:<param>".
func Query() cachecontext.Provider {
	return cachecontext.ProviderFunc(func(ctx context.Context, names []string, entries []cachecontext.Entry) ([]cachecontext.Entry, error) {
		var query url.Values
		if r := RequestFromContext(ctx); r != nil {
			query = r.URL.Query()
		}

		for _, name := range names {
			switch {
			case name == NameQuery:
				entries = append(entries, cachecontext.Entry{Name: name, Value: canonicalQuery(query)})
			case strings.HasPrefix(name, PrefixQuery):
				entries = append(entries, cachecontext.Entry{Name: name, Value: joinValues(query[strings.TrimPrefix(name, PrefixQuery)])})
			}
		}
		return entries, nil
	})
}

// joinValues sorts values and joins them escaped, so "a,b" and the pair
// "a", "b" stay distinct.
func joinValues(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = url.QueryEscape(v)
	}
	slices.Sort(escaped)
	return strings.Join(escaped, ",")
}

// Header resolves "header:<name>" to the request header values, split on
// commas, lowercased and sorted: "gzip, br" and "BR,gzip" share a value.
func Header() cachecontext.Provider {
	return cachecontext.ProviderFunc(func(ctx context.Context, names []string, entries []cachecontext.Entry) ([]cachecontext.Entry, error) {
		r := RequestFromContext(ctx)

		for _, name := range names {
			header, ok := strings.CutPrefix(name, PrefixHeader)
			if !ok {
				continue
			}
			var tokens []string
			if r != nil {
				for _, v := range r.Header.Values(header) {
					for token := range strings.SplitSeq(v, ",") {
						if token = strings.ToLower(strings.TrimSpace(token)); token != "" {
							tokens = append(tokens, url.QueryEscape(token))
						}
					}
				}
			}
			slices.Sort(tokens)
			entries = append(entries, cachecontext.Entry{Name: name, Value: strings.Join(slices.Compact(tokens), ",")})
		}
		return entries, nil
	})
}

// canonicalQuery encodes q with keys and values sorted.
func canonicalQuery(q url.Values) string {
	sorted := make(url.Values, len(q))
	for k, v := range q {
		v = slices.Clone(v)
		slices.Sort(v)
		sorted[k] = v
	}
	return sorted.Encode() // Encode sorts by key
}

// Route resolves "route": the matched chi route pattern with its URL
// parameters, or the request path when routing has not happened yet.
func Route() cachecontext.Provider {
	return cachecontext.Func(NameRoute, func(ctx context.Context) (string, error) {
		r := RequestFromContext(ctx)
		rctx := chi.RouteContext(ctx)
		if rctx == nil && r != nil {
			rctx = chi.RouteContext(r.Context())
		}

		if rctx != nil && rctx.RoutePattern() != "" {
			var b strings.Builder
			b.WriteString(rctx.RoutePattern())
			params := make([]string, 0, len(rctx.URLParams.Keys))
			for i, k := range rctx.URLParams.Keys {
				params = append(params, k+"="+url.QueryEscape(rctx.URLParams.Values[i]))
			}
			slices.Sort(params)
			for _, p := range params {
				b.WriteString(";")
				b.WriteString(p)
			}
			return b.String(), nil
		}

		if r != nil {
			return r.URL.Path, nil
		}
		return "", nil
	})
}

// User resolves "user" (principal ID) and "user.roles" (sorted roles).
// Both are Anonymous without a principal in the context.
func User() cachecontext.Provider {
	return cachecontext.ProviderFunc(func(ctx context.Context, names []string, entries []cachecontext.Entry) ([]cachecontext.Entry, error) {
		p, ok := PrincipalFromContext(ctx)

		for _, name := range names {
			switch name {
			case NameUser:
				v := Anonymous
				if ok && p.ID != "" {
					v = p.ID
				}
				entries = append(entries, cachecontext.Entry{Name: name, Value: v})
			case NameUserRoles:
				v := Anonymous
				if ok {
					roles := slices.Clone(p.Roles)
					slices.Sort(roles)
					v = strings.Join(slices.Compact(roles), ",")
				}
				entries = append(entries, cachecontext.Entry{Name: name, Value: v})
			}
		}
		return entries, nil
	})
}

// Culture resolves "culture": the culture pinned with WithCulture, else the
// best match between Accept-Language and cultures, else the first culture.
func Culture(cultures []string) cachecontext.Provider {
	tags := make([]language.Tag, 0, len(cultures))
	supported := make([]string, 0, len(cultures))
	for _, c := range cultures {
		if t, err := language.Parse(c); err == nil {
			tags = append(tags, t)
			supported = append(supported, c)
		}
	}

	var matcher language.Matcher
	if len(tags) > 0 {
		matcher = language.NewMatcher(tags)
	}

	return cachecontext.Func(NameCulture, func(ctx context.Context) (string, error) {
		if v, ok := stringValue(ctx, cultureKey{}); ok {
			return v, nil
		}

		var header string
		if r := RequestFromContext(ctx); r != nil {
			header = r.Header.Get("Accept-Language")
		}

		if matcher == nil {
			// Nothing to negotiate against: vary by the raw preference.
			if prefs, _, err := language.ParseAcceptLanguage(header); err == nil && len(prefs) > 0 {
				return prefs[0].String(), nil
			}
			return "", nil
		}

		prefs, _, err := language.ParseAcceptLanguage(header)
		if err != nil || len(prefs) == 0 {
			return supported[0], nil
		}
		_, idx, _ := matcher.Match(prefs...)
		return supported[idx], nil
	})
}

// Tenant resolves "tenant": the tenant pinned with WithTenant, else the first
// label of a host with a subdomain ("acme.example.com" -> "acme"), else
// DefaultTenant.
func Tenant() cachecontext.Provider {
	return cachecontext.Func(NameTenant, func(ctx context.Context) (string, error) {
		if v, ok := stringValue(ctx, tenantKey{}); ok {
			return v, nil
		}
		if r := RequestFromContext(ctx); r != nil {
			if sub := subdomain(r.Host); sub != "" {
				return sub, nil
			}
		}
		return DefaultTenant, nil
	})
}

// subdomain extracts the first label of host when it has at least three labels.
func subdomain(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.ToLower(parts[0])
}

// Known resolves "known:<value>" to the literal value, letting callers vary
// a fragment by something they already know.
func Known() cachecontext.Provider {
	return cachecontext.ProviderFunc(func(_ context.Context, names []string, entries []cachecontext.Entry) ([]cachecontext.Entry, error) {
		for _, name := range names {
			if v, ok := strings.CutPrefix(name, PrefixKnown); ok {
				entries = append(entries, cachecontext.Entry{Name: name, Value: v})
			}
		}
		return entries, nil
	})
}
