package middlewares

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
	"github.com/dmitrymomot/dyncache/pkg/discriminator"
)

// Profile describes how responses of a route are cached.
type Profile struct {
	// Name identifies the profile and prefixes the cache ID.
	Name string `yaml:"name"`

	// Pattern is a chi route pattern, e.g. "/blog/{slug}".
	Pattern string `yaml:"pattern"`

	// Contexts lists extra discriminators. The route and the
	// Accept-Encoding header are always included.
	Contexts []string `yaml:"contexts"`

	// Tags may reference route parameters: "post:{slug}".
	Tags []string `yaml:"tags"`

	// ExpiresAfter is a lifetime counted from the write.
	ExpiresAfter time.Duration `yaml:"expires_after"`

	// Sliding is an idle timeout reset by every hit.
	Sliding time.Duration `yaml:"sliding"`
}

// varyEncoding keeps compressed and identity bodies apart, since
// Content-Encoding is replayed.
const varyEncoding = discriminator.PrefixHeader + "accept-encoding"

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Validate checks the profile can be mounted.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Join(ErrInvalidProfile, errors.New("name is required"))
	case !strings.HasPrefix(p.Pattern, "/"):
		return errors.Join(ErrInvalidProfile, errors.New("pattern must start with /"))
	case p.ExpiresAfter < 0 || p.Sliding < 0:
		return errors.Join(ErrInvalidProfile, errors.New("expiry must not be negative"))
	}
	return nil
}

// CacheContext builds the cache context of r under this profile.
// Route parameters in tags are replaced by their values in r.
func (p Profile) CacheContext(r *http.Request) *cachecontext.Context {
	c := cachecontext.New("response:"+p.Name).
		AddContext(discriminator.NameRoute, varyEncoding).
		AddContext(p.Contexts...).
		WithExpiryAfter(p.ExpiresAfter).
		WithExpirySliding(p.Sliding)

	for _, tag := range p.Tags {
		c.AddTag(expandTag(tag, r))
	}
	return c
}

// coveredHeaders returns the canonical request headers that the
// discriminators in contexts vary by.
func coveredHeaders(contexts []string) map[string]bool {
	covered := make(map[string]bool, len(contexts))
	for _, name := range contexts {
		if h, ok := strings.CutPrefix(name, discriminator.PrefixHeader); ok {
			covered[http.CanonicalHeaderKey(h)] = true
		}
		if name == discriminator.NameCulture {
			covered["Accept-Language"] = true
		}
	}
	return covered
}

func expandTag(tag string, r *http.Request) string {
	return placeholder.ReplaceAllStringFunc(tag, func(m string) string {
		return chi.URLParam(r, m[1:len(m)-1])
	})
}
