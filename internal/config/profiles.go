package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/dyncache/middlewares"
)

// profilesFile is the YAML layout of DYNCACHE_PROFILES:
//
//	profiles:
//	  - name: blog-post
//	    pattern: /blog/{slug}
//	    contexts: [culture, user.roles]
//	    tags: [blog, "post:{slug}"]
//	    expires_after: 10m
type profilesFile struct {
	Profiles []middlewares.Profile `yaml:"profiles"`
}

// LoadProfiles reads profiles from a YAML file. An empty path yields none.
func LoadProfiles(path string) ([]middlewares.Profile, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrProfiles, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes and validates YAML profiles. Names must be unique.
func ParseProfiles(data []byte) ([]middlewares.Profile, error) {
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrProfiles, err)
	}

	seen := make(map[string]struct{}, len(f.Profiles))
	for i, p := range f.Profiles {
		if err := p.Validate(); err != nil {
			return nil, errors.Join(ErrProfiles, fmt.Errorf("profile #%d: %w", i+1, err))
		}
		if _, ok := seen[p.Name]; ok {
			return nil, errors.Join(ErrProfiles, fmt.Errorf("duplicate profile %q", p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	return f.Profiles, nil
}
