package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dyncache/internal/config"
)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, time.Minute, cfg.Cache.DefaultSliding)
	require.Equal(t, 30*time.Second, cfg.Cache.RenderTimeout)
	require.Equal(t, config.BackendMemory, cfg.Store)
	require.Equal(t, config.BackendMemory, cfg.TagIndex)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "@every 5m", cfg.SweepSchedule)
	require.Equal(t, []string{"en"}, cfg.Cultures)
	require.Equal(t, slog.LevelInfo, cfg.Log.Level)
	require.Equal(t, "dyncache", cfg.Redis.Prefix)
	require.Equal(t, "dyncache_migrations", cfg.DB.MigrationsTable)
	require.False(t, cfg.Shared())
	require.False(t, cfg.LocalTagIndex())
}

func TestLoadFrom_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom(map[string]string{
		"DYNCACHE_ENABLED":         "false",
		"DYNCACHE_DEFAULT_SLIDING": "5m",
		"DYNCACHE_RENDER_TIMEOUT":  "2s",
		"DYNCACHE_STORE":           "redis",
		"DYNCACHE_TAG_INDEX":       "redis",
		"DYNCACHE_CULTURES":        "fr,en",
		"REDIS_URL":                "redis://localhost:6379/1",
		"LOG_LEVEL":                "debug",
	})
	require.NoError(t, err)

	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, 5*time.Minute, cfg.Cache.DefaultSliding)
	require.Equal(t, 2*time.Second, cfg.Cache.RenderTimeout)
	require.Equal(t, []string{"fr", "en"}, cfg.Cultures)
	require.Equal(t, slog.LevelDebug, cfg.Log.Level)
	require.True(t, cfg.NeedsRedis())
	require.False(t, cfg.NeedsPostgres())
	require.True(t, cfg.Shared())
	require.False(t, cfg.LocalTagIndex())
}

func TestConfig_LocalTagIndex(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom(map[string]string{
		"DYNCACHE_STORE": "redis",
		"REDIS_URL":      "redis://localhost:6379/1",
	})
	require.NoError(t, err, "a shared store with a local tag index is allowed")
	require.True(t, cfg.LocalTagIndex())
	require.False(t, cfg.Shared())
}

func TestLoadFrom_Validation(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		vars map[string]string
		err  error
	}{
		"unknown store":      {vars: map[string]string{"DYNCACHE_STORE": "s3"}, err: config.ErrUnknownStore},
		"postgres tag index": {vars: map[string]string{"DYNCACHE_TAG_INDEX": "postgres"}, err: config.ErrUnknownTagIndex},
		"redis without url":  {vars: map[string]string{"DYNCACHE_TAG_INDEX": "redis"}, err: config.ErrMissingSetting},
		"postgres without url": {
			vars: map[string]string{"DYNCACHE_STORE": "postgres"},
			err:  config.ErrMissingSetting,
		},
		"bad duration": {vars: map[string]string{"DYNCACHE_DEFAULT_SLIDING": "soon"}, err: config.ErrParse},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFrom(tc.vars)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParseProfiles(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		profiles, err := config.ParseProfiles([]byte(`
profiles:
  - name: blog-post
    pattern: /blog/{slug}
    contexts: [culture, user.roles]
    tags: [blog, "post:{slug}"]
    expires_after: 10m
  - name: home
    pattern: /
    sliding: 30s
`))
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		require.Equal(t, "blog-post", profiles[0].Name)
		require.Equal(t, []string{"culture", "user.roles"}, profiles[0].Contexts)
		require.Equal(t, 10*time.Minute, profiles[0].ExpiresAfter)
		require.Equal(t, 30*time.Second, profiles[1].Sliding)
	})

	t.Run("duplicate names", func(t *testing.T) {
		t.Parallel()

		_, err := config.ParseProfiles([]byte(`
profiles:
  - {name: a, pattern: /a}
  - {name: a, pattern: /b}
`))
		require.ErrorIs(t, err, config.ErrProfiles)
	})

	t.Run("invalid profile", func(t *testing.T) {
		t.Parallel()

		_, err := config.ParseProfiles([]byte("profiles:\n  - name: a\n    pattern: nope\n"))
		require.ErrorIs(t, err, config.ErrProfiles)
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "profiles.yaml")
		require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - {name: a, pattern: /a}\n"), 0o600))

		profiles, err := config.LoadProfiles(path)
		require.NoError(t, err)
		require.Len(t, profiles, 1)

		profiles, err = config.LoadProfiles("")
		require.NoError(t, err)
		require.Empty(t, profiles)

		_, err = config.LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml"))
		require.ErrorIs(t, err, config.ErrProfiles)
	})
}
