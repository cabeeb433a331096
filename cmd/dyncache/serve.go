package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/dyncache/internal/app"
	"github.com/dmitrymomot/dyncache/internal/config"
	"github.com/dmitrymomot/dyncache/internal/server"
	"github.com/dmitrymomot/dyncache/middlewares"
	"github.com/dmitrymomot/dyncache/pkg/logger"
)

var errMissingUpstream = errors.New("dyncache: DYNCACHE_UPSTREAM is required")

func serveCmd() *cobra.Command {
	var (
		addr     string
		upstream string
		profiles string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caching reverse proxy",
		Long:  "Proxy requests to the upstream, caching responses of the configured profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if upstream != "" {
				cfg.Server.Upstream = upstream
			}
			if profiles != "" {
				cfg.ProfilesFile = profiles
			}
			if cfg.Server.Upstream == "" {
				return errMissingUpstream
			}

			log := newLogger(cfg)
			return serve(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides DYNCACHE_ADDR)")
	cmd.Flags().StringVar(&upstream, "upstream", "", "Upstream base URL (overrides DYNCACHE_UPSTREAM)")
	cmd.Flags().StringVar(&profiles, "profiles", "", "Response cache profiles file (overrides DYNCACHE_PROFILES)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	handler, err := a.Handler(cfg.Server.Upstream, profiles)
	if err != nil {
		return errors.Join(err, a.Close(ctx))
	}

	startSweeper, stopSweeper, err := a.Sweeper()
	if err != nil {
		return errors.Join(err, a.Close(ctx))
	}

	log.Info("serving",
		slog.String("addr", cfg.Server.Addr),
		slog.String("upstream", cfg.Server.Upstream),
		slog.Int("profiles", len(profiles)),
	)

	return server.Run(ctx, server.Config{
		Handler:         handler,
		Logger:          log,
		Address:         cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		StartupHooks:    []server.Hook{startSweeper},
		ShutdownHooks:   []server.Hook{stopSweeper, a.Close, logger.FlushSentry},
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log,
		middlewares.RequestIDExtractor(),
		logger.CacheKeyExtractor(),
	)
}
