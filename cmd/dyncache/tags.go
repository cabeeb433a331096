package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/dyncache/internal/app"
	"github.com/dmitrymomot/dyncache/internal/config"
	"github.com/dmitrymomot/dyncache/pkg/logger"
)

var errNotShared = errors.New("dyncache: tag commands need a shared store and a redis tag index")

func invalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <tag>...",
		Short: "Evict every entry carrying the tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var errs []error
				for _, tag := range args {
					if err := a.Service().InvalidateTag(ctx, tag); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", tag, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", tag)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <tag>",
		Short: "List cache keys carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				keys, err := a.Service().Keys(ctx, args[0])
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			})
		},
	}
}

// withApp connects the shared backends for a one-shot command.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Shared() {
		return errNotShared
	}

	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	closeCtx := context.WithoutCancel(ctx)
	return errors.Join(fn(ctx, a), a.Close(closeCtx), logger.FlushSentry(closeCtx))
}
