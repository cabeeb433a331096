package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/dyncache/internal/server"
)

const sweepTimeout = time.Minute

// Sweep prunes tag index members whose entries expired and deletes expired
// rows from stores that keep them.
func (a *App) Sweep(ctx context.Context) error {
	var errs []error

	pruned, err := a.service.Prune(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	var deleted int64
	if a.expirer != nil {
		if deleted, err = a.expirer.DeleteExpired(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.log.DebugContext(ctx, "sweep completed",
		slog.Int("pruned_tag_keys", pruned),
		slog.Int64("deleted_rows", deleted),
	)
	return errors.Join(errs...)
}

// Sweeper schedules Sweep on the configured cron spec and returns the hooks
// starting and stopping it. An empty schedule yields no-op hooks.
func (a *App) Sweeper() (start, stop server.Hook, err error) {
	noop := func(context.Context) error { return nil }
	if a.cfg.SweepSchedule == "" {
		return noop, noop, nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(a.cfg.SweepSchedule)
	if err != nil {
		return nil, nil, errors.Join(ErrInvalidSchedule, err)
	}

	cl := cronLogger{log: a.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := a.Sweep(ctx); err != nil {
			a.log.WarnContext(ctx, "sweep failed", slog.Any("error", err))
		}
	}))

	start = func(context.Context) error {
		c.Start()
		return nil
	}
	stop = func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return start, stop, nil
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
