package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/dyncache/pkg/logger"
)

const (
	defaultAddress           = ":8080"
	defaultShutdownTimeout   = 30 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultMaxHeaderBytes    = 1 << 20
)

// Hook runs during startup or shutdown.
type Hook func(ctx context.Context) error

// Config describes the HTTP server to run.
type Config struct {
	Handler         http.Handler
	Logger          *slog.Logger
	Address         string
	StartupHooks    []Hook
	ShutdownHooks   []Hook
	ShutdownTimeout time.Duration

	// Listener overrides Address, mostly for tests.
	Listener net.Listener
}

// Run serves HTTP until ctx is canceled or the process receives SIGINT or
// SIGTERM, then shuts the server down and runs the shutdown hooks in order.
// Startup hooks run before the listener accepts connections; if one fails
// the server is not started but shutdown hooks still run.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	log := logger.OrNope(cfg.Logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, hook := range cfg.StartupHooks {
		if err := hook(ctx); err != nil {
			log.Error("startup hook failed", slog.Any("error", err))
			return errors.Join(err, shutdown(cfg, nil, log))
		}
	}

	ln := cfg.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", cfg.Address); err != nil {
			return errors.Join(err, shutdown(cfg, nil, log))
		}
	}

	srv := &http.Server{
		Handler:           cfg.Handler,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Join(err, shutdown(cfg, nil, log))
		}
	case <-ctx.Done():
	}

	return shutdown(cfg, srv, log)
}

// shutdown stops srv (when started) and runs every hook, collecting errors.
func shutdown(cfg Config, srv *http.Server, log *slog.Logger) error {
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, hook := range cfg.ShutdownHooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
			log.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		log.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}
	log.Info("shutdown completed")
	return nil
}
