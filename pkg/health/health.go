package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/dyncache/pkg/logger"
)

const (
	defaultTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc matches the Healthcheck closures of pkg/redis and pkg/db.
type CheckFunc func(ctx context.Context) error

// Checks maps check names to their functions.
type Checks map[string]CheckFunc

// Response is the aggregated readiness result.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check is the result of a single check.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures health checks.
type Option func(*config)

// WithTimeout bounds the total time spent running checks.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger logs failing checks at Warn level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.logger = logger.OrNope(cfg.logger)
	return cfg
}

// Run executes checks in parallel under a shared timeout. The returned error
// wraps ErrCheckFailed (and ErrCheckTimeout when the deadline was hit).
func Run(ctx context.Context, checks Checks, opts ...Option) (*Response, error) {
	return runChecks(ctx, checks, newConfig(opts...))
}

func runChecks(ctx context.Context, checks Checks, cfg *config) (*Response, error) {
	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(checks))
		errs    []error
	)

	for name, check := range checks {
		wg.Go(func() {
			err := check(ctx)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = errors.Join(ErrCheckTimeout, err)
			}

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				results[name] = Check{Status: StatusHealthy}
				return
			}
			results[name] = Check{Status: StatusUnhealthy, Error: err.Error()}
			errs = append(errs, err)
			cfg.logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.Any("error", err),
			)
		})
	}
	wg.Wait()

	resp := &Response{Status: StatusHealthy, Checks: results}
	if len(errs) > 0 {
		resp.Status = StatusUnhealthy
		return resp, errors.Join(ErrCheckFailed, errors.Join(errs...))
	}
	return resp, nil
}
