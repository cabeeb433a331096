package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by Config.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config holds logger configuration.
type Config struct {
	Format string       `env:"LOG_FORMAT" envDefault:"json"`
	Sentry SentryConfig
	Level  slog.Level   `env:"LOG_LEVEL" envDefault:"info"`
}

// New creates a logger writing to stdout and, when Sentry is configured,
// to Sentry. Context extractors apply to every destination.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, extractors...)
}

// NewWithWriter is New with a custom output, mostly for tests.
func NewWithWriter(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	base := newHandler(w, cfg)
	if h := newSentryHandler(base, cfg.Sentry); h != nil {
		return slog.New(Decorate(newMultiHandler(base, h), extractors...))
	}
	return slog.New(Decorate(base, extractors...))
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if strings.EqualFold(cfg.Format, FormatText) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
