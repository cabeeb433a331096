package logger

import "log/slog"

// NewNope returns a logger that discards everything.
// Packages fall back to it when no logger is configured.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNope returns log, or a discarding logger when log is nil.
func OrNope(log *slog.Logger) *slog.Logger {
	if log == nil {
		return NewNope()
	}
	return log
}
