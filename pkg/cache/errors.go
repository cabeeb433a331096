package cache

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a key does not exist in the store or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("cache: closed")

	// ErrInvalidExpiration is returned for negative durations or an absolute
	// expiration that is not in the future.
	ErrInvalidExpiration = errors.New("cache: invalid expiration options")

	// ErrCorruptEntry is returned when a persisted entry cannot be decoded.
	ErrCorruptEntry = errors.New("cache: corrupt entry")
)
