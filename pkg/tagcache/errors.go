package tagcache

import "errors"

// Sentinel errors for tag index operations.
var (
	// ErrEmptyKey is returned when tagging an empty cache key.
	ErrEmptyKey = errors.New("tagcache: empty key")

	// ErrEmptyTag is returned when reading or invalidating a blank tag.
	ErrEmptyTag = errors.New("tagcache: empty tag")

	// ErrHandler wraps failures reported by subscribed handlers.
	ErrHandler = errors.New("tagcache: tag removal handler failed")
)
