package cache

import "time"

// MemoryOption configures the in-memory store.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	clock           func() time.Time
	cleanupInterval time.Duration
	maxEntries      int
}

func defaultMemoryOptions() *memoryOptions {
	return &memoryOptions{
		clock:           time.Now,
		cleanupInterval: time.Minute,
		maxEntries:      0, // 0 = unlimited
	}
}

func (o *memoryOptions) now() time.Time {
	return o.clock()
}

// WithCleanupInterval sets how often expired entries are removed
// by the background janitor goroutine. Zero disables the janitor;
// expired entries are then dropped lazily on access.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// WithMaxEntries sets the maximum number of entries in the store.
// When the limit is reached, the least recently used entry is evicted.
// Zero means unlimited.
// Default: 0 (unlimited).
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxEntries = n
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.clock = now
		}
	}
}
