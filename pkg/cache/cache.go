package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with per-entry expiration.
//
// Expiration semantics:
//   - AbsoluteExpirationRelativeToNow takes precedence over AbsoluteExpiration
//   - SlidingExpiration is reset by every Get and Refresh
//   - An entry with no expiration set never expires
//   - With both an absolute deadline and a sliding window, the earlier wins
type Store interface {
	// Get retrieves the value stored under key and resets its sliding window.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, opts EntryOptions) error

	// Refresh resets the sliding window of key without reading its value.
	// Refreshing a missing key is a no-op.
	Refresh(ctx context.Context, key string) error

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(ctx context.Context, key string) error

	// Has reports whether key exists and has not expired.
	// Unlike Get it does not touch the sliding window.
	Has(ctx context.Context, key string) (bool, error)

	// Close releases resources (stops background goroutines, etc.).
	Close() error
}

// EntryOptions controls how long a stored entry lives.
type EntryOptions struct {
	// AbsoluteExpiration is a fixed point in time. Zero means unset.
	AbsoluteExpiration time.Time

	// AbsoluteExpirationRelativeToNow is a lifetime counted from the write.
	// Zero means unset.
	AbsoluteExpirationRelativeToNow time.Duration

	// SlidingExpiration is an idle timeout reset on each read. Zero means unset.
	SlidingExpiration time.Duration
}

// IsZero reports whether no expiration is configured.
func (o EntryOptions) IsZero() bool {
	return o.AbsoluteExpiration.IsZero() &&
		o.AbsoluteExpirationRelativeToNow == 0 &&
		o.SlidingExpiration == 0
}

// Validate rejects negative durations and absolute deadlines that already passed.
func (o EntryOptions) Validate(now time.Time) error {
	if o.AbsoluteExpirationRelativeToNow < 0 || o.SlidingExpiration < 0 {
		return ErrInvalidExpiration
	}
	if !o.AbsoluteExpiration.IsZero() && !o.AbsoluteExpiration.After(now) {
		return ErrInvalidExpiration
	}
	return nil
}

// deadline resolves the absolute deadline of an entry written at now.
// The zero time means no absolute deadline.
func (o EntryOptions) deadline(now time.Time) time.Time {
	if o.AbsoluteExpirationRelativeToNow > 0 {
		return now.Add(o.AbsoluteExpirationRelativeToNow)
	}
	return o.AbsoluteExpiration
}

// nextExpiry computes when an entry expires if it is accessed at now.
// The zero time means never.
func nextExpiry(deadline time.Time, sliding time.Duration, now time.Time) time.Time {
	if sliding <= 0 {
		return deadline
	}
	slide := now.Add(sliding)
	if !deadline.IsZero() && deadline.Before(slide) {
		return deadline
	}
	return slide
}
