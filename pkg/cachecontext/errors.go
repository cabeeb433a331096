package cachecontext

import "errors"

// Sentinel errors for cache context operations.
var (
	// ErrEmptyCacheID is returned when a context has no cache ID.
	ErrEmptyCacheID = errors.New("cachecontext: empty cache id")

	// ErrInvalidExpiry is returned for negative expiration durations.
	ErrInvalidExpiry = errors.New("cachecontext: invalid expiry")

	// ErrResolveDiscriminator wraps provider failures.
	ErrResolveDiscriminator = errors.New("cachecontext: failed to resolve discriminator")

	// ErrMarshal is returned when context metadata cannot be encoded.
	ErrMarshal = errors.New("cachecontext: failed to marshal metadata")

	// ErrUnmarshal is returned when context metadata cannot be decoded.
	ErrUnmarshal = errors.New("cachecontext: failed to unmarshal metadata")
)
