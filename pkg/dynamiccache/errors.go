package dynamiccache

import (
	"errors"

	"github.com/dmitrymomot/dyncache/pkg/cachecontext"
)

// Sentinel errors for dynamic cache operations.
var (
	// ErrNotFound is returned on a cache miss, including when caching is disabled.
	ErrNotFound = errors.New("dynamiccache: not found")

	// ErrEmptyCacheID is returned for a context without a cache ID.
	ErrEmptyCacheID = cachecontext.ErrEmptyCacheID

	// ErrInvalidContext wraps cache context validation failures.
	ErrInvalidContext = errors.New("dynamiccache: invalid cache context")

	// ErrCorruptMetadata is logged when stored metadata cannot be decoded.
	// The lookup is then reported as a miss.
	ErrCorruptMetadata = errors.New("dynamiccache: corrupt metadata")

	// ErrRead wraps store failures while reading.
	ErrRead = errors.New("dynamiccache: failed to read entry")

	// ErrWrite wraps store failures while writing.
	ErrWrite = errors.New("dynamiccache: failed to write entry")

	// ErrTag wraps tag index failures while writing.
	ErrTag = errors.New("dynamiccache: failed to tag entry")

	// ErrRenderPanic is returned by GetOrSet when the render function panics.
	ErrRenderPanic = errors.New("dynamiccache: render panicked")

	// ErrRemove wraps store failures while handling an invalidation.
	ErrRemove = errors.New("dynamiccache: failed to remove entry")
)
