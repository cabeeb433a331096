package health

import "errors"

// Sentinel errors for the health package.
var (
	// ErrCheckFailed wraps the failures of one or more checks.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a check that failed after the deadline passed.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrStoreMismatch is returned when the store check reads back other
	// bytes than it wrote.
	ErrStoreMismatch = errors.New("health: store returned unexpected value")
)
