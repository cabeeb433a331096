package middlewares

import (
	"errors"
	"fmt"
)

// Sentinel errors for the middlewares package.
var (
	// ErrInvalidProfile is returned for a response cache profile that cannot be used.
	ErrInvalidProfile = errors.New("middlewares: invalid cache profile")

	// ErrCorruptResponse is logged when a cached response cannot be decoded.
	ErrCorruptResponse = errors.New("middlewares: corrupt cached response")
)

// PanicError represents a recovered panic.
type PanicError struct {
	Value any    // The panic value
	Stack []byte // Stack trace (nil if disabled)
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
