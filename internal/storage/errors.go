package storage

import (
	"errors"
	"fmt"
)

// Common storage errors.
var (
	// ErrObjectNotFound is returned when no object exists under a key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUnauthorized is returned when the provider rejects our credentials
	// or the bucket policy denies the operation.
	ErrUnauthorized = errors.New("storage authorization failed")

	// ErrQuotaExceeded is returned when the provider refuses an upload for
	// capacity reasons.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnknownProvider is returned by the registry for an unregistered
	// provider name.
	ErrUnknownProvider = errors.New("unknown storage provider")
)

// Error wraps a provider-specific failure with the provider name and an
// optional provider error code.
type Error struct {
	Provider string
	Code     string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storage provider %s failed (code %s): %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("storage provider %s failed: %v", e.Provider, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}
