package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrNoTask is returned by ClaimNext when no eligible task exists. An
	// empty claim is a successful outcome for the worker loop, not an error
	// condition, but it is signaled as a sentinel so callers cannot forget to
	// handle it.
	ErrNoTask = errors.New("no eligible task")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a task with an already-used ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when a transition matched no row, for
	// example because the task is no longer in the processing state. Terminal
	// states are never left, so a stale transition surfaces as this error.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned by RunInTransaction when the
	// transaction itself cannot begin, commit or roll back. Errors from the
	// work inside the transaction pass through unwrapped.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError annotates a store failure with the entity and operation it
// occurred in. It wraps the underlying sentinel, so errors.Is matching on the
// taxonomy above keeps working through it.
type StoreError struct {
	Entity    string // The entity type (e.g., "task")
	Operation string // The operation that failed (e.g., "claim", "complete")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}
