package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rehostd/rehostd/internal/domain"
)

// TaskStore defines the interface for persisting and transitioning tasks.
// The tasks table is the sole coordination primitive between workers: every
// mutation goes through one of these atomic operations, never through a
// separate read-modify-write from worker memory.
type TaskStore interface {
	// Create inserts a new task in the queued state with attempt count zero.
	// This is the only externally triggered mutation outside the worker's own
	// transitions.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ClaimNext atomically leases the oldest eligible queued task to the
	// caller: it transitions the row to processing, increments the attempt
	// count, stamps updated_at and returns the full record. Rows locked by
	// other in-flight claims are skipped rather than waited on.
	// Returns ErrNoTask when no task is eligible; that is a successful
	// outcome, not a failure.
	ClaimNext(ctx context.Context) (*domain.Task, error)

	// Complete transitions a processing task to completed and persists the
	// result payload, clearing any error detail from earlier attempts.
	Complete(ctx context.Context, id uuid.UUID, result *domain.Result) error

	// Fail transitions a processing task to failed with the given diagnostic,
	// clearing any result. Failed is terminal.
	Fail(ctx context.Context, id uuid.UUID, errorDetail string) error

	// Requeue transitions a processing task back to queued with the given
	// diagnostic and a not-before timestamp; the claim predicate ignores the
	// row until runAfter has passed.
	Requeue(ctx context.Context, id uuid.UUID, errorDetail string, runAfter time.Time) error

	// ReapStuck requeues tasks that have sat in processing longer than
	// olderThan, making work lost to crashed workers claimable again.
	// Returns the IDs of the requeued tasks.
	ReapStuck(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
}
