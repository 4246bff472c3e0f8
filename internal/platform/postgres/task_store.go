package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/platform/logger"
	"github.com/rehostd/rehostd/internal/store"
)

// TaskStore implements the store.TaskStore interface using PostgreSQL.
// Every transition is a single atomic statement, so competing workers
// coordinate exclusively through row-level locking on the tasks table.
type TaskStore struct {
	db store.DBTX

	// pool is retained so multi-statement operations can open their own
	// transaction. It is nil on a WithTx-derived store, which already runs
	// inside a caller-managed transaction.
	pool *sql.DB
}

// NewTaskStore creates a new TaskStore backed by the connection pool.
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{
		db:   db,
		pool: db,
	}
}

// WithTx returns a TaskStore that runs every statement on tx. The transaction
// lifecycle stays with the caller.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

// taskColumns is the canonical select list; every scan goes through scanTask
// so the column order is defined in exactly one place.
const taskColumns = `id, source_url, webhook_url, metadata_only, status, error_detail, result,
	attempt_count, run_after, created_at, updated_at`

// Create inserts a new task in the queued state.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, source_url, webhook_url, metadata_only, status, attempt_count, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.SourceURL,
		nullString(task.WebhookURL),
		task.MetadataOnly,
		task.Status,
		task.AttemptCount,
		task.RunAfter,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			"task_id", task.ID,
			"error", err)
		return MapError(fmt.Errorf("failed to create task: %w", err))
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(fmt.Errorf("failed to get task: %w", err))
	}

	return task, nil
}

// ClaimNext atomically leases the oldest eligible queued task.
//
// The inner select orders queued rows by (created_at, id) for a total FIFO
// order and uses FOR UPDATE SKIP LOCKED so a claim in flight on the oldest
// row never blocks this worker from taking the next-oldest unlocked row.
// The surrounding UPDATE and the RETURNING clause make claim-and-read one
// atomic statement; there is no separate read-then-write window.
func (s *TaskStore) ClaimNext(ctx context.Context) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET status = $1, attempt_count = attempt_count + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2 AND run_after <= now()
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		domain.TaskStatusProcessing,
		domain.TaskStatusQueued,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNoTask
		}
		return nil, MapError(fmt.Errorf("failed to claim task: %w", err))
	}

	return task, nil
}

// Complete transitions a processing task to completed with its result.
func (s *TaskStore) Complete(ctx context.Context, id uuid.UUID, result *domain.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	// Result and error detail are mutually exclusive: completing clears the
	// diagnostic left by any earlier failed attempt.
	query := `
		UPDATE tasks
		SET status = $1, result = $2, error_detail = NULL, updated_at = now()
		WHERE id = $3 AND status = $4
	`

	return s.transition(ctx, "complete", query,
		domain.TaskStatusCompleted, payload, id, domain.TaskStatusProcessing)
}

// Fail transitions a processing task to the terminal failed state.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, errorDetail string) error {
	query := `
		UPDATE tasks
		SET status = $1, error_detail = $2, result = NULL, updated_at = now()
		WHERE id = $3 AND status = $4
	`

	return s.transition(ctx, "fail", query,
		domain.TaskStatusFailed, errorDetail, id, domain.TaskStatusProcessing)
}

// Requeue transitions a processing task back to queued with a not-before
// timestamp enforcing the retry backoff.
func (s *TaskStore) Requeue(ctx context.Context, id uuid.UUID, errorDetail string, runAfter time.Time) error {
	query := `
		UPDATE tasks
		SET status = $1, error_detail = $2, result = NULL, run_after = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`

	return s.transition(ctx, "requeue", query,
		domain.TaskStatusQueued, errorDetail, runAfter, id, domain.TaskStatusProcessing)
}

// ReapStuck requeues tasks stuck in processing longer than olderThan. Stuck
// rows belong to workers that died between claim and transition; requeueing
// them immediately (run_after = now) preserves at-least-once delivery.
//
// The scan runs in a single transaction that locks the stuck rows before
// requeueing them, so reapers in separate worker processes never requeue and
// report the same task twice: rows a sibling has locked are skipped and
// handled by its scan instead.
func (s *TaskStore) ReapStuck(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	if s.pool == nil {
		// Already inside a caller-managed transaction.
		return s.requeueStuckBefore(ctx, cutoff)
	}

	var ids []uuid.UUID
	err := store.RunInTransaction(ctx, s.pool, func(ctx context.Context, tx *sql.Tx) error {
		var reapErr error
		ids, reapErr = s.WithTx(tx).requeueStuckBefore(ctx, cutoff)
		return reapErr
	})
	return ids, err
}

// requeueStuckBefore locks the processing rows untouched since cutoff and
// moves them back to queued. Must run inside a transaction: the row locks are
// what keep concurrent reapers off the same tasks.
func (s *TaskStore) requeueStuckBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		FOR UPDATE SKIP LOCKED`,
		domain.TaskStatusProcessing,
		cutoff,
	)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to scan for stuck tasks: %w", err))
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, MapError(fmt.Errorf("failed to scan stuck task id: %w", err))
		}
		ids = append(ids, id)
	}
	// The result set must be drained and closed before the connection can
	// carry the updates below.
	iterErr := rows.Err()
	_ = rows.Close()
	if iterErr != nil {
		return nil, MapError(fmt.Errorf("error iterating stuck tasks: %w", iterErr))
	}

	query := `
		UPDATE tasks
		SET status = $1, error_detail = $2, run_after = now(), updated_at = now()
		WHERE id = $3
	`
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, query,
			domain.TaskStatusQueued,
			"requeued after worker became unresponsive",
			id,
		); err != nil {
			return nil, MapError(fmt.Errorf("failed to requeue stuck task %s: %w", id, err))
		}
	}

	if len(ids) > 0 {
		log.Warn("requeued stuck tasks", "count", len(ids))
	}

	return ids, nil
}

// transition executes a guarded status update and verifies exactly one row
// changed. Zero rows means the task was not in the expected state (already
// terminal, reaped, or unknown) and surfaces as ErrUpdateFailed.
func (s *TaskStore) transition(ctx context.Context, op, query string, args ...any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("task transition failed",
			"operation", op,
			"error", err)
		return MapError(fmt.Errorf("failed to %s task: %w", op, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &store.StoreError{
			Entity:    "task",
			Operation: op,
			Message:   "task is not in the processing state",
			Err:       store.ErrUpdateFailed,
		}
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		webhookURL  sql.NullString
		errorDetail sql.NullString
		resultJSON  []byte
	)

	err := row.Scan(
		&task.ID,
		&task.SourceURL,
		&webhookURL,
		&task.MetadataOnly,
		&task.Status,
		&errorDetail,
		&resultJSON,
		&task.AttemptCount,
		&task.RunAfter,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.WebhookURL = webhookURL.String
	task.ErrorDetail = errorDetail.String

	if len(resultJSON) > 0 {
		var result domain.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
		task.Result = &result
	}

	return &task, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
