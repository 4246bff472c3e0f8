package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rehostd/rehostd/internal/platform/logger"
)

// TxFn runs inside a transaction managed by RunInTransaction. Returning nil
// commits the transaction; returning an error rolls it back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction begins a transaction on db, runs fn inside it and commits
// or rolls back based on fn's error. A panic in fn rolls the transaction back
// before propagating. Begin and commit failures are wrapped with
// ErrTransactionFailed; fn's own error is returned unwrapped so callers keep
// matching on the store sentinels.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("rollback after panic failed",
					"error", rbErr,
					"panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("transaction rollback failed",
				"rollback_error", rbErr,
				"original_error", err)
			return fmt.Errorf("%w: rollback: %v (original error: %w)",
				ErrTransactionFailed, rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}
