package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rehostd/rehostd/internal/store"
)

// PostgreSQL error codes the tasks table can produce.
const (
	// uniqueViolationCode covers duplicate task IDs on insert.
	uniqueViolationCode = "23505"

	// checkViolationCode covers the status CHECK constraint.
	checkViolationCode = "23514"

	// notNullViolationCode covers required columns like source_url.
	notNullViolationCode = "23502"
)

// MapError maps a database error to the store's error taxonomy, wrapping the
// original error to preserve context. Every store operation routes its errors
// through here so callers can match with errors.Is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		}
	}

	return err
}
