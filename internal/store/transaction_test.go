package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal driver connection so transaction control flow can be
// observed without a database.
type fakeConn struct {
	beginErr   error
	commitErr  error
	committed  bool
	rolledBack bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return &fakeTx{conn: c}, nil
}

type fakeTx struct {
	conn *fakeConn
}

func (t *fakeTx) Commit() error {
	if t.conn.commitErr != nil {
		return t.conn.commitErr
	}
	t.conn.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.conn.rolledBack = true
	return nil
}

type fakeConnector struct {
	conn *fakeConn
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }

func (c *fakeConnector) Driver() driver.Driver { return nil }

func newFakeDB(t *testing.T, conn *fakeConn) *sql.DB {
	t.Helper()
	db := sql.OpenDB(&fakeConnector{conn: conn})
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunInTransactionCommitsOnSuccess(t *testing.T) {
	conn := &fakeConn{}
	db := newFakeDB(t, conn)

	ran := false
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, conn.committed)
	assert.False(t, conn.rolledBack)
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	conn := &fakeConn{}
	db := newFakeDB(t, conn)

	fnErr := errors.New("stage exploded")
	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return fnErr
	})

	// The caller's error comes back untouched so sentinel matching still works.
	assert.ErrorIs(t, err, fnErr)
	assert.NotErrorIs(t, err, ErrTransactionFailed)
	assert.True(t, conn.rolledBack)
	assert.False(t, conn.committed)
}

func TestRunInTransactionWrapsBeginFailure(t *testing.T) {
	conn := &fakeConn{beginErr: errors.New("pool exhausted")}
	db := newFakeDB(t, conn)

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})

	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestRunInTransactionWrapsCommitFailure(t *testing.T) {
	conn := &fakeConn{commitErr: errors.New("connection reset")}
	db := newFakeDB(t, conn)

	err := RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})

	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.False(t, conn.committed)
}
