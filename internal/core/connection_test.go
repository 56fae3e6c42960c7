package core

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// countingSource records acquire and release calls.
type countingSource struct {
	Source
	acquired int
	released int
	err      error
}

func (s *countingSource) Acquire(ctx context.Context) (Client, func() error, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	client, release, err := s.Source.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.acquired++
	return client, func() error {
		s.released++
		return release()
	}, nil
}

func newCountingSource(t *testing.T) *countingSource {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &countingSource{Source: WrapDB(db, true)}
}

func TestConnection_OpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource(t)
	conn := NewConnection(src, nil)

	require.NoError(t, conn.Open(ctx))
	first, err := conn.currentClient(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Open(ctx))
	second, err := conn.currentClient(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, src.acquired)
	require.NoError(t, conn.Close(ctx))
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource(t)

	closed := 0
	conn := NewConnection(src, nil, WithOnClose(func(*Connection) { closed++ }))
	require.NoError(t, conn.Open(ctx))

	require.NoError(t, conn.Close(ctx))
	require.NoError(t, conn.Close(ctx))
	require.NoError(t, conn.Close(ctx))

	assert.True(t, conn.Closed())
	assert.Equal(t, 1, src.released)
	assert.Equal(t, 1, closed)
}

func TestConnection_CloseBeforeOpen(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource(t)
	conn := NewConnection(src, nil)

	require.NoError(t, conn.Close(ctx))
	assert.Equal(t, 0, src.acquired)
	assert.Equal(t, 0, src.released)
}

func TestConnection_UseAfterClose(t *testing.T) {
	ctx := context.Background()
	conn := NewConnection(newCountingSource(t), nil)
	require.NoError(t, conn.Close(ctx))

	assert.ErrorIs(t, conn.Open(ctx), sqlerr.ErrConnClosed)

	_, err := conn.Begin(ctx, nil)
	assert.ErrorIs(t, err, sqlerr.ErrConnClosed)

	_, err = conn.Execute().Query(ctx, compose.Plain("SELECT 1"))
	assert.ErrorIs(t, err, sqlerr.ErrConnClosed)
	assert.Equal(t, sqlerr.LayerLifecycle, sqlerr.LayerOf(err))
}

func TestConnection_AcquireError(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{err: errors.New("refused")}
	conn := NewConnection(src, nil)

	err := conn.Open(ctx)
	require.Error(t, err)
	assert.False(t, conn.Closed())
	require.NoError(t, conn.Close(ctx))
}

func TestConnection_Identity(t *testing.T) {
	owner := &struct{ name string }{"pool"}
	a := NewConnection(newCountingSource(t), nil, WithOwner(owner))
	b := NewConnection(newCountingSource(t), nil)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, owner, a.Owner())
	assert.Nil(t, b.Owner())
	assert.Equal(t, "sqlite", a.Config().DriverName)
}

func TestAmbientConnection_DoesNotCloseParent(t *testing.T) {
	ctx := context.Background()
	src := newCountingSource(t)
	parent := NewConnection(src, nil)
	require.NoError(t, parent.Open(ctx))

	ambientClosed := false
	view := NewAmbientConnection(parent, WithOnClose(func(*Connection) { ambientClosed = true }))
	_, err := view.Execute().Query(ctx, compose.Plain("SELECT 1"))
	require.NoError(t, err)

	require.NoError(t, view.Close(ctx))
	assert.True(t, view.Closed())
	assert.True(t, ambientClosed)
	assert.False(t, parent.Closed())
	assert.Equal(t, 0, src.released)

	_, err = view.Execute().Query(ctx, compose.Plain("SELECT 1"))
	assert.ErrorIs(t, err, sqlerr.ErrConnClosed)

	_, err = parent.Execute().Query(ctx, compose.Plain("SELECT 1"))
	require.NoError(t, err)

	require.NoError(t, parent.Close(ctx))
	assert.Equal(t, 1, src.released)
}

func TestAmbientConnection_SharesTransaction(t *testing.T) {
	ctx := context.Background()
	parent, mock := newMockConnection(t)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sqlweave_sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sqlweave_sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := parent.Begin(ctx, nil)
	require.NoError(t, err)

	view := NewAmbientConnection(parent)
	nested, err := view.Begin(ctx, nil)
	require.NoError(t, err)
	assert.Same(t, tx, nested)
	require.NoError(t, nested.Commit(ctx))

	// Closing the view leaves the transaction running.
	require.NoError(t, view.Close(ctx))
	assert.True(t, tx.Active())

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContextTransaction(t *testing.T) {
	_, ok := TransactionFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TransactionFromContext(ContextWithTransaction(context.Background(), nil))
	assert.False(t, ok)

	tx := &Transaction{}
	got, ok := TransactionFromContext(ContextWithTransaction(context.Background(), tx))
	assert.True(t, ok)
	assert.Same(t, tx, got)
}
