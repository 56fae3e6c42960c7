package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
)

func TestDual_Routing(t *testing.T) {
	ctx := context.Background()
	readSrc, readMock := mockSource(t)
	writeSrc, writeMock := mockSource(t)

	readMock.ExpectQuery("SELECT name FROM items WHERE id = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alpha"))
	writeMock.ExpectExec("UPDATE items SET name = ? WHERE id = ?").
		WithArgs("beta", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := NewDual(readSrc, writeSrc, testConfig())
	defer p.Close(ctx)

	res, err := p.Execute().Query(ctx, compose.Q("SELECT name FROM items WHERE id = ?", 1))
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.Rows[0]["name"])

	cmd, err := p.Execute().Command(ctx, compose.Q("UPDATE items SET name = ? WHERE id = ?", "beta", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cmd.RowsAffected)

	require.NoError(t, readMock.ExpectationsWereMet())
	require.NoError(t, writeMock.ExpectationsWereMet())
}

func TestDual_QueriesInsideWriterTransaction(t *testing.T) {
	ctx := context.Background()
	readSrc, readMock := mockSource(t)
	writeSrc, writeMock := mockSource(t)

	writeMock.ExpectBegin()
	writeMock.ExpectExec("INSERT INTO items (name) VALUES (?)").
		WithArgs("gamma").
		WillReturnResult(sqlmock.NewResult(7, 1))
	writeMock.ExpectQuery("SELECT COUNT(*) FROM items").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	writeMock.ExpectCommit()

	p := NewDual(readSrc, writeSrc, testConfig())
	defer p.Close(ctx)

	err := p.WithTransaction(ctx, func(ctx context.Context, _ *core.Transaction) error {
		if err := insertItem(ctx, p.Execute(), "gamma"); err != nil {
			return err
		}
		_, err := p.Execute().Query(ctx, compose.Plain("SELECT COUNT(*) FROM items"))
		return err
	})
	require.NoError(t, err)

	require.NoError(t, readMock.ExpectationsWereMet())
	require.NoError(t, writeMock.ExpectationsWereMet())
}

func TestDual_InitRunsOnce(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	p := NewDual(fileSource(t), fileSource(t), testConfig(), WithInit(func(ctx context.Context, conn *core.Connection) error {
		runs.Add(1)
		_, err := conn.Execute().Command(ctx, compose.Plain("PRAGMA foreign_keys = ON"))
		return err
	}))
	defer p.Close(ctx)

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Execute().Query(ctx, compose.Plain("SELECT 1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, p.Initialized())
}

func TestDual_InitRetries(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	p := NewDual(fileSource(t), fileSource(t), testConfig(), WithInit(func(context.Context, *core.Connection) error {
		if runs.Add(1) < 3 {
			return errors.New("database is locked")
		}
		return nil
	}))
	defer p.Close(ctx)

	require.NoError(t, p.WithConnection(ctx, func(context.Context, *core.Connection) error { return nil }))
	assert.Equal(t, int32(3), runs.Load())
}

func TestDual_InitGivesUp(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	broken := errors.New("broken schema")
	p := NewDual(fileSource(t), fileSource(t), testConfig(),
		WithInitAttempts(2),
		WithInit(func(context.Context, *core.Connection) error {
			runs.Add(1)
			return broken
		}))
	defer p.Close(ctx)

	_, err := p.ReadConnection(ctx)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, int32(2), runs.Load())
	assert.False(t, p.Initialized())

	// A later call starts over.
	_, err = p.Transaction(ctx, nil)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, int32(4), runs.Load())
}

func TestDual_ReadConnection(t *testing.T) {
	ctx := context.Background()
	p := NewDual(fileSource(t), fileSource(t), testConfig(), WithMaxConnections(2))
	defer p.Close(ctx)

	require.NoError(t, p.WithReadConnection(ctx, func(ctx context.Context, conn *core.Connection) error {
		assert.Same(t, p.Readers(), conn.Owner())
		assert.Equal(t, 1, p.Readers().InUse())
		return nil
	}))
	assert.Equal(t, 0, p.Readers().InUse())

	conn, err := p.Connection(ctx)
	require.NoError(t, err)
	assert.Same(t, p.Writer(), conn.Owner())
}
