package pool

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
)

// fileSource returns a source over a fresh on-disk SQLite database with an
// items table.
func fileSource(t *testing.T) core.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := core.NewDBSource("sqlite", path, nil)
	t.Cleanup(func() { src.Close() })
	return src
}

func mockSource(t *testing.T) (core.Source, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return core.WrapDB(db, false), mock
}

func testConfig() *core.Config {
	return core.NewConfig("sqlite")
}

func insertItem(ctx context.Context, ex core.Executor, name string) error {
	_, err := ex.Command(ctx, compose.Q("INSERT INTO items (name) VALUES (?)", name))
	return err
}

func countItems(t *testing.T, ex core.Executor) int64 {
	t.Helper()
	n, err := core.QueryOne(context.Background(), ex, compose.Plain("SELECT COUNT(*) AS n FROM items"),
		func(r core.Row) (int64, error) { return r["n"].(int64), nil })
	require.NoError(t, err)
	return n
}
