// Package core provides connections, transactions and statement execution
// for sqlweave. Pools in internal/pool build on these types.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Client is the database handle a connection runs statements on.
// *sql.Conn and *sql.DB both implement it.
type Client interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
}

// Source hands out clients. The release function returned by Acquire gives
// the client back and must be called exactly once.
type Source interface {
	Acquire(ctx context.Context) (Client, func() error, error)
	Ping(ctx context.Context) error
	Close() error
}

// DBSource serves dedicated *sql.Conn clients from a *sql.DB.
type DBSource struct {
	mu    sync.Mutex
	open  func() (*sql.DB, error)
	db    *sql.DB
	owned bool
}

// NewDBSource returns a source that opens driverName/dsn on first use.
// configure, when non-nil, runs once per opened *sql.DB. After Close the
// source reopens on the next Acquire.
func NewDBSource(driverName, dsn string, configure func(*sql.DB)) *DBSource {
	return &DBSource{
		owned: true,
		open: func() (*sql.DB, error) {
			db, err := sql.Open(driverName, dsn)
			if err != nil {
				return nil, err
			}
			if configure != nil {
				configure(db)
			}
			return db, nil
		},
	}
}

// WrapDB returns a source over an existing *sql.DB. When owned is true,
// Close closes db and the source cannot be used again; otherwise Close
// leaves db untouched and the source stays usable.
func WrapDB(db *sql.DB, owned bool) *DBSource {
	return &DBSource{db: db, owned: owned}
}

func (s *DBSource) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if s.open == nil {
		return nil, sqlerr.Lifecycle("acquire", sqlerr.ErrPoolClosed)
	}
	db, err := s.open()
	if err != nil {
		return nil, sqlerr.Backend("open", err)
	}
	s.db = db
	return db, nil
}

// DB returns the underlying *sql.DB, opening it if needed.
func (s *DBSource) DB() (*sql.DB, error) {
	return s.handle()
}

// Acquire checks out a dedicated connection from the database pool.
func (s *DBSource) Acquire(ctx context.Context) (Client, func() error, error) {
	db, err := s.handle()
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, sqlerr.Backend("acquire", err)
	}
	return conn, conn.Close, nil
}

// Ping verifies the database is reachable.
func (s *DBSource) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return sqlerr.Backend("ping", db.PingContext(ctx))
}

// Close closes the database when the source owns it.
func (s *DBSource) Close() error {
	if !s.owned {
		return nil
	}

	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return sqlerr.Backend("close", fmt.Errorf("close database: %w", err))
	}
	return nil
}

// staticSource serves one caller-owned client.
type staticSource struct {
	client Client
}

// StaticSource returns a source that always hands out client and never
// releases or closes it.
func StaticSource(client Client) Source {
	return &staticSource{client: client}
}

func (s *staticSource) Acquire(_ context.Context) (Client, func() error, error) {
	return s.client, func() error { return nil }, nil
}

func (s *staticSource) Ping(ctx context.Context) error {
	return sqlerr.Backend("ping", s.client.PingContext(ctx))
}

func (s *staticSource) Close() error { return nil }
