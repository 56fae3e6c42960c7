// Package postgres provides the PostgreSQL drivers: lib/pq under "postgres"
// and pgx's database/sql adapter under "pgx".
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/pool"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// New returns the lib/pq driver.
func New() *driver.Driver {
	d := &driver.Driver{Name: "postgres", Dialect: &dialects.PostgresDialect{}}
	d.OpenPool = func(_ context.Context, dsn string, opts driver.Options) (pool.Pool, error) {
		conninfo, err := NormalizeDSN(dsn)
		if err != nil {
			return nil, err
		}
		src := core.NewDBSource(d.Name, conninfo, sizePool(opts))
		return driver.NewPool(driver.Sources{Write: src}, driver.ConfigFor(d, opts), opts, driver.StrategyBounded)
	}
	return d
}

// NewPgx returns the pgx driver. The DSN is parsed up front so malformed
// connection strings fail at open.
func NewPgx() *driver.Driver {
	d := &driver.Driver{Name: "pgx", Dialect: &dialects.PostgresDialect{}}
	d.OpenPool = func(_ context.Context, dsn string, opts driver.Options) (pool.Pool, error) {
		connCfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, sqlerr.Lifecycle("open", fmt.Errorf("parse pgx dsn: %w", err))
		}
		db := stdlib.OpenDB(*connCfg)
		sizePool(opts)(db)
		src := core.WrapDB(db, true)
		return driver.NewPool(driver.Sources{Write: src}, driver.ConfigFor(d, opts), opts, driver.StrategyBounded)
	}
	return d
}

// NormalizeDSN turns postgres:// URLs into lib/pq key=value form. Other DSNs
// are returned unchanged.
func NormalizeDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn, nil
	}
	conninfo, err := pq.ParseURL(dsn)
	if err != nil {
		return "", sqlerr.Lifecycle("open", fmt.Errorf("parse postgres url: %w", err))
	}
	return conninfo, nil
}

// sizePool matches the database/sql pool to the bounded pool capacity.
func sizePool(opts driver.Options) func(*sql.DB) {
	return func(db *sql.DB) {
		if opts.MaxConnections > 0 {
			db.SetMaxOpenConns(opts.MaxConnections)
			db.SetMaxIdleConns(opts.MaxConnections)
		}
	}
}
