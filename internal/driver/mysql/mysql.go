// Package mysql provides the MySQL driver over go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/pool"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// New returns the MySQL driver.
func New() *driver.Driver {
	d := &driver.Driver{Name: "mysql", Dialect: &dialects.MySQLDialect{}}
	d.OpenPool = func(_ context.Context, dsn string, opts driver.Options) (pool.Pool, error) {
		normalized, err := NormalizeDSN(dsn)
		if err != nil {
			return nil, err
		}
		src := core.NewDBSource(d.Name, normalized, func(db *sql.DB) {
			if opts.MaxConnections > 0 {
				db.SetMaxOpenConns(opts.MaxConnections)
				db.SetMaxIdleConns(opts.MaxConnections)
			}
		})
		return driver.NewPool(driver.Sources{Write: src}, driver.ConfigFor(d, opts), opts, driver.StrategyBounded)
	}
	return d
}

// NormalizeDSN parses dsn and turns on ParseTime, so DATETIME columns scan
// into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", sqlerr.Lifecycle("open", fmt.Errorf("parse mysql dsn: %w", err))
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
