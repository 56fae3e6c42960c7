// Package sqlite provides the SQLite drivers: modernc.org/sqlite under
// "sqlite" and mattn/go-sqlite3 under "sqlite3".
//
// In-memory databases get a singleton pool. File databases get a dual pool:
// query-only readers and a single writer that switches the file to WAL once.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/pool"
)

// pragma is one SQLite pragma setting.
type pragma struct {
	name  string
	value string
}

// writerPragmas apply to every writer connection of a file database.
var writerPragmas = []pragma{
	{name: "foreign_keys", value: "1"},
	{name: "busy_timeout", value: "5000"},
	{name: "journal_mode", value: "WAL"},
	{name: "synchronous", value: "NORMAL"},
}

// readerPragmas apply to reader connections; writes through them fail.
var readerPragmas = []pragma{
	{name: "foreign_keys", value: "1"},
	{name: "busy_timeout", value: "5000"},
	{name: "query_only", value: "1"},
}

// memoryPragmas apply to in-memory databases.
var memoryPragmas = []pragma{
	{name: "foreign_keys", value: "1"},
	{name: "busy_timeout", value: "5000"},
}

// dsnBuilder renders a path and pragmas in one driver's DSN syntax.
type dsnBuilder func(path string, pragmas []pragma) string

// buildModerncDSN uses the modernc syntax: file:path?_pragma=name(value).
func buildModerncDSN(path string, pragmas []pragma) string {
	return buildDSN(path, pragmas, func(p pragma) string {
		return fmt.Sprintf("_pragma=%s(%s)", p.name, p.value)
	})
}

// buildMattnDSN uses the mattn syntax: file:path?_name=value.
func buildMattnDSN(path string, pragmas []pragma) string {
	return buildDSN(path, pragmas, func(p pragma) string {
		return fmt.Sprintf("_%s=%s", p.name, p.value)
	})
}

func buildDSN(path string, pragmas []pragma, render func(pragma) string) string {
	var sb strings.Builder
	if strings.HasPrefix(path, "file:") {
		sb.WriteString(path)
	} else {
		sb.WriteString("file:")
		sb.WriteString(path)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		sb.WriteString(sep)
		sb.WriteString(render(p))
		sep = "&"
	}
	return sb.String()
}

// IsMemory reports whether dsn names an in-memory database.
func IsMemory(dsn string) bool {
	return dsn == ":memory:" || dsn == "" ||
		strings.Contains(dsn, "mode=memory") ||
		strings.HasPrefix(dsn, "file::memory:")
}

// New returns the modernc.org/sqlite driver.
func New() *driver.Driver {
	return newDriver("sqlite", buildModerncDSN)
}

// NewMattn returns the mattn/go-sqlite3 driver. It needs cgo.
func NewMattn() *driver.Driver {
	return newDriver("sqlite3", buildMattnDSN)
}

func newDriver(name string, build dsnBuilder) *driver.Driver {
	d := &driver.Driver{Name: name, Dialect: &dialects.SQLiteDialect{}}
	d.OpenPool = func(_ context.Context, dsn string, opts driver.Options) (pool.Pool, error) {
		cfg := driver.ConfigFor(d, opts)

		if IsMemory(dsn) {
			path := dsn
			if path == "" {
				path = ":memory:"
			}
			// Every connection to a private in-memory database sees a
			// different database, so there is only ever one.
			src := core.NewDBSource(name, build(path, memoryPragmas), singleConn)
			return driver.NewPool(driver.Sources{Write: src}, cfg, opts, driver.StrategySingleton)
		}

		writer := core.NewDBSource(name, build(dsn, writerPragmas), singleConn)
		reader := core.NewDBSource(name, build(dsn, readerPragmas), func(db *sql.DB) {
			if opts.MaxConnections > 0 {
				db.SetMaxOpenConns(opts.MaxConnections)
			}
		})

		if opts.Strategy == driver.StrategyAuto || opts.Strategy == driver.StrategyDual {
			opts.Init = withWAL(opts.Init)
		}
		return driver.NewPool(driver.Sources{Read: reader, Write: writer}, cfg, opts, driver.StrategyDual)
	}
	return d
}

func singleConn(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

// withWAL runs journal_mode=WAL on the writer before next.
func withWAL(next pool.InitFunc) pool.InitFunc {
	return func(ctx context.Context, conn *core.Connection) error {
		if _, err := conn.Execute().Query(ctx, compose.Plain("PRAGMA journal_mode = WAL")); err != nil {
			return err
		}
		if next != nil {
			return next(ctx, conn)
		}
		return nil
	}
}
