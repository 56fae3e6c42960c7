// Package builtin registers the drivers shipped with sqlweave.
package builtin

import (
	"context"

	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/driver/mysql"
	"github.com/coregx/sqlweave/internal/driver/postgres"
	"github.com/coregx/sqlweave/internal/driver/sqlite"
)

// NewRegistry returns a registry with lazy factories for postgres,
// postgresql, pgx, mysql, sqlite and sqlite3. Nothing is constructed until a
// key is resolved.
func NewRegistry() *driver.Registry {
	r := driver.NewRegistry()
	Register(r)
	return r
}

// Register adds the built-in factories to r. Keys already holding a resolved
// driver keep it.
func Register(r *driver.Registry) {
	lazy := func(build func() *driver.Driver) driver.Factory {
		return func(context.Context) (*driver.Driver, error) { return build(), nil }
	}

	r.RegisterFactory("postgres", lazy(postgres.New))
	r.RegisterFactory("postgresql", lazy(postgres.New))
	r.RegisterFactory("pgx", lazy(postgres.NewPgx))
	r.RegisterFactory("mysql", lazy(mysql.New))
	r.RegisterFactory("sqlite", lazy(sqlite.New))
	r.RegisterFactory("sqlite3", lazy(sqlite.NewMattn))
}
