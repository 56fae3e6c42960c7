package dialects

import (
	"context"
	"fmt"

	"github.com/coregx/sqlweave/internal/registry"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Registry maps driver names to dialects. Create one with NewRegistry; there
// is no package-level registry.
type Registry struct {
	entries *registry.Registry[string, Dialect]
}

// NewRegistry returns a registry holding the built-in dialects under the
// names postgres, postgresql, pgx, mysql, sqlite and sqlite3.
func NewRegistry() *Registry {
	r := &Registry{entries: registry.New[string, Dialect]()}

	pg := &PostgresDialect{}
	r.Register("postgres", pg)
	r.Register("postgresql", pg)
	r.Register("pgx", pg)
	r.Register("mysql", &MySQLDialect{})
	lite := &SQLiteDialect{}
	r.Register("sqlite", lite)
	r.Register("sqlite3", lite)

	return r
}

// Register adds a dialect under name. An existing registration is kept and
// false is returned.
func (r *Registry) Register(name string, d Dialect) bool {
	return r.entries.Register(name, d)
}

// Get returns the dialect registered under name.
func (r *Registry) Get(name string) (Dialect, error) {
	d, ok, err := r.entries.TryResolve(context.Background(), name)
	if err != nil {
		return nil, sqlerr.Formatting("dialect", err)
	}
	if !ok {
		return nil, sqlerr.Formatting("dialect", fmt.Errorf("%w: %q", sqlerr.ErrUnsupportedDialect, name))
	}
	return d, nil
}

// MustGet is like Get but panics when name is unknown.
func (r *Registry) MustGet(name string) Dialect {
	d, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return d
}
