// Package driver resolves driver names to the dialect and pool factory of a
// database backend. Built-in drivers live in the subpackages and are
// registered lazily by internal/driver/builtin.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/format"
	"github.com/coregx/sqlweave/internal/pool"
	"github.com/coregx/sqlweave/internal/registry"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Strategy selects the pool a driver builds.
type Strategy string

// Pool strategies. StrategyAuto lets the driver choose.
const (
	StrategyAuto      Strategy = ""
	StrategySingleton Strategy = "singleton"
	StrategyBounded   Strategy = "bounded"
	StrategyDual      Strategy = "dual"
)

// Options configure the pool a driver opens.
type Options struct {
	// Config is shared by every connection. Nil means defaults for the driver.
	Config *core.Config
	// Strategy overrides the driver's default pool strategy.
	Strategy Strategy
	// MaxConnections caps a bounded pool, or the reader side of a dual pool.
	MaxConnections int
	// NoWait makes a full bounded pool fail instead of queueing.
	NoWait bool
	// HealthCheckInterval enables periodic pings when positive.
	HealthCheckInterval time.Duration
	// Init runs once on the writer of a dual pool.
	Init pool.InitFunc
}

// Driver describes one backend.
type Driver struct {
	// Name is the database/sql driver name.
	Name    string
	Dialect dialects.Dialect
	// OpenPool builds a pool for dsn. Nothing is dialled until first use,
	// except where the driver must parse dsn.
	OpenPool func(ctx context.Context, dsn string, opts Options) (pool.Pool, error)
}

// Factory loads a driver on first use.
type Factory func(ctx context.Context) (*Driver, error)

// Registry maps driver keys to drivers. Resolved drivers are never replaced;
// lazy factories may be.
type Registry struct {
	entries *registry.Registry[string, *Driver]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: registry.New[string, *Driver]()}
}

// Register stores a resolved driver. It reports false when key already holds
// one.
func (r *Registry) Register(key string, d *Driver) bool {
	return r.entries.Register(key, d)
}

// RegisterFactory stores a lazy factory. It reports false when key already
// holds a resolved driver.
func (r *Registry) RegisterFactory(key string, f Factory) bool {
	return r.entries.RegisterLazy(key, registry.Loader[*Driver](f))
}

// TryResolve returns the driver for key, running its factory on first use.
// Concurrent callers share one factory run.
func (r *Registry) TryResolve(ctx context.Context, key string) (*Driver, bool, error) {
	d, ok, err := r.entries.TryResolve(ctx, key)
	if err != nil {
		return nil, true, sqlerr.Lifecycle("resolve driver", fmt.Errorf("%s: %w", key, err))
	}
	return d, ok, nil
}

// TryGet returns an already resolved driver. It never runs a factory.
func (r *Registry) TryGet(key string) (*Driver, bool) {
	return r.entries.TryGet(key)
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	return r.entries.Has(key)
}

// Keys returns the registered keys.
func (r *Registry) Keys() []string {
	return r.entries.Keys()
}

// Resolve is TryResolve with ErrUnknownDriver for missing keys.
func (r *Registry) Resolve(ctx context.Context, key string) (*Driver, error) {
	d, ok, err := r.TryResolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, sqlerr.Lifecycle("resolve driver", fmt.Errorf("%w: %q", sqlerr.ErrUnknownDriver, key))
	}
	return d, nil
}

// Open resolves key and opens a pool for dsn.
func (r *Registry) Open(ctx context.Context, key, dsn string, opts Options) (pool.Pool, error) {
	d, err := r.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return d.OpenPool(ctx, dsn, opts)
}

// ConfigFor returns opts.Config with defaults filled in and a formatter for
// d's dialect when none was set.
func ConfigFor(d *Driver, opts Options) *core.Config {
	var cfg core.Config
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.DriverName == "" {
		cfg.DriverName = d.Dialect.Name()
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.New(d.Dialect)
	}
	return cfg.WithDefaults()
}

// Sources are the clients a pool is built over. Read is only used by dual
// pools and defaults to Write.
type Sources struct {
	Read  core.Source
	Write core.Source
}

// NewPool builds the pool opts.Strategy names, or def when it is
// StrategyAuto.
func NewPool(srcs Sources, cfg *core.Config, opts Options, def Strategy) (pool.Pool, error) {
	strategy := opts.Strategy
	if strategy == StrategyAuto {
		strategy = def
	}

	var popts []pool.Option
	if opts.MaxConnections > 0 {
		popts = append(popts, pool.WithMaxConnections(opts.MaxConnections))
	}
	if opts.NoWait {
		popts = append(popts, pool.WithNoWait())
	}
	if opts.HealthCheckInterval > 0 {
		popts = append(popts, pool.WithHealthCheck(opts.HealthCheckInterval))
	}
	if opts.Init != nil {
		popts = append(popts, pool.WithInit(opts.Init))
	}

	switch strategy {
	case StrategySingleton:
		return pool.NewSingleton(srcs.Write, cfg), nil
	case StrategyBounded:
		return pool.NewBounded(srcs.Write, cfg, popts...), nil
	case StrategyDual:
		read := srcs.Read
		if read == nil {
			read = srcs.Write
		}
		return pool.NewDual(read, srcs.Write, cfg, popts...), nil
	default:
		return nil, sqlerr.Lifecycle("open pool", fmt.Errorf("unknown pool strategy %q", strategy))
	}
}
