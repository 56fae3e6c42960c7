package core

import (
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/format"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/tracer"
)

// Config is shared by every connection a pool creates.
type Config struct {
	// Formatter renders fragments. When nil, one is built for DriverName.
	Formatter *format.Formatter
	Logger    logger.Logger
	Sanitizer *logger.Sanitizer
	Tracer    tracer.Tracer
	// Hook, when set, is called after every statement.
	Hook QueryHook
	// AllowNestedTransactions turns nested Begin calls into savepoints.
	// When false, a nested Begin fails with ErrNestedTransaction.
	AllowNestedTransactions bool
	// StmtCacheCapacity bounds the per-connection prepared statement cache.
	// Zero disables caching.
	StmtCacheCapacity int
	// DriverName is reported as db.system.
	DriverName string
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithLogger sets the logger used for statements and lifecycle events.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithSensitiveFields masks parameters bound to the named columns in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(c *Config) { c.Sanitizer = logger.NewSanitizer(fields) }
}

// WithTracer sets the tracer used for statement and transaction spans.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// WithQueryHook registers a callback invoked after each statement.
func WithQueryHook(h QueryHook) Option {
	return func(c *Config) { c.Hook = h }
}

// WithNestedTransactions enables savepoint-based nesting.
func WithNestedTransactions(enabled bool) Option {
	return func(c *Config) { c.AllowNestedTransactions = enabled }
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(c *Config) { c.StmtCacheCapacity = capacity }
}

// WithFormatter overrides the formatter derived from the driver name.
func WithFormatter(f *format.Formatter) Option {
	return func(c *Config) { c.Formatter = f }
}

// NewConfig returns a config for driverName with nesting enabled and the
// given options applied.
func NewConfig(driverName string, opts ...Option) *Config {
	c := &Config{DriverName: driverName, AllowNestedTransactions: true}
	for _, opt := range opts {
		opt(c)
	}
	return c.WithDefaults()
}

// WithDefaults returns a copy with every nil collaborator filled in. A nil
// receiver yields the defaults for an unnamed driver.
func (c *Config) WithDefaults() *Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = &logger.NoopLogger{}
	}
	if out.Sanitizer == nil {
		out.Sanitizer = logger.NewSanitizer(nil)
	}
	if out.Tracer == nil {
		out.Tracer = &tracer.NoopTracer{}
	}
	if out.Formatter == nil {
		d, err := dialects.NewRegistry().Get(out.DriverName)
		if err != nil {
			d = &dialects.SQLiteDialect{}
		}
		out.Formatter = format.New(d)
	}
	if out.DriverName == "" {
		out.DriverName = out.Formatter.Dialect().Name()
	}
	return &out
}
