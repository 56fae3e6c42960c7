// Package sqlweave builds SQL from composable fragments, renders it for
// PostgreSQL, MySQL or SQLite, and runs it through pooled connections with
// nested transactions.
//
// Fragments are values:
//
//	q := sqlweave.Q("SELECT * FROM ? WHERE ?", sqlweave.Ident("users"),
//		sqlweave.And(sqlweave.Eq("status", "active"), sqlweave.In("role", "admin", "owner")))
//
// A pool runs them:
//
//	db, err := sqlweave.Open(ctx, "postgres", dsn)
//	res, err := db.Execute().Query(ctx, q)
//
// Transactions nest through the context. An inner WithTransaction becomes a
// savepoint of the outer one:
//
//	err = db.WithTransaction(ctx, func(ctx context.Context, tx *sqlweave.Transaction) error {
//		_, err := db.Execute().Command(ctx, sqlweave.Q("UPDATE accounts SET balance = balance - ? WHERE id = ?", 10, 1))
//		return err
//	})
package sqlweave

import (
	"context"
	"io"
	"os"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/config"
	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/driver/builtin"
	"github.com/coregx/sqlweave/internal/format"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/pool"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
	"github.com/coregx/sqlweave/internal/tracer"
)

type (
	// SQL is an immutable fragment: literal text interleaved with tokens.
	SQL = compose.SQL
	// Token is a typed placeholder inside a fragment.
	Token = token.Token

	// Dialect describes one database's syntax.
	Dialect = dialects.Dialect
	// Formatter renders fragments for a dialect.
	Formatter = format.Formatter
	// Processors override how token kinds are rendered.
	Processors = format.Processors
	// FormatResult is rendered SQL text and its bound parameters.
	FormatResult = format.Result

	// Config is shared by every connection of a pool.
	Config = core.Config
	// Option configures a Config.
	Option = core.Option
	// Source hands out database clients.
	Source = core.Source
	// Connection is one logical connection with at most one open transaction.
	Connection = core.Connection
	// Transaction is a possibly nested transaction scope.
	Transaction = core.Transaction
	// TxOptions configure a transaction.
	TxOptions = core.TxOptions
	// TxState is the lifecycle state of a transaction.
	TxState = core.TxState
	// Executor runs fragments.
	Executor = core.Executor
	// ExecOption tunes one Executor call.
	ExecOption = core.ExecOption
	// Row is one result row keyed by column name.
	Row = core.Row
	// QueryResult holds the rows of a query.
	QueryResult = core.QueryResult
	// CommandResult reports the effect of a command.
	CommandResult = core.CommandResult
	// QueryEvent is passed to a QueryHook after every statement.
	QueryEvent = core.QueryEvent
	// QueryHook observes executed statements.
	QueryHook = core.QueryHook

	// Pool hands out connections and transactions.
	Pool = pool.Pool
	// InitFunc runs once on the writer of a dual pool.
	InitFunc = pool.InitFunc

	// Driver describes one backend.
	Driver = driver.Driver
	// DriverOptions configure the pool a driver opens.
	DriverOptions = driver.Options
	// DriverFactory loads a driver on first use.
	DriverFactory = driver.Factory
	// Registry maps driver keys to drivers.
	Registry = driver.Registry
	// Strategy selects a pool implementation.
	Strategy = driver.Strategy

	// FileConfig is the YAML configuration of one database.
	FileConfig = config.Config

	// Error is the error type returned by every layer.
	Error = sqlerr.Error
	// Layer names the layer that produced an Error.
	Layer = sqlerr.Layer

	// Logger receives statement and lifecycle logs.
	Logger = logger.Logger
	// Tracer starts spans for statements and transactions.
	Tracer = tracer.Tracer
)

// Pool strategies.
const (
	StrategyAuto      = driver.StrategyAuto
	StrategySingleton = driver.StrategySingleton
	StrategyBounded   = driver.StrategyBounded
	StrategyDual      = driver.StrategyDual
)

// Transaction states.
const (
	TxNotStarted = core.TxNotStarted
	TxActive     = core.TxActive
	TxCommitted  = core.TxCommitted
	TxRolledBack = core.TxRolledBack
)

// Error layers.
const (
	LayerComposition = sqlerr.LayerComposition
	LayerFormatting  = sqlerr.LayerFormatting
	LayerLifecycle   = sqlerr.LayerLifecycle
	LayerBackend     = sqlerr.LayerBackend
)

// Re-export composition helpers.
var (
	Empty   = compose.Empty
	Compose = compose.Compose
	Plain   = compose.Plain
	Q       = compose.Q
	Raw     = compose.Raw
	Ident   = compose.Ident
	Value   = compose.Value
	Merge   = compose.Merge
	Concat  = compose.Concat
	IsEmpty = compose.IsEmpty

	// Predicates
	Eq      = compose.Eq
	NotEq   = compose.NotEq
	Gt      = compose.Gt
	Lt      = compose.Lt
	Between = compose.Between
	In      = compose.In
	Hash    = compose.Hash
	And     = compose.And
	Or      = compose.Or
	Not     = compose.Not
)

// Re-export formatting, lifecycle and execution functions.
var (
	NewFormatter   = format.New
	NewProcessors  = format.NewProcessors
	WithProcessors = format.WithProcessors

	NewConfig              = core.NewConfig
	WithLogger             = core.WithLogger
	WithSensitiveFields    = core.WithSensitiveFields
	WithTracer             = core.WithTracer
	WithQueryHook          = core.WithQueryHook
	WithNestedTransactions = core.WithNestedTransactions
	WithStmtCacheCapacity  = core.WithStmtCacheCapacity
	WithFormatter          = core.WithFormatter
	NewDBSource            = core.NewDBSource
	WrapDB                 = core.WrapDB
	NewConnection          = core.NewConnection
	NewAmbientConnection   = core.NewAmbientConnection
	ContextWithTransaction = core.ContextWithTransaction
	TransactionFromContext = core.TransactionFromContext
	RunTransaction         = core.RunTransaction
	WithTimeout            = core.WithTimeout
	AssertChanged          = core.AssertChanged
	WithRowLimit           = core.WithRowLimit
	IsNoRows               = core.IsNoRows
	NewSlogLogger          = logger.NewSlogAdapter
	NewOtelTracer          = tracer.NewOtelTracer
	NewAmbient             = pool.NewAmbient
	WrapPool               = pool.WrapPool
	LoadConfig             = config.Load
	ParseConfig            = config.Parse
	ErrorLayer             = sqlerr.LayerOf
	ErrorIndex             = sqlerr.IndexOf
	DefaultSensitiveFields = logger.DefaultSensitiveFields
)

// Sentinel errors. Match them with errors.Is.
var (
	ErrArgumentMismatch   = sqlerr.ErrArgumentMismatch
	ErrUnknownToken       = sqlerr.ErrUnknownToken
	ErrEmptyArray         = sqlerr.ErrEmptyArray
	ErrUnsupportedDialect = sqlerr.ErrUnsupportedDialect
	ErrUnknownDriver      = sqlerr.ErrUnknownDriver
	ErrTxDone             = sqlerr.ErrTxDone
	ErrTxNotStarted       = sqlerr.ErrTxNotStarted
	ErrNestedTransaction  = sqlerr.ErrNestedTransaction
	ErrRollbackOnly       = sqlerr.ErrRollbackOnly
	ErrConnClosed         = sqlerr.ErrConnClosed
	ErrPoolClosed         = sqlerr.ErrPoolClosed
	ErrPoolExhausted      = sqlerr.ErrPoolExhausted
	ErrNoRowsAffected     = sqlerr.ErrNoRowsAffected
)

// QueryAs runs q and maps every row.
func QueryAs[T any](ctx context.Context, ex Executor, q SQL, mapper func(Row) (T, error), opts ...ExecOption) ([]T, error) {
	return core.QueryAs(ctx, ex, q, mapper, opts...)
}

// QueryOne runs q and maps the first row. It returns sql.ErrNoRows when
// there is none.
func QueryOne[T any](ctx context.Context, ex Executor, q SQL, mapper func(Row) (T, error), opts ...ExecOption) (T, error) {
	return core.QueryOne(ctx, ex, q, mapper, opts...)
}

// builtins serves Open and OpenWith. It is never registered into.
var builtins = builtin.NewRegistry()

// NewRegistry returns a driver registry holding lazy factories for the
// built-in drivers. Register custom drivers on it and open pools with
// OpenFrom.
func NewRegistry() *Registry {
	return builtin.NewRegistry()
}

// Open opens a pool for the built-in driver registered under driverName:
// postgres, postgresql, pgx, mysql, sqlite or sqlite3. The driver picks the
// pool strategy. Nothing is dialled before first use.
//
// Example:
//
//	db, err := sqlweave.Open(ctx, "sqlite", "/var/lib/app/app.db",
//		sqlweave.WithLogger(sqlweave.NewSlogLogger(slog.Default())))
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (Pool, error) {
	return OpenWith(ctx, driverName, dsn, DriverOptions{}, opts...)
}

// OpenWith is Open with explicit pool options. opts are applied on top of
// dopts.Config.
func OpenWith(ctx context.Context, driverName, dsn string, dopts DriverOptions, opts ...Option) (Pool, error) {
	return OpenFrom(ctx, builtins, driverName, dsn, dopts, opts...)
}

// OpenFrom is OpenWith resolving driverName in r.
func OpenFrom(ctx context.Context, r *Registry, driverName, dsn string, dopts DriverOptions, opts ...Option) (Pool, error) {
	cfg := &core.Config{AllowNestedTransactions: true}
	if dopts.Config != nil {
		c := *dopts.Config
		cfg = &c
	}
	for _, opt := range opts {
		opt(cfg)
	}
	dopts.Config = cfg
	return r.Open(ctx, driverName, dsn, dopts)
}

// OpenConfig opens the pool described by cfg, as returned by LoadConfig or
// ParseConfig. Logs go to logOutput, or to standard error when it is nil.
// opts are applied after the file settings.
func OpenConfig(ctx context.Context, cfg FileConfig, logOutput io.Writer, opts ...Option) (Pool, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}
	all := append(cfg.CoreOptions(logOutput), opts...)
	return OpenWith(ctx, cfg.Driver, cfg.DSN, cfg.DriverOptions(nil), all...)
}

