// Package pool provides the connection strategies sqlweave runs on: a single
// shared connection, a bounded set of connections, a reader/writer pair and
// an ambient wrapper over resources owned elsewhere.
package pool

import (
	"context"
	"time"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
)

// Pool hands out connections and runs work on them.
type Pool interface {
	// Connection returns an open connection. The caller closes it.
	Connection(ctx context.Context) (*core.Connection, error)
	// WithConnection runs fn on a connection and releases it on every exit path.
	WithConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) error
	// Transaction returns a begun transaction. When ctx carries a transaction
	// of this pool, it nests into it.
	Transaction(ctx context.Context, opts *core.TxOptions) (*core.Transaction, error)
	// WithTransaction runs fn in a transaction, committing on success and
	// rolling back on error or panic.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *core.Transaction) error) error
	// Execute returns an executor that acquires a connection per call.
	Execute() core.Executor
	// Close releases the pool's resources.
	Close(ctx context.Context) error
}

// DefaultMaxConnections is the Bounded capacity when none is configured.
const DefaultMaxConnections = 10

// MaxInitAttempts bounds how often Dual runs a failing Init.
const MaxInitAttempts = 3

// InitFunc prepares a database once, before the first statement.
type InitFunc func(ctx context.Context, conn *core.Connection) error

type options struct {
	max            int
	noWait         bool
	healthInterval time.Duration
	init           InitFunc
	initAttempts   int
}

func defaultOptions() options {
	return options{
		max:          DefaultMaxConnections,
		initAttempts: MaxInitAttempts,
	}
}

// Option configures a pool.
type Option func(*options)

// WithMaxConnections caps concurrently checked-out connections.
func WithMaxConnections(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.max = n
		}
	}
}

// WithNoWait makes a full Bounded pool fail with ErrPoolExhausted instead of
// waiting for a free slot.
func WithNoWait() Option {
	return func(o *options) { o.noWait = true }
}

// WithHealthCheck pings the source every interval.
func WithHealthCheck(interval time.Duration) Option {
	return func(o *options) { o.healthInterval = interval }
}

// WithInit sets the one-time initialisation Dual runs on its writer.
func WithInit(fn InitFunc) Option {
	return func(o *options) { o.init = fn }
}

// WithInitAttempts overrides MaxInitAttempts.
func WithInitAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initAttempts = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ownedTransaction returns the transaction in ctx when owner created its
// connection and it is still running.
func ownedTransaction(ctx context.Context, owner any) (*core.Transaction, bool) {
	if owner == nil {
		return nil, false
	}
	tx, ok := core.TransactionFromContext(ctx)
	if !ok || tx.Owner() != owner || !tx.Active() {
		return nil, false
	}
	return tx, true
}

// acquireFunc checks out a connection and returns how to give it back.
type acquireFunc func(ctx context.Context) (*core.Connection, func(context.Context) error, error)

// executor runs each call inside the owner's context transaction, or on a
// connection acquired for that call alone.
type executor struct {
	owner   any
	acquire acquireFunc
}

func run[R any](ctx context.Context, e *executor, fn func(ex core.Executor) (R, error)) (res R, err error) {
	if tx, ok := ownedTransaction(ctx, e.owner); ok {
		return fn(tx.Execute())
	}
	conn, release, err := e.acquire(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := release(ctx); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(conn.Execute())
}

func (e *executor) Query(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.QueryResult, error) {
	return run(ctx, e, func(ex core.Executor) (*core.QueryResult, error) {
		return ex.Query(ctx, q, opts...)
	})
}

func (e *executor) Command(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.CommandResult, error) {
	return run(ctx, e, func(ex core.Executor) (*core.CommandResult, error) {
		return ex.Command(ctx, q, opts...)
	})
}

func (e *executor) BatchQuery(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.QueryResult, error) {
	return run(ctx, e, func(ex core.Executor) ([]*core.QueryResult, error) {
		return ex.BatchQuery(ctx, qs, opts...)
	})
}

func (e *executor) BatchCommand(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.CommandResult, error) {
	return run(ctx, e, func(ex core.Executor) ([]*core.CommandResult, error) {
		return ex.BatchCommand(ctx, qs, opts...)
	})
}

// closeConn is the release function for connections the caller owns.
func closeConn(conn *core.Connection) func(context.Context) error {
	return conn.Close
}
