package pool

import (
	"context"
	"sync/atomic"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Ambient adapts a connection or pool owned elsewhere. Closing it only stops
// this wrapper; the wrapped resource stays open for its owner.
type Ambient struct {
	conn   *core.Connection
	pool   Pool
	closed atomic.Bool
}

var _ Pool = (*Ambient)(nil)

// NewAmbient wraps conn, open or not. Connections handed out are views that
// share conn's client and transaction.
func NewAmbient(conn *core.Connection) *Ambient {
	return &Ambient{conn: conn}
}

// WrapPool wraps p. Calls are delegated to p, except Close.
func WrapPool(p Pool) *Ambient {
	return &Ambient{pool: p}
}

func (a *Ambient) check() error {
	if a.closed.Load() {
		return sqlerr.Lifecycle("acquire", sqlerr.ErrPoolClosed)
	}
	return nil
}

// Connection returns a view of the wrapped connection, or a connection from
// the wrapped pool.
func (a *Ambient) Connection(ctx context.Context) (*core.Connection, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.pool != nil {
		return a.pool.Connection(ctx)
	}
	view := core.NewAmbientConnection(a.conn)
	if err := view.Open(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// WithConnection runs fn on a connection from Connection and closes it.
func (a *Ambient) WithConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) error {
	if err := a.check(); err != nil {
		return err
	}
	if a.pool != nil {
		return a.pool.WithConnection(ctx, fn)
	}
	view, err := a.Connection(ctx)
	if err != nil {
		return err
	}
	defer view.Close(ctx)
	return fn(ctx, view)
}

// Transaction begins the wrapped connection's transaction, nesting into it
// when it is already active. The connection is never closed on finish.
func (a *Ambient) Transaction(ctx context.Context, opts *core.TxOptions) (*core.Transaction, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.pool != nil {
		return a.pool.Transaction(ctx, opts)
	}
	if opts != nil {
		o := *opts
		o.CloseOnFinish = false
		opts = &o
	}
	return a.conn.Begin(ctx, opts)
}

// WithTransaction runs fn in a transaction. See core.RunBegun.
func (a *Ambient) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *core.Transaction) error) error {
	if err := a.check(); err != nil {
		return err
	}
	if a.pool != nil {
		return a.pool.WithTransaction(ctx, fn)
	}
	tx, err := a.Transaction(ctx, nil)
	if err != nil {
		return err
	}
	return core.RunBegun(ctx, tx, fn)
}

// Execute returns an executor over the wrapped resource.
func (a *Ambient) Execute() core.Executor {
	return &ambientExecutor{a: a}
}

// Close marks the wrapper closed. The wrapped resource is left untouched.
func (a *Ambient) Close(_ context.Context) error {
	a.closed.Store(true)
	return nil
}

type ambientExecutor struct {
	a *Ambient
}

func (e *ambientExecutor) target() (core.Executor, error) {
	if err := e.a.check(); err != nil {
		return nil, err
	}
	if e.a.pool != nil {
		return e.a.pool.Execute(), nil
	}
	return e.a.conn.Execute(), nil
}

func (e *ambientExecutor) Query(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.QueryResult, error) {
	ex, err := e.target()
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, q, opts...)
}

func (e *ambientExecutor) Command(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.CommandResult, error) {
	ex, err := e.target()
	if err != nil {
		return nil, err
	}
	return ex.Command(ctx, q, opts...)
}

func (e *ambientExecutor) BatchQuery(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.QueryResult, error) {
	ex, err := e.target()
	if err != nil {
		return nil, err
	}
	return ex.BatchQuery(ctx, qs, opts...)
}

func (e *ambientExecutor) BatchCommand(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.CommandResult, error) {
	ex, err := e.target()
	if err != nil {
		return nil, err
	}
	return ex.BatchCommand(ctx, qs, opts...)
}
