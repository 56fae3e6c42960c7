package pool

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Dual pairs a Bounded reader pool with a Singleton writer. Queries go to the
// readers; commands, transactions and Connection go to the writer. An
// optional Init runs once on the writer before anything else.
type Dual struct {
	readers *Bounded
	writer  *Singleton
	log     logger.Logger

	init         InitFunc
	initAttempts int
	// initQueue lets one caller at a time run Init.
	initQueue *semaphore.Weighted
	initDone  atomic.Bool
}

var _ Pool = (*Dual)(nil)

// NewDual creates a pool reading through readSrc and writing through writeSrc.
// Options apply to the reader pool; WithInit and WithInitAttempts configure
// initialisation.
func NewDual(readSrc, writeSrc core.Source, cfg *core.Config, opts ...Option) *Dual {
	cfg = cfg.WithDefaults()
	o := applyOptions(opts)
	return &Dual{
		readers:      NewBounded(readSrc, cfg, opts...),
		writer:       NewSingleton(writeSrc, cfg),
		log:          logger.With(cfg.Logger, "pool", "dual"),
		init:         o.init,
		initAttempts: o.initAttempts,
		initQueue:    semaphore.NewWeighted(1),
	}
}

// Readers returns the reader pool.
func (d *Dual) Readers() *Bounded { return d.readers }

// Writer returns the writer pool.
func (d *Dual) Writer() *Singleton { return d.writer }

// Initialized reports whether Init has completed.
func (d *Dual) Initialized() bool {
	return d.init == nil || d.initDone.Load()
}

// ensureInit runs Init once. Failures are retried up to initAttempts times
// before the last error is returned; a later call starts over.
func (d *Dual) ensureInit(ctx context.Context) error {
	if d.Initialized() {
		return nil
	}
	if err := d.initQueue.Acquire(ctx, 1); err != nil {
		return sqlerr.Lifecycle("init", err)
	}
	defer d.initQueue.Release(1)

	if d.initDone.Load() {
		return nil
	}

	var err error
	for attempt := 1; attempt <= d.initAttempts; attempt++ {
		err = d.writer.WithConnection(ctx, func(ctx context.Context, conn *core.Connection) error {
			return d.init(ctx, conn)
		})
		if err == nil {
			d.initDone.Store(true)
			d.log.Debug("dual pool initialized", "attempt", attempt)
			return nil
		}
		d.log.Warn("dual pool init failed", "attempt", attempt, "max_attempts", d.initAttempts, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

// Connection returns the writer connection.
func (d *Dual) Connection(ctx context.Context) (*core.Connection, error) {
	if err := d.ensureInit(ctx); err != nil {
		return nil, err
	}
	return d.writer.Connection(ctx)
}

// WithConnection runs fn on the writer connection.
func (d *Dual) WithConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) error {
	if err := d.ensureInit(ctx); err != nil {
		return err
	}
	return d.writer.WithConnection(ctx, fn)
}

// ReadConnection checks out a reader connection. The caller closes it.
func (d *Dual) ReadConnection(ctx context.Context) (*core.Connection, error) {
	if err := d.ensureInit(ctx); err != nil {
		return nil, err
	}
	return d.readers.Connection(ctx)
}

// WithReadConnection runs fn on a reader connection.
func (d *Dual) WithReadConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) error {
	if err := d.ensureInit(ctx); err != nil {
		return err
	}
	return d.readers.WithConnection(ctx, fn)
}

// Transaction begins a transaction on the writer.
func (d *Dual) Transaction(ctx context.Context, opts *core.TxOptions) (*core.Transaction, error) {
	if err := d.ensureInit(ctx); err != nil {
		return nil, err
	}
	return d.writer.Transaction(ctx, opts)
}

// WithTransaction runs fn in a writer transaction.
func (d *Dual) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *core.Transaction) error) error {
	if err := d.ensureInit(ctx); err != nil {
		return err
	}
	return d.writer.WithTransaction(ctx, fn)
}

// Execute routes queries to the readers and commands to the writer. Inside a
// writer transaction everything runs on the writer.
func (d *Dual) Execute() core.Executor {
	return &dualExecutor{d: d}
}

// Close closes both pools.
func (d *Dual) Close(ctx context.Context) error {
	return errors.Join(d.readers.Close(ctx), d.writer.Close(ctx))
}

type dualExecutor struct {
	d *Dual
}

func (e *dualExecutor) reader(ctx context.Context) (core.Executor, error) {
	if err := e.d.ensureInit(ctx); err != nil {
		return nil, err
	}
	if _, ok := ownedTransaction(ctx, e.d.writer); ok {
		return e.d.writer.Execute(), nil
	}
	return e.d.readers.Execute(), nil
}

func (e *dualExecutor) writer(ctx context.Context) (core.Executor, error) {
	if err := e.d.ensureInit(ctx); err != nil {
		return nil, err
	}
	return e.d.writer.Execute(), nil
}

func (e *dualExecutor) Query(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.QueryResult, error) {
	ex, err := e.reader(ctx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, q, opts...)
}

func (e *dualExecutor) BatchQuery(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.QueryResult, error) {
	ex, err := e.reader(ctx)
	if err != nil {
		return nil, err
	}
	return ex.BatchQuery(ctx, qs, opts...)
}

func (e *dualExecutor) Command(ctx context.Context, q compose.SQL, opts ...core.ExecOption) (*core.CommandResult, error) {
	ex, err := e.writer(ctx)
	if err != nil {
		return nil, err
	}
	return ex.Command(ctx, q, opts...)
}

func (e *dualExecutor) BatchCommand(ctx context.Context, qs []compose.SQL, opts ...core.ExecOption) ([]*core.CommandResult, error) {
	ex, err := e.writer(ctx)
	if err != nil {
		return nil, err
	}
	return ex.BatchCommand(ctx, qs, opts...)
}
