package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/tracer"
)

// Bounded caps the number of checked-out connections. Requests beyond the cap
// wait in arrival order until a connection is closed, unless the pool was
// created WithNoWait.
type Bounded struct {
	src  core.Source
	cfg  *core.Config
	log  logger.Logger
	opts options

	slots  *semaphore.Weighted
	health *healthChecker

	mu     sync.Mutex
	closed bool
	active map[*core.Connection]struct{}
}

var _ Pool = (*Bounded)(nil)

// NewBounded creates a pool over src.
func NewBounded(src core.Source, cfg *core.Config, opts ...Option) *Bounded {
	cfg = cfg.WithDefaults()
	o := applyOptions(opts)
	b := &Bounded{
		src:    src,
		cfg:    cfg,
		log:    logger.With(cfg.Logger, "pool", "bounded"),
		opts:   o,
		slots:  semaphore.NewWeighted(int64(o.max)),
		active: make(map[*core.Connection]struct{}),
	}
	if o.healthInterval > 0 {
		b.health = newHealthChecker(src, b.log, o.healthInterval)
		b.health.start()
	}
	return b
}

// Max returns the pool capacity.
func (b *Bounded) Max() int { return b.opts.max }

// InUse returns the number of checked-out connections.
func (b *Bounded) InUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

// Healthy reports the result of the last health check. It is true when
// health checks are disabled or none has run yet.
func (b *Bounded) Healthy() bool {
	if b.health == nil {
		return true
	}
	return b.health.isHealthy()
}

// LastHealthCheck returns the time of the last health check, or zero.
func (b *Bounded) LastHealthCheck() time.Time {
	if b.health == nil {
		return time.Time{}
	}
	return b.health.lastCheck()
}

// HealthError returns the error of the last health check.
func (b *Bounded) HealthError() error {
	if b.health == nil {
		return nil
	}
	return b.health.lastError()
}

func (b *Bounded) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bounded) acquireSlot(ctx context.Context) error {
	if b.opts.noWait {
		if !b.slots.TryAcquire(1) {
			return sqlerr.Lifecycle("acquire", sqlerr.ErrPoolExhausted)
		}
		return nil
	}

	start := time.Now()
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return sqlerr.Lifecycle("acquire", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		b.log.Debug("waited for connection slot", "wait_ms", waited.Milliseconds(), "max", b.opts.max)
	}
	return nil
}

// Connection checks out an open connection. Closing it frees the slot.
func (b *Bounded) Connection(ctx context.Context) (*core.Connection, error) {
	if b.isClosed() {
		return nil, sqlerr.Lifecycle("acquire", sqlerr.ErrPoolClosed)
	}

	ctx, span := b.cfg.Tracer.StartSpan(ctx, tracer.SpanPoolAcquire)
	defer span.End()

	if err := b.acquireSlot(ctx); err != nil {
		tracer.SetStatus(span, err)
		return nil, err
	}

	conn := core.NewConnection(b.src, b.cfg, core.WithOwner(b), core.WithOnClose(b.release))

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.slots.Release(1)
		return nil, sqlerr.Lifecycle("acquire", sqlerr.ErrPoolClosed)
	}
	b.active[conn] = struct{}{}
	b.mu.Unlock()

	if err := conn.Open(ctx); err != nil {
		tracer.SetStatus(span, err)
		_ = conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}

// release runs once per connection, from its Close.
func (b *Bounded) release(conn *core.Connection) {
	b.mu.Lock()
	delete(b.active, conn)
	b.mu.Unlock()
	b.slots.Release(1)
}

// WithConnection runs fn on a checked-out connection and closes it afterwards.
func (b *Bounded) WithConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) (err error) {
	conn, err := b.Connection(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, conn)
}

// Transaction begins a transaction on a fresh connection, closed when the
// transaction finishes. A transaction of this pool in ctx is nested into.
func (b *Bounded) Transaction(ctx context.Context, opts *core.TxOptions) (*core.Transaction, error) {
	if tx, ok := ownedTransaction(ctx, b); ok {
		if err := tx.Begin(ctx); err != nil {
			return nil, err
		}
		return tx, nil
	}

	conn, err := b.Connection(ctx)
	if err != nil {
		return nil, err
	}
	var o core.TxOptions
	if opts != nil {
		o = *opts
	}
	o.CloseOnFinish = true

	tx, err := conn.Begin(ctx, &o)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return tx, nil
}

// WithTransaction runs fn in a transaction. See core.RunBegun.
func (b *Bounded) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *core.Transaction) error) error {
	tx, err := b.Transaction(ctx, nil)
	if err != nil {
		return err
	}
	return core.RunBegun(ctx, tx, fn)
}

// Execute returns an executor that checks out a connection per call.
func (b *Bounded) Execute() core.Executor {
	return &executor{
		owner: b,
		acquire: func(ctx context.Context) (*core.Connection, func(context.Context) error, error) {
			conn, err := b.Connection(ctx)
			if err != nil {
				return nil, nil, err
			}
			return conn, closeConn(conn), nil
		},
	}
}

// Close closes every checked-out connection and the source. Later calls
// fail with ErrPoolClosed.
func (b *Bounded) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conns := make([]*core.Connection, 0, len(b.active))
	for c := range b.active {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	if b.health != nil {
		b.health.shutdown()
	}

	var errs []error
	for _, c := range conns {
		errs = append(errs, c.Close(ctx))
	}
	errs = append(errs, b.src.Close())
	b.log.Debug("bounded pool closed", "closed_connections", len(conns))
	return errors.Join(errs...)
}
