package pool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/coregx/sqlweave/internal/core"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

// Singleton shares one lazily opened connection. Transactions and executor
// calls outside a transaction take turns on it, so every writer funnels
// through one client.
type Singleton struct {
	src core.Source
	cfg *core.Config
	log logger.Logger

	// turn is held by a running transaction or executor call.
	turn *semaphore.Weighted

	mu   sync.Mutex
	conn *core.Connection
}

var _ Pool = (*Singleton)(nil)

// NewSingleton creates a pool over src. Nothing is opened until first use.
func NewSingleton(src core.Source, cfg *core.Config) *Singleton {
	cfg = cfg.WithDefaults()
	return &Singleton{
		src:  src,
		cfg:  cfg,
		log:  logger.With(cfg.Logger, "pool", "singleton"),
		turn: semaphore.NewWeighted(1),
	}
}

// Connection returns the shared connection, opening it on first use or after
// it was closed. Closing the returned connection drops it from the pool.
func (s *Singleton) Connection(ctx context.Context) (*core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && !s.conn.Closed() {
		return s.conn, nil
	}
	conn := core.NewConnection(s.src, s.cfg, core.WithOwner(s))
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	s.conn = conn
	s.log.Debug("shared connection opened", "conn_id", conn.ID())
	return conn, nil
}

// WithConnection runs fn on the shared connection. The connection stays open
// afterwards.
func (s *Singleton) WithConnection(ctx context.Context, fn func(ctx context.Context, conn *core.Connection) error) error {
	conn, err := s.Connection(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, conn)
}

func (s *Singleton) takeTurn(ctx context.Context) (func(), error) {
	if err := s.turn.Acquire(ctx, 1); err != nil {
		return nil, sqlerr.Lifecycle("acquire", err)
	}
	var once sync.Once
	return func() { once.Do(func() { s.turn.Release(1) }) }, nil
}

// Transaction begins a transaction on the shared connection, waiting for any
// other transaction to finish first. A transaction of this pool in ctx is
// nested into instead.
func (s *Singleton) Transaction(ctx context.Context, opts *core.TxOptions) (*core.Transaction, error) {
	if tx, ok := ownedTransaction(ctx, s); ok {
		if err := tx.Begin(ctx); err != nil {
			return nil, err
		}
		return tx, nil
	}

	release, err := s.takeTurn(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := s.Connection(ctx)
	if err != nil {
		release()
		return nil, err
	}

	var o core.TxOptions
	if opts != nil {
		o = *opts
	}
	// The shared connection outlives its transactions.
	o.CloseOnFinish = false
	next := o.OnFinish
	o.OnFinish = func(tx *core.Transaction) {
		release()
		if next != nil {
			next(tx)
		}
	}

	tx := conn.Transaction(&o)
	if tx.Active() {
		// Begun directly on the connection; the turn belongs to that caller.
		release()
	}
	if err := tx.Begin(ctx); err != nil {
		release()
		return nil, err
	}
	return tx, nil
}

// WithTransaction runs fn in a transaction. See core.RunBegun.
func (s *Singleton) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *core.Transaction) error) error {
	tx, err := s.Transaction(ctx, nil)
	if err != nil {
		return err
	}
	return core.RunBegun(ctx, tx, fn)
}

// Execute returns an executor over the shared connection. Statements for an
// open transaction of this pool must carry its context; other calls wait for
// the transaction to finish.
func (s *Singleton) Execute() core.Executor {
	return &executor{
		owner: s,
		acquire: func(ctx context.Context) (*core.Connection, func(context.Context) error, error) {
			release, err := s.takeTurn(ctx)
			if err != nil {
				return nil, nil, err
			}
			conn, err := s.Connection(ctx)
			if err != nil {
				release()
				return nil, nil, err
			}
			return conn, func(context.Context) error { release(); return nil }, nil
		},
	}
}

// Close closes the shared connection and the source. A later call opens a
// fresh connection.
func (s *Singleton) Close(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	var errs []error
	if conn != nil {
		errs = append(errs, conn.Close(ctx))
	}
	errs = append(errs, s.src.Close())
	s.log.Debug("singleton pool closed")
	return errors.Join(errs...)
}
