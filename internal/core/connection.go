// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/coregx/sqlweave/internal/cache"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/sqlerr"
)

type connState uint8

const (
	connUnopened connState = iota
	connOpen
	connClosed
)

// Connection is one logical database connection. It acquires a client from
// its Source on Open and gives it back on Close. At most one transaction is
// active on a connection at a time; nested begins become savepoints.
type Connection struct {
	id     string
	cfg    *Config
	source Source
	log    logger.Logger

	owner   any
	onClose func(*Connection)
	// parent is set for ambient views, which borrow the parent's client.
	parent *Connection

	mu      sync.Mutex
	state   connState
	client  Client
	release func() error
	stmts   *cache.StmtCache
	tx      *Transaction
}

// ConnOption configures a Connection.
type ConnOption func(*Connection)

// WithOwner records the pool that created the connection.
func WithOwner(owner any) ConnOption {
	return func(c *Connection) { c.owner = owner }
}

// WithOnClose registers fn to run once when the connection closes.
func WithOnClose(fn func(*Connection)) ConnOption {
	return func(c *Connection) { c.onClose = fn }
}

// NewConnection creates an unopened connection over src.
func NewConnection(src Source, cfg *Config, opts ...ConnOption) *Connection {
	cfg = cfg.WithDefaults()
	c := &Connection{
		id:     uuid.NewString(),
		cfg:    cfg,
		source: src,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.With(cfg.Logger, "conn_id", c.id)
	if cfg.StmtCacheCapacity > 0 {
		c.stmts = cache.NewStmtCacheWithCapacity(cfg.StmtCacheCapacity)
	}
	return c
}

// NewAmbientConnection returns a view of parent that shares its client and
// transaction. Closing the view never closes parent.
func NewAmbientConnection(parent *Connection, opts ...ConnOption) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		cfg:    parent.cfg,
		parent: parent,
		owner:  parent.owner,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.With(parent.cfg.Logger, "conn_id", c.id, "parent_id", parent.id)
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// Owner returns the pool that created the connection, or nil.
func (c *Connection) Owner() any { return c.owner }

// Config returns the connection configuration.
func (c *Connection) Config() *Config { return c.cfg }

// Open acquires a client. Opening an open connection is a no-op; opening a
// closed one fails with ErrConnClosed.
func (c *Connection) Open(ctx context.Context) error {
	if c.parent != nil {
		if c.Closed() {
			return sqlerr.Lifecycle("open", sqlerr.ErrConnClosed)
		}
		if err := c.parent.Open(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		if c.state == connUnopened {
			c.state = connOpen
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case connOpen:
		return nil
	case connClosed:
		return sqlerr.Lifecycle("open", sqlerr.ErrConnClosed)
	}

	client, release, err := c.source.Acquire(ctx)
	if err != nil {
		return err
	}
	c.client = client
	c.release = release
	c.state = connOpen
	c.log.Debug("connection opened")
	return nil
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == connClosed
}

// Close rolls back any active transaction, drops cached statements and
// releases the client. It is idempotent. Ambient views only mark
// themselves closed.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return nil
	}
	wasOpen := c.state == connOpen
	c.state = connClosed
	tx, release, onClose := c.tx, c.release, c.onClose
	c.tx, c.client, c.release, c.onClose = nil, nil, nil, nil
	c.mu.Unlock()

	if c.parent != nil {
		c.log.Debug("ambient connection closed")
		if onClose != nil {
			onClose(c)
		}
		return nil
	}

	var errs []error
	if tx != nil {
		if err := tx.abort(ctx); err != nil {
			c.log.Warn("rollback on close failed", "error", err)
			errs = append(errs, err)
		}
	}
	if c.stmts != nil {
		c.stmts.Clear()
	}
	if wasOpen && release != nil {
		if err := release(); err != nil {
			errs = append(errs, sqlerr.Backend("release", err))
		}
	}
	if onClose != nil {
		onClose(c)
	}
	c.log.Debug("connection closed")

	return errors.Join(errs...)
}

// root returns the connection that owns the client.
func (c *Connection) root() *Connection {
	if c.parent != nil {
		return c.parent
	}
	return c
}

// Transaction returns the connection's transaction, creating a not-started
// one when none exists. Non-nil opts replace the options of a transaction
// that has not started; an active transaction keeps its own.
func (c *Connection) Transaction(opts *TxOptions) *Transaction {
	if c.parent != nil {
		return c.parent.Transaction(opts)
	}

	var o TxOptions
	if opts != nil {
		o = *opts
	}

	c.mu.Lock()
	tx := c.tx
	if tx == nil {
		c.tx = newTransaction(c, o)
		tx = c.tx
		c.mu.Unlock()
		return tx
	}
	c.mu.Unlock()

	// t.mu is never taken under c.mu; Begin locks them the other way round.
	if opts != nil {
		tx.setOptions(o)
	}
	return tx
}

// Begin starts the connection's transaction, or nests into the active one.
func (c *Connection) Begin(ctx context.Context, opts *TxOptions) (*Transaction, error) {
	if c.Closed() {
		return nil, sqlerr.Lifecycle("begin", sqlerr.ErrConnClosed)
	}
	tx := c.Transaction(opts)
	if err := tx.Begin(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// WithTransaction runs fn inside the connection's transaction. See RunTransaction.
func (c *Connection) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Transaction) error) error {
	if c.Closed() {
		return sqlerr.Lifecycle("begin", sqlerr.ErrConnClosed)
	}
	return RunTransaction(ctx, c.Transaction(nil), fn)
}

// Execute returns an executor bound to this connection. Statements run inside
// the active transaction when there is one.
func (c *Connection) Execute() Executor {
	return &stmtExecutor{bind: c.bindRunner}
}

// detach forgets tx once it has finished.
func (c *Connection) detach(tx *Transaction) {
	c.mu.Lock()
	if c.tx == tx {
		c.tx = nil
	}
	c.mu.Unlock()
}

// currentClient returns the client, opening the connection first.
func (c *Connection) currentClient(ctx context.Context) (Client, error) {
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != connOpen {
		return nil, sqlerr.Lifecycle("execute", sqlerr.ErrConnClosed)
	}
	return c.client, nil
}

func (c *Connection) bindRunner(ctx context.Context) (*runner, error) {
	if c.parent != nil && c.Closed() {
		return nil, sqlerr.Lifecycle("execute", sqlerr.ErrConnClosed)
	}
	root := c.root()

	root.mu.Lock()
	tx := root.tx
	root.mu.Unlock()
	if tx != nil && tx.Active() {
		return tx.bindRunner(ctx)
	}

	client, err := root.currentClient(ctx)
	if err != nil {
		return nil, err
	}
	return &runner{
		cfg:      root.cfg,
		log:      root.log,
		connID:   root.id,
		target:   client,
		preparer: client,
		stmts:    root.stmts,
	}, nil
}
