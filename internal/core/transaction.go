// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/tracer"
)

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	// Isolation level for the transaction (e.g., sql.LevelReadCommitted)
	Isolation sql.IsolationLevel
	// ReadOnly indicates whether the transaction is read-only
	ReadOnly bool
	// CloseOnFinish closes the connection after the outermost commit or rollback.
	// Pools set it for transactions on connections they acquired for the caller.
	CloseOnFinish bool
	// OnFinish runs once after the outermost commit or rollback.
	OnFinish func(*Transaction)
}

// TxState is the lifecycle state of a Transaction.
type TxState uint8

// Transaction states.
const (
	TxNotStarted TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxNotStarted:
		return "not-started"
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("TxState(%d)", uint8(s))
	}
}

// Transaction is a database transaction with savepoint-based nesting.
//
// Each Begin increments a depth counter: the first issues BEGIN, later ones
// issue SAVEPOINT sqlweave_sp_<depth>. Commit at depth > 1 releases the newest
// savepoint; at depth 1 it commits. Rollback at depth > 1 only unwinds the
// counter and marks the transaction rollback-only, so the outermost Commit
// rolls everything back and reports ErrRollbackOnly.
type Transaction struct {
	conn *Connection
	opts TxOptions

	mu           sync.Mutex
	finished     bool
	state        TxState
	depth        int
	sqlTx        *sql.Tx
	rollbackOnly bool
}

func newTransaction(conn *Connection, opts TxOptions) *Transaction {
	return &Transaction{conn: conn, opts: opts}
}

func savepointName(n int) string {
	return fmt.Sprintf("sqlweave_sp_%d", n)
}

// Connection returns the connection the transaction runs on.
func (t *Transaction) Connection() *Connection { return t.conn }

// Owner returns the pool owning the transaction's connection, or nil.
func (t *Transaction) Owner() any { return t.conn.Owner() }

// State returns the current lifecycle state.
func (t *Transaction) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether the transaction has begun and not finished.
func (t *Transaction) Active() bool {
	return t.State() == TxActive
}

// Depth returns the nesting depth; 0 before Begin and after finishing.
func (t *Transaction) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth
}

// RollbackOnly reports whether a nested scope rolled back.
func (t *Transaction) RollbackOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackOnly
}

// Begin starts the transaction or, when it is active, opens a savepoint.
func (t *Transaction) Begin(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case TxCommitted, TxRolledBack:
		return sqlerr.Lifecycle("begin", sqlerr.ErrTxDone)
	case TxActive:
		return t.savepoint(ctx)
	}

	client, err := t.conn.currentClient(ctx)
	if err != nil {
		return err
	}

	ctx, span := t.conn.cfg.Tracer.StartSpan(ctx, tracer.SpanBegin)
	defer span.End()

	sqlTx, err := client.BeginTx(ctx, &sql.TxOptions{Isolation: t.opts.Isolation, ReadOnly: t.opts.ReadOnly})
	tracer.SetStatus(span, err)
	if err != nil {
		t.conn.log.Error("begin transaction failed", "error", err)
		return sqlerr.Backend("begin", err)
	}

	t.sqlTx = sqlTx
	t.state = TxActive
	t.depth = 1
	t.rollbackOnly = false
	t.conn.log.Debug("transaction started", "tx_depth", t.depth)
	return nil
}

// savepoint must be called with t.mu held.
func (t *Transaction) savepoint(ctx context.Context) error {
	if !t.conn.cfg.AllowNestedTransactions {
		return sqlerr.Lifecycle("begin", sqlerr.ErrNestedTransaction)
	}

	name := savepointName(t.depth)
	if _, err := t.sqlTx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		t.conn.log.Error("savepoint failed", "savepoint", name, "error", err)
		return sqlerr.Backend("savepoint", err)
	}
	t.depth++
	t.conn.log.Debug("savepoint created", "savepoint", name, "tx_depth", t.depth)
	return nil
}

// Commit releases the newest savepoint, or commits at the outermost level.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()

	switch t.state {
	case TxNotStarted:
		t.mu.Unlock()
		return sqlerr.Lifecycle("commit", sqlerr.ErrTxNotStarted)
	case TxCommitted, TxRolledBack:
		t.mu.Unlock()
		return sqlerr.Lifecycle("commit", sqlerr.ErrTxDone)
	}

	if t.depth > 1 {
		defer t.mu.Unlock()
		name := savepointName(t.depth - 1)
		t.depth--
		if _, err := t.sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			t.rollbackOnly = true
			t.conn.log.Error("release savepoint failed", "savepoint", name, "error", err)
			return sqlerr.Backend("release savepoint", err)
		}
		t.conn.log.Debug("savepoint released", "savepoint", name, "tx_depth", t.depth)
		return nil
	}

	if t.rollbackOnly {
		err := t.rollbackLocked(ctx)
		t.mu.Unlock()
		t.finish(ctx)
		if err != nil {
			return err
		}
		return sqlerr.Lifecycle("commit", sqlerr.ErrRollbackOnly)
	}

	_, span := t.conn.cfg.Tracer.StartSpan(ctx, tracer.SpanCommit)
	err := t.sqlTx.Commit()
	tracer.SetStatus(span, err)
	span.End()

	t.depth = 0
	if err != nil {
		t.state = TxRolledBack
		t.mu.Unlock()
		t.conn.log.Error("commit failed", "error", err)
		t.finish(ctx)
		return sqlerr.Backend("commit", err)
	}
	t.state = TxCommitted
	t.mu.Unlock()

	t.conn.log.Debug("transaction committed")
	t.finish(ctx)
	return nil
}

// Rollback unwinds one nesting level. At depth > 1 no SQL is issued and the
// transaction becomes rollback-only; at the outermost level it rolls back.
// cause is logged and may be nil.
func (t *Transaction) Rollback(ctx context.Context, cause error) error {
	t.mu.Lock()

	switch t.state {
	case TxNotStarted:
		t.mu.Unlock()
		return sqlerr.Lifecycle("rollback", sqlerr.ErrTxNotStarted)
	case TxCommitted, TxRolledBack:
		t.mu.Unlock()
		return sqlerr.Lifecycle("rollback", sqlerr.ErrTxDone)
	}

	if t.depth > 1 {
		t.depth--
		t.rollbackOnly = true
		t.mu.Unlock()
		t.conn.log.Debug("nested scope rolled back", "tx_depth", t.depth, "cause", cause)
		return nil
	}

	err := t.rollbackLocked(ctx)
	t.mu.Unlock()
	t.conn.log.Debug("transaction rolled back", "cause", cause)
	t.finish(ctx)
	return err
}

// rollbackLocked issues ROLLBACK. Must be called with t.mu held.
func (t *Transaction) rollbackLocked(ctx context.Context) error {
	_, span := t.conn.cfg.Tracer.StartSpan(ctx, tracer.SpanRollback)
	defer span.End()

	err := t.sqlTx.Rollback()
	t.state = TxRolledBack
	t.depth = 0
	tracer.SetStatus(span, err)
	if err != nil {
		return sqlerr.Backend("rollback", err)
	}
	return nil
}

// finish detaches the transaction, closes the connection when it owns it
// and runs OnFinish. Only the first call has effect.
func (t *Transaction) finish(ctx context.Context) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	opts := t.opts
	t.mu.Unlock()

	t.conn.detach(t)
	if opts.CloseOnFinish {
		if err := t.conn.Close(ctx); err != nil {
			t.conn.log.Warn("closing connection after transaction failed", "error", err)
		}
	}
	if opts.OnFinish != nil {
		opts.OnFinish(t)
	}
}

// setOptions replaces the options of a transaction that has not started.
func (t *Transaction) setOptions(opts TxOptions) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TxNotStarted {
		return false
	}
	t.opts = opts
	return true
}

// abort rolls back an active transaction while its connection closes.
func (t *Transaction) abort(ctx context.Context) error {
	t.mu.Lock()
	if t.state != TxActive {
		t.mu.Unlock()
		return nil
	}
	t.conn.log.Warn("rolling back transaction left open on close", "tx_depth", t.depth)
	err := t.rollbackLocked(ctx)
	onFinish := t.opts.OnFinish
	done := t.finished
	t.finished = true
	t.mu.Unlock()

	if !done && onFinish != nil {
		onFinish(t)
	}
	return err
}

// Execute returns an executor that runs statements inside the transaction.
func (t *Transaction) Execute() Executor {
	return &stmtExecutor{bind: t.bindRunner}
}

func (t *Transaction) bindRunner(_ context.Context) (*runner, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		if t.state == TxNotStarted {
			return nil, sqlerr.Lifecycle("execute", sqlerr.ErrTxNotStarted)
		}
		return nil, sqlerr.Lifecycle("execute", sqlerr.ErrTxDone)
	}
	return &runner{
		cfg:     t.conn.cfg,
		log:     t.conn.log,
		connID:  t.conn.id,
		target:  t.sqlTx,
		txDepth: t.depth,
	}, nil
}

// RunTransaction begins tx, runs fn and commits. When fn fails the
// transaction is rolled back and fn's error is returned; a rollback failure
// is logged. A panic in fn rolls back and re-panics. fn receives a context
// carrying tx so pools can nest into it.
func RunTransaction(ctx context.Context, tx *Transaction, fn func(ctx context.Context, tx *Transaction) error) error {
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	return RunBegun(ctx, tx, fn)
}

// RunBegun is RunTransaction for a transaction the caller already began. It
// finishes exactly the nesting level the caller opened.
func RunBegun(ctx context.Context, tx *Transaction, fn func(ctx context.Context, tx *Transaction) error) error {
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx, fmt.Errorf("panic: %v", p)); rbErr != nil {
				tx.conn.log.Error("rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(ContextWithTransaction(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(ctx, err); rbErr != nil {
			tx.conn.log.Error("transaction rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}
	return tx.Commit(ctx)
}
