package core

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/sqlweave/internal/cache"
	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/logger"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/tracer"
)

// Row is one result row keyed by column name. Values are whatever the driver
// returned for the column.
type Row map[string]any

// QueryResult holds the rows of a query.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// CommandResult reports the effect of a statement that returns no rows.
type CommandResult struct {
	RowsAffected int64
	LastInsertID int64
}

// Executor runs composed statements. Batch methods run statements in order,
// stop at the first failure and return the results gathered so far with an
// error carrying the failing index.
type Executor interface {
	Query(ctx context.Context, q compose.SQL, opts ...ExecOption) (*QueryResult, error)
	Command(ctx context.Context, q compose.SQL, opts ...ExecOption) (*CommandResult, error)
	BatchQuery(ctx context.Context, qs []compose.SQL, opts ...ExecOption) ([]*QueryResult, error)
	BatchCommand(ctx context.Context, qs []compose.SQL, opts ...ExecOption) ([]*CommandResult, error)
}

type execOptions struct {
	timeout       time.Duration
	assertChanged bool
	rowLimit      int
}

// ExecOption tunes a single execution.
type ExecOption func(*execOptions)

// WithTimeout bounds each statement by d. The dialect's timeout directive is
// sent on the same connection first, so the server enforces it too.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) { o.timeout = d }
}

// AssertChanged makes Command fail with ErrNoRowsAffected when no row changed.
func AssertChanged() ExecOption {
	return func(o *execOptions) { o.assertChanged = true }
}

// WithRowLimit stops reading a query's rows after n rows.
func WithRowLimit(n int) ExecOption {
	return func(o *execOptions) { o.rowLimit = n }
}

func applyExecOptions(opts []ExecOption) execOptions {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// QueryAs runs q and maps every row with mapper.
func QueryAs[T any](ctx context.Context, ex Executor, q compose.SQL, mapper func(Row) (T, error), opts ...ExecOption) ([]T, error) {
	res, err := ex.Query(ctx, q, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, err := mapper(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryOne runs q and maps its first row. It returns sql.ErrNoRows when the
// query yields nothing.
func QueryOne[T any](ctx context.Context, ex Executor, q compose.SQL, mapper func(Row) (T, error), opts ...ExecOption) (T, error) {
	var zero T
	res, err := ex.Query(ctx, q, append(opts, WithRowLimit(1))...)
	if err != nil {
		return zero, err
	}
	if len(res.Rows) == 0 {
		return zero, sql.ErrNoRows
	}
	return mapper(res.Rows[0])
}

// target is what statements run on: a Client or a *sql.Tx.
type target interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// runner executes statements against one bound target.
type runner struct {
	cfg      *Config
	log      logger.Logger
	connID   string
	target   target
	preparer cache.Preparer
	stmts    *cache.StmtCache
	txDepth  int
}

// stmtExecutor binds a runner per call, so it always sees the current
// transaction of its connection.
type stmtExecutor struct {
	bind func(ctx context.Context) (*runner, error)
}

func (e *stmtExecutor) Query(ctx context.Context, q compose.SQL, opts ...ExecOption) (*QueryResult, error) {
	r, err := e.bind(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q, sqlerr.NoIndex, applyExecOptions(opts))
}

func (e *stmtExecutor) Command(ctx context.Context, q compose.SQL, opts ...ExecOption) (*CommandResult, error) {
	r, err := e.bind(ctx)
	if err != nil {
		return nil, err
	}
	return r.command(ctx, q, sqlerr.NoIndex, applyExecOptions(opts))
}

func (e *stmtExecutor) BatchQuery(ctx context.Context, qs []compose.SQL, opts ...ExecOption) ([]*QueryResult, error) {
	r, err := e.bind(ctx)
	if err != nil {
		return nil, err
	}
	o := applyExecOptions(opts)
	out := make([]*QueryResult, 0, len(qs))
	for i, q := range qs {
		res, err := r.query(ctx, q, i, o)
		if err != nil {
			return out, sqlerr.AtIndex(err, i)
		}
		out = append(out, res)
	}
	return out, nil
}

func (e *stmtExecutor) BatchCommand(ctx context.Context, qs []compose.SQL, opts ...ExecOption) ([]*CommandResult, error) {
	r, err := e.bind(ctx)
	if err != nil {
		return nil, err
	}
	o := applyExecOptions(opts)
	out := make([]*CommandResult, 0, len(qs))
	for i, q := range qs {
		res, err := r.command(ctx, q, i, o)
		if err != nil {
			return out, sqlerr.AtIndex(err, i)
		}
		out = append(out, res)
	}
	return out, nil
}

// prepare applies the timeout and returns a context the statement runs under.
func (r *runner) prepare(ctx context.Context, o execOptions) (context.Context, context.CancelFunc, error) {
	if o.timeout <= 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	if directive, ok := r.cfg.Formatter.Dialect().TimeoutSQL(o.timeout); ok {
		if _, err := r.target.ExecContext(ctx, directive); err != nil {
			cancel()
			r.log.Error("timeout directive failed", "sql", directive, "error", err)
			return nil, nil, sqlerr.Backend("timeout", err)
		}
	}
	return ctx, cancel, nil
}

func (r *runner) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if r.stmts == nil || r.preparer == nil {
		return nil, nil
	}
	return r.stmts.GetOrPrepare(ctx, r.preparer, query)
}

func (r *runner) query(ctx context.Context, q compose.SQL, index int, o execOptions) (*QueryResult, error) {
	rendered, err := r.cfg.Formatter.Format(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel, err := r.prepare(ctx, o)
	if err != nil {
		return nil, err
	}
	defer cancel()

	ctx, span := r.cfg.Tracer.StartSpan(ctx, tracer.SpanQuery)
	defer span.End()
	start := time.Now()

	res, err := r.runQuery(ctx, rendered.Query, rendered.Params, o.rowLimit)
	var n int64
	if res != nil {
		n = int64(len(res.Rows))
	}
	r.report(ctx, span, rendered.Query, rendered.Params, index, time.Since(start), n, err)
	if err != nil {
		return nil, sqlerr.Backend("query", err)
	}
	return res, nil
}

func (r *runner) runQuery(ctx context.Context, query string, params []any, limit int) (*QueryResult, error) {
	stmt, err := r.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	var rows *sql.Rows
	if stmt != nil {
		rows, err = stmt.QueryContext(ctx, params...)
	} else {
		rows, err = r.target.QueryContext(ctx, query, params...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows, limit)
}

func scanRows(rows *sql.Rows, limit int) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &QueryResult{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		res.Rows = append(res.Rows, row)
		if limit > 0 && len(res.Rows) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *runner) command(ctx context.Context, q compose.SQL, index int, o execOptions) (*CommandResult, error) {
	rendered, err := r.cfg.Formatter.Format(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel, err := r.prepare(ctx, o)
	if err != nil {
		return nil, err
	}
	defer cancel()

	ctx, span := r.cfg.Tracer.StartSpan(ctx, tracer.SpanCommand)
	defer span.End()
	start := time.Now()

	res, err := r.runCommand(ctx, rendered.Query, rendered.Params)
	if err == nil && o.assertChanged && res.RowsAffected == 0 {
		err = sqlerr.Lifecycle("command", sqlerr.ErrNoRowsAffected)
	}
	var n int64
	if res != nil {
		n = res.RowsAffected
	}
	r.report(ctx, span, rendered.Query, rendered.Params, index, time.Since(start), n, err)
	if err != nil {
		return nil, sqlerr.Backend("command", err)
	}
	return res, nil
}

func (r *runner) runCommand(ctx context.Context, query string, params []any) (*CommandResult, error) {
	stmt, err := r.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	var result sql.Result
	if stmt != nil {
		result, err = stmt.ExecContext(ctx, params...)
	} else {
		result, err = r.target.ExecContext(ctx, query, params...)
	}
	if err != nil {
		return nil, err
	}

	out := &CommandResult{}
	// Drivers that cannot report these return an error; zero is the answer then.
	out.RowsAffected, _ = result.RowsAffected()
	out.LastInsertID, _ = result.LastInsertId()
	return out, nil
}

// report logs, traces and hooks one finished statement.
func (r *runner) report(ctx context.Context, span tracer.Span, query string, params []any, index int, elapsed time.Duration, rows int64, err error) {
	masked := r.cfg.Sanitizer.FormatParams(r.cfg.Sanitizer.MaskParams(query, params))
	fields := []any{
		"sql", query,
		"params", masked,
		"duration_ms", elapsed.Milliseconds(),
		"tx_depth", r.txDepth,
	}
	if index != sqlerr.NoIndex {
		fields = append(fields, "index", index)
	}
	if err != nil {
		r.log.Error("statement failed", append(fields, "error", err)...)
	} else {
		r.log.Debug("statement executed", append(fields, "rows", rows)...)
	}

	op := tracer.DetectOperation(query)
	tracer.AddStatementAttributes(span, &tracer.StatementMetadata{
		Statement:    query,
		Database:     r.cfg.DriverName,
		Operation:    op,
		ConnectionID: r.connID,
		BatchIndex:   index,
		TxDepth:      r.txDepth,
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
	})

	if r.cfg.Hook != nil {
		r.cfg.Hook(ctx, QueryEvent{
			SQL:          query,
			Args:         params,
			Duration:     elapsed,
			RowsAffected: rows,
			Error:        err,
			Operation:    op,
			Index:        index,
			ConnectionID: r.connID,
			TxDepth:      r.txDepth,
		})
	}
}

// IsNoRows reports whether err means a single-row query found nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
