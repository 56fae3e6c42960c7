package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed statement.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the rendered statement with dialect placeholders
	SQL string
	// Args are the bound parameters, unmasked
	Args []any
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of changed rows for commands, or rows read for queries
	RowsAffected int64
	// Error is any error that occurred during execution (nil on success)
	Error error
	// Operation is the leading SQL verb (SELECT, INSERT, ..., UNKNOWN)
	Operation string
	// Index is the position inside a batch, or -1
	Index int
	// ConnectionID identifies the connection that ran the statement
	ConnectionID string
	// TxDepth is the transaction nesting depth, 0 outside transactions
	TxDepth int
}

// QueryHook is a callback function invoked after each statement.
//
// Example:
//
//	pool, _ := sqlweave.Open(ctx, "sqlite", "app.db",
//	    sqlweave.WithQueryHook(func(ctx context.Context, e sqlweave.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)
