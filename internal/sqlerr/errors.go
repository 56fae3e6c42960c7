// Package sqlerr defines the error taxonomy shared by every sqlweave layer.
// Errors carry the layer that produced them (composition, formatting, lifecycle
// or backend) and, for batch operations, the index of the failing statement.
package sqlerr

import (
	"errors"
	"strconv"
)

// Layer identifies which part of the engine produced an error.
type Layer string

// Layers, leaf-first.
const (
	LayerComposition Layer = "composition"
	LayerFormatting  Layer = "formatting"
	LayerLifecycle   Layer = "lifecycle"
	LayerBackend     Layer = "backend"
)

// Sentinel causes. Compare with errors.Is; the wrapping *Error matches them.
var (
	// ErrArgumentMismatch is returned when literal chunks and values do not interleave.
	ErrArgumentMismatch = errors.New("chunk and value counts do not match")
	// ErrUnknownToken is returned when no handler exists for a token kind.
	ErrUnknownToken = errors.New("unknown token kind")
	// ErrEmptyArray is returned when an empty array is expanded outside an IN predicate.
	ErrEmptyArray = errors.New("empty array cannot be expanded into a parameter list")
	// ErrUnsupportedDialect is returned when a dialect key was never registered.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrUnknownDriver is returned when a driver key was never registered.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrTxDone is returned when operating on an already committed or rolled back transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
	// ErrTxNotStarted is returned when committing or rolling back a transaction that never began.
	ErrTxNotStarted = errors.New("transaction has not been started")
	// ErrNestedTransaction is returned when a nested begin is attempted with nesting disabled.
	ErrNestedTransaction = errors.New("cannot start a transaction within a transaction")
	// ErrRollbackOnly is returned when committing a transaction whose nested scope failed.
	ErrRollbackOnly = errors.New("transaction was marked rollback-only by a nested scope and has been rolled back")
	// ErrConnClosed is returned when using a connection after Close.
	ErrConnClosed = errors.New("connection is closed")
	// ErrPoolClosed is returned when acquiring from a closed pool.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolExhausted is returned by non-waiting pools that are at capacity.
	ErrPoolExhausted = errors.New("pool has no free connection")

	// ErrNoRowsAffected is returned by commands asserting at least one changed row.
	ErrNoRowsAffected = errors.New("statement changed no rows")
)

// NoIndex marks errors that do not belong to a batch statement.
const NoIndex = -1

// Error is the error type returned by sqlweave. Use errors.Is against the
// sentinel variables, or errors.As to inspect Layer and Index.
type Error struct {
	Layer Layer
	Op    string
	Index int
	Err   error
}

// Error implements error.
func (e *Error) Error() string {
	msg := "sqlweave: " + string(e.Layer)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Index != NoIndex {
		msg += " [statement " + strconv.Itoa(e.Index) + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(layer Layer, op string, err error) *Error {
	return &Error{Layer: layer, Op: op, Index: NoIndex, Err: err}
}

// Composition wraps err as a composition-layer error.
func Composition(op string, err error) *Error { return newError(LayerComposition, op, err) }

// Formatting wraps err as a formatting-layer error.
func Formatting(op string, err error) *Error { return newError(LayerFormatting, op, err) }

// Lifecycle wraps err as a lifecycle-layer error.
func Lifecycle(op string, err error) *Error { return newError(LayerLifecycle, op, err) }

// Backend wraps a driver error. Errors that already carry a layer are returned
// unchanged so the original classification wins.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(LayerBackend, op, err)
}

// AtIndex attaches a batch statement index to err.
func AtIndex(err error, index int) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Index = index
		return &cp
	}
	return &Error{Layer: LayerBackend, Index: index, Err: err}
}

// LayerOf reports the layer of err, or "" when err is not a sqlweave error.
func LayerOf(err error) Layer {
	var e *Error
	if errors.As(err, &e) {
		return e.Layer
	}
	return ""
}

// IndexOf reports the batch index carried by err, or NoIndex.
func IndexOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Index
	}
	return NoIndex
}
