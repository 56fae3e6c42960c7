// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, placeholders,
// value mapping, and statement timeout directives.
package dialects

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name (postgres, mysql, sqlite).
	Name() string
	// QuoteIdentifier renders a possibly dotted identifier, quoting each
	// part only when NeedsQuoting reports true for it.
	QuoteIdentifier(string) string
	// NeedsQuoting reports whether a single identifier part must be quoted.
	NeedsQuoting(string) bool
	// Placeholder returns the parameter marker for the 1-based position n.
	Placeholder(n int) string
	// MapValue converts a Go value into one the driver accepts.
	MapValue(any) (any, error)
	// BoolLiteral renders a boolean constant inline.
	BoolLiteral(bool) string
	// TimeoutSQL returns the session directive bounding statement run time.
	// The boolean is false when d is not positive.
	TimeoutSQL(d time.Duration) (string, bool)
}

var bareIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func needsQuoting(name string, reserved map[string]struct{}) bool {
	if !bareIdentifier.MatchString(name) {
		return true
	}
	_, ok := reserved[name]
	return ok
}

// quoteParts quotes each dot separated part of name with q, doubling any
// embedded quote characters.
func quoteParts(d Dialect, name string, q string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" || !d.NeedsQuoting(p) {
			continue
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// scalar handles values every dialect passes through unchanged. It reports
// false when v needs dialect-specific treatment.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x, true
	case json.RawMessage:
		return string(x), true
	case driver.Valuer:
		return x, true
	}
	return nil, false
}

// deref follows non-nil pointers. A nil pointer maps to nil.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// mapCommon resolves the representations shared by all dialects. The
// returned value is either final (done) or a dereferenced value the caller
// maps further. Named basic types are reduced to their base type. Time, bool,
// *big.Int, lists and objects are left to the caller.
func mapCommon(v any) (out any, done bool) {
	if b, ok := v.(*big.Int); ok {
		return b, false
	}
	if x, ok := scalar(v); ok {
		return x, true
	}
	v = deref(v)
	if x, ok := scalar(v); ok {
		return x, true
	}
	if b, ok := v.(big.Int); ok {
		return &b, false
	}
	if x, ok := baseValue(v); ok {
		_, isBool := x.(bool)
		return x, !isBool
	}
	return v, false
}

// baseValue converts a value of a named basic type, such as an enum string
// or time.Duration, to its underlying type.
func baseValue(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), true
		}
	}
	return nil, false
}

func isList(v any) bool {
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func toJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T as JSON: %w", v, err)
	}
	return string(b), nil
}

func timeoutMillis(d time.Duration) (int64, bool) {
	if d <= 0 {
		return 0, false
	}
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return ms, true
}
