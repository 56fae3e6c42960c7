package compose

import (
	"reflect"
	"sort"

	"github.com/coregx/sqlweave/internal/token"
)

func compare(col, op string, value any) SQL {
	return Compose([]string{"", " " + op + " ", ""}, Ident(col), value)
}

// Eq generates "col = value", or "col IS NULL" when value is nil.
func Eq(col string, value any) SQL {
	if value == nil {
		return Compose([]string{"", " IS NULL"}, Ident(col))
	}
	return compare(col, "=", value)
}

// NotEq generates "col <> value", or "col IS NOT NULL" when value is nil.
func NotEq(col string, value any) SQL {
	if value == nil {
		return Compose([]string{"", " IS NOT NULL"}, Ident(col))
	}
	return compare(col, "<>", value)
}

// Gt generates "col > value".
func Gt(col string, value any) SQL {
	return compare(col, ">", value)
}

// Lt generates "col < value".
func Lt(col string, value any) SQL {
	return compare(col, "<", value)
}

// Between generates "col BETWEEN from AND to".
func Between(col string, from, to any) SQL {
	return Compose([]string{"", " BETWEEN ", " AND ", ""}, Ident(col), from, to)
}

// In generates an IN predicate. With no values it formats as the dialect's
// false literal.
func In(col string, values ...any) SQL {
	return Compose([]string{"", ""}, token.In{Column: col, Values: values})
}

// Hash combines column/value pairs with AND, in column order. Slice and array
// values other than []byte become IN predicates, so an empty one formats as
// the false literal. nil values become IS NULL.
//
// Example:
//
//	compose.Hash(map[string]any{"status": 1, "deleted_at": nil})
//
// Generates: (deleted_at IS NULL) AND (status = 1)
func Hash(pairs map[string]any) SQL {
	cols := make([]string, 0, len(pairs))
	for c := range pairs {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]SQL, 0, len(cols))
	for _, c := range cols {
		if values, ok := listValues(pairs[c]); ok {
			parts = append(parts, In(c, values...))
			continue
		}
		parts = append(parts, Eq(c, pairs[c]))
	}
	return And(parts...)
}

// listValues expands any slice or array except []byte.
func listValues(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

// And joins predicates with AND, wrapping each in parentheses.
// Empty members are dropped; a single member is returned unchanged.
func And(preds ...SQL) SQL {
	return junction(" AND ", preds)
}

// Or joins predicates with OR, wrapping each in parentheses.
func Or(preds ...SQL) SQL {
	return junction(" OR ", preds)
}

func junction(sep string, preds []SQL) SQL {
	kept := make([]SQL, 0, len(preds))
	for _, p := range preds {
		if !IsEmpty(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) < 2 {
		return Merge(sep, kept...)
	}

	wrapped := make([]SQL, len(kept))
	for i, p := range kept {
		wrapped[i] = Compose([]string{"(", ")"}, p)
	}
	return Merge(sep, wrapped...)
}

// Not prefixes NOT to pred. Not(Empty) is Empty.
func Not(pred SQL) SQL {
	if IsEmpty(pred) {
		return Empty
	}
	return Compose([]string{"NOT (", ")"}, pred)
}
