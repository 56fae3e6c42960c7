package dialects

import (
	"math/big"
	"strconv"
	"time"
)

// sqliteTimeLayout is ISO-8601 in UTC with millisecond precision.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteParts(d, s, `"`)
}

// NeedsQuoting reports whether s is mixed case, non-alphanumeric or reserved.
func (d *SQLiteDialect) NeedsQuoting(s string) bool {
	return needsQuoting(s, sqliteReserved)
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// MapValue stores times as ISO-8601 text, booleans as 1/0 and big integers as
// int64 when they fit.
func (d *SQLiteDialect) MapValue(v any) (any, error) {
	v, done := mapCommon(v)
	if done {
		return v, nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(sqliteTimeLayout), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		if x.IsInt64() {
			return x.Int64(), nil
		}
		return x.String(), nil
	}
	return toJSON(v)
}

// BoolLiteral returns 1 or 0.
func (d *SQLiteDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// TimeoutSQL sets busy_timeout, the closest SQLite has to a statement timeout.
func (d *SQLiteDialect) TimeoutSQL(timeout time.Duration) (string, bool) {
	ms, ok := timeoutMillis(timeout)
	if !ok {
		return "", false
	}
	return "PRAGMA busy_timeout = " + strconv.FormatInt(ms, 10), true
}
