package dialects

import (
	"math/big"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return quoteParts(d, s, `"`)
}

// NeedsQuoting reports whether s is mixed case, non-alphanumeric or reserved.
func (d *PostgresDialect) NeedsQuoting(s string) bool {
	return needsQuoting(s, postgresReserved)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

// MapValue keeps time.Time native in UTC and sends slices as PostgreSQL arrays.
func (d *PostgresDialect) MapValue(v any) (any, error) {
	v, done := mapCommon(v)
	if done {
		return v, nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case bool:
		return x, nil
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	}
	if isList(v) {
		return pq.Array(v), nil
	}
	return toJSON(v)
}

// BoolLiteral returns TRUE or FALSE.
func (d *PostgresDialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// TimeoutSQL sets statement_timeout for the session.
func (d *PostgresDialect) TimeoutSQL(timeout time.Duration) (string, bool) {
	ms, ok := timeoutMillis(timeout)
	if !ok {
		return "", false
	}
	return "SET statement_timeout = " + strconv.FormatInt(ms, 10), true
}
