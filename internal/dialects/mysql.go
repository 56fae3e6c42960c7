package dialects

import (
	"math/big"
	"strconv"
	"time"
)

// mysqlTimeLayout is the DATETIME(6) text form.
const mysqlTimeLayout = "2006-01-02 15:04:05.999999"

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return quoteParts(d, s, "`")
}

// NeedsQuoting reports whether s is mixed case, non-alphanumeric or reserved.
func (d *MySQLDialect) NeedsQuoting(s string) bool {
	return needsQuoting(s, mysqlReserved)
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// MapValue formats times as DATETIME text and encodes lists and objects as JSON.
func (d *MySQLDialect) MapValue(v any) (any, error) {
	v, done := mapCommon(v)
	if done {
		return v, nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(mysqlTimeLayout), nil
	case bool:
		return x, nil
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	}
	return toJSON(v)
}

// BoolLiteral returns TRUE or FALSE.
func (d *MySQLDialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// TimeoutSQL sets max_execution_time for the session.
func (d *MySQLDialect) TimeoutSQL(timeout time.Duration) (string, bool) {
	ms, ok := timeoutMillis(timeout)
	if !ok {
		return "", false
	}
	return "SET SESSION max_execution_time = " + strconv.FormatInt(ms, 10), true
}
