package format

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coregx/sqlweave/internal/dialects"
)

// Builder accumulates rendered SQL and its parameters. Handlers write through
// it so placeholders are numbered consistently.
type Builder struct {
	sb      strings.Builder
	params  []any
	dialect dialects.Dialect
	inline  bool
}

// WriteString appends s verbatim.
func (b *Builder) WriteString(s string) {
	b.sb.WriteString(s)
}

// WriteIdent appends a quoted identifier.
func (b *Builder) WriteIdent(name string) {
	b.sb.WriteString(b.dialect.QuoteIdentifier(name))
}

// Arg maps v through the dialect and appends a placeholder for it. When the
// builder inlines values (Describe) the literal text is appended instead.
func (b *Builder) Arg(v any) error {
	mapped, err := b.dialect.MapValue(v)
	if err != nil {
		return err
	}
	if b.inline {
		b.sb.WriteString(b.literal(mapped))
		return nil
	}
	b.params = append(b.params, mapped)
	b.sb.WriteString(b.dialect.Placeholder(len(b.params)))
	return nil
}

// Params returns the parameters bound so far.
func (b *Builder) Params() []any {
	return b.params
}

// Dialect returns the target dialect.
func (b *Builder) Dialect() dialects.Dialect {
	return b.dialect
}

// String returns the SQL written so far.
func (b *Builder) String() string {
	return b.sb.String()
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// literal renders an already mapped value as SQL text. Debug output only.
func (b *Builder) literal(v any) string {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return "NULL"
		}
		v = dv
	}

	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'"
	case bool:
		return b.dialect.BoolLiteral(x)
	case time.Time:
		return quoteString(x.Format(time.RFC3339Nano))
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
