package format

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
)

// AnyThreshold is the IN-list size from which PostgreSQL statements bind the
// whole list as one array parameter.
const AnyThreshold = 100

// postgresIn renders large IN lists as "col = ANY($n)" to keep the parameter
// count and statement text bounded.
func postgresIn(b *Builder, t token.Token) error {
	in, ok := t.(token.In)
	if !ok {
		return fmt.Errorf("%w: %T", sqlerr.ErrUnknownToken, t)
	}
	if len(in.Values) < AnyThreshold {
		return writeIn(b, in)
	}

	elems := make([]any, len(in.Values))
	for i, v := range in.Values {
		mapped, err := b.Dialect().MapValue(v)
		if err != nil {
			return err
		}
		elems[i] = mapped
	}

	b.WriteIdent(in.Column)
	b.WriteString(" = ANY(")
	if err := b.Arg(pq.Array(elems)); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}
