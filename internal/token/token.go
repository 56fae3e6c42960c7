// Package token defines the typed placeholders carried by composed SQL.
//
// The set of token kinds is closed: Identifier, Literal, Raw, Array and In.
// Tokens are created while composing a fragment and consumed once when the
// fragment is formatted. They are plain values and are never mutated.
package token

// Kind enumerates token variants.
type Kind uint8

// Token kinds.
const (
	KindInvalid Kind = iota
	KindIdentifier
	KindLiteral
	KindRaw
	KindArray
	KindIn
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindLiteral:
		return "literal"
	case KindRaw:
		return "raw"
	case KindArray:
		return "array"
	case KindIn:
		return "in"
	default:
		return "invalid"
	}
}

// Token is implemented by every variant in this package.
type Token interface {
	Kind() Kind
}

// Identifier is a table, column or schema name. Dotted names are quoted per part.
type Identifier struct {
	Name string
}

// Kind implements Token.
func (Identifier) Kind() Kind { return KindIdentifier }

// Literal is a scalar value bound as a parameter: nil, numbers, strings, bools,
// *big.Int, time.Time, []byte, or any object the dialect encodes as JSON.
type Literal struct {
	Value any
}

// Kind implements Token.
func (Literal) Kind() Kind { return KindLiteral }

// Raw is inlined verbatim and never parametrized.
type Raw struct {
	Text string
}

// Kind implements Token.
func (Raw) Kind() Kind { return KindRaw }

// Array expands to one parameter per element.
type Array struct {
	Values []any
}

// Kind implements Token.
func (Array) Kind() Kind { return KindArray }

// In renders "<column> IN (...)", or a false literal when Values is empty.
type In struct {
	Column string
	Values []any
}

// Kind implements Token.
func (In) Kind() Kind { return KindIn }
