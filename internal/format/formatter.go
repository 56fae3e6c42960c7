// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package format

import (
	"errors"
	"fmt"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
)

// Result is a rendered statement. The number of placeholders in Query always
// equals len(Params).
type Result struct {
	Query  string
	Params []any
}

// Formatter renders fragments for one dialect.
type Formatter struct {
	dialect    dialects.Dialect
	processors *Processors
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithProcessors uses p for overrides. Dialect overrides are installed into p
// lazily, so handlers registered by the caller take precedence.
func WithProcessors(p *Processors) Option {
	return func(f *Formatter) {
		f.processors = p
	}
}

// New creates a formatter for d.
//
// Example:
//
//	f := format.New(&dialects.PostgresDialect{})
//	res, err := f.Format(compose.Q("SELECT * FROM ? WHERE id = ?", compose.Ident("users"), 7))
//	// res.Query: SELECT * FROM users WHERE id = $1
func New(d dialects.Dialect, opts ...Option) *Formatter {
	f := &Formatter{dialect: d}
	for _, opt := range opts {
		opt(f)
	}
	if f.processors == nil {
		f.processors = NewProcessors()
	}
	if d.Name() == "postgres" && !f.processors.Has(token.KindIn) {
		f.processors.RegisterLazy(token.KindIn, func() (Handler, error) {
			return postgresIn, nil
		})
	}
	return f
}

// Dialect returns the target dialect.
func (f *Formatter) Dialect() dialects.Dialect {
	return f.dialect
}

// Format renders s into executable SQL with dialect placeholders.
func (f *Formatter) Format(s compose.SQL) (Result, error) {
	b := &Builder{dialect: f.dialect}
	if err := f.render(b, s); err != nil {
		return Result{}, err
	}
	return Result{Query: b.String(), Params: b.Params()}, nil
}

// Describe renders s with values inlined as SQL literals. The output is for
// logs and debugging and must never be executed.
func (f *Formatter) Describe(s compose.SQL) string {
	b := &Builder{dialect: f.dialect, inline: true}
	if err := f.render(b, s); err != nil {
		return "/* " + err.Error() + " */ " + s.String()
	}
	return b.String()
}

func (f *Formatter) render(b *Builder, s compose.SQL) error {
	chunks := s.Chunks()
	b.WriteString(chunks[0])
	for i, t := range s.Tokens() {
		if err := f.process(b, t); err != nil {
			var se *sqlerr.Error
			if errors.As(err, &se) {
				return err
			}
			return sqlerr.Formatting("format "+t.Kind().String(), err)
		}
		b.WriteString(chunks[i+1])
	}
	return nil
}

func (f *Formatter) process(b *Builder, t token.Token) error {
	h, ok, err := f.processors.Get(t.Kind())
	if err != nil {
		return err
	}
	if ok {
		return h(b, t)
	}

	switch x := t.(type) {
	case token.Identifier:
		b.WriteIdent(x.Name)
		return nil
	case token.Literal:
		return b.Arg(x.Value)
	case token.Raw:
		b.WriteString(x.Text)
		return nil
	case token.Array:
		if len(x.Values) == 0 {
			return sqlerr.ErrEmptyArray
		}
		return writeList(b, x.Values)
	case token.In:
		return writeIn(b, x)
	default:
		return fmt.Errorf("%w: %T", sqlerr.ErrUnknownToken, t)
	}
}

func writeList(b *Builder, values []any) error {
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := b.Arg(v); err != nil {
			return err
		}
	}
	return nil
}

func writeIn(b *Builder, in token.In) error {
	if len(in.Values) == 0 {
		b.WriteString(b.Dialect().BoolLiteral(false))
		return nil
	}
	b.WriteIdent(in.Column)
	b.WriteString(" IN (")
	if err := writeList(b, in.Values); err != nil {
		return err
	}
	b.WriteString(")")
	return nil
}
