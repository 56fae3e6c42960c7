// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package compose builds SQL fragments from literal text interleaved with
// values. A fragment never contains caller values as text: every value becomes
// a token that the formatter later turns into a placeholder, a quoted
// identifier, or (for Raw) verbatim text.
package compose

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
)

// SQL is an immutable fragment: literal chunks with tokens between them.
// A fragment with n tokens always has n+1 chunks.
//
// Example:
//
//	q := compose.Q("SELECT * FROM ? WHERE id = ?", compose.Ident("users"), 42)
type SQL struct {
	chunks []string
	tokens []token.Token
}

// Empty is the canonical empty fragment.
var Empty = SQL{chunks: []string{""}}

// Compose interleaves chunks and values, the way a tagged template does.
// It panics with a composition *sqlerr.Error if len(chunks) != len(values)+1.
func Compose(chunks []string, values ...any) SQL {
	if len(chunks) != len(values)+1 {
		panic(sqlerr.Composition("compose", fmt.Errorf("%w: %d chunks for %d values",
			sqlerr.ErrArgumentMismatch, len(chunks), len(values))))
	}

	b := newBuilder()
	b.text(chunks[0])
	for i, v := range values {
		b.value(v)
		b.text(chunks[i+1])
	}
	return b.build()
}

// Plain returns a fragment holding text and no tokens.
func Plain(text string) SQL {
	return SQL{chunks: []string{text}}
}

// Raw marks text that is inlined verbatim. Never pass user input.
func Raw(text string) token.Token {
	return token.Raw{Text: text}
}

// Ident marks a table, column or schema name.
func Ident(name string) token.Token {
	return token.Identifier{Name: name}
}

// Value forces v to be bound as a single literal parameter, even when it is a slice.
func Value(v any) token.Token {
	return token.Literal{Value: v}
}

// IsEmpty reports whether s has no tokens and no text.
func IsEmpty(s SQL) bool {
	if len(s.tokens) > 0 {
		return false
	}
	for _, c := range s.chunks {
		if c != "" {
			return false
		}
	}
	return true
}

// Merge joins the non-empty fragments with sep. It returns Empty when every
// fragment is empty and returns a lone non-empty fragment unchanged.
func Merge(sep string, frags ...SQL) SQL {
	kept := make([]SQL, 0, len(frags))
	for _, f := range frags {
		if !IsEmpty(f) {
			kept = append(kept, f)
		}
	}

	switch len(kept) {
	case 0:
		return Empty
	case 1:
		return kept[0]
	}

	b := newBuilder()
	for i, f := range kept {
		if i > 0 {
			b.text(sep)
		}
		b.splice(f)
	}
	return b.build()
}

// Concat is Merge with no separator.
func Concat(frags ...SQL) SQL {
	return Merge("", frags...)
}

// Chunks returns a copy of the literal chunks.
func (s SQL) Chunks() []string {
	if len(s.chunks) == 0 {
		return []string{""}
	}
	return append([]string(nil), s.chunks...)
}

// Tokens returns a copy of the tokens.
func (s SQL) Tokens() []token.Token {
	return append([]token.Token(nil), s.tokens...)
}

// String renders the fragment skeleton with token kinds in braces.
// It is meant for debugging; use a formatter to produce executable SQL.
func (s SQL) String() string {
	chunks := s.Chunks()
	var sb strings.Builder
	sb.WriteString(chunks[0])
	for i, t := range s.tokens {
		sb.WriteString("{" + t.Kind().String() + "}")
		sb.WriteString(chunks[i+1])
	}
	return sb.String()
}

type builder struct {
	chunks []string
	tokens []token.Token
}

func newBuilder() *builder {
	return &builder{chunks: []string{""}}
}

func (b *builder) text(s string) {
	b.chunks[len(b.chunks)-1] += s
}

func (b *builder) token(t token.Token) {
	b.tokens = append(b.tokens, t)
	b.chunks = append(b.chunks, "")
}

func (b *builder) splice(s SQL) {
	chunks := s.Chunks()
	b.text(chunks[0])
	for i, t := range s.tokens {
		b.token(t)
		b.text(chunks[i+1])
	}
}

func (b *builder) value(v any) {
	switch x := v.(type) {
	case SQL:
		b.splice(x)
	case *SQL:
		if x != nil {
			b.splice(*x)
		} else {
			b.token(token.Literal{Value: nil})
		}
	case token.Raw:
		b.text(x.Text)
	case token.Token:
		b.token(x)
	case nil, []byte:
		b.token(token.Literal{Value: x})
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			values := make([]any, rv.Len())
			for i := range values {
				values[i] = rv.Index(i).Interface()
			}
			b.token(token.Array{Values: values})
			return
		}
		b.token(token.Literal{Value: v})
	}
}

func (b *builder) build() SQL {
	return SQL{chunks: b.chunks, tokens: b.tokens}
}
