// Package format renders composed SQL for a dialect. The built-in token kinds
// are handled directly; a Processors registry carries dialect overrides.
package format

import (
	"context"
	"fmt"

	"github.com/coregx/sqlweave/internal/registry"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
)

// Handler writes a token into the builder.
type Handler func(b *Builder, t token.Token) error

// Processors holds per-kind handler overrides. A handler registered with
// Register always wins over one registered with RegisterLazy.
type Processors struct {
	entries *registry.Registry[token.Kind, Handler]
}

// NewProcessors returns an empty override registry.
func NewProcessors() *Processors {
	return &Processors{entries: registry.New[token.Kind, Handler]()}
}

// Register installs h for kind unless a resolved handler is already present.
func (p *Processors) Register(kind token.Kind, h Handler) bool {
	return p.entries.Register(kind, h)
}

// RegisterLazy installs a loader for kind, replacing an earlier loader. It
// reports false when a resolved handler is already present.
func (p *Processors) RegisterLazy(kind token.Kind, load func() (Handler, error)) bool {
	return p.entries.RegisterLazy(kind, func(context.Context) (Handler, error) {
		return load()
	})
}

// Has reports whether kind has an override, resolved or not.
func (p *Processors) Has(kind token.Kind) bool {
	return p.entries.Has(kind)
}

// Get resolves the override for kind. The boolean is false when no override
// exists and the built-in handler applies.
func (p *Processors) Get(kind token.Kind) (Handler, bool, error) {
	h, ok, err := p.entries.TryResolve(context.Background(), kind)
	if err != nil {
		return nil, true, sqlerr.Formatting("processor", fmt.Errorf("load %s handler: %w", kind, err))
	}
	if ok && h == nil {
		return nil, false, nil
	}
	return h, ok, nil
}
