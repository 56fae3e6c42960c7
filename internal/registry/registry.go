// Package registry implements a keyed registry whose entries are either
// resolved values or lazy loaders resolved on first use.
//
// A resolved entry is never replaced by a later registration. A lazy entry is
// replaced by a resolved one. Concurrent resolution of the same lazy key runs
// the loader once.
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a lazy entry.
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value    V
	resolved bool
	load     Loader[V]
}

// Registry maps keys to resolved values or lazy loaders. The zero value is not
// usable; call New.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
	group   singleflight.Group
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]*entry[V])}
}

// Register stores a resolved value. It reports false when key already holds a
// resolved value, which is left untouched.
func (r *Registry[K, V]) Register(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok && e.resolved {
		return false
	}
	r.entries[key] = &entry[V]{value: value, resolved: true}
	return true
}

// RegisterLazy stores a loader, replacing an earlier loader for key. It
// reports false when key already holds a resolved value.
func (r *Registry[K, V]) RegisterLazy(key K, load Loader[V]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok && e.resolved {
		return false
	}
	r.entries[key] = &entry[V]{load: load}
	return true
}

// TryGet returns a resolved value without running loaders.
func (r *Registry[K, V]) TryGet(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero V
	e, ok := r.entries[key]
	if !ok || !e.resolved {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key is registered, resolved or not.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// TryResolve returns the value for key, running its loader if needed and
// memoising the result. The boolean is false when key is unknown. A failed
// load leaves the lazy entry in place so a later call can retry.
func (r *Registry[K, V]) TryResolve(ctx context.Context, key K) (V, bool, error) {
	var zero V

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}
	if e.resolved {
		return e.value, true, nil
	}

	v, err, _ := r.group.Do(fmt.Sprint(key), func() (any, error) {
		if value, ok := r.TryGet(key); ok {
			return value, nil
		}
		value, err := e.load(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		// A concurrent Register may have won; keep the resolved entry.
		if cur, ok := r.entries[key]; ok && cur.resolved {
			return cur.value, nil
		}
		r.entries[key] = &entry[V]{value: value, resolved: true}
		return value, nil
	})
	if err != nil {
		return zero, true, err
	}
	if v == nil {
		return zero, true, nil
	}
	return v.(V), true, nil
}

// Keys returns the registered keys in no particular order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}
