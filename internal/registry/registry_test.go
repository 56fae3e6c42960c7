package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolvedNeverReplaced(t *testing.T) {
	r := New[string, int]()

	assert.True(t, r.Register("a", 1))
	assert.False(t, r.Register("a", 2))
	assert.False(t, r.RegisterLazy("a", func(context.Context) (int, error) { return 3, nil }))

	v, ok := r.TryGet("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRegistry_LazyReplacedByResolved(t *testing.T) {
	r := New[string, int]()
	loads := 0
	require.True(t, r.RegisterLazy("a", func(context.Context) (int, error) {
		loads++
		return 3, nil
	}))

	_, ok := r.TryGet("a")
	assert.False(t, ok, "TryGet must not run loaders")
	assert.True(t, r.Has("a"))

	assert.True(t, r.Register("a", 7))
	v, found, err := r.TryResolve(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, v)
	assert.Zero(t, loads)
}

func TestRegistry_LazyReplacedByLazy(t *testing.T) {
	r := New[string, int]()
	require.True(t, r.RegisterLazy("a", func(context.Context) (int, error) { return 1, nil }))
	require.True(t, r.RegisterLazy("a", func(context.Context) (int, error) { return 2, nil }))

	v, found, err := r.TryResolve(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
	assert.False(t, r.RegisterLazy("a", func(context.Context) (int, error) { return 3, nil }))
}

func TestRegistry_TryResolveMemoises(t *testing.T) {
	r := New[string, int]()
	var loads atomic.Int32
	r.RegisterLazy("a", func(context.Context) (int, error) {
		loads.Add(1)
		return 42, nil
	})

	for n := 0; n < 3; n++ {
		v, found, err := r.TryResolve(context.Background(), "a")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), loads.Load())

	v, ok := r.TryGet("a")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestRegistry_TryResolveUnknown(t *testing.T) {
	r := New[string, int]()
	_, found, err := r.TryResolve(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRegistry_FailedLoadCanRetry(t *testing.T) {
	r := New[string, int]()
	fail := true
	r.RegisterLazy("a", func(context.Context) (int, error) {
		if fail {
			return 0, errors.New("boom")
		}
		return 5, nil
	})

	_, found, err := r.TryResolve(context.Background(), "a")
	assert.True(t, found)
	assert.EqualError(t, err, "boom")

	fail = false
	v, _, err := r.TryResolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	r := New[string, int]()
	var loads atomic.Int32
	release := make(chan struct{})
	r.RegisterLazy("a", func(context.Context) (int, error) {
		loads.Add(1)
		<-release
		return 9, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := r.TryResolve(context.Background(), "a")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 9, v)
	}
	// Late callers may start after the first load finished, but they see the
	// memoised value instead of loading again.
	assert.LessOrEqual(t, loads.Load(), int32(1))
}
