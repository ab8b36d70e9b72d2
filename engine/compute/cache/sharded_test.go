package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	c := NewSharded[string, *int](StringHasher)

	first, err := c.GetOrCreate("a", func() (*int, error) {
		v := 1
		return &v, nil
	})
	require.NoError(t, err)

	second, err := c.GetOrCreate("a", func() (*int, error) {
		t.Fatal("creator ran twice for the same key")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGetOrCreateErrorCachesNothing(t *testing.T) {
	c := NewSharded[string, int](StringHasher)

	_, err := c.GetOrCreate("a", func() (int, error) {
		return 0, fmt.Errorf("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCreate("a", func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestConcurrentCreateRunsOnce(t *testing.T) {
	c := NewSharded[string, *int](StringHasher)

	var created sync.Map
	var wg sync.WaitGroup
	results := make([]*int, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCreate("shared", func() (*int, error) {
				n := i
				created.Store(i, true)
				return &n, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	count := 0
	created.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 1, count, "creator must run exactly once")
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestStats(t *testing.T) {
	c := NewSharded[uint64, string](Uint64Hasher)

	_, ok := c.Get(7)
	assert.False(t, ok)

	_, err := c.GetOrCreate(7, func() (string, error) { return "x", nil })
	require.NoError(t, err)
	_, err = c.GetOrCreate(7, func() (string, error) { return "y", nil })
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Len)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Creations)
}

func TestRangeAndClear(t *testing.T) {
	c := NewSharded[string, int](StringHasher)
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := c.GetOrCreate(key, func() (int, error) { return i, nil })
		require.NoError(t, err)
	}

	seen := 0
	c.Range(func(_ string, _ int) bool {
		seen++
		return true
	})
	assert.Equal(t, 10, seen)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
