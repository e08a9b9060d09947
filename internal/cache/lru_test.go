package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[string, string](3)
	require.NotNil(t, c)

	c.Put("game/a@1", "one")
	val, ok := c.Get("game/a@1")
	assert.True(t, ok)
	assert.Equal(t, "one", val)

	val, ok = c.Get("nonexistent")
	assert.False(t, ok)
	assert.Empty(t, val)

	c.Put("game/a@2", "two")
	c.Put("game/a@3", "three")
	assert.Equal(t, 3, c.Len())
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](3)
	c.Put("key1", 1)
	c.Put("key2", 2)
	c.Put("key3", 3)

	// key1 becomes most recently used, so key2 goes first.
	_, _ = c.Get("key1")
	c.Put("key4", 4)

	_, ok := c.Get("key2")
	assert.False(t, ok, "key2 should have been evicted")
	for _, k := range []string{"key1", "key3", "key4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should still exist", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRU_Update(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	c.Put("c", 3)

	val, ok := c.Get("a")
	assert.True(t, ok, "updated key is most recently used")
	assert.Equal(t, 10, val)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_DeleteAndClear(t *testing.T) {
	c := NewLRU[int, string](4)
	c.Put(1, "a")
	c.Put(2, "b")

	assert.True(t, c.Delete(1))
	assert.False(t, c.Delete(1))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(2)
	assert.False(t, ok)
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[string, string](2)
	c.Put("a", "x")
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

func TestLRU_GetOrLoad(t *testing.T) {
	c := NewLRU[string, string](2)
	loads := 0
	load := func() (string, error) {
		loads++
		return "rendered", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("game/x@5", load)
		require.NoError(t, err)
		assert.Equal(t, "rendered", v)
	}
	assert.Equal(t, 1, loads)

	boom := errors.New("boom")
	_, err := c.GetOrLoad("game/y@1", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("game/y@1")
	assert.False(t, ok, "failed loads are not cached")
}

func TestLRU_Disabled(t *testing.T) {
	c := NewLRU[string, string](0)
	assert.Nil(t, c)

	c.Put("a", "b")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Delete("a"))
	c.Clear()
	assert.Equal(t, Stats{}, c.Stats())

	loads := 0
	for i := 0; i < 2; i++ {
		v, err := c.GetOrLoad("a", func() (string, error) {
			loads++
			return "v", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, 2, loads, "a nil cache always loads")
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[string, int](50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Put(key, i)
				_, _ = c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	stats := c.Stats()
	assert.Equal(t, int64(8*200), stats.Hits+stats.Misses)
}

func BenchmarkLRU_Put(b *testing.B) {
	c := NewLRU[int, int](1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(i%2000, i)
	}
}

func BenchmarkLRU_Get_Hit(b *testing.B) {
	c := NewLRU[int, int](1000)
	for i := 0; i < 1000; i++ {
		c.Put(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(i % 1000)
	}
}
