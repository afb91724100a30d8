package embedding

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/coa-classifier/internal/model"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()

	vec := model.Vector{1, 2, 3}

	t.Run("get non-existent key", func(t *testing.T) {
		_, found := cache.Get("missing")
		assert.False(t, found)
	})

	t.Run("set and get", func(t *testing.T) {
		cache.Set("k", vec, time.Minute)
		got, found := cache.Get("k")
		require.True(t, found)
		assert.Equal(t, vec, got)
	})

	t.Run("returned vectors are copies", func(t *testing.T) {
		got, _ := cache.Get("k")
		got[0] = 99
		again, _ := cache.Get("k")
		assert.Equal(t, float32(1), again[0])
	})

	t.Run("invalidate", func(t *testing.T) {
		cache.Invalidate("k")
		_, found := cache.Get("k")
		assert.False(t, found)
		assert.Equal(t, 0, cache.Len())
	})
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache(time.Hour)
	defer cache.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("k", model.Vector{1}, time.Minute)
	_, found := cache.Get("k")
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found = cache.Get("k")
	assert.False(t, found)
	assert.Equal(t, 1, cache.Len())

	cache.sweep()
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_Concurrency(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				cache.Set(key, model.Vector{float32(j)}, time.Minute)
				_, _ = cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 500, cache.Len())
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("hash-384", "description: pens")
	assert.Len(t, a, 64)
	assert.Equal(t, a, CacheKey("hash-384", "description: pens"))
	assert.NotEqual(t, a, CacheKey("bge-small", "description: pens"))
	assert.NotEqual(t, a, CacheKey("hash-384", "description: paper"))
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}
