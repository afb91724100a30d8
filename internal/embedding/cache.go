package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// DefaultCacheTTL bounds how long a cached embedding is served.
const DefaultCacheTTL = time.Hour

// Cache stores embeddings by content key.
type Cache interface {
	Get(key string) (model.Vector, bool)
	Set(key string, vec model.Vector, ttl time.Duration)
	Invalidate(key string)
	Len() int
}

// CacheKey returns the content address of text embedded by modelName.
func CacheKey(modelName, text string) string {
	sum := sha256.Sum256([]byte(modelName + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	expiry time.Time
	vec    model.Vector
}

// MemoryCache is a thread-safe in-process Cache with per-entry expiry.
type MemoryCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	now     func() time.Time
	mu      sync.RWMutex
	once    sync.Once
}

// NewMemoryCache creates a cache that sweeps expired entries every interval.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	c := &MemoryCache{
		entries: make(map[string]cacheEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go c.cleanup(interval)

	return c
}

// Get returns a copy of the cached vector if present and not expired.
func (c *MemoryCache) Get(key string) (model.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return nil, false
	}

	out := make(model.Vector, len(entry.vec))
	copy(out, entry.vec)
	return out, true
}

// Set stores a copy of vec for ttl.
func (c *MemoryCache) Set(key string, vec model.Vector, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	stored := make(model.Vector, len(vec))
	copy(stored, vec)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		vec:    stored,
		expiry: c.now().Add(ttl),
	}
}

// Invalidate removes key from the cache.
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
