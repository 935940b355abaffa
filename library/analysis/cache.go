package analysis

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// cachedResult holds the estimates computed for one file, pinned to the size
// and mtime observed at analysis time. A changed file misses naturally.
type cachedResult struct {
	size    int64
	modTime time.Time

	bpm    *float64
	key    *string
	energy *int
}

type cacheEntry struct {
	key     string
	value   *cachedResult
	element *list.Element
}

// resultCache is a bounded LRU of analysis results keyed by file path.
type resultCache struct {
	mu        sync.RWMutex
	cache     map[string]*cacheEntry
	lruList   *list.List // Doubly-linked list for LRU
	maxSize   int
	hits      int64
	misses    int64
	evictions int64
}

// newResultCache creates a result cache holding at most maxSize entries.
func newResultCache(maxSize int) *resultCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &resultCache{
		cache:   make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves the result for a path, or nil on a miss.
func (c *resultCache) Get(key string) *cachedResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil
	}

	if entry.element != nil {
		c.lruList.MoveToFront(entry.element)
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.value
}

// Set stores a result, evicting the least recently used entry when full.
func (c *resultCache) Set(key string, value *cachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.cache[key]; exists {
		existing.value = value
		if existing.element != nil {
			c.lruList.MoveToFront(existing.element)
		}
		return
	}

	if len(c.cache) >= c.maxSize {
		if back := c.lruList.Back(); back != nil {
			oldEntry := back.Value.(*cacheEntry)
			delete(c.cache, oldEntry.key)
			c.lruList.Remove(back)
			atomic.AddInt64(&c.evictions, 1)
		}
	}

	entry := &cacheEntry{key: key, value: value}
	entry.element = c.lruList.PushFront(entry)
	c.cache[key] = entry
}

// Size returns the current number of entries.
func (c *resultCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Snapshot copies the cache contents for persistence.
func (c *resultCache) Snapshot() map[string]*cachedResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*cachedResult, len(c.cache))
	for k, v := range c.cache {
		out[k] = v.value
	}
	return out
}

// CacheStats reports hit and eviction counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
	HitRate   float64
}

// Stats returns cache statistics.
func (c *resultCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      len(c.cache),
		MaxSize:   c.maxSize,
		HitRate:   hitRate,
	}
}
