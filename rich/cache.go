package rich

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDiagramCacheSize bounds the number of rasterized diagrams kept.
const DefaultDiagramCacheSize = 128

// CacheEntry is a memoized rasterization and the pan/zoom state of the
// diagram it belongs to.
type CacheEntry struct {
	Raster    Raster
	Transform Transform
}

// DiagramCache memoizes rasterizer output keyed by the trimmed diagram
// source. Two sources differing by a single character are distinct keys.
// The least recently used entry is evicted once Capacity is exceeded.
type DiagramCache struct {
	// mu makes read-modify-write of an entry atomic.
	mu       sync.Mutex
	capacity int
	entries  *lru.Cache[string, *CacheEntry]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewDiagramCache creates a cache holding at most capacity entries.
// A capacity below one selects DefaultDiagramCacheSize.
func NewDiagramCache(capacity int) *DiagramCache {
	if capacity < 1 {
		capacity = DefaultDiagramCacheSize
	}
	c := &DiagramCache{capacity: capacity}
	// NewWithEvict fails only for a non-positive size.
	c.entries, _ = lru.NewWithEvict(capacity, func(string, *CacheEntry) {
		c.evictions.Add(1)
	})
	return c
}

// CacheKey returns the normalized key for a diagram body.
func CacheKey(source string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(source)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry for source. Repeated calls without an
// intervening Put return the same entry.
func (c *DiagramCache) Get(source string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(CacheKey(source))
	if !ok {
		c.misses.Add(1)
		return CacheEntry{}, false
	}
	c.hits.Add(1)
	return *e, true
}

// Peek returns the cached entry without touching recency or statistics.
func (c *DiagramCache) Peek(source string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(CacheKey(source))
	if !ok {
		return CacheEntry{}, false
	}
	return *e, true
}

// Put stores the rasterization of source. The transform of an existing
// entry is kept.
func (c *DiagramCache) Put(source string, r Raster) {
	key := CacheKey(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Get(key); ok {
		e.Raster = r
		return
	}
	c.entries.Add(key, &CacheEntry{Raster: r})
}

// SetTransform records the pan/zoom state for a cached diagram. It returns
// false if source is not cached.
func (c *DiagramCache) SetTransform(source string, t Transform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(CacheKey(source))
	if !ok {
		return false
	}
	e.Transform = t
	return true
}

// Len returns the number of cached entries.
func (c *DiagramCache) Len() int { return c.entries.Len() }

// Capacity returns the maximum number of entries.
func (c *DiagramCache) Capacity() int { return c.capacity }

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns the hit, miss and eviction counters.
func (c *DiagramCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
