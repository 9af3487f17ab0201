package publish

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// TileCache is a concurrent-safe LRU of raster tiles with TTL expiry.
type TileCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       int64
	misses     int64
}

type tileEntry struct {
	key       string
	data      []byte
	createdAt time.Time
}

// CacheStats reports cache occupancy and hit counts.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewTileCache creates a cache bounded to maxEntries tiles.
func NewTileCache(maxEntries int, ttl time.Duration) *TileCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &TileCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func tileKey(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// Get returns a cached tile, or nil on miss or expiry.
func (c *TileCache) Get(z, x, y int) []byte {
	key := tileKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	e := el.Value.(*tileEntry)
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil
	}

	c.lru.MoveToFront(el)
	c.hits++
	return e.data
}

// Put stores a tile, evicting the least recently used one when full.
func (c *TileCache) Put(z, x, y int, data []byte) {
	key := tileKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*tileEntry)
		e.data = data
		e.createdAt = c.now()
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*tileEntry).key)
	}
	c.entries[key] = c.lru.PushFront(&tileEntry{key: key, data: data, createdAt: c.now()})
}

// Stats returns a snapshot of cache counters.
func (c *TileCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.lru.Len(), Hits: c.hits, Misses: c.misses}
}
