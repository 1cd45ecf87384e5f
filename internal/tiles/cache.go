package tiles

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/healthmap/internal/metrics"
)

// Cache is a concurrency-safe LRU of rendered tiles with a TTL.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	key       string
	layer     string
	data      []byte
	createdAt time.Time
	ttl       time.Duration
}

// NewCache creates a Cache holding at most maxEntries tiles for ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func cacheKey(layer string, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d", layer, z, x, y)
}

// Get returns a cached tile or nil.
func (c *Cache) Get(layer string, z, x, y int) []byte {
	key := cacheKey(layer, z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		metrics.TileCacheMisses.WithLabelValues(layer).Inc()
		return nil
	}
	e := el.Value.(*cacheEntry)
	if c.now().Sub(e.createdAt) > e.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		metrics.TileCacheMisses.WithLabelValues(layer).Inc()
		return nil
	}
	c.lru.MoveToFront(el)
	metrics.TileCacheHits.WithLabelValues(layer).Inc()
	return e.data
}

// Put stores a tile with the cache-wide TTL, evicting the least recently
// used entries when full.
func (c *Cache) Put(layer string, z, x, y int, data []byte) {
	c.PutTTL(layer, z, x, y, data, 0)
}

// PutTTL stores a tile that expires after ttl. A ttl of zero, or one longer
// than the cache-wide TTL, uses the cache-wide TTL.
func (c *Cache) PutTTL(layer string, z, x, y int, data []byte, ttl time.Duration) {
	if c.maxEntries <= 0 {
		return
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	key := cacheKey(layer, z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.data, e.createdAt, e.ttl = data, c.now(), ttl
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, layer: layer, data: data, createdAt: c.now(), ttl: ttl})
}

// Invalidate drops every tile of layer.
func (c *Cache) Invalidate(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*cacheEntry); e.layer == layer {
			c.lru.Remove(el)
			delete(c.entries, e.key)
		}
		el = next
	}
}

// Len returns the number of cached tiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Layers returns the distinct layers with cached tiles.
func (c *Cache) Layers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for el := c.lru.Front(); el != nil; el = el.Next() {
		l := el.Value.(*cacheEntry).layer
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// String summarises the cache for logs.
func (c *Cache) String() string {
	return fmt.Sprintf("tiles=%d layers=%s", c.Len(), strings.Join(c.Layers(), ","))
}
