// Package memory implements the in-process embedding cache: a bounded LRU
// that evicts a fraction of its least recently used entries at capacity and
// purges expired entries in a separate sweep.
package memory

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

type Options struct {
	Capacity      int
	TTL           time.Duration
	EvictFraction float64
	// SweepInterval bounds how often Put triggers a TTL sweep. Zero uses TTL/4.
	SweepInterval time.Duration
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Capacity:      10000,
		TTL:           24 * time.Hour,
		EvictFraction: 0.1,
	}
}

type entry struct {
	key      string
	vec      domain.EmbeddingVector
	storedAt time.Time
}

type Cache struct {
	opts Options

	mu        sync.Mutex
	items     map[string]*list.Element
	order     *list.List
	lastSweep time.Time

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

func New(opts Options) *Cache {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.EvictFraction <= 0 || opts.EvictFraction > 1 {
		opts.EvictFraction = def.EvictFraction
	}
	if opts.SweepInterval <= 0 && opts.TTL > 0 {
		opts.SweepInterval = opts.TTL / 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		opts:      opts,
		items:     make(map[string]*list.Element, opts.Capacity),
		order:     list.New(),
		lastSweep: opts.Now(),
	}
}

func (c *Cache) Get(_ context.Context, key string) (domain.EmbeddingVector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return domain.EmbeddingVector{}, false, nil
	}
	e := el.Value.(*entry)
	if c.expired(e, c.opts.Now()) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		return domain.EmbeddingVector{}, false, nil
	}
	c.order.MoveToFront(el)
	c.hits++
	return cloneVector(e.vec), true, nil
}

func (c *Cache) Put(_ context.Context, key string, vec domain.EmbeddingVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	if c.opts.TTL > 0 && now.Sub(c.lastSweep) >= c.opts.SweepInterval {
		c.sweepLocked(now)
	}

	vec = cloneVector(vec)
	vec.Cached = false
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.vec = vec
		e.storedAt = now
		c.order.MoveToFront(el)
		return nil
	}

	if len(c.items) >= c.opts.Capacity {
		c.evictLocked()
	}
	el := c.order.PushFront(&entry{key: key, vec: vec, storedAt: now})
	c.items[key] = el
	return nil
}

func (c *Cache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.opts.Capacity)
	c.order.Init()
	return nil
}

// Sweep purges expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.opts.Now())
}

func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CacheStats{
		Size:        len(c.items),
		Capacity:    c.opts.Capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

func (c *Cache) evictLocked() {
	n := int(math.Ceil(float64(c.opts.Capacity)*c.opts.EvictFraction - 1e-9))
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.removeElement(el)
		c.evictions++
	}
}

func (c *Cache) sweepLocked(now time.Time) int {
	c.lastSweep = now
	if c.opts.TTL <= 0 {
		return 0
	}
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry), now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	c.expirations += uint64(removed)
	return removed
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.opts.TTL > 0 && now.Sub(e.storedAt) >= c.opts.TTL
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

func cloneVector(v domain.EmbeddingVector) domain.EmbeddingVector {
	out := v
	out.Values = append([]float32(nil), v.Values...)
	return out
}
