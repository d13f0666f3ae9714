package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// memoryEntry is one cached value. It lives inside the recency list.
type memoryEntry struct {
	key  string
	data []byte
}

// MemoryCache is an in-memory, memory-bounded implementation of Backend.
// Entries are evicted in least-recently-used order once the byte limit is reached.
// It is thread-safe: one mutex covers the entry map, the size table and the
// recency list.
type MemoryCache struct {
	mu    sync.Mutex
	limit int64
	used  int64

	items map[string]*list.Element
	sizes map[string]int64

	// recency holds *memoryEntry values, least recently used at the front.
	recency *list.List
}

// NewMemoryCache creates a new in-memory cache holding at most maxBytes.
// A non-positive maxBytes selects DefaultMaxBytes.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &MemoryCache{
		limit:   maxBytes,
		items:   make(map[string]*list.Element),
		sizes:   make(map[string]int64),
		recency: list.New(),
	}
}

var (
	sharedOnce sync.Once
	shared     *MemoryCache
)

// Shared returns the process-wide memory cache, creating it with maxBytes on
// first use. The limit is fixed by the first caller; later values are ignored.
func Shared(maxBytes int64) *MemoryCache {
	sharedOnce.Do(func() {
		shared = NewMemoryCache(maxBytes)
	})
	return shared
}

// Put stores a value in the cache with the given key.
// A value larger than the whole limit is rejected with ErrCapacityExceeded and
// leaves the cache untouched.
func (c *MemoryCache) Put(_ context.Context, key string, value []byte) error {
	size := int64(len(value))
	if size > c.limit {
		return fmt.Errorf("%w: %d bytes for key %q, limit %d", ErrCapacityExceeded, size, key, c.limit)
	}

	// Make a copy of the value to avoid external modifications
	data := make([]byte, len(value))
	copy(data, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.items[key]; found {
		c.removeElement(el)
	}

	if c.used+size > c.limit {
		if !c.evict(c.used + size - c.limit) {
			return fmt.Errorf("%w: could not free space for key %q", ErrCapacityExceeded, key)
		}
	}

	c.items[key] = c.recency.PushBack(&memoryEntry{key: key, data: data})
	c.sizes[key] = size
	c.used += size

	return nil
}

// evict drops entries from the least recently used end until at least need
// bytes were freed. It reports whether the target was met. Must hold c.mu.
func (c *MemoryCache) evict(need int64) bool {
	var freed int64
	for freed < need {
		oldest := c.recency.Front()
		if oldest == nil {
			return false
		}
		freed += c.sizes[oldest.Value.(*memoryEntry).key]
		c.removeElement(oldest)
	}
	return true
}

// removeElement deletes an entry from every index. Must hold c.mu.
func (c *MemoryCache) removeElement(el *list.Element) {
	key := el.Value.(*memoryEntry).key
	c.recency.Remove(el)
	c.used -= c.sizes[key]
	delete(c.items, key)
	delete(c.sizes, key)
}

// Exists reports whether key is cached. It does not affect recency.
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, found := c.items[key]
	return found, nil
}

// Get retrieves a value from the cache by key and marks it as most recently used.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	el, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return nil, false, nil
	}
	c.recency.MoveToBack(el)
	entry := el.Value.(*memoryEntry)
	c.mu.Unlock()

	// Return a copy to prevent external modifications. entry.data is never
	// mutated after insertion so copying outside the lock is safe.
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, true, nil
}

// MemoryUsed returns the number of bytes held for key, 0 if absent.
func (c *MemoryCache) MemoryUsed(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizes[key], nil
}

// Size returns the number of items currently in the cache.
// This method is useful for debugging and monitoring.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Used returns the total number of bytes currently held.
func (c *MemoryCache) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Limit returns the configured byte ceiling.
func (c *MemoryCache) Limit() int64 {
	return c.limit
}

// Clear removes all items from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.sizes = make(map[string]int64)
	c.recency.Init()
	c.used = 0
}

// keys returns cached keys from least to most recently used.
func (c *MemoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.recency.Len())
	for el := c.recency.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*memoryEntry).key)
	}
	return out
}
