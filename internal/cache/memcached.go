package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedCache is a memcached implementation of the Backend interface.
// Like Redis, memcached evicts on its own so no local accounting is kept.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a new memcached cache client.
// The serverList should contain memcached server addresses like ["localhost:11211"].
func NewMemcachedCache(serverList ...string) *MemcachedCache {
	return &MemcachedCache{
		client: memcache.New(serverList...),
	}
}

// Put stores a value in memcached with no expiration.
func (c *MemcachedCache) Put(_ context.Context, key string, value []byte) error {
	err := c.client.Set(&memcache.Item{
		Key:   key,
		Value: value,
	})
	return capacityError(err)
}

// capacityError maps memcached's reply to an item above its slab size onto
// ErrCapacityExceeded. The client reports that reply as an unexpected
// response line, so only the text identifies it.
func capacityError(err error) error {
	if err != nil && strings.Contains(err.Error(), "SERVER_ERROR object too large") {
		return fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	}
	return err
}

// Exists reports whether key is present.
func (c *MemcachedCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

// Get retrieves a value from memcached by key.
func (c *MemcachedCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := c.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return item.Value, true, nil
}

// MemoryUsed returns the stored value length; memcached exposes no per-key
// accounting beyond that.
func (c *MemcachedCache) MemoryUsed(ctx context.Context, key string) (int64, error) {
	value, _, err := c.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return int64(len(value)), nil
}
