package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemcachedCache_ImplementsBackend(t *testing.T) {
	var _ Backend = NewMemcachedCache("localhost:11211")
	var _ Backend = (*RedisCache)(nil)
	var _ Backend = NewMemoryCache(1)
}

func TestMemcachedCache_UnreachableServerIsAnError(t *testing.T) {
	// Port 1 is never a memcached server; the failure must not look like a miss.
	c := NewMemcachedCache("127.0.0.1:1")

	_, found, err := c.Get(context.Background(), "some_key")
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if found {
		t.Error("Expected found to be false on error")
	}
}

func TestMemcachedCache_CapacityError(t *testing.T) {
	tooLarge := fmt.Errorf("memcache: unexpected response line from %q: %q", "set", "SERVER_ERROR object too large for cache\r\n")
	if err := capacityError(tooLarge); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Expected ErrCapacityExceeded, got %v", err)
	}

	other := errors.New("memcache: connect timeout")
	if err := capacityError(other); err != other {
		t.Errorf("Expected error to pass through, got %v", err)
	}

	if err := capacityError(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
