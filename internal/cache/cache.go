// Package cache provides the byte-blob cache backends used to serve stored files.
// Backends share one small interface so the in-process memory cache, Redis and
// memcached can be swapped at construction time.
package cache

import (
	"context"
	"errors"
)

// ErrCapacityExceeded is returned by Put when a value cannot fit even after eviction.
var ErrCapacityExceeded = errors.New("cache: value exceeds capacity")

// DefaultMaxBytes is the default memory ceiling for a backend.
const DefaultMaxBytes int64 = 512 * 1024 * 1024

// Backend defines the interface for cache implementations.
// A missing key is never an error: Get and Exists report it through their bool
// result and MemoryUsed returns 0. Errors are reserved for transport failures
// and for ErrCapacityExceeded.
type Backend interface {
	// Put stores value under key, evicting as needed.
	Put(ctx context.Context, key string, value []byte) error

	// Exists reports whether key is cached.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// MemoryUsed returns the bytes attributed to key.
	MemoryUsed(ctx context.Context, key string) (int64, error)
}
