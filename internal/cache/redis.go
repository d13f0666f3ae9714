package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ConnectionInfo describes how to reach a Redis server.
type ConnectionInfo struct {
	Host string
	Port int
	DB   int
}

// Addr returns host:port, filling in the Redis defaults.
func (ci ConnectionInfo) Addr() string {
	host := ci.Host
	if host == "" {
		host = "localhost"
	}
	port := ci.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// EvictionPolicy is the server side policy applied on connect.
const EvictionPolicy = "allkeys-lru"

// RedisCache is a Redis implementation of the Backend interface.
// Eviction is left entirely to the server.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache connects to Redis and configures its memory ceiling and
// eviction policy. A nil info connects to localhost:6379, database 0.
func NewRedisCache(ctx context.Context, info *ConnectionInfo, maxBytes int64) (*RedisCache, error) {
	if info == nil {
		info = &ConnectionInfo{}
	}
	client := redis.NewClient(&redis.Options{
		Addr: info.Addr(),
		DB:   info.DB,
	})
	c, err := NewRedisCacheFromClient(ctx, client, maxBytes)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client. The client must be safe for
// concurrent use, which every go-redis client is.
func NewRedisCacheFromClient(ctx context.Context, client redis.UniversalClient, maxBytes int64) (*RedisCache, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := client.ConfigSet(ctx, "maxmemory", strconv.FormatInt(maxBytes, 10)).Err(); err != nil {
		return nil, fmt.Errorf("redis config set maxmemory: %w", err)
	}
	if err := client.ConfigSet(ctx, "maxmemory-policy", EvictionPolicy).Err(); err != nil {
		return nil, fmt.Errorf("redis config set maxmemory-policy: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Put stores a value in Redis without expiration.
func (c *RedisCache) Put(ctx context.Context, key string, value []byte) error {
	err := c.client.Set(ctx, key, value, 0).Err()
	if err != nil && isOOM(err) {
		return fmt.Errorf("%w: %v", ErrCapacityExceeded, err)
	}
	return err
}

// Exists reports whether key is present on the server.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get retrieves a value from Redis by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// MemoryUsed returns the server reported MEMORY USAGE of key.
func (c *RedisCache) MemoryUsed(ctx context.Context, key string) (int64, error) {
	n, err := c.client.MemoryUsage(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func isOOM(err error) bool {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return strings.HasPrefix(rerr.Error(), "OOM")
	}
	return false
}
