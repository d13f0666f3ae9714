package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
)

func newMockRedisCache(t *testing.T, maxBytes int64) (*RedisCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	mock.ExpectConfigSet("maxmemory", "1024").SetVal("OK")
	mock.ExpectConfigSet("maxmemory-policy", "allkeys-lru").SetVal("OK")

	c, err := NewRedisCacheFromClient(context.Background(), db, maxBytes)
	if err != nil {
		t.Fatalf("NewRedisCacheFromClient failed: %v", err)
	}
	return c, mock
}

func TestRedisCache_ConfiguresServer(t *testing.T) {
	_, mock := newMockRedisCache(t, 1024)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisCache_ConfigFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectConfigSet("maxmemory", "2048").SetErr(errors.New("ERR unknown command"))

	_, err := NewRedisCacheFromClient(context.Background(), db, 2048)
	if err == nil {
		t.Fatal("Expected configuration failure to be reported")
	}
}

func TestRedisCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockRedisCache(t, 1024)

	value := []byte("body{}")
	mock.ExpectSet("alice_site.css", value, 0).SetVal("OK")
	mock.ExpectGet("alice_site.css").SetVal("body{}")

	if err := c.Put(ctx, "alice_site.css", value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, found, err := c.Get(ctx, "alice_site.css")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if string(got) != "body{}" {
		t.Errorf("Expected body{}, got %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisCache_Absent(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockRedisCache(t, 1024)

	mock.ExpectGet("missing").RedisNil()
	mock.ExpectExists("missing").SetVal(0)
	mock.ExpectMemoryUsage("missing").RedisNil()

	if _, found, err := c.Get(ctx, "missing"); found || err != nil {
		t.Errorf("Expected absent without error, got found=%v err=%v", found, err)
	}
	if exists, err := c.Exists(ctx, "missing"); exists || err != nil {
		t.Errorf("Expected not exists without error, got %v %v", exists, err)
	}
	if used, err := c.MemoryUsed(ctx, "missing"); used != 0 || err != nil {
		t.Errorf("Expected 0 without error, got %d %v", used, err)
	}
}

func TestRedisCache_MemoryUsed(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockRedisCache(t, 1024)

	mock.ExpectExists("k").SetVal(1)
	mock.ExpectMemoryUsage("k").SetVal(72)

	if exists, _ := c.Exists(ctx, "k"); !exists {
		t.Error("Expected k to exist")
	}
	used, err := c.MemoryUsed(ctx, "k")
	if err != nil {
		t.Fatalf("MemoryUsed failed: %v", err)
	}
	if used != 72 {
		t.Errorf("Expected 72, got %d", used)
	}
}

func TestRedisCache_TransportError(t *testing.T) {
	ctx := context.Background()
	c, mock := newMockRedisCache(t, 1024)

	mock.ExpectGet("k").SetErr(errors.New("connection reset"))

	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Expected transport error to surface")
	}
}

func TestConnectionInfoAddr(t *testing.T) {
	tests := []struct {
		info ConnectionInfo
		want string
	}{
		{ConnectionInfo{}, "localhost:6379"},
		{ConnectionInfo{Host: "cache.internal"}, "cache.internal:6379"},
		{ConnectionInfo{Host: "10.0.0.2", Port: 7000, DB: 3}, "10.0.0.2:7000"},
	}
	for _, tt := range tests {
		if got := tt.info.Addr(); got != tt.want {
			t.Errorf("Addr(%+v) = %s, want %s", tt.info, got, tt.want)
		}
	}
}
