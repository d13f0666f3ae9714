package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(t *testing.T, env map[string]string) {
	t.Helper()
	orig := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = orig })
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, int64(512*1024*1024), cfg.MemoryLimit)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
backend: redis
redis:
  host: cache.internal
  db: 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9000), cfg.Port)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 6379, cfg.Redis.Port, "unset keys keep their defaults")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	fakeEnv(t, map[string]string{
		"ASSETCACHE_PORT":         "7000",
		"ASSETCACHE_BACKEND":      "memcached",
		"ASSETCACHE_MEMCACHED":    "a:11211,b:11211",
		"ASSETCACHE_MEMORY_LIMIT": "1024",
		"ASSETCACHE_LOG_LEVEL":    "",
	})

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, uint(7000), cfg.Port)
	assert.Equal(t, BackendMemcached, cfg.Backend)
	assert.Equal(t, []string{"a:11211", "b:11211"}, cfg.Memcached)
	assert.Equal(t, int64(1024), cfg.MemoryLimit)
	assert.Equal(t, "info", cfg.LogLevel, "empty values are ignored")
}

func TestApplyEnvBadNumber(t *testing.T) {
	fakeEnv(t, map[string]string{"ASSETCACHE_REDIS_PORT": "six"})

	cfg := Default()
	err := cfg.ApplyEnv()
	assert.ErrorContains(t, err, "ASSETCACHE_REDIS_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "etcd" }},
		{"zero memory", func(c *Config) { c.MemoryLimit = 0 }},
		{"memcached without servers", func(c *Config) { c.Backend = BackendMemcached; c.Memcached = nil }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestYAML(t *testing.T) {
	data, err := Default().YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend: memory")
}
