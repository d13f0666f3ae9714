// Package config holds the server configuration. Values are layered: defaults,
// then an optional YAML file, then ASSETCACHE_* environment variables, then
// command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

type Redis struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

type Config struct {
	Port        uint     `yaml:"port"`
	Backend     string   `yaml:"backend"`
	MemoryLimit int64    `yaml:"memory_limit"`
	Redis       Redis    `yaml:"redis"`
	Memcached   []string `yaml:"memcached"`
	StorageDir  string   `yaml:"storage_dir"`
	StagingDir  string   `yaml:"staging_dir"`
	RecordsDir  string   `yaml:"records_dir"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Port:        8080,
		Backend:     BackendMemory,
		MemoryLimit: 512 * 1024 * 1024,
		Redis:       Redis{Host: "localhost", Port: 6379},
		Memcached:   []string{"localhost:11211"},
		StorageDir:  "data/files",
		StagingDir:  os.TempDir(),
		RecordsDir:  "data/records",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

var lookupEnv = os.LookupEnv

// ApplyEnv overlays ASSETCACHE_* environment variables. Empty values are ignored.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookupEnv("ASSETCACHE_" + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, set func(int64)) {
		v, ok := lookupEnv("ASSETCACHE_" + name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ASSETCACHE_%s: %w", name, err))
			return
		}
		set(n)
	}

	num("PORT", func(n int64) { c.Port = uint(n) })
	str("BACKEND", &c.Backend)
	num("MEMORY_LIMIT", func(n int64) { c.MemoryLimit = n })
	str("REDIS_HOST", &c.Redis.Host)
	num("REDIS_PORT", func(n int64) { c.Redis.Port = int(n) })
	num("REDIS_DB", func(n int64) { c.Redis.DB = int(n) })
	if v, ok := lookupEnv("ASSETCACHE_MEMCACHED"); ok && v != "" {
		c.Memcached = strings.Split(v, ",")
	}
	str("STORAGE_DIR", &c.StorageDir)
	str("STAGING_DIR", &c.StagingDir)
	str("RECORDS_DIR", &c.RecordsDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendMemcached:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MemoryLimit <= 0 {
		return fmt.Errorf("memory limit must be positive, got %d", c.MemoryLimit)
	}
	if c.Backend == BackendMemcached && len(c.Memcached) == 0 {
		return errors.New("memcached backend needs at least one server")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
