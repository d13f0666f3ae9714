package assetcache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromy/assetcache/internal/cache"
	"github.com/chromy/assetcache/internal/config"
	"github.com/chromy/assetcache/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StorageDir = filepath.Join(dir, "files")
	cfg.StagingDir = filepath.Join(dir, "staging")
	cfg.RecordsDir = filepath.Join(dir, "records")
	return cfg
}

func TestNewFacadeOnDisk(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	facade, cleanup, err := NewFacade(ctx, cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	css := []byte("body { margin: 0; }")
	resp, err := facade.StoreFile(ctx, processor.Upload{Filename: "site.css", Size: int64(len(css)), Body: bytes.NewReader(css)}, "alice", false, false)
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Errors)

	assert.FileExists(t, filepath.Join(cfg.StorageDir, "alice", "site.css"))
	assert.FileExists(t, filepath.Join(cfg.RecordsDir, "alice.msgpack"))

	content, found, err := facade.RetrieveFile(ctx, "site.css", "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, css, content)
}

func TestNewBackendUnknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = "etcd"

	_, _, err := NewFacade(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestNewBackendMemcached(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = config.BackendMemcached

	backend, err := newBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

type closingBackend struct {
	*cache.MemoryCache
	closed int
}

func (b *closingBackend) Close() error {
	b.closed++
	return nil
}

func withBackend(t *testing.T, backend cache.Backend) {
	t.Helper()
	saved := openBackend
	openBackend = func(context.Context, config.Config) (cache.Backend, error) { return backend, nil }
	t.Cleanup(func() { openBackend = saved })
}

func TestNewFacadeCleanupClosesBackend(t *testing.T) {
	backend := &closingBackend{MemoryCache: cache.NewMemoryCache(1024)}
	withBackend(t, backend)

	_, cleanup, err := NewFacade(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	assert.Zero(t, backend.closed)

	require.NoError(t, cleanup())
	assert.Equal(t, 1, backend.closed)
}

func TestNewFacadeFailureClosesBackend(t *testing.T) {
	backend := &closingBackend{MemoryCache: cache.NewMemoryCache(1024)}
	withBackend(t, backend)

	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.StorageDir = filepath.Join(blocker, "files")

	_, cleanup, err := NewFacade(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, cleanup)
	assert.Equal(t, 1, backend.closed)
}

func TestCloseBackendWithoutCloser(t *testing.T) {
	assert.NoError(t, closeBackend(cache.NewMemoryCache(1024)))
}
