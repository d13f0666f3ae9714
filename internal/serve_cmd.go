package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/chromy/assetcache/internal/cache"
	"github.com/chromy/assetcache/internal/config"
	"github.com/chromy/assetcache/internal/core"
	"github.com/chromy/assetcache/internal/processor"
	"github.com/chromy/assetcache/internal/records"
	"github.com/chromy/assetcache/internal/routes"
	"github.com/chromy/assetcache/internal/storage"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/julienschmidt/httprouter"
	"github.com/spf13/afero"
)

func newBackend(ctx context.Context, cfg config.Config) (cache.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.Shared(cfg.MemoryLimit), nil
	case config.BackendRedis:
		info := &cache.ConnectionInfo{Host: cfg.Redis.Host, Port: cfg.Redis.Port, DB: cfg.Redis.DB}
		return cache.NewRedisCache(ctx, info, cfg.MemoryLimit)
	case config.BackendMemcached:
		return cache.NewMemcachedCache(cfg.Memcached...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openBackend is swapped out by tests.
var openBackend = newBackend

// closeBackend releases backends that hold connections.
func closeBackend(backend cache.Backend) error {
	if c, ok := backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewFacade builds the facade for cfg: durable files and records on disk,
// staging in cfg.StagingDir. The returned func releases the cache backend.
func NewFacade(ctx context.Context, cfg config.Config, logger *slog.Logger) (facade *core.Facade, cleanup func() error, err error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s backend: %w", cfg.Backend, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, closeBackend(backend))
		}
	}()

	for _, dir := range []string{cfg.StorageDir, cfg.RecordsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}

	staging, err := storage.NewStaging(afero.NewOsFs(), cfg.StagingDir)
	if err != nil {
		return nil, nil, err
	}

	man, err := core.NewCacheMan(core.Components{
		Processor: processor.New(logger),
		Staging:   staging,
		Store:     storage.NewBillyStore(osfs.New(cfg.StorageDir)),
		Backend:   backend,
		Recorder:  records.NewFileRecorder(osfs.New(cfg.RecordsDir)),
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return core.NewFacade(man), func() error { return closeBackend(backend) }, nil
}

func DoServe(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()

	facade, cleanup, err := NewFacade(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("failed to close cache backend", "backend", cfg.Backend, "err", err)
		}
	}()
	core.InitFacade(facade)

	router := httprouter.New()
	routes.Mount(router)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(int(cfg.Port)),
		Handler:           sentryHandler.Handle(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port), "backend", cfg.Backend)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
