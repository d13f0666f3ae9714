package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chromy/assetcache/internal/cache"
	"github.com/chromy/assetcache/internal/processor"
	"github.com/chromy/assetcache/internal/records"
	"github.com/chromy/assetcache/internal/storage"
	"golang.org/x/sync/singleflight"
)

// CacheKey derives the cache key of an owner's file.
func CacheKey(owner, filename string) string {
	return owner + "_" + filename
}

// Components are the collaborators of a CacheMan. Store, Backend and Recorder
// are required; Processor and Staging default to in-memory instances.
type Components struct {
	Processor *processor.Processor
	Staging   *storage.Staging
	Store     storage.Store
	Backend   cache.Backend
	Recorder  records.Recorder
	Logger    *slog.Logger
}

// CacheMan ties validation, transformation, durable storage, metadata and the
// cache together.
type CacheMan struct {
	processor *processor.Processor
	staging   *storage.Staging
	store     storage.Store
	backend   cache.Backend
	recorder  records.Recorder
	logger    *slog.Logger

	refills singleflight.Group
}

func NewCacheMan(c Components) (*CacheMan, error) {
	if c.Store == nil || c.Backend == nil || c.Recorder == nil {
		return nil, errors.New("cacheman: store, backend and recorder are required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Processor == nil {
		c.Processor = processor.New(c.Logger)
	}
	if c.Staging == nil {
		c.Staging = storage.NewMemStaging()
	}
	return &CacheMan{
		processor: c.Processor,
		staging:   c.Staging,
		store:     c.Store,
		backend:   c.Backend,
		recorder:  c.Recorder,
		logger:    c.Logger,
	}, nil
}

// StoreRequest is one upload to store.
type StoreRequest struct {
	Upload  processor.Upload
	Owner   string
	Minify  bool
	Convert bool
}

// StoreResult is the outcome of a successful Store. Cache population is best
// effort: CacheErr is set when it failed, and the file is stored regardless.
type StoreResult struct {
	Record      records.Record
	Type        processor.FileType
	Transform   processor.TransformResult
	Overwritten bool
	Key         string
	Cached      bool
	CacheErr    error
}

// Store validates, stages, optionally transforms and persists an upload, then
// records it and populates the cache. A *ValidationError means nothing was
// staged or stored.
func (m *CacheMan) Store(ctx context.Context, req StoreRequest) (StoreResult, error) {
	u := req.Upload
	u.Filename = storage.SanitizeFilename(u.Filename)
	logger := m.logger.With("owner", req.Owner, "filename", u.Filename)

	ft, err := m.validate(req.Owner, u)
	if err != nil {
		return StoreResult{}, err
	}

	content, err := readAll(u.Body)
	if err != nil {
		return StoreResult{}, fmt.Errorf("reading upload %s: %w", u.Filename, err)
	}
	if int64(len(content)) >= processor.MaxFileSize {
		return StoreResult{}, &ValidationError{Errors: []error{fmt.Errorf("%w: %s", processor.ErrFileTooLarge, u.Filename)}}
	}

	artifact, err := m.staging.Put(req.Owner, u.Filename, content)
	if err != nil {
		return StoreResult{}, err
	}
	defer func() {
		if err := m.staging.Remove(artifact); err != nil {
			logger.Warn("failed to remove staged artifact", "artifact", artifact.Name, "err", err)
		}
	}()

	kind := processor.ResolveTransform(ft, req.Minify, req.Convert)
	transform, err := m.processor.Transform(kind, ft, u.Filename, content)
	if err != nil {
		return StoreResult{}, fmt.Errorf("%w: %w", ErrTransformFailed, err)
	}
	if transform.Applied {
		artifact, err = m.staging.Replace(artifact, transform.Filename, transform.Content)
		if err != nil {
			return StoreResult{}, fmt.Errorf("%w: %w", ErrTransformFailed, err)
		}
	}

	staged, err := m.staging.Read(artifact)
	if err != nil {
		return StoreResult{}, fmt.Errorf("reading staged %s: %w", artifact.Name, err)
	}

	filename := artifact.Name
	logicalPath, err := storage.Path(req.Owner, filename)
	if err != nil {
		return StoreResult{}, &ValidationError{Errors: []error{err}}
	}
	saved, err := m.store.Save(ctx, logicalPath, staged)
	if err != nil {
		logger.Error("failed to persist file", "path", logicalPath, "err", err)
		return StoreResult{}, fmt.Errorf("%w: %w", ErrDurableStore, err)
	}

	rec, err := m.recorder.Upsert(ctx, req.Owner, filename, saved.Size, detailsFor(ft, transform))
	if err != nil {
		logger.Error("failed to record file", "path", logicalPath, "err", err)
		return StoreResult{}, fmt.Errorf("%w: %w", ErrRecording, err)
	}

	result := StoreResult{
		Record:      rec,
		Type:        ft,
		Transform:   transform,
		Overwritten: saved.Overwritten,
		Key:         CacheKey(req.Owner, filename),
	}
	result.CacheErr = m.populate(ctx, result.Key, logicalPath)
	result.Cached = result.CacheErr == nil
	if result.CacheErr != nil {
		logger.Warn("failed to populate cache", "key", result.Key, "err", result.CacheErr)
	}
	return result, nil
}

func (m *CacheMan) validate(owner string, u processor.Upload) (processor.FileType, error) {
	var errs []error
	if _, err := storage.Path(owner, u.Filename); err != nil {
		errs = append(errs, err)
	}
	if !m.processor.VerifySize(u) {
		errs = append(errs, fmt.Errorf("%w: %s", processor.ErrFileTooLarge, u.Filename))
	}
	ft, ok := m.processor.VerifyType(u)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: %s", processor.ErrTypeNotAllowed, u.Filename))
	}
	if len(errs) > 0 {
		return processor.FileType{}, &ValidationError{Errors: errs}
	}
	return ft, nil
}

// populate reads the persisted bytes back and puts them in the cache.
func (m *CacheMan) populate(ctx context.Context, key, logicalPath string) error {
	content, found, err := m.store.Retrieve(ctx, logicalPath)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s vanished after save", logicalPath)
	}
	return m.backend.Put(ctx, key, content)
}

// Get returns the owner's file, from the cache when possible. On a miss the
// durable copy is read and the cache refilled; concurrent misses for one key
// share a single read. A file absent from both reports found=false.
func (m *CacheMan) Get(ctx context.Context, filename, owner string) ([]byte, bool, error) {
	key := CacheKey(owner, filename)

	content, found, err := m.backend.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cache get failed", "key", key, "err", err)
	} else if found {
		return content, true, nil
	}

	logicalPath, err := storage.Path(owner, filename)
	if err != nil {
		return nil, false, nil
	}

	v, err, shared := m.refills.Do(key, func() (interface{}, error) {
		content, found, err := m.store.Retrieve(ctx, logicalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDurableStore, err)
		}
		if !found {
			return nil, nil
		}
		if err := m.backend.Put(ctx, key, content); err != nil {
			m.logger.Warn("failed to refill cache", "key", key, "err", err)
		}
		return content, nil
	})
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	content = v.([]byte)
	if shared {
		content = bytes.Clone(content)
	}
	return content, true, nil
}

// MemoryUsageFor returns the cache bytes attributed to the owner's file.
func (m *CacheMan) MemoryUsageFor(ctx context.Context, filename, owner string) (int64, error) {
	return m.backend.MemoryUsed(ctx, CacheKey(owner, filename))
}

// List returns the owner's records.
func (m *CacheMan) List(ctx context.Context, owner string) ([]records.Record, error) {
	return m.recorder.List(ctx, owner)
}

func detailsFor(ft processor.FileType, t processor.TransformResult) records.Details {
	var cost *records.TransformDetails
	if t.Applied {
		cost = &records.TransformDetails{
			Duration: t.Profile.WallTime,
			CPUTime:  t.Profile.CPUTime,
			Memory:   t.Profile.MemoryUsage,
		}
	}
	switch ft.Category {
	case processor.CategoryText:
		return records.NewTextDetails(cost)
	case processor.CategoryImage:
		return records.NewImageDetails(cost)
	default:
		return records.Details{}
	}
}

// readAll reads the whole upload, at most one byte past MaxFileSize so an
// oversize body is detected rather than truncated.
func readAll(r io.ReadSeeker) ([]byte, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(r, processor.MaxFileSize+1))
}
