package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromy/assetcache/internal/cache"
	"github.com/chromy/assetcache/internal/processor"
	"github.com/chromy/assetcache/internal/records"
	"github.com/chromy/assetcache/internal/storage"
)

// FileInfo describes a stored file to clients.
type FileInfo struct {
	ID                 string  `json:"id"`
	Filename           string  `json:"filename"`
	CreationTime       string  `json:"creationTime"`
	LastUpdateTime     string  `json:"lastUpdateTime"`
	Size               int64   `json:"size"`
	URL                string  `json:"url"`
	ConsumedMemory     int64   `json:"consumedMemory"`
	Processed          bool    `json:"processed"`
	Type               string  `json:"type"`
	ProcessDuration    float64 `json:"processDuration"`
	ProcessCPUTime     float64 `json:"processCpuTime"`
	ProcessMemoryUsage int64   `json:"processMemoryUsage"`
}

// StoreResponse is the outcome of StoreFile. Failed validation is reported
// through Success and Errors rather than as an error.
type StoreResponse struct {
	Success     bool      `json:"success"`
	File        *FileInfo `json:"file,omitempty"`
	Overwritten bool      `json:"overwritten"`
	Cached      bool      `json:"cached"`
	Errors      []string  `json:"errors,omitempty"`
}

// FileList is the outcome of ListFiles.
type FileList struct {
	TotalConsumedMemory int64      `json:"totalConsumedMemory"`
	NumberOfFiles       int        `json:"numberOfFiles"`
	Files               []FileInfo `json:"files"`
}

// Facade is what request handlers use.
type Facade struct {
	man    *CacheMan
	logger *slog.Logger
}

func NewFacade(man *CacheMan) *Facade {
	return &Facade{man: man, logger: man.logger}
}

func (f *Facade) StoreFile(ctx context.Context, upload processor.Upload, owner string, minify, convert bool) (StoreResponse, error) {
	result, err := f.man.Store(ctx, StoreRequest{Upload: upload, Owner: owner, Minify: minify, Convert: convert})
	var verr *ValidationError
	if errors.As(err, &verr) {
		return StoreResponse{Success: false, Errors: validationMessages(verr)}, nil
	}
	if err != nil {
		return StoreResponse{}, err
	}

	info := f.fileInfo(ctx, result.Record)
	return StoreResponse{
		Success:     true,
		File:        &info,
		Overwritten: result.Overwritten,
		Cached:      result.Cached,
	}, nil
}

// RetrieveFile returns the named file of owner; found is false when it doesn't exist.
func (f *Facade) RetrieveFile(ctx context.Context, filename, owner string) ([]byte, bool, error) {
	return f.man.Get(ctx, storage.SanitizeFilename(filename), owner)
}

func (f *Facade) ListFiles(ctx context.Context, owner string) (FileList, error) {
	recs, err := f.man.List(ctx, owner)
	if err != nil {
		return FileList{}, err
	}

	list := FileList{Files: make([]FileInfo, 0, len(recs))}
	for _, rec := range recs {
		info := f.fileInfo(ctx, rec)
		list.TotalConsumedMemory += info.ConsumedMemory
		list.NumberOfFiles++
		list.Files = append(list.Files, info)
	}
	return list, nil
}

func (f *Facade) fileInfo(ctx context.Context, rec records.Record) FileInfo {
	info := FileInfo{
		ID:             rec.ID,
		Filename:       rec.Filename,
		CreationTime:   rec.CreationTime.UTC().Format(timeFormat),
		LastUpdateTime: rec.LastUpdateTime.UTC().Format(timeFormat),
		Size:           rec.Size,
		URL:            rec.URL(),
		Type:           string(rec.Details.Kind),
	}

	used, err := f.man.MemoryUsageFor(ctx, rec.Filename, rec.Owner)
	if err != nil {
		f.logger.Warn("failed to read cache usage", "owner", rec.Owner, "filename", rec.Filename, "err", err)
	}
	info.ConsumedMemory = used

	processed, cost := rec.Details.Processed()
	info.Processed = processed
	if cost != nil {
		info.ProcessDuration = cost.Duration.Seconds()
		info.ProcessCPUTime = cost.CPUTime.Seconds()
		info.ProcessMemoryUsage = cost.Memory
	}
	return info
}

// CacheStats summarizes the cache backend.
type CacheStats struct {
	Backend    string `json:"backend"`
	Entries    int    `json:"entries,omitempty"`
	UsedBytes  int64  `json:"usedBytes,omitempty"`
	LimitBytes int64  `json:"limitBytes,omitempty"`
}

func (f *Facade) CacheStats() CacheStats {
	switch b := f.man.backend.(type) {
	case *cache.MemoryCache:
		return CacheStats{Backend: "memory", Entries: b.Size(), UsedBytes: b.Used(), LimitBytes: b.Limit()}
	case *cache.RedisCache:
		return CacheStats{Backend: "redis"}
	case *cache.MemcachedCache:
		return CacheStats{Backend: "memcached"}
	default:
		return CacheStats{Backend: fmt.Sprintf("%T", b)}
	}
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func validationMessages(verr *ValidationError) []string {
	msgs := make([]string, 0, len(verr.Errors))
	for _, err := range verr.Errors {
		switch {
		case errors.Is(err, processor.ErrFileTooLarge):
			msgs = append(msgs, fmt.Sprintf("Uploaded file's size should be less than %s.", processor.MaxFileSizeStr))
		case errors.Is(err, processor.ErrTypeNotAllowed):
			msgs = append(msgs, "Uploaded file's type is not allowed.")
		default:
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}
