// Package storage holds the durable file store and the temporary staging area
// uploads pass through before they are persisted.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
)

var ErrInvalidPath = errors.New("storage: invalid path")

// SaveResult describes a completed Save.
type SaveResult struct {
	Overwritten bool
	Size        int64
}

// Store is a durable byte store addressed by logical paths.
// Retrieve reports a missing path through its bool result, not an error.
type Store interface {
	Save(ctx context.Context, logicalPath string, content []byte) (SaveResult, error)
	Exists(ctx context.Context, logicalPath string) (bool, error)
	Retrieve(ctx context.Context, logicalPath string) ([]byte, bool, error)
}

// Path joins owner and filename into a logical path. Both must be single,
// non-empty path elements.
func Path(owner, filename string) (string, error) {
	for _, part := range []string{owner, filename} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, part)
		}
	}
	return owner + "/" + filename, nil
}

// BillyStore is a Store on top of a billy filesystem: osfs in production,
// memfs in tests.
type BillyStore struct {
	fs billy.Filesystem
}

func NewBillyStore(fs billy.Filesystem) *BillyStore {
	return &BillyStore{fs: fs}
}

// Save writes content to logicalPath through a temporary file and a rename so
// readers never observe a partially written file.
func (s *BillyStore) Save(_ context.Context, logicalPath string, content []byte) (SaveResult, error) {
	overwritten, err := s.exists(logicalPath)
	if err != nil {
		return SaveResult{}, err
	}

	dir := path.Dir(logicalPath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := s.fs.TempFile(dir, ".upload-")
	if err != nil {
		return SaveResult{}, fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("writing %s: %w", logicalPath, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("closing %s: %w", logicalPath, err)
	}
	if err := s.fs.Rename(tmpName, logicalPath); err != nil {
		s.fs.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("moving %s into place: %w", logicalPath, err)
	}

	return SaveResult{Overwritten: overwritten, Size: int64(len(content))}, nil
}

func (s *BillyStore) Exists(_ context.Context, logicalPath string) (bool, error) {
	return s.exists(logicalPath)
}

func (s *BillyStore) exists(logicalPath string) (bool, error) {
	info, err := s.fs.Stat(logicalPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", logicalPath, err)
	}
	return !info.IsDir(), nil
}

func (s *BillyStore) Retrieve(_ context.Context, logicalPath string) ([]byte, bool, error) {
	f, err := s.fs.Open(logicalPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("opening %s: %w", logicalPath, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", logicalPath, err)
	}
	return content, true, nil
}
