package storage

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Staging is the temporary holding area for uploads. Artifacts are written here,
// transformed in place and removed once the durable store has a copy.
type Staging struct {
	fs  afero.Fs
	dir string
}

// NewStaging creates a staging area rooted at dir on fs. The directory is
// created if it doesn't exist.
func NewStaging(fs afero.Fs, dir string) (*Staging, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Staging{fs: fs, dir: dir}, nil
}

// NewMemStaging creates an in-memory staging area.
func NewMemStaging() *Staging {
	s, err := NewStaging(afero.NewMemMapFs(), "/tmp")
	if err != nil {
		panic(fmt.Sprintf("failed to create memory staging: %v", err))
	}
	return s
}

// Artifact is one staged file.
type Artifact struct {
	Name string
	path string
}

// Put writes content as a new artifact. owner prefixes the name so staged
// files of different owners never collide.
func (s *Staging) Put(owner, filename string, content []byte) (Artifact, error) {
	a := Artifact{Name: filename}
	a.path = path.Join(s.dir, fmt.Sprintf("%s.%s.%s", owner, uuid.NewString(), filename))
	if err := afero.WriteFile(s.fs, a.path, content, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("staging %s: %w", filename, err)
	}
	return a, nil
}

// Read returns the artifact's content.
func (s *Staging) Read(a Artifact) ([]byte, error) {
	return afero.ReadFile(s.fs, a.path)
}

// Replace writes content as the artifact named filename and discards a. Used
// when a transform renames its output.
func (s *Staging) Replace(a Artifact, filename string, content []byte) (Artifact, error) {
	if filename == a.Name {
		if err := afero.WriteFile(s.fs, a.path, content, 0o644); err != nil {
			return a, fmt.Errorf("rewriting %s: %w", filename, err)
		}
		return a, nil
	}

	next := Artifact{Name: filename, path: path.Join(path.Dir(a.path), trimName(path.Base(a.path), a.Name)+filename)}
	if err := afero.WriteFile(s.fs, next.path, content, 0o644); err != nil {
		return a, fmt.Errorf("staging %s: %w", filename, err)
	}
	if err := s.Remove(a); err != nil {
		return next, err
	}
	return next, nil
}

// Remove deletes the artifact. Removing an already removed artifact is not an error.
func (s *Staging) Remove(a Artifact) error {
	if a.path == "" {
		return nil
	}
	exists, err := afero.Exists(s.fs, a.path)
	if err != nil || !exists {
		return err
	}
	return s.fs.Remove(a.path)
}

// Len returns the number of staged artifacts.
func (s *Staging) Len() (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func trimName(base, name string) string {
	return base[:len(base)-len(name)]
}
