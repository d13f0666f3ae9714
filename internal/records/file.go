package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// FileRecorder stores each owner's records as one msgpack file on a billy
// filesystem.
type FileRecorder struct {
	mu  sync.Mutex
	fs  billy.Filesystem
	now func() time.Time
}

// Option configures a FileRecorder.
type Option func(*FileRecorder)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(r *FileRecorder) {
		r.now = now
	}
}

func NewFileRecorder(fs billy.Filesystem, options ...Option) *FileRecorder {
	r := &FileRecorder{fs: fs, now: time.Now}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *FileRecorder) Upsert(_ context.Context, owner, filename string, size int64, details Details) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load(owner)
	if err != nil {
		return Record{}, err
	}

	now := r.now()
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Filename >= filename })
	if i < len(recs) && recs[i].Filename == filename {
		rec := &recs[i]
		rec.Size = size
		rec.LastUpdateTime = now
		if rec.Details.Kind == KindNone || rec.Details.Kind == details.Kind {
			rec.Details = details
		}
	} else {
		recs = append(recs, Record{})
		copy(recs[i+1:], recs[i:])
		recs[i] = Record{
			ID:             uuid.NewString(),
			Owner:          owner,
			Filename:       filename,
			Size:           size,
			CreationTime:   now,
			LastUpdateTime: now,
			Details:        details,
		}
	}

	if err := r.save(owner, recs); err != nil {
		return Record{}, err
	}
	return recs[i], nil
}

func (r *FileRecorder) List(_ context.Context, owner string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(owner)
}

func recordsPath(owner string) string {
	return owner + ".msgpack"
}

func (r *FileRecorder) load(owner string) ([]Record, error) {
	f, err := r.fs.Open(recordsPath(owner))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening records of %s: %w", owner, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading records of %s: %w", owner, err)
	}
	var recs []Record
	if err := msgpack.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decoding records of %s: %w", owner, err)
	}
	return recs, nil
}

func (r *FileRecorder) save(owner string, recs []Record) error {
	data, err := msgpack.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encoding records of %s: %w", owner, err)
	}

	tmp, err := r.fs.TempFile("", ".records-")
	if err != nil {
		return fmt.Errorf("creating records temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		r.fs.Remove(tmp.Name())
		return fmt.Errorf("writing records of %s: %w", owner, err)
	}
	if err := tmp.Close(); err != nil {
		r.fs.Remove(tmp.Name())
		return err
	}
	if err := r.fs.Rename(tmp.Name(), recordsPath(owner)); err != nil {
		r.fs.Remove(tmp.Name())
		return fmt.Errorf("replacing records of %s: %w", owner, err)
	}
	return nil
}
