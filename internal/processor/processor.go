// Package processor validates uploaded files and applies the optional
// minify/convert transforms, measuring what each transform costs.
package processor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

// MaxFileSize is the exclusive upper bound on upload size.
const MaxFileSize int64 = 2 * 1024 * 1024

// MaxFileSizeStr is MaxFileSize for humans.
const MaxFileSizeStr = "2 MB"

var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// Category is the top level MIME type of an accepted file.
type Category string

const (
	CategoryText  Category = "text"
	CategoryImage Category = "image"
)

// AllowedTypes lists the accepted subtypes of each category.
var AllowedTypes = map[Category][]string{
	CategoryText:  {"css", "js"},
	CategoryImage: {"jpg", "jpeg", "png", "webp"},
}

// FileType is the classification of an accepted file.
type FileType struct {
	Category Category
	Subtype  string
}

func (ft FileType) String() string {
	return string(ft.Category) + "/" + ft.Subtype
}

// Upload is a file received from a client. Body must be positioned wherever the
// caller wants it; the processor restores the position after sniffing.
type Upload struct {
	Filename string
	Size     int64
	Body     io.ReadSeeker
}

// Processor validates and transforms uploads.
type Processor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// VerifySize reports whether the upload is below MaxFileSize. Both the declared
// size and the measured length of the body must be below it.
func (p *Processor) VerifySize(u Upload) bool {
	if u.Size >= MaxFileSize {
		return false
	}
	if u.Body == nil {
		return true
	}
	n, err := bodySize(u.Body)
	if err != nil {
		p.logger.Warn("could not measure upload", "filename", u.Filename, "err", err)
		return false
	}
	return n < MaxFileSize
}

// VerifyType sniffs the upload's bytes and checks them together with the
// filename extension against AllowedTypes. The body's read position is left
// where it was.
func (p *Processor) VerifyType(u Upload) (FileType, bool) {
	content, err := peek(u.Body)
	if err != nil {
		p.logger.Warn("could not read upload for sniffing", "filename", u.Filename, "err", err)
		return FileType{}, false
	}

	ext := Extension(u.Filename)
	ft, ok := sniff(content, ext)
	if !ok {
		return FileType{}, false
	}
	// TODO: the extension check should stand on its own instead of steering
	// the text grammar check; a crafted file matching both still passes.
	if !allowed(ft.Category, ft.Subtype) || !allowed(ft.Category, ext) || !sameSubtype(ft.Subtype, ext) {
		return FileType{}, false
	}
	return ft, true
}

// Verify runs VerifySize then VerifyType and returns a descriptive error.
func (p *Processor) Verify(u Upload) (FileType, error) {
	if !p.VerifySize(u) {
		return FileType{}, fmt.Errorf("%w: %s", ErrFileTooLarge, u.Filename)
	}
	ft, ok := p.VerifyType(u)
	if !ok {
		return FileType{}, fmt.Errorf("%w: %s", ErrTypeNotAllowed, u.Filename)
	}
	return ft, nil
}

// Extension returns the lowercased extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

func allowed(c Category, subtype string) bool {
	for _, s := range AllowedTypes[c] {
		if s == subtype {
			return true
		}
	}
	return false
}

func sameSubtype(a, b string) bool {
	norm := func(s string) string {
		if s == "jpg" {
			return "jpeg"
		}
		return s
	}
	return norm(a) == norm(b)
}

// bodySize returns the total length of r and leaves its position unchanged.
func bodySize(r io.ReadSeeker) (int64, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// peek reads the whole body (bounded by MaxFileSize) and seeks back to the
// original offset.
func peek(r io.ReadSeeker) ([]byte, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	content, readErr := io.ReadAll(io.LimitReader(r, MaxFileSize))
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	return content, readErr
}
