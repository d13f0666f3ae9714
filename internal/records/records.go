// Package records keeps the metadata of stored files: size, timestamps and
// what transform was applied and at what cost.
package records

import (
	"context"
	"net/url"
	"time"
)

// Kind tags which details a record carries. It is fixed when the record is
// first created, from the file's category.
type Kind string

const (
	KindNone  Kind = ""
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// TransformDetails is the measured cost of a transform.
type TransformDetails struct {
	Duration time.Duration `msgpack:"duration"`
	CPUTime  time.Duration `msgpack:"cpu_time"`
	Memory   int64         `msgpack:"memory"`
}

// TextDetails describes a css/js file.
type TextDetails struct {
	Minified     bool              `msgpack:"minified"`
	Minification *TransformDetails `msgpack:"minification,omitempty"`
}

// ImageDetails describes an image file.
type ImageDetails struct {
	ConvertedToWebP bool              `msgpack:"converted"`
	Conversion      *TransformDetails `msgpack:"conversion,omitempty"`
}

// Details is a tagged union: exactly the field matching Kind is set.
type Details struct {
	Kind  Kind          `msgpack:"kind"`
	Text  *TextDetails  `msgpack:"text,omitempty"`
	Image *ImageDetails `msgpack:"image,omitempty"`
}

// NewTextDetails returns text details; cost is nil when nothing was minified.
func NewTextDetails(cost *TransformDetails) Details {
	return Details{Kind: KindText, Text: &TextDetails{Minified: cost != nil, Minification: cost}}
}

// NewImageDetails returns image details; cost is nil when nothing was converted.
func NewImageDetails(cost *TransformDetails) Details {
	return Details{Kind: KindImage, Image: &ImageDetails{ConvertedToWebP: cost != nil, Conversion: cost}}
}

// Processed reports whether a transform was applied and what it cost.
func (d Details) Processed() (bool, *TransformDetails) {
	switch d.Kind {
	case KindText:
		if d.Text != nil && d.Text.Minified {
			return true, d.Text.Minification
		}
	case KindImage:
		if d.Image != nil && d.Image.ConvertedToWebP {
			return true, d.Image.Conversion
		}
	}
	return false, nil
}

// Record is the stored metadata of one file.
type Record struct {
	ID             string    `msgpack:"id"`
	Owner          string    `msgpack:"owner"`
	Filename       string    `msgpack:"filename"`
	Size           int64     `msgpack:"size"`
	CreationTime   time.Time `msgpack:"created"`
	LastUpdateTime time.Time `msgpack:"updated"`
	Details        Details   `msgpack:"details"`
}

// URL is the canonical retrieval URL of the record's file.
func (r Record) URL() string {
	return "/api/files/" + url.PathEscape(r.Filename)
}

// Recorder persists records.
type Recorder interface {
	// Upsert creates or updates the record for (owner, filename).
	Upsert(ctx context.Context, owner, filename string, size int64, details Details) (Record, error)

	// List returns the owner's records ordered by filename.
	List(ctx context.Context, owner string) ([]Record, error)
}
