package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	minjs "github.com/tdewolff/minify/v2/js"
	_ "golang.org/x/image/webp"
)

// TransformKind names an optional content rewrite.
type TransformKind string

const (
	TransformNone    TransformKind = "none"
	TransformMinify  TransformKind = "minify"
	TransformConvert TransformKind = "convert"
)

// TransformResult is the outcome of Transform.
type TransformResult struct {
	Kind TransformKind
	// Applied is false when nothing was rewritten, e.g. converting a WebP.
	Applied  bool
	Filename string
	Content  []byte
	Size     int64
	Profile  Profile
}

var textMediaTypes = map[string]string{
	"css": "text/css",
	"js":  "application/javascript",
}

var minifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	m.AddFunc("application/javascript", minjs.Minify)
	return m
}()

// ResolveTransform picks the transform for a file type. Text can only be
// minified and images can only be converted; the other flag is dropped.
func ResolveTransform(ft FileType, wantMinify, wantConvert bool) TransformKind {
	switch {
	case ft.Category == CategoryText && wantMinify:
		return TransformMinify
	case ft.Category == CategoryImage && wantConvert:
		return TransformConvert
	default:
		return TransformNone
	}
}

// Transform applies kind to content and measures the cost of doing so.
func (p *Processor) Transform(kind TransformKind, ft FileType, filename string, content []byte) (TransformResult, error) {
	result := TransformResult{
		Kind:     kind,
		Filename: filename,
		Content:  content,
		Size:     int64(len(content)),
	}

	var run func() error
	switch kind {
	case TransformNone:
		return result, nil
	case TransformMinify:
		if ft.Category != CategoryText {
			return result, fmt.Errorf("cannot minify %s", ft)
		}
		run = func() error {
			out, err := minifyText(ft.Subtype, content)
			if err != nil {
				return err
			}
			result.Content = out
			result.Applied = true
			return nil
		}
	case TransformConvert:
		if ft.Category != CategoryImage {
			return result, fmt.Errorf("cannot convert %s", ft)
		}
		if ft.Subtype == "webp" {
			return result, nil
		}
		run = func() error {
			out, err := convertToWebP(content)
			if err != nil {
				return err
			}
			result.Content = out
			result.Filename = WebPFilename(filename)
			result.Applied = true
			return nil
		}
	default:
		return result, fmt.Errorf("unknown transform %q", kind)
	}

	profile, err := measure(run)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", kind, filename, err)
	}
	result.Profile = profile
	result.Size = int64(len(result.Content))

	p.logger.Debug("transformed file",
		"filename", filename,
		"kind", kind,
		"size", result.Size,
		"wall", profile.WallTime,
		"cpu", profile.CPUTime,
		"memory", profile.MemoryUsage)

	return result, nil
}

func minifyText(subtype string, content []byte) ([]byte, error) {
	mediatype, found := textMediaTypes[subtype]
	if !found {
		return nil, fmt.Errorf("no minifier for %s", subtype)
	}
	return minifier.Bytes(mediatype, content)
}

func convertToWebP(content []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("encoding webp: %w", err)
	}
	return buf.Bytes(), nil
}

// WebPFilename replaces the extension of filename with .webp.
func WebPFilename(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename)) + ".webp"
}
