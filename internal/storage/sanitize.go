package storage

import (
	"strings"

	"github.com/gosimple/slug"
)

// SanitizeFilename slugifies the base name and the extension separately, so
// "My Site.CSS" becomes "my-site.css". A name that slugifies to nothing
// becomes "file".
func SanitizeFilename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}

	name, ext := filename, ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		name, ext = filename[:i], filename[i+1:]
	}

	name = slug.Make(name)
	if name == "" {
		name = "file"
	}
	ext = slug.Make(ext)
	if ext == "" {
		return name
	}
	return name + "." + ext
}
