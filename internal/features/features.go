// Package features links every feature package into the binary so their init
// functions register routes and schemas.
package features

import (
	_ "github.com/chromy/assetcache/internal/features/files"
	_ "github.com/chromy/assetcache/internal/features/varz"
)
