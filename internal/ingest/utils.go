package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doffice/constants"
)

// AllowedPath reports whether path has an accepted image or audio extension.
func AllowedPath(path string) bool {
	return constants.AllowedMediaExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
