package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
)

// AllowedExt reports whether a file with this extension is a document the extraction engine reads.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	if ext == "" {
		return false
	}
	return constants.KindOf(constants.MediaTypeFromPath("x."+ext)) != constants.OTHER
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
