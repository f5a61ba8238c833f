package file

import (
	"path/filepath"
	"strings"
)

// HasExt reports whether path ends with one of exts, ignoring case.
// Extensions may be given with or without the leading dot.
func HasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}

// RelSlash returns path relative to root with forward slashes, or the
// cleaned path itself when it is not below root.
func RelSlash(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}
