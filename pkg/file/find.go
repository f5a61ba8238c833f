package file

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FindRecentAfter returns the files under dir modified after startTime,
// restricted to exts when any are given. Results are sorted.
func FindRecentAfter(dir string, startTime time.Time, exts ...string) ([]string, error) {
	var recentFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo,
		err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !info.ModTime().After(startTime) {
			return nil
		}
		if len(exts) > 0 && !HasExt(path, exts...) {
			return nil
		}
		recentFiles = append(recentFiles, path)
		return nil
	})

	sort.Strings(recentFiles)
	return recentFiles, err
}

// FindAll returns every file under dir with one of exts.
func FindAll(dir string, exts ...string) ([]string, error) {
	return FindRecentAfter(dir, time.Time{}, exts...)
}
