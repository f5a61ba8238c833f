package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestFindRecentAfter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	writeFile(t, filepath.Join(dir, "old.txt"), old)
	writeFile(t, filepath.Join(dir, "new.txt"), now)
	writeFile(t, filepath.Join(dir, "sub", "new.MD"), now)
	writeFile(t, filepath.Join(dir, "sub", "new.pdf"), now)

	got, err := FindRecentAfter(dir, now.Add(-time.Hour), ".txt", "md")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "new.txt"),
		filepath.Join(dir, "sub", "new.MD"),
	}, got)

	all, err := FindAll(dir)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFindRecentAfter_MissingDir(t *testing.T) {
	_, err := FindRecentAfter(filepath.Join(t.TempDir(), "missing"), time.Time{})
	assert.Error(t, err)
}

func TestHasExt(t *testing.T) {
	assert.True(t, HasExt("a/b.TXT", ".txt"))
	assert.True(t, HasExt("b.md", "txt", "md"))
	assert.False(t, HasExt("b.markdown", ".md"))
	assert.False(t, HasExt("README", ".md"))
}

func TestRelSlash(t *testing.T) {
	root := filepath.Join("docs", "legal")
	assert.Equal(t, "gst/returns.md", RelSlash(root, filepath.Join(root, "gst", "returns.md")))
	assert.Equal(t, "other/x.txt", RelSlash(root, filepath.Join("other", "x.txt")))
	assert.Equal(t, "x.txt", RelSlash("", "./x.txt"))
}
