package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover_FiltersIgnoredAndUnsupported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"))
	writeFile(t, filepath.Join(root, "b.txt"))
	writeFile(t, filepath.Join(root, "node_modules", "c.png"))
	writeFile(t, filepath.Join(root, ".git", "d.png"))
	writeFile(t, filepath.Join(root, "sub", "e.webp"))
	writeFile(t, filepath.Join(root, "sub", ".DS_Store"))
	writeFile(t, filepath.Join(root, "sub", "~lock.png"))
	writeFile(t, filepath.Join(root, "sub", "partial.png.tmp"))

	found, err := Discover([]string{root})
	require.NoError(t, err)
	require.Len(t, found, 2)

	var names []string
	for _, f := range found {
		names = append(names, filepath.Base(f))
	}
	require.Contains(t, names, "a.jpg")
	require.Contains(t, names, "e.webp")
}

func TestCommonRoot_MultiplePaths(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "2026", "jan", "a.jpg")
	b := filepath.Join(root, "2026", "feb", "b.jpg")
	writeFile(t, a)
	writeFile(t, b)

	got := CommonRoot([]string{a, b})
	require.Equal(t, filepath.Join(root, "2026"), got)
}

func TestCommonRoot_SinglePath(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "x", "a.jpg")
	writeFile(t, a)

	got := CommonRoot([]string{a})
	require.Equal(t, filepath.Join(root, "x"), got)
}

func TestShouldIgnoreFile_RecognizesPatterns(t *testing.T) {
	require.True(t, shouldIgnoreFile("Thumbs.db"))
	require.True(t, shouldIgnoreFile("~cat.jpg"))
	require.True(t, shouldIgnoreFile("._cat.jpg"))
	require.True(t, shouldIgnoreFile("photo.jpg.part"))
	require.False(t, shouldIgnoreFile("cat.jpg"))
}

func TestIsSupportedExtension(t *testing.T) {
	require.True(t, isSupportedExtension(".JPG"))
	require.True(t, isSupportedExtension(".tiff"))
	require.False(t, isSupportedExtension(".gif"))
}
