package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeFingerprint_SmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	fp, err := ComputeFingerprint(path)
	require.NoError(t, err)
	require.Equal(t, int64(11), fp.Size)
	require.NotEmpty(t, fp.Hash)

	fp2, err := ComputeFingerprint(path)
	require.NoError(t, err)
	require.Equal(t, fp, fp2)
}

func TestProcessedIndex_SeenAndRecord(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewProcessedIndex(filepath.Join(dir, "processed-index.json"))
	require.NoError(t, err)

	fp := Fingerprint{Size: 10, Mtime: 1, Hash: "abc"}
	require.False(t, idx.Seen("/a.jpg", fp))

	idx.Record("/a.jpg", fp)
	require.True(t, idx.Seen("/a.jpg", fp))
	require.False(t, idx.Seen("/a.jpg", Fingerprint{Size: 20, Mtime: 1, Hash: "abc"}))
}

func TestProcessedIndex_FlushAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed-index.json")

	idx, err := NewProcessedIndex(path)
	require.NoError(t, err)
	fp := Fingerprint{Size: 10, Mtime: 1, Hash: "abc"}
	idx.Record("/a.jpg", fp)
	require.NoError(t, idx.Flush())

	reloaded, err := NewProcessedIndex(path)
	require.NoError(t, err)
	require.True(t, reloaded.Seen("/a.jpg", fp))
}
