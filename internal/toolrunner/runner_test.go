package toolrunner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolver_ResolvesFromExtraDirsBeforePath(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "cjpeg")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755))

	r := NewResolver(dir)
	path, err := r.Resolve("cjpeg")
	require.NoError(t, err)
	require.Equal(t, fake, path)
}

func TestResolver_CachesResolution(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "oxipng")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755))

	r := NewResolver(dir)
	first, err := r.Resolve("oxipng")
	require.NoError(t, err)

	require.NoError(t, os.Remove(fake))

	second, err := r.Resolve("oxipng")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolver_ErrorsWhenBinaryNotFound(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Resolve("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
}
