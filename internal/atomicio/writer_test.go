package atomicio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/imageio"
)

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 1, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWrite_CreatesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.png")
	data := encodedPNG(t)

	backupPath, err := Write(target, data, imageio.FormatPNG, nil, "")
	require.NoError(t, err)
	require.Empty(t, backupPath)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, data, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp files")
}

func TestWrite_BacksUpExistingTarget(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	target := filepath.Join(dir, "out.png")
	original := encodedPNG(t)
	require.NoError(t, os.WriteFile(target, original, 0o644))

	newData := encodedPNG(t)
	backupPath, err := Write(target, newData, imageio.FormatPNG, nil, backupDir)
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	backedUp, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	require.Equal(t, original, backedUp)

	final, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, newData, final)
}

func TestWrite_RejectsEmptyBuffer(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.png")

	_, err := Write(target, nil, imageio.FormatPNG, nil, "")
	require.Error(t, err)
	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr))
}

func TestWrite_RejectsFormatMismatch(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.png")
	data := encodedPNG(t)

	_, err := Write(target, data, imageio.FormatJPEG, nil, "")
	require.Error(t, err)
	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr))
}
