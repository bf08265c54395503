package pathplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

func TestPlan_Subfolder(t *testing.T) {
	root := "/photos"
	req := Request{
		Input:        "/photos/2026/cat.png",
		CommonRoot:   root,
		OutputMode:   config.OutputSubfolder,
		OutputFormat: imageio.FormatJPEG,
		Width:        100, Height: 100,
	}
	out, err := Plan(req)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "Optimized", "2026", "cat.jpg"), out)
}

func TestPlan_Replace(t *testing.T) {
	req := Request{
		Input:        "/photos/cat.jpg",
		CommonRoot:   "/photos",
		OutputMode:   config.OutputReplace,
		OutputFormat: imageio.FormatWebP,
	}
	out, err := Plan(req)
	require.NoError(t, err)
	require.Equal(t, "/photos/cat.webp", out)
}

func TestPlan_ReplaceRejectsTIFF(t *testing.T) {
	req := Request{
		Input:        "/photos/scan.tiff",
		CommonRoot:   "/photos",
		OutputMode:   config.OutputReplace,
		OutputFormat: imageio.FormatJPEG,
	}
	_, err := Plan(req)
	require.Error(t, err)
}

func TestPlan_RejectsEscapingRoot(t *testing.T) {
	req := Request{
		Input:        "/other/cat.png",
		CommonRoot:   "/photos",
		OutputMode:   config.OutputSubfolder,
		OutputFormat: imageio.FormatJPEG,
	}
	_, err := Plan(req)
	require.Error(t, err)
}

func TestPlan_NamingTemplate(t *testing.T) {
	req := Request{
		Input:          "/photos/cat.png",
		CommonRoot:     "/photos",
		OutputMode:     config.OutputSubfolder,
		NamingTemplate: "{name}-{width}x{height}",
		OutputFormat:   imageio.FormatWebP,
		Width:          320, Height: 240,
	}
	out, err := Plan(req)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/photos", "Optimized", "cat-320x240.webp"), out)
}

func TestDeconflict_AppendsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	resolved, err := Deconflict(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "out-2.png"), resolved)
}

func TestDeconflict_NoCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	resolved, err := Deconflict(path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
}
