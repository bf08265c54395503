package metadata

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

func TestResolve_WebSafePreset(t *testing.T) {
	s := Resolve(config.MetadataSettings{Preset: config.MetaWebSafe})
	require.True(t, s.StripEXIF)
	require.True(t, s.GPSClean)
	require.Equal(t, config.ICCConvertToSRGB, s.ICC)
}

func TestResolve_KeepCameraInfoPreset(t *testing.T) {
	s := Resolve(config.MetadataSettings{Preset: config.MetaKeepCameraInfo})
	require.False(t, s.StripEXIF)
	require.True(t, s.KeepCamera)
}

func TestProcess_DisabledIsNoOp(t *testing.T) {
	decoded := &imageio.Decoded{
		Meta:  imageio.Metadata{Orientation: 6, HasEXIF: true, EXIF: map[string]string{"Make": "x"}},
		Image: image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
	out, report := Process(decoded, config.MetadataSettings{Enabled: false})
	require.False(t, report.OrientationBaked)
	require.Equal(t, decoded.Meta.Orientation, out.Meta.Orientation)
}

func TestProcess_BakesOrientationAndStripsEXIF(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	decoded := &imageio.Decoded{
		Meta: imageio.Metadata{
			Width: 3, Height: 2, Orientation: 6, HasEXIF: true,
			EXIF: map[string]string{"Make": "x", "GPSLatitude": "1"},
		},
		Image: img,
	}
	settings := config.MetadataSettings{Enabled: true, Preset: config.MetaCustom, StripEXIF: true, ICC: config.ICCKeep}

	out, report := Process(decoded, settings)
	require.True(t, report.OrientationBaked)
	require.Equal(t, 1, out.Meta.Orientation)
	require.True(t, report.StrippedEXIF)
	require.False(t, out.Meta.HasEXIF)
	require.Nil(t, out.Meta.EXIF)
	// orientation 6 is a 90-degree rotation: width/height swap.
	require.Equal(t, 2, out.Image.Bounds().Dx())
	require.Equal(t, 3, out.Image.Bounds().Dy())
}

func TestProcess_GPSCleanWithoutFullStripRemovesOnlyGPSKeys(t *testing.T) {
	decoded := &imageio.Decoded{
		Meta: imageio.Metadata{
			HasEXIF: true,
			EXIF:    map[string]string{"Make": "x", "GPSLatitude": "1"},
		},
		Image: image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
	settings := config.MetadataSettings{Enabled: true, Preset: config.MetaCustom, GPSClean: true, ICC: config.ICCKeep}

	out, report := Process(decoded, settings)
	require.True(t, report.GPSStripped)
	require.False(t, report.StrippedEXIF)
	require.Contains(t, out.Meta.EXIF, "Make")
	require.NotContains(t, out.Meta.EXIF, "GPSLatitude")
}

func TestProcess_KeepCameraAndGPSCleanEscalatesToStrip(t *testing.T) {
	decoded := &imageio.Decoded{
		Meta:  imageio.Metadata{HasEXIF: true, EXIF: map[string]string{"Make": "x"}},
		Image: image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
	settings := config.MetadataSettings{Enabled: true, Preset: config.MetaCustom, KeepCamera: true, GPSClean: true, ICC: config.ICCKeep}

	_, report := Process(decoded, settings)
	require.True(t, report.EscalatedToStrip)
	require.True(t, report.StrippedEXIF)
}
