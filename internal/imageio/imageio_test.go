package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticRGBA(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, syntheticRGBA(8, 8)))
	return buf.Bytes()
}

func encodedJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, syntheticRGBA(8, 8), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDetectFormat_RecognizesMagicBytes(t *testing.T) {
	require.Equal(t, FormatPNG, DetectFormat(encodedPNG(t)))
	require.Equal(t, FormatJPEG, DetectFormat(encodedJPEG(t)))
	require.Equal(t, FormatUnknown, DetectFormat([]byte("not an image")))
}

func TestFromExtension(t *testing.T) {
	require.Equal(t, FormatJPEG, FromExtension(".jpg"))
	require.Equal(t, FormatJPEG, FromExtension(".jpeg"))
	require.Equal(t, FormatTIFF, FromExtension(".tiff"))
	require.Equal(t, FormatUnknown, FromExtension(".gif"))
}

func TestDecode_PopulatesMetadataAndPixels(t *testing.T) {
	decoded, err := Decode(encodedPNG(t))
	require.NoError(t, err)
	require.Equal(t, FormatPNG, decoded.Format)
	require.Equal(t, 8, decoded.Meta.Width)
	require.Equal(t, 8, decoded.Meta.Height)
	require.NotNil(t, decoded.Image)
}

func TestDecode_RejectsEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}

func TestDecode_RejectsUnknownFormat(t *testing.T) {
	_, err := Decode([]byte("not an image"))
	require.Error(t, err)
}

func TestEncodePNG_RoundTrips(t *testing.T) {
	data, err := EncodePNG(syntheticRGBA(4, 4))
	require.NoError(t, err)
	require.Equal(t, FormatPNG, DetectFormat(data))
}

func TestEncodePPM_HasCorrectHeader(t *testing.T) {
	data := EncodePPM(syntheticRGBA(2, 3))
	require.True(t, bytes.HasPrefix(data, []byte("P6\n2 3\n255\n")))
}

func TestFormat_Ext(t *testing.T) {
	require.Equal(t, ".jpg", FormatJPEG.Ext())
	require.Equal(t, ".png", FormatPNG.Ext())
	require.Equal(t, ".webp", FormatWebP.Ext())
}
