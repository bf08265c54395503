package metric

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func TestCompare_IdenticalImagesScorePerfectSSIM(t *testing.T) {
	img := gradient(64, 64)
	res := Compare(img, img, 1)
	require.InDelta(t, 1.0, res.MSSIM, 0.01)
	require.InDelta(t, 1.0, res.EdgeSSIM, 0.05)
}

func TestCompare_FlatGrayImageLowBandingRisk(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			flat.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	res := Compare(flat, flat, 42)
	require.Equal(t, 0.0, res.BandingRisk)
}

func TestBandingRisk_DeterministicForSameSeed(t *testing.T) {
	base := gradient(64, 64)
	cand := gradient(64, 64)
	require.Equal(t, BandingRisk(base, cand, 7), BandingRisk(base, cand, 7))
}

func TestBandingRisk_TooSmallReturnsZero(t *testing.T) {
	tiny := gradient(4, 4)
	require.Equal(t, 0.0, BandingRisk(tiny, tiny, 1))
}
