package imageio

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const analysisMaxEdge = 1024

// Analyze downscales img to at most analysisMaxEdge on its longest edge,
// converts to a luminance plane, and extracts the features the Candidate
// Builder uses to bias its search bounds (spec §4.2).
func Analyze(img image.Image) Features {
	small := downscaleForAnalysis(img)
	lum, w, h := luminancePlane(small)

	var edgeSum, lapSum float64
	var flatCount int
	total := (w - 2) * (h - 2)
	if total <= 0 {
		return Features{}
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := sobelX(lum, w, x, y)
			gy := sobelY(lum, w, x, y)
			mag := math.Hypot(gx, gy)
			edgeSum += mag
			if mag < 10 {
				flatCount++
			}

			lap := laplacian(lum, w, x, y)
			lapSum += math.Abs(lap)
		}
	}

	edgeDensity := edgeSum / float64(total)
	textureLevel := lapSum / float64(total)
	flatRatio := float64(flatCount) / float64(total)

	return Features{
		EdgeDensity:     edgeDensity,
		TextureLevel:    textureLevel,
		FlatRegionRatio: flatRatio,
		IsGrayscale:     isGrayscaleImage(small),
		IsPhoto:         textureLevel > 5 && flatRatio < 0.8,
	}
}

func downscaleForAnalysis(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= analysisMaxEdge {
		return img
	}
	scale := float64(analysisMaxEdge) / float64(longest)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// luminancePlane returns a row-major float64 luminance plane in sRGB space
// (Rec. 601 luma weights) along with its width and height.
func luminancePlane(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			plane[y*w+x] = lum
		}
	}
	return plane, w, h
}

func at(plane []float64, w, x, y int) float64 { return plane[y*w+x] }

// sobelX approximates the horizontal gradient at (x,y) via a 3x3 Sobel kernel.
func sobelX(plane []float64, w, x, y int) float64 {
	return -at(plane, w, x-1, y-1) + at(plane, w, x+1, y-1) +
		-2*at(plane, w, x-1, y) + 2*at(plane, w, x+1, y) +
		-at(plane, w, x-1, y+1) + at(plane, w, x+1, y+1)
}

// sobelY approximates the vertical gradient at (x,y) via a 3x3 Sobel kernel.
func sobelY(plane []float64, w, x, y int) float64 {
	return -at(plane, w, x-1, y-1) - 2*at(plane, w, x, y-1) - at(plane, w, x+1, y-1) +
		at(plane, w, x-1, y+1) + 2*at(plane, w, x, y+1) + at(plane, w, x+1, y+1)
}

// laplacian approximates the second-derivative texture response at (x,y).
func laplacian(plane []float64, w, x, y int) float64 {
	center := at(plane, w, x, y)
	return at(plane, w, x-1, y) + at(plane, w, x+1, y) +
		at(plane, w, x, y-1) + at(plane, w, x, y+1) - 4*center
}

func isGrayscaleImage(img image.Image) bool {
	b := img.Bounds()
	// Sample a grid rather than every pixel to keep analysis fast.
	stepX := maxInt(1, b.Dx()/64)
	stepY := maxInt(1, b.Dy()/64)
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
