package metric

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ssimC1, ssimC2 are the standard stabilization constants for 8-bit data
// (K1=0.01, K2=0.03, L=255), following the canonical SSIM formulation.
var (
	ssimC1 = math.Pow(0.01*255, 2)
	ssimC2 = math.Pow(0.03*255, 2)
)

const ssimWindow = 8

// Compare takes the decoded base and candidate, aligns the candidate to the base's
// dimensions, and computes MSSIM, edge-SSIM, and banding risk (spec §4.3).
// rngSeed controls the banding-risk block sampler's determinism; see
// BandingRisk for details.
func Compare(base, candidate image.Image, rngSeed int64) Result {
	aligned := alignToBase(base, candidate)

	baseLum, w, h := luminance(base)
	candLum, _, _ := luminance(aligned)

	mssim := meanSSIM(baseLum, candLum, w, h)

	baseEdges := edgeMap(baseLum, w, h)
	candEdges := edgeMap(candLum, w, h)
	edgeSSIM := meanSSIM(baseEdges, candEdges, w, h)

	risk := BandingRisk(base, aligned, rngSeed)

	return Result{MSSIM: mssim, EdgeSSIM: edgeSSIM, BandingRisk: risk}
}

// alignToBase resizes candidate to base's dimensions if they differ, so
// SSIM is computed on pixel-aligned frames (spec §4.3).
func alignToBase(base, candidate image.Image) image.Image {
	bb := base.Bounds()
	cb := candidate.Bounds()
	if bb.Dx() == cb.Dx() && bb.Dy() == cb.Dy() {
		return candidate
	}
	dst := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	draw.CatmullRom.Scale(dst, dst.Bounds(), candidate, cb, draw.Over, nil)
	return dst
}

// luminance extracts an 8-bit Rec.601 luma plane.
func luminance(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			plane[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return plane, w, h
}

// edgeMap produces a Sobel gradient-magnitude plane, used for edge-SSIM.
func edgeMap(lum []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(lum, w, x-1, y-1) + at(lum, w, x+1, y-1) +
				-2*at(lum, w, x-1, y) + 2*at(lum, w, x+1, y) +
				-at(lum, w, x-1, y+1) + at(lum, w, x+1, y+1)
			gy := -at(lum, w, x-1, y-1) - 2*at(lum, w, x, y-1) - at(lum, w, x+1, y-1) +
				at(lum, w, x-1, y+1) + 2*at(lum, w, x, y+1) + at(lum, w, x+1, y+1)
			out[y*w+x] = math.Hypot(gx, gy)
		}
	}
	return out
}

func at(plane []float64, w, x, y int) float64 { return plane[y*w+x] }

// meanSSIM computes windowed SSIM over 8x8 blocks and multi-scale-averages
// it with a half-resolution pass, following spec §4.3's "multi-scale SSIM"
// requirement with a tractable two-level pyramid.
func meanSSIM(a, b []float64, w, h int) float64 {
	fullScale := windowedSSIM(a, b, w, h)

	halfW, halfH := w/2, h/2
	if halfW < ssimWindow || halfH < ssimWindow {
		return fullScale
	}
	aHalf := downsample2x(a, w, h)
	bHalf := downsample2x(b, w, h)
	halfScale := windowedSSIM(aHalf, bHalf, halfW, halfH)

	return 0.6*fullScale + 0.4*halfScale
}

// windowedSSIM slides a non-overlapping ssimWindow x ssimWindow block across
// both planes and averages the per-block SSIM score.
func windowedSSIM(a, b []float64, w, h int) float64 {
	if w < ssimWindow || h < ssimWindow {
		return singleWindowSSIM(a, b, 0, 0, w, h)
	}

	var sum float64
	var count int
	for y := 0; y+ssimWindow <= h; y += ssimWindow {
		for x := 0; x+ssimWindow <= w; x += ssimWindow {
			sum += singleWindowSSIM(a, b, x, y, w, h)
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return sum / float64(count)
}

func singleWindowSSIM(a, b []float64, x0, y0, w, h int) float64 {
	ww := ssimWindow
	if x0+ww > w {
		ww = w - x0
	}
	wh := ssimWindow
	if y0+wh > h {
		wh = h - y0
	}
	n := float64(ww * wh)
	if n == 0 {
		return 1
	}

	var meanA, meanB float64
	for y := y0; y < y0+wh; y++ {
		for x := x0; x < x0+ww; x++ {
			meanA += at(a, w, x, y)
			meanB += at(b, w, x, y)
		}
	}
	meanA /= n
	meanB /= n

	var varA, varB, covAB float64
	for y := y0; y < y0+wh; y++ {
		for x := x0; x < x0+ww; x++ {
			da := at(a, w, x, y) - meanA
			db := at(b, w, x, y) - meanB
			varA += da * da
			varB += db * db
			covAB += da * db
		}
	}
	varA /= n
	varB /= n
	covAB /= n

	numerator := (2*meanA*meanB + ssimC1) * (2*covAB + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

// downsample2x averages each 2x2 block, halving both dimensions.
func downsample2x(plane []float64, w, h int) []float64 {
	nw, nh := w/2, h/2
	out := make([]float64, nw*nh)
	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			sum := at(plane, w, 2*x, 2*y) + at(plane, w, 2*x+1, 2*y) +
				at(plane, w, 2*x, 2*y+1) + at(plane, w, 2*x+1, 2*y+1)
			out[y*nw+x] = sum / 4
		}
	}
	return out
}
