package metric

import (
	"image"
	"math/rand"
)

const (
	bandingBlockSize   = 32
	bandingBlockCount  = 10
	bandingFlatDelta   = 5  // max neighbouring horizontal luma delta to call a block "flat"
)

// BandingRisk estimates loss of colour gradation in flat regions by sampling
// bandingBlockCount random 32x32 blocks and comparing the distinct-colour
// count between base and candidate within blocks the base frame shows as flat
// (spec §4.3).
//
// rngSeed makes the block sampler reproducible: production callers pass the
// Builder's fixed seed plus the candidate buffer's length (see SPEC_FULL.md
// Supplemented Features #2); tests pass a fixed value.
func BandingRisk(base, candidate image.Image, rngSeed int64) float64 {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < bandingBlockSize || h < bandingBlockSize {
		return 0
	}

	rng := rand.New(rand.NewSource(rngSeed))
	maxX := w - bandingBlockSize
	maxY := h - bandingBlockSize

	var totalRisk float64
	var flatBlocks int

	for i := 0; i < bandingBlockCount; i++ {
		x0 := b.Min.X + rng.Intn(maxX+1)
		y0 := b.Min.Y + rng.Intn(maxY+1)
		region := image.Rect(x0, y0, x0+bandingBlockSize, y0+bandingBlockSize)

		if !isFlatBlock(base, region) {
			continue
		}
		flatBlocks++

		baseColours := distinctColours(base, region)
		candColours := distinctColours(candidate, region)

		if candColours >= baseColours {
			continue
		}
		deficit := float64(baseColours-candColours) / float64(baseColours)
		totalRisk += deficit
	}

	if flatBlocks == 0 {
		return 0
	}
	return totalRisk / float64(bandingBlockCount)
}

// isFlatBlock reports whether neighbouring horizontal luma deltas within
// region stay within bandingFlatDelta throughout (spec §4.3).
func isFlatBlock(img image.Image, region image.Rectangle) bool {
	for y := region.Min.Y; y < region.Max.Y; y++ {
		var prev int
		for x := region.Min.X; x < region.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := int(0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8))
			if x > region.Min.X {
				delta := lum - prev
				if delta < 0 {
					delta = -delta
				}
				if delta > bandingFlatDelta {
					return false
				}
			}
			prev = lum
		}
	}
	return true
}

// distinctColours counts unique quantized RGB colours within region.
func distinctColours(img image.Image, region image.Rectangle) int {
	seen := make(map[uint32]struct{}, bandingBlockSize*bandingBlockSize)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			key := uint32(r>>8)<<16 | uint32(g>>8)<<8 | uint32(bl>>8)
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}
