// Package responsive implements the Responsive Derivative Engine: plans and
// renders a set of width/DPR derivatives from a single source image, plus
// the HTML snippets and JSON manifest describing them (spec §4.8).
// Grounded on the teacher's pipeline.ResizeStep for the resize/encode shape,
// fanned out with golang.org/x/sync/errgroup the way the rest of the pack's
// concurrent repos bound parallel work.
package responsive

import (
	"sort"
	"strconv"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

// Derivative describes one planned output before it is rendered.
type Derivative struct {
	Width   int
	Height  int
	DPR     float64 // 0 when not in dpr mode
	Format  imageio.Format
	Suffix  string // "-320w" or "@2x"
	IsFallback bool // true for the keep/webp-fallback non-webp sibling
}

// Plan expands settings into the concrete set of derivatives to render for
// an image of the given source dimensions (spec §4.8).
func Plan(settings config.ResponsiveSettings, srcWidth, srcHeight int) []Derivative {
	var sizes []sizeSpec
	switch settings.Mode {
	case config.ResponsiveDPR:
		sizes = dprSizes(settings, srcWidth)
	default:
		sizes = widthSizes(settings, srcWidth)
	}

	aspect := 1.0
	if srcWidth > 0 {
		aspect = float64(srcHeight) / float64(srcWidth)
	}

	formats := formatsFor(settings.FormatPolicy)

	var out []Derivative
	for _, s := range sizes {
		if s.width > srcWidth && !settings.AllowUpscale {
			continue
		}
		h := int(float64(s.width)*aspect + 0.5)
		for _, f := range formats {
			out = append(out, Derivative{
				Width:      s.width,
				Height:     h,
				DPR:        s.dpr,
				Format:     f.format,
				Suffix:     s.suffix,
				IsFallback: f.isFallback,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Width < out[j].Width })
	return out
}

type sizeSpec struct {
	width  int
	dpr    float64
	suffix string
}

func widthSizes(settings config.ResponsiveSettings, srcWidth int) []sizeSpec {
	widths := append([]int(nil), settings.Widths...)
	if settings.IncludeOriginal {
		widths = append(widths, srcWidth)
	}
	sort.Ints(widths)
	widths = dedupInts(widths)

	out := make([]sizeSpec, 0, len(widths))
	for _, w := range widths {
		out = append(out, sizeSpec{width: w, suffix: suffixForWidth(w)})
	}
	return out
}

func dprSizes(settings config.ResponsiveSettings, srcWidth int) []sizeSpec {
	base := settings.DPRBaseWidth
	if base <= 0 {
		base = srcWidth
	}
	dprs := []float64{1, 2, 3}
	out := make([]sizeSpec, 0, len(dprs))
	for _, d := range dprs {
		out = append(out, sizeSpec{
			width:  int(float64(base)*d + 0.5),
			dpr:    d,
			suffix: suffixForDPR(d),
		})
	}
	return out
}

func suffixForWidth(w int) string {
	return "-" + strconv.Itoa(w) + "w"
}

func suffixForDPR(d float64) string {
	return "@" + strconv.Itoa(int(d)) + "x"
}

func dedupInts(in []int) []int {
	out := in[:0:0]
	seen := make(map[int]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

type formatSpec struct {
	format     imageio.Format
	isFallback bool
}

// formatsFor resolves spec §4.8's format-set rule: webp-only -> {webp};
// webp-fallback -> {webp, source-derived fallback}; keep -> {source-derived}.
// The source-derived format itself is resolved by the caller (it depends on
// the original file's format), so "keep"/"fallback" entries use FormatUnknown
// as a placeholder the caller must substitute via ResolveSourceFormat.
func formatsFor(policy config.FormatPolicy) []formatSpec {
	switch policy {
	case config.FormatWebPOnly:
		return []formatSpec{{format: imageio.FormatWebP}}
	case config.FormatWebPFallback:
		return []formatSpec{{format: imageio.FormatWebP}, {format: imageio.FormatUnknown, isFallback: true}}
	case config.FormatKeep:
		fallthrough
	default:
		return []formatSpec{{format: imageio.FormatUnknown, isFallback: true}}
	}
}

// ResolveSourceFormat substitutes the real source-derived format into any
// FormatUnknown placeholder entries Plan produced, since Plan itself doesn't
// know the originating file's format.
func ResolveSourceFormat(derivatives []Derivative, sourceFormat imageio.Format) []Derivative {
	out := make([]Derivative, len(derivatives))
	for i, d := range derivatives {
		if d.Format == imageio.FormatUnknown {
			d.Format = sourceFormat
		}
		out[i] = d
	}
	return out
}
