// Package candidate implements the Candidate Builder: per-format encode
// strategies producing byte buffers with quality labels, in two modes —
// ladder (fixed quality steps) and smart (binary search on a target metric)
// (spec §4.4). Grounded on the teacher's pipeline.AdaptiveCompressStep,
// generalized from a single iterative-stepping step into the two named
// strategies the spec requires.
package candidate

import (
	"context"
	"sort"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/metric"
	"github.com/imageopt/engine/internal/toolrunner"
)

// Candidate is an encoded byte buffer produced by a single encoder
// configuration, ephemeral within one file job (spec §3).
type Candidate struct {
	Data        []byte
	Format      imageio.Format
	QualityLabel string // e.g. "q80", "lossless", "pngquant+oxipng"
	SSIM         float64
	BandingRisk  float64
	HasSSIM      bool
}

// Outcome is the Candidate Builder's final decision for a file.
type Outcome struct {
	Selected   *Candidate
	Skipped    bool
	SkipReason string
}

// jpegLadder and webpLadder are the fixed quality sequences tried in order
// (spec §4.4).
var (
	jpegLadder = []int{88, 84, 80, 76, 72}
	webpLadder = []int{82, 78, 74, 70}
)

// Encoders bundles the external tool runners the builder drives.
type Encoders struct {
	MozJPEG  *toolrunner.MozJPEG
	PNGQuant *toolrunner.PNGQuant
	Oxipng   *toolrunner.Oxipng
	CWebP    *toolrunner.CWebP
}

// NewEncoders wires all four tool runners from a shared binary Resolver.
func NewEncoders(resolver *toolrunner.Resolver) Encoders {
	return Encoders{
		MozJPEG:  toolrunner.NewMozJPEG(resolver),
		PNGQuant: toolrunner.NewPNGQuant(resolver),
		Oxipng:   toolrunner.NewOxipng(resolver),
		CWebP:    toolrunner.NewCWebP(resolver),
	}
}

// Builder runs a candidate strategy for a decoded source image.
type Builder struct {
	Encoders Encoders
	RNGSeed  int64 // banding-risk sampler seed; see SPEC_FULL.md Supplemented Features #2
}

// NewBuilder creates a Builder. rngSeed is a fixed base seed; each metric
// comparison adds the candidate buffer's byte length to it, so repeat runs
// over the same bytes sample the same banding blocks; see metric.BandingRisk.
func NewBuilder(encoders Encoders, rngSeed int64) *Builder {
	return &Builder{Encoders: encoders, RNGSeed: rngSeed}
}

// Build selects a strategy (ladder unless smart is requested and the format
// supports it — PNG never does, spec Open Question #1) and runs it.
func (b *Builder) Build(ctx context.Context, src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings, targetFormat imageio.Format) (Outcome, error) {
	useSmart := settings.QualityMode == config.QualitySmart && targetFormat != imageio.FormatPNG

	var candidates []Candidate
	var err error
	switch targetFormat {
	case imageio.FormatJPEG:
		if useSmart {
			candidates, err = b.smartJPEG(ctx, src, features, settings)
		} else {
			candidates, err = b.ladderJPEG(ctx, src, settings)
		}
	case imageio.FormatWebP:
		if useSmart {
			candidates, err = b.smartWebP(ctx, src, features, settings)
		} else {
			candidates, err = b.ladderWebP(ctx, src, settings)
		}
	case imageio.FormatPNG:
		candidates, err = b.ladderPNG(ctx, src, settings)
	default:
		return Outcome{}, apperrors.New(apperrors.CategoryUnsupported, "candidate.Build", apperrors.ErrUnsupportedFormat)
	}
	if err != nil {
		return Outcome{}, err
	}

	return selectBest(candidates, src.Meta.SizeBytes, settings.AllowLarger)
}

// selectBest applies spec §4.4's selection rule: smallest-bytes accepted
// candidate; if none accepted, skip(no-candidate); if the best is not
// smaller than the original and allowLarger is false, skip(larger).
func selectBest(candidates []Candidate, originalSize int64, allowLarger bool) (Outcome, error) {
	if len(candidates) == 0 {
		return Outcome{Skipped: true, SkipReason: "no candidate met threshold"}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i].Data) < len(candidates[j].Data) })
	best := candidates[0]

	if int64(len(best.Data)) >= originalSize && !allowLarger {
		return Outcome{Skipped: true, SkipReason: "candidate not smaller than original"}, nil
	}

	c := best
	return Outcome{Selected: &c}, nil
}
