package candidate

import (
	"context"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/metric"
	"github.com/imageopt/engine/internal/toolrunner"
)

// smartBounds returns the initial [lo,hi] search range, raised for JPEG
// graphics to avoid ringing (spec §4.4).
func smartBounds(format imageio.Format, features imageio.Features) (lo, hi int) {
	lo, hi = 10, 95
	if format == imageio.FormatJPEG && !features.IsPhoto {
		lo = 70
	}
	return lo, hi
}

// smartJPEG binary-searches JPEG quality for the smallest value whose MSSIM
// and banding risk both clear the target thresholds (spec §4.4).
func (b *Builder) smartJPEG(ctx context.Context, src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings) ([]Candidate, error) {
	ppm := imageio.EncodePPM(src.Image)
	encode := func(q int) ([]byte, error) { return b.Encoders.MozJPEG.Encode(ctx, ppm, q) }
	return b.binarySearch(src, features, settings, imageio.FormatJPEG, encode)
}

// smartWebP binary-searches WebP quality the same way.
func (b *Builder) smartWebP(ctx context.Context, src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings) ([]Candidate, error) {
	png, err := imageio.EncodePNG(src.Image)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "candidate.smartWebP", err)
	}
	encode := func(q int) ([]byte, error) {
		return b.Encoders.CWebP.Encode(ctx, png, toolrunner.EncodeOptions{
			Quality:      q,
			Effort:       settings.WebPEffort,
			NearLossless: settings.NearLossless,
			KeepMetadata: !settings.Metadata.StripEXIF,
		})
	}
	return b.binarySearch(src, features, settings, imageio.FormatWebP, encode)
}

// binarySearch implements spec §4.4's smart strategy: each step encodes at
// q = floor((lo+hi)/2); if both MSSIM and banding risk pass, record as best
// and move the upper bound down (try smaller); otherwise move the lower
// bound up. Terminates when bounds cross or the speed-derived iteration
// budget is exhausted.
func (b *Builder) binarySearch(src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings, format imageio.Format, encode func(int) ([]byte, error)) ([]Candidate, error) {
	lo, hi := smartBounds(format, features)
	threshold := settings.SmartThreshold()
	maxIter := settings.SmartIterations()

	var best *Candidate
	for i := 0; i < maxIter && lo <= hi; i++ {
		q := (lo + hi) / 2
		data, err := encode(q)
		if err != nil {
			lo = q + 1
			continue
		}
		decoded, err := imageio.Decode(data)
		if err != nil {
			lo = q + 1
			continue
		}
		result := metric.Compare(src.Image, decoded.Image, b.RNGSeed+int64(len(data)))

		pass := result.MSSIM >= threshold && result.BandingRisk < metric.BandingRiskVeto
		if pass {
			c := Candidate{
				Data:         data,
				Format:       format,
				QualityLabel: labelFor(q),
				SSIM:         result.MSSIM,
				BandingRisk:  result.BandingRisk,
				HasSSIM:      true,
			}
			if best == nil || len(c.Data) < len(best.Data) {
				best = &c
			}
			hi = q - 1
		} else {
			lo = q + 1
		}
	}

	if best == nil {
		return nil, nil
	}
	return []Candidate{*best}, nil
}
