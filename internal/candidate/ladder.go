package candidate

import (
	"context"
	"image"
	"strconv"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/metric"
	"github.com/imageopt/engine/internal/toolrunner"
)

// ladderJPEG enumerates jpegLadder qualities, encoding each via MozJPEG and
// keeping those whose MSSIM clears the configured threshold (spec §4.4).
func (b *Builder) ladderJPEG(ctx context.Context, src *imageio.Decoded, settings config.EffectiveSettings) ([]Candidate, error) {
	ppm := imageio.EncodePPM(src.Image)
	threshold := settings.SSIMThreshold()

	var out []Candidate
	for _, q := range jpegLadder {
		data, err := b.Encoders.MozJPEG.Encode(ctx, ppm, q)
		if err != nil {
			continue // a single candidate failure is swallowed (spec §7)
		}
		c, ok, err := b.acceptCandidate(data, imageio.FormatJPEG, q, src.Image, threshold)
		if err != nil {
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ladderWebP enumerates webpLadder qualities via cwebp.
func (b *Builder) ladderWebP(ctx context.Context, src *imageio.Decoded, settings config.EffectiveSettings) ([]Candidate, error) {
	png, err := imageio.EncodePNG(src.Image)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "candidate.ladderWebP", err)
	}
	threshold := settings.SSIMThreshold()

	var out []Candidate
	for _, q := range webpLadder {
		data, err := b.Encoders.CWebP.Encode(ctx, png, toolrunner.EncodeOptions{
			Quality:      q,
			Effort:       settings.WebPEffort,
			NearLossless: settings.NearLossless,
			KeepMetadata: !settings.Metadata.StripEXIF,
		})
		if err != nil {
			continue
		}
		c, ok, err := b.acceptCandidate(data, imageio.FormatWebP, q, src.Image, threshold)
		if err != nil {
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ladderPNG always includes the lossless oxipng candidate (no SSIM check —
// it's lossless) plus pngquant+oxipng candidates over the configured quality
// range, expanded when AggressivePNG is set (spec §4.4).
func (b *Builder) ladderPNG(ctx context.Context, src *imageio.Decoded, settings config.EffectiveSettings) ([]Candidate, error) {
	png, err := imageio.EncodePNG(src.Image)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "candidate.ladderPNG", err)
	}

	var out []Candidate

	strip := settings.Metadata.StripEXIF
	lossless, err := b.Encoders.Oxipng.Encode(ctx, png, strip)
	if err == nil {
		out = append(out, Candidate{Data: lossless, Format: imageio.FormatPNG, QualityLabel: "lossless"})
	}

	qMin, qMax := 80, 95
	if settings.AggressivePNG {
		qMin, qMax = 45, 85
	}
	res, err := b.Encoders.PNGQuant.Encode(ctx, png, qMin, qMax, strip)
	if err == nil && !res.Skipped {
		if oxi, err := b.Encoders.Oxipng.Encode(ctx, res.Data, strip); err == nil {
			out = append(out, Candidate{Data: oxi, Format: imageio.FormatPNG, QualityLabel: "pngquant+oxipng"})
		} else {
			out = append(out, Candidate{Data: res.Data, Format: imageio.FormatPNG, QualityLabel: "pngquant"})
		}
	}

	return out, nil
}

// acceptCandidate decodes data, compares it against srcImage via
// metric.Compare, and reports whether it clears threshold. Banding risk is
// always computed and attached, but only vetoes in the smart search
// (spec §4.4); the ladder strategy relies solely on the MSSIM gate.
func (b *Builder) acceptCandidate(data []byte, format imageio.Format, quality int, srcImage image.Image, threshold float64) (Candidate, bool, error) {
	decoded, err := imageio.Decode(data)
	if err != nil {
		return Candidate{}, false, err
	}
	result := metric.Compare(srcImage, decoded.Image, b.RNGSeed+int64(len(data)))

	c := Candidate{
		Data:         data,
		Format:       format,
		QualityLabel: labelFor(quality),
		SSIM:         result.MSSIM,
		BandingRisk:  result.BandingRisk,
		HasSSIM:      true,
	}
	if threshold <= 0 {
		return c, true, nil
	}
	return c, result.MSSIM >= threshold, nil
}

func labelFor(quality int) string {
	return "q" + strconv.Itoa(quality)
}
