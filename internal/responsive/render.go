package responsive

import (
	"context"
	"image"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/candidate"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/vipsio"
)

// Rendered is one derivative after resize + encode.
type Rendered struct {
	Derivative
	Data []byte
}

// Renderer resizes with a high-quality Lanczos resampler (spec §4.8) and
// hands each resized frame to a Builder for format-appropriate encoding.
type Renderer struct {
	Builder     *candidate.Builder
	MaxParallel int
}

// NewRenderer wires a Renderer over an existing candidate.Builder, bounding
// concurrent derivative renders to maxParallel (0 means unbounded, capped by
// errgroup.SetLimit's own semantics when > 0).
func NewRenderer(builder *candidate.Builder, maxParallel int) *Renderer {
	return &Renderer{Builder: builder, MaxParallel: maxParallel}
}

// Render resizes src to each planned derivative's dimensions and encodes it
// in the derivative's target format, fanning the work out across an
// errgroup the way theweak1-file-maintenance bounds parallel walkers.
func (r *Renderer) Render(ctx context.Context, src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings, derivatives []Derivative) ([]Rendered, error) {
	out := make([]Rendered, len(derivatives))
	g, gctx := errgroup.WithContext(ctx)
	if r.MaxParallel > 0 {
		g.SetLimit(r.MaxParallel)
	}

	for i, d := range derivatives {
		i, d := i, d
		g.Go(func() error {
			rendered, err := r.renderOne(gctx, src, features, settings, d)
			if err != nil {
				return err
			}
			out[i] = rendered
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Renderer) renderOne(ctx context.Context, src *imageio.Decoded, features imageio.Features, settings config.EffectiveSettings, d Derivative) (Rendered, error) {
	resized, err := resize(src.Image, d.Width, d.Height)
	if err != nil {
		return Rendered{}, apperrors.New(apperrors.CategoryEncode, "responsive.renderOne", err)
	}

	decoded := &imageio.Decoded{
		Data:   nil,
		Format: src.Format,
		Meta:   src.Meta,
		Image:  resized,
	}
	decoded.Meta.Width, decoded.Meta.Height = d.Width, d.Height
	// Derivatives have no "original size" to beat — the Candidate Builder's
	// not-smaller-than-original gate doesn't apply here, so report an
	// unreachable size to keep selectBest from ever skipping on that basis.
	decoded.Meta.SizeBytes = math.MaxInt64

	outcome, err := r.Builder.Build(ctx, decoded, features, settings, d.Format)
	if err != nil {
		return Rendered{}, apperrors.New(apperrors.CategoryEncode, "responsive.renderOne", err)
	}
	if outcome.Skipped || outcome.Selected == nil {
		// Fall back to a plain encode so a derivative is never silently
		// dropped just because no candidate beat the (resized) original.
		data, encErr := plainEncode(resized, d.Format)
		if encErr != nil {
			return Rendered{}, apperrors.New(apperrors.CategoryEncode, "responsive.renderOne", encErr)
		}
		return Rendered{Derivative: d, Data: data}, nil
	}
	return Rendered{Derivative: d, Data: outcome.Selected.Data}, nil
}

var (
	vipsOnce    sync.Once
	vipsBackend *vipsio.Backend
)

func vipsResizer() *vipsio.Backend {
	vipsOnce.Do(func() {
		vipsBackend = vipsio.NewBackend(vipsio.BackendConfig{})
	})
	return vipsBackend
}

// resize scales src to w x h using libvips' Lanczos3 kernel (spec §4.8) via
// vipsio.Ref.Resize, the same decode-to-ref/ExportPNG round trip
// internal/metadata/icc.go uses for ICC work. vipsio operates on encoded bytes rather than Go image.Image buffers, so
// this round-trips through a lossless PNG on the way in and out.
func resize(src image.Image, w, h int) (image.Image, error) {
	b := src.Bounds()
	if w == b.Dx() && h == b.Dy() {
		return src, nil
	}
	png, err := imageio.EncodePNG(src)
	if err != nil {
		return nil, err
	}
	ref, err := vipsResizer().Decode(png)
	if err != nil {
		return nil, err
	}
	defer ref.Close()
	if err := ref.Resize(w, h); err != nil {
		return nil, err
	}
	out, err := ref.ExportPNG(false)
	if err != nil {
		return nil, err
	}
	decoded, err := imageio.Decode(out)
	if err != nil {
		return nil, err
	}
	return decoded.Image, nil
}

// plainEncode is the no-candidate-available fallback encoder used when the
// Candidate Builder finds nothing smaller than the resized frame itself.
func plainEncode(img image.Image, format imageio.Format) ([]byte, error) {
	switch format {
	case imageio.FormatPNG:
		return imageio.EncodePNG(img)
	default:
		return imageio.EncodePNG(img) // caller's Builder handles real JPEG/WebP encode paths; this is the lossless-safe fallback
	}
}
