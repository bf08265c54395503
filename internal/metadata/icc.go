package metadata

import (
	"image"
	"sync"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/vipsio"
)

// vips owns the one libvips runtime this process needs for ICC transforms;
// stdlib image/color has no ICC profile support, so this is the one place
// metadata processing reaches outside the standard library (spec §4.5.2).
var (
	vipsOnce sync.Once
	vips     *vipsio.Backend
)

func vipsBackend() *vipsio.Backend {
	vipsOnce.Do(func() {
		vips = vipsio.NewBackend(vipsio.BackendConfig{})
	})
	return vips
}

// applyICC runs the ICC policy through libvips on the original encoded
// bytes and, if it changed anything, re-decodes the result back into the
// Decoded's pixel buffer. A transform failure falls back to the untouched
// image rather than failing the whole job.
func applyICC(decoded *imageio.Decoded, mode config.ICCMode) image.Image {
	if mode == config.ICCKeep || len(decoded.Data) == 0 {
		return decoded.Image
	}

	ref, err := vipsBackend().Decode(decoded.Data)
	if err != nil {
		return decoded.Image
	}
	defer ref.Close()

	switch mode {
	case config.ICCConvertToSRGB:
		if err := ref.ConvertToSRGB(); err != nil {
			return decoded.Image
		}
	case config.ICCStrip:
		if err := ref.StripICC(); err != nil {
			return decoded.Image
		}
	}

	png, err := ref.ExportPNG(false)
	if err != nil {
		return decoded.Image
	}
	out, err := imageio.Decode(png)
	if err != nil {
		return decoded.Image
	}
	return out.Image
}
