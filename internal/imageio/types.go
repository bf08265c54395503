// Package imageio loads images, exposes their metadata, and extracts the
// downscaled luminance/edge/texture features the Candidate Builder uses to
// bias its search (spec §4.2). Layout follows the teacher's core/types.go.
package imageio

import "image"

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatTIFF    Format = "tiff"
	FormatUnknown Format = "unknown"
)

// Ext returns the canonical output extension for a format (spec §4.7:
// "Extension follows produced format (jpeg→.jpg, else format name)").
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Metadata holds information extracted during decode, without necessarily
// retaining the full pixel buffer.
type Metadata struct {
	Width       int
	Height      int
	Format      Format
	HasAlpha    bool
	SizeBytes   int64
	HasEXIF     bool
	EXIF        map[string]string
	Orientation int // EXIF orientation tag, 1-8; 1 = normal
}

// Decoded is the in-memory representation of a loaded image: the original
// bytes, decoded metadata, and the pixel buffer.
type Decoded struct {
	Data   []byte // original encoded bytes
	Format Format
	Meta   Metadata
	Image  image.Image // decoded pixel buffer, filled in by Decode
}

// Features summarizes a downscaled analysis pass used to bias candidate
// search bounds (spec §4.2).
type Features struct {
	EdgeDensity    float64 // mean Sobel magnitude
	TextureLevel   float64 // mean Laplacian magnitude
	FlatRegionRatio float64 // fraction of pixels with gradient < 10
	IsGrayscale    bool
	IsPhoto        bool // textureLevel > 5 AND flatRegionRatio < 0.8
}
