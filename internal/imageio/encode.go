package imageio

import (
	"bytes"
	"image"
	"image/png"
)

// EncodePNG losslessly encodes img as PNG, used as the intermediate format
// fed to cwebp and pngquant/oxipng (both accept PNG input directly).
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
