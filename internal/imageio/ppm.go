package imageio

import (
	"bytes"
	"fmt"
	"image"
)

// EncodePPM writes img as a binary P6 PPM buffer (8-bit RGB, no alpha), the
// intermediate format MozJPEG's cjpeg requires as input since it refuses
// JPEG input directly (spec §4.1).
func EncodePPM(img image.Image) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P6\n%d %d\n255\n", w, h)
	buf.Grow(w * h * 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			buf.WriteByte(byte(r >> 8))
			buf.WriteByte(byte(g >> 8))
			buf.WriteByte(byte(bl >> 8))
		}
	}
	return buf.Bytes()
}
