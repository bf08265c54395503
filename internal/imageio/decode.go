package imageio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/imageopt/engine/internal/apperrors"
)

// Decode loads raw bytes into a Decoded value; pixel data is decoded
// immediately here (unlike the teacher's lazy Image field) because every
// downstream component in this engine needs pixels.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "imageio.Decode", apperrors.ErrEmptyInput)
	}
	format := DetectFormat(data)
	if format == FormatUnknown {
		return nil, apperrors.New(apperrors.CategoryUnsupported, "imageio.Decode", apperrors.ErrUnsupportedFormat)
	}

	img, err := decodePixels(data, format)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "imageio.Decode", err)
	}

	b := img.Bounds()
	meta := Metadata{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Format:    format,
		HasAlpha:  hasAlpha(img),
		SizeBytes: int64(len(data)),
	}
	if format == FormatJPEG {
		orient, exif := readJPEGOrientation(data)
		meta.Orientation = orient
		meta.HasEXIF = exif
		if orient == 0 {
			meta.Orientation = 1
		}
	} else {
		meta.Orientation = 1
	}

	return &Decoded{Data: data, Format: format, Meta: meta, Image: img}, nil
}

func decodePixels(data []byte, format Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	case FormatTIFF:
		return tiff.Decode(r)
	default:
		return nil, fmt.Errorf("decodePixels: unsupported format %q", format)
	}
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				_, _, _, a := img.At(x, y).RGBA()
				if a != 0xFFFF {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// readJPEGOrientation scans APP1/Exif segments for the orientation tag (0x0112)
// without pulling in a full EXIF dependency, mirroring the teacher's
// preference for small, targeted adapters over heavyweight general parsers.
func readJPEGOrientation(data []byte) (orientation int, hasEXIF bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, false
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			break
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0xD9 {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		segStart := pos + 4
		segEnd := pos + 2 + segLen
		if segEnd > len(data) || segLen < 2 {
			break
		}
		if marker == 0xE1 && segEnd-segStart >= 6 && bytes.Equal(data[segStart:segStart+4], []byte("Exif")) {
			hasEXIF = true
			orientation = parseExifOrientation(data[segStart+6 : segEnd])
			return orientation, hasEXIF
		}
		if marker == 0xDA { // start of scan; no more metadata segments follow
			break
		}
		pos = segEnd
	}
	return orientation, hasEXIF
}

func parseExifOrientation(tiffData []byte) int {
	if len(tiffData) < 8 {
		return 0
	}
	var bo binary.ByteOrder
	switch string(tiffData[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return 0
	}
	ifdOffset := bo.Uint32(tiffData[4:8])
	if int(ifdOffset)+2 > len(tiffData) {
		return 0
	}
	numEntries := int(bo.Uint16(tiffData[ifdOffset : ifdOffset+2]))
	entryStart := int(ifdOffset) + 2
	for i := 0; i < numEntries; i++ {
		off := entryStart + i*12
		if off+12 > len(tiffData) {
			break
		}
		tag := bo.Uint16(tiffData[off : off+2])
		if tag == 0x0112 {
			return int(bo.Uint16(tiffData[off+8 : off+10]))
		}
	}
	return 0
}
