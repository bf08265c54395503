package imageio

import "bytes"

// DetectFormat sniffs the format from magic bytes, following the teacher's
// utils.DetectFormat approach.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case len(data) >= 8 && bytes.Equal(data[0:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	case len(data) >= 4 && (bytes.Equal(data[0:4], []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.Equal(data[0:4], []byte{0x4D, 0x4D, 0x00, 0x2A})):
		return FormatTIFF
	default:
		return FormatUnknown
	}
}

// FromExtension maps a file extension (including leading dot) to a Format.
func FromExtension(ext string) Format {
	switch ext {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWebP
	case ".tif", ".tiff":
		return FormatTIFF
	default:
		return FormatUnknown
	}
}
