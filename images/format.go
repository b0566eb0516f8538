// Package images - Encoded image formats and magic-byte sniffing.
package images

import "bytes"

// ImageFormat represents an encoded image format.
type ImageFormat string

const (
	// FormatUnknown is returned when no known signature matches.
	FormatUnknown ImageFormat = ""
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatGIF is recognised but not accepted.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is recognised but not accepted.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is recognised but not accepted.
	FormatTIFF ImageFormat = "tiff"
)

// AcceptedFormats is the allow-list of formats the pipeline decodes.
var AcceptedFormats = []ImageFormat{FormatJPEG, FormatPNG, FormatWebP}

// Accepted reports whether f is in AcceptedFormats.
func (f ImageFormat) Accepted() bool {
	for _, a := range AcceptedFormats {
		if f == a {
			return true
		}
	}
	return false
}

func (f ImageFormat) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

var (
	jpegMagic   = []byte{0xFF, 0xD8, 0xFF}
	pngMagic    = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	gif87Magic  = []byte("GIF87a")
	gif89Magic  = []byte("GIF89a")
	bmpMagic    = []byte("BM")
	tiffLEMagic = []byte{'I', 'I', 0x2A, 0x00}
	tiffBEMagic = []byte{'M', 'M', 0x00, 0x2A}
)

// SniffFormat identifies the encoded format from the leading bytes of data.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - ImageFormat: The detected format, or FormatUnknown.
func SniffFormat(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	case bytes.HasPrefix(data, gif87Magic), bytes.HasPrefix(data, gif89Magic):
		return FormatGIF
	case bytes.HasPrefix(data, tiffLEMagic), bytes.HasPrefix(data, tiffBEMagic):
		return FormatTIFF
	case bytes.HasPrefix(data, bmpMagic):
		return FormatBMP
	default:
		return FormatUnknown
	}
}
