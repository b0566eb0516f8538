// Package images - Image definition and bounded decoding.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/common"
)

// DefaultMaxBytes is the largest encoded buffer accepted by Decode (10 MiB).
const DefaultMaxBytes = 10 << 20

// MaxPixels is the largest decoded width*height accepted by Decode (about 8192x8192). A small
// compressed buffer can declare a huge canvas, so the header is checked before decoding.
const MaxPixels = 1 << 26

// Image represents an encoded image with the metadata learned while decoding it.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewImage wraps an encoded buffer. Format and dimensions are filled in by Decode.
func NewImage(data []byte) *Image {
	return &Image{Data: data}
}

// Decode validates and decodes the encoded buffer.
//
// The header is parsed first so that unusable dimensions are rejected before the pixel data
// is decompressed.
//
// Arguments:
//   - maxBytes: The largest accepted buffer length. Values <= 0 mean DefaultMaxBytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: common.ErrBadInput for empty/oversized buffers, non-positive dimensions or more
//     than MaxPixels pixels,
//     common.ErrUnsupportedFormat for unknown, disallowed or undecodable data.
func (img *Image) Decode(maxBytes int) (image.Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(img.Data) == 0 {
		return nil, common.BadInputf("image data is empty")
	}
	if len(img.Data) > maxBytes {
		return nil, common.BadInputf("image data is %d bytes, limit is %d", len(img.Data), maxBytes)
	}

	img.Format = SniffFormat(img.Data)
	if !img.Format.Accepted() {
		return nil, common.UnsupportedFormatf("image format %s is not accepted", img.Format)
	}

	cfg, err := decodeConfig(img.Format, bytes.NewReader(img.Data))
	if err != nil {
		return nil, common.UnsupportedFormatf("cannot read %s header: %v", img.Format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, common.BadInputf("invalid image dimensions: %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, common.BadInputf("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	decoded, err := decode(img.Format, bytes.NewReader(img.Data))
	if err != nil {
		return nil, common.UnsupportedFormatf("cannot decode %s: %v", img.Format, err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, common.BadInputf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	img.Width = bounds.Dx()
	img.Height = bounds.Dy()

	return decoded, nil
}

// DecodeBytes is a shorthand for NewImage(data).Decode(maxBytes).
func DecodeBytes(data []byte, maxBytes int) (image.Image, ImageFormat, error) {
	img := NewImage(data)
	decoded, err := img.Decode(maxBytes)
	return decoded, img.Format, err
}

func decodeConfig(format ImageFormat, r io.Reader) (image.Config, error) {
	switch format {
	case FormatJPEG:
		return jpeg.DecodeConfig(r)
	case FormatPNG:
		return png.DecodeConfig(r)
	case FormatWebP:
		return webp.DecodeConfig(r)
	default:
		return image.Config{}, errors.Errorf("no decoder for %s", format)
	}
}

func decode(format ImageFormat, r io.Reader) (image.Image, error) {
	switch format {
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	default:
		return nil, errors.Errorf("no decoder for %s", format)
	}
}
