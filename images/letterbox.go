// Package images - Aspect-preserving resize-and-pad transform.
package images

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/common"
)

// Letterbox records how a source image was fitted into a square model input so that
// coordinates produced in model space can be mapped back to the source image.
//
// The content is scaled by Ratio to NewWidth x NewHeight and placed at (PadX, PadY) on a
// Size x Size canvas. The left/top padding is the floor of half the slack; the right/bottom
// padding takes the remainder.
type Letterbox struct {
	// Ratio is min(Size/OrigWidth, Size/OrigHeight).
	Ratio float64 `json:"ratio" yaml:"ratio"`
	// PadX is the left padding in model pixels.
	PadX int `json:"pad_x" yaml:"pad_x"`
	// PadY is the top padding in model pixels.
	PadY int `json:"pad_y" yaml:"pad_y"`
	// OrigWidth is the width of the source image.
	OrigWidth int `json:"orig_width" yaml:"orig_width"`
	// OrigHeight is the height of the source image.
	OrigHeight int `json:"orig_height" yaml:"orig_height"`
	// NewWidth is the width of the scaled content, round(OrigWidth*Ratio).
	NewWidth int `json:"new_width" yaml:"new_width"`
	// NewHeight is the height of the scaled content, round(OrigHeight*Ratio).
	NewHeight int `json:"new_height" yaml:"new_height"`
	// Size is the side of the square model input.
	Size int `json:"size" yaml:"size"`
}

// NewLetterbox computes the transform that fits a width x height image into a size x size square.
//
// Arguments:
//   - width: The source image width in pixels.
//   - height: The source image height in pixels.
//   - size: The side of the square model input (640 for the default model).
//
// Returns:
//   - Letterbox: The transform.
//   - error: common.ErrBadInput if the source dimensions are not positive.
//
// Example:
//
//	lb, _ := NewLetterbox(1280, 720, 640)
//	// lb.Ratio == 0.5, lb.NewWidth == 640, lb.NewHeight == 360, lb.PadX == 0, lb.PadY == 140
func NewLetterbox(width, height, size int) (Letterbox, error) {
	if size <= 0 {
		return Letterbox{}, errors.Errorf("letterbox size must be positive, got %d", size)
	}
	if width <= 0 || height <= 0 {
		return Letterbox{}, common.BadInputf("invalid image dimensions: %dx%d", width, height)
	}

	s := float64(size)
	ratio := math.Min(s/float64(width), s/float64(height))

	// Extreme aspect ratios would otherwise round the short side to zero.
	newW := clampInt(int(math.Round(float64(width)*ratio)), 1, size)
	newH := clampInt(int(math.Round(float64(height)*ratio)), 1, size)

	return Letterbox{
		Ratio:      ratio,
		PadX:       (size - newW) / 2,
		PadY:       (size - newH) / 2,
		OrigWidth:  width,
		OrigHeight: height,
		NewWidth:   newW,
		NewHeight:  newH,
		Size:       size,
	}, nil
}

// PadRight is the right padding in model pixels.
func (l Letterbox) PadRight() int {
	return l.Size - l.NewWidth - l.PadX
}

// PadBottom is the bottom padding in model pixels.
func (l Letterbox) PadBottom() int {
	return l.Size - l.NewHeight - l.PadY
}

// Forward maps a point from source-image space into model space.
func (l Letterbox) Forward(x, y float64) (float64, float64) {
	return x*l.Ratio + float64(l.PadX), y*l.Ratio + float64(l.PadY)
}

// Inverse maps a point from model space back into source-image space. The result is not
// clamped; see Clamp.
func (l Letterbox) Inverse(x, y float64) (float64, float64) {
	return (x - float64(l.PadX)) / l.Ratio, (y - float64(l.PadY)) / l.Ratio
}

// Clamp limits a source-space point to [0, OrigWidth] x [0, OrigHeight].
func (l Letterbox) Clamp(x, y float64) (float64, float64) {
	return clampFloat(x, 0, float64(l.OrigWidth)), clampFloat(y, 0, float64(l.OrigHeight))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
