// Package postprocess - Turns raw detector output into final detections.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Detection is a single object found in a frame. Coordinates are in source-image pixels.
type Detection struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
	// Confidence is the probability of the winning class.
	Confidence float32 `json:"confidence"`
	// Class is the index of the winning class.
	Class int `json:"class"`
	// Label is the name of Class, empty when the class has no name.
	Label string `json:"label,omitempty"`
}

// Box returns the corners of the detection as a Rect.
func (d Detection) Box() images.Rect {
	return images.Rect{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2}
}
