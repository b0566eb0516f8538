// Package models - Fixed parameters of the YOLO detection model and its label set.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// Resampler names the filter used to scale image content into the letterbox.
type Resampler string

const (
	// ResamplerNFNT uses nfnt/resize Lanczos3.
	ResamplerNFNT Resampler = "nfnt"
	// ResamplerImaging uses disintegration/imaging Lanczos.
	ResamplerImaging Resampler = "imaging"
)

// ScoreFormat says how class scores are encoded in the model output.
type ScoreFormat string

const (
	// ScoreAuto treats a row as logits when its best score is outside [0, 1].
	ScoreAuto ScoreFormat = "auto"
	// ScoreLogit always applies the logistic function.
	ScoreLogit ScoreFormat = "logit"
	// ScoreProbability uses scores as they are.
	ScoreProbability ScoreFormat = "probability"
)

// BoxFormat says which space the box fields of the model output are in.
type BoxFormat string

const (
	// BoxAuto treats a box as normalized when |w|, |h|, xc and yc are all <= 2.
	BoxAuto BoxFormat = "auto"
	// BoxNormalized scales box fields by the input size.
	BoxNormalized BoxFormat = "normalized"
	// BoxPixel uses box fields as model pixels.
	BoxPixel BoxFormat = "pixel"
)

// Default model parameters.
const (
	DefaultInputSize           = 640
	DefaultConfidenceThreshold = 0.5
	DefaultIoUThreshold        = 0.45
	DefaultMaxDetections       = 100
	DefaultPadValue            = 114
)

// Config holds the pipeline parameters of a model. They are fixed per model and not
// negotiated per request.
type Config struct {
	// InputSize is the side S of the square model input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of class scores per candidate.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ConfidenceThreshold discards candidates whose confidence is <= this value.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold suppresses candidates whose IoU with a kept box is > this value.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// MaxDetections caps the number of detections per frame.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// MaxImageBytes is the largest accepted encoded frame.
	MaxImageBytes int `json:"max_image_bytes" yaml:"max_image_bytes"`
	// PadValue is the grey level used for letterbox padding on every channel.
	PadValue uint8 `json:"pad_value" yaml:"pad_value"`
	// Resampler selects the resize implementation.
	Resampler Resampler `json:"resampler" yaml:"resampler"`
	// ClassAware restricts suppression to boxes of the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// ScoreFormat overrides the logit/probability guess. Empty means auto.
	ScoreFormat ScoreFormat `json:"score_format" yaml:"score_format"`
	// BoxFormat overrides the normalized/pixel guess. Empty means auto.
	BoxFormat BoxFormat `json:"box_format" yaml:"box_format"`
}

// DefaultConfig returns the parameters of the stock 640x640, 80-class export.
//
// Returns:
//   - Config: S=640, 80 classes, confidence 0.5, IoU 0.45, 100 detections, 10 MiB frames.
func DefaultConfig() Config {
	return Config{
		InputSize:           DefaultInputSize,
		NumClasses:          NumCOCOClasses,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IoUThreshold:        DefaultIoUThreshold,
		MaxDetections:       DefaultMaxDetections,
		MaxImageBytes:       images.DefaultMaxBytes,
		PadValue:            DefaultPadValue,
		Resampler:           ResamplerNFNT,
		ScoreFormat:         ScoreAuto,
		BoxFormat:           BoxAuto,
	}
}

// Stride is the number of values per candidate row: 4 box values plus the class scores.
func (c Config) Stride() int {
	return 4 + c.NumClasses
}

// Validate checks that the parameters describe a usable model.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	if c.NumClasses <= 0 {
		return errors.Errorf("num_classes must be positive, got %d", c.NumClasses)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return errors.Errorf("confidence_threshold must be in [0, 1), got %v", c.ConfidenceThreshold)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return errors.Errorf("iou_threshold must be in [0, 1], got %v", c.IoUThreshold)
	}
	if c.MaxDetections <= 0 {
		return errors.Errorf("max_detections must be positive, got %d", c.MaxDetections)
	}
	if c.MaxImageBytes <= 0 {
		return errors.Errorf("max_image_bytes must be positive, got %d", c.MaxImageBytes)
	}
	switch c.Resampler {
	case ResamplerNFNT, ResamplerImaging:
	default:
		return errors.Errorf("unknown resampler %q", c.Resampler)
	}
	switch c.ScoreFormat {
	case "", ScoreAuto, ScoreLogit, ScoreProbability:
	default:
		return errors.Errorf("unknown score_format %q", c.ScoreFormat)
	}
	switch c.BoxFormat {
	case "", BoxAuto, BoxNormalized, BoxPixel:
	default:
		return errors.Errorf("unknown box_format %q", c.BoxFormat)
	}
	return nil
}
