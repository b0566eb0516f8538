// Package benchmark - Latency and throughput measurement of the detection pipeline.
package benchmark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// Scenario is one benchmark configuration: frames of one size and format pushed through the
// detector Iterations times.
type Scenario struct {
	Name        string             `json:"name"`
	Resolution  images.Resolution  `json:"resolution"`
	Format      images.ImageFormat `json:"format"`
	BatchSize   int                `json:"batch_size"`
	Iterations  int                `json:"iterations"`
	WarmupRuns  int                `json:"warmup_runs"`
	Concurrency int                `json:"concurrency"`
}

// Validate checks the scenario can run.
func (s Scenario) Validate() error {
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return errors.Errorf("scenario %q: invalid resolution %dx%d", s.Name, s.Resolution.Width, s.Resolution.Height)
	}
	if !s.Format.Accepted() {
		return errors.Errorf("scenario %q: unsupported format %q", s.Name, s.Format)
	}
	if s.BatchSize <= 0 || s.Iterations <= 0 || s.WarmupRuns < 0 {
		return errors.Errorf("scenario %q: batch size and iterations must be positive", s.Name)
	}
	return nil
}

// ScenarioBuilder builds scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder starts a scenario with one 720p JPEG frame per batch, 10 iterations and
// 2 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	res, _ := images.GetResolutionByType(images.ResolutionTypeHD720p)
	return &ScenarioBuilder{scenario: Scenario{
		Name:       name,
		Resolution: res,
		Format:     images.FormatJPEG,
		BatchSize:  1,
		Iterations: 10,
		WarmupRuns: 2,
	}}
}

// WithResolution sets the frame size.
func (b *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	b.scenario.Resolution = res
	return b
}

// WithFormat sets the frame encoding.
func (b *ScenarioBuilder) WithFormat(format images.ImageFormat) *ScenarioBuilder {
	b.scenario.Format = format
	return b
}

// WithBatchSize sets the number of frames per DetectBatch call.
func (b *ScenarioBuilder) WithBatchSize(n int) *ScenarioBuilder {
	b.scenario.BatchSize = n
	return b
}

// WithIterations sets the number of measured batches.
func (b *ScenarioBuilder) WithIterations(n int) *ScenarioBuilder {
	b.scenario.Iterations = n
	return b
}

// WithWarmupRuns sets the number of unmeasured batches run first.
func (b *ScenarioBuilder) WithWarmupRuns(n int) *ScenarioBuilder {
	b.scenario.WarmupRuns = n
	return b
}

// WithConcurrency sets the DetectBatch concurrency.
func (b *ScenarioBuilder) WithConcurrency(n int) *ScenarioBuilder {
	b.scenario.Concurrency = n
	return b
}

// Build returns the scenario.
func (b *ScenarioBuilder) Build() Scenario {
	return b.scenario
}

// QuickScenarios covers the common camera sizes with JPEG frames.
func QuickScenarios(iterations int) []Scenario {
	var scenarios []Scenario
	for _, t := range []images.ResolutionType{images.ResolutionTypeHD720p, images.ResolutionTypeFHD1080p} {
		res, _ := images.GetResolutionByType(t)
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%dx%d", res.Width, res.Height)).
			WithResolution(res).
			WithIterations(iterations).
			Build())
	}
	return scenarios
}

// FormatScenarios compares decoding cost across the accepted encodings at one size.
func FormatScenarios(res images.Resolution, iterations int) []Scenario {
	var scenarios []Scenario
	for _, format := range images.AcceptedFormats {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("format_%dx%d_%s", res.Width, res.Height, format)).
			WithResolution(res).
			WithFormat(format).
			WithIterations(iterations).
			Build())
	}
	return scenarios
}

// SyntheticFrame encodes a gradient test frame.
func SyntheticFrame(width, height int, format images.ImageFormat) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case images.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	case images.FormatPNG:
		err = png.Encode(&buf, img)
	case images.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: 85})
	default:
		return nil, errors.Errorf("cannot encode %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", format)
	}
	return buf.Bytes(), nil
}
