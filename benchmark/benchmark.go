package benchmark

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/inference"
)

// BatchDetector is the part of inference.Detector a benchmark drives.
type BatchDetector interface {
	DetectBatch(ctx context.Context, frames [][]byte, concurrency int) []inference.FrameResult
}

// Suite runs scenarios against one detector and keeps their results.
type Suite struct {
	detector BatchDetector
	logger   *zap.Logger
	results  []PerformanceMetrics
}

// NewSuite creates a benchmark suite.
//
// Arguments:
//   - detector: The detector under test.
//   - logger: Receives one line per finished scenario. May be nil.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(detector BatchDetector, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{detector: detector, logger: logger}
}

// Run executes one scenario: WarmupRuns unmeasured batches, then Iterations measured ones.
//
// Returns:
//   - PerformanceMetrics: Timings aggregated over the measured frames.
//   - error: An error if the scenario is invalid, its frame cannot be encoded, or ctx ends.
func (s *Suite) Run(ctx context.Context, scenario Scenario) (PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return PerformanceMetrics{}, err
	}

	frame, err := SyntheticFrame(scenario.Resolution.Width, scenario.Resolution.Height, scenario.Format)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	batch := make([][]byte, scenario.BatchSize)
	for i := range batch {
		batch[i] = frame
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return PerformanceMetrics{}, errors.Wrap(err, "benchmark cancelled")
		}
		s.detector.DetectBatch(ctx, batch, scenario.Concurrency)
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	results := make([]inference.FrameResult, 0, scenario.Iterations*scenario.BatchSize)
	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return PerformanceMetrics{}, errors.Wrap(err, "benchmark cancelled")
		}
		results = append(results, s.detector.DetectBatch(ctx, batch, scenario.Concurrency)...)
	}
	wall := time.Since(start)
	runtime.ReadMemStats(&after)

	m := PerformanceMetrics{Scenario: scenario, Timestamp: start, MemoryStats: memoryDelta(&before, &after)}
	summarize(&m, results, wall)
	s.results = append(s.results, m)

	s.logger.Info("scenario finished",
		zap.String("scenario", scenario.Name),
		zap.Int("frames", m.Frames),
		zap.Float64("fps", m.FramesPerSecond),
		zap.Duration("p50", m.LatencyP50),
		zap.Duration("p95", m.LatencyP95),
		zap.Float64("error_rate", m.ErrorRate))
	return m, nil
}

// RunAll executes scenarios in order and stops at the first error.
func (s *Suite) RunAll(ctx context.Context, scenarios []Scenario) ([]PerformanceMetrics, error) {
	out := make([]PerformanceMetrics, 0, len(scenarios))
	for _, scenario := range scenarios {
		m, err := s.Run(ctx, scenario)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Results returns every metric recorded by the suite.
func (s *Suite) Results() []PerformanceMetrics {
	return s.results
}
