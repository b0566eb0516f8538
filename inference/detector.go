package inference

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/models/preprocess"
)

// Default tensor names of the stock YOLO export.
const (
	DefaultInputName  = "images"
	DefaultOutputName = "output0"
)

// Timings records how long each stage of one frame took.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
	Total       time.Duration `json:"total"`
}

// Result is the outcome of running detection on one frame.
type Result struct {
	// FrameID identifies the frame in logs.
	FrameID string `json:"frame_id"`
	// Width and Height are the source image dimensions.
	Width  int                `json:"width"`
	Height int                `json:"height"`
	Format images.ImageFormat `json:"format"`
	// Detections are ordered by descending confidence.
	Detections []postprocess.Detection `json:"detections"`
	Timings    Timings                 `json:"timings"`
}

// FrameResult pairs a batch frame with its outcome. Exactly one of Result and Err is set.
type FrameResult struct {
	Index  int
	Result *Result
	Err    error
}

// Detector runs the decode, letterbox, inference, resolve, decode and suppression stages for
// a frame. It keeps no per-frame state.
type Detector struct {
	backend      Backend
	config       models.Config
	preprocessor *preprocess.Preprocessor
	resizer      preprocess.Resizer
	inputName    string
	outputName   string
	logger       *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithInputName sets the name given to the input tensor.
func WithInputName(name string) Option {
	return func(d *Detector) { d.inputName = name }
}

// WithOutputName sets the output tensor to read. Empty selects the first output.
func WithOutputName(name string) Option {
	return func(d *Detector) { d.outputName = name }
}

// WithResizer overrides the resampler chosen by the model config.
func WithResizer(r preprocess.Resizer) Option {
	return func(d *Detector) { d.resizer = r }
}

// NewDetector creates a detector bound to a backend.
//
// Arguments:
//   - backend: The inference capability. Its lifecycle stays with the caller.
//   - config: The model parameters.
//   - opts: Logger, tensor name and resizer overrides.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if the backend is nil or the config is invalid.
//
// @example
//
//	session, _ := providers.NewSession(providers.DefaultSessionConfig("yolov8n.onnx"))
//	defer session.Close()
//	detector, _ := inference.NewDetector(session, models.DefaultConfig())
//	result, err := detector.Detect(ctx, jpegBytes)
func NewDetector(backend Backend, config models.Config, opts ...Option) (*Detector, error) {
	if backend == nil {
		return nil, errors.New("backend is nil")
	}

	d := &Detector{
		backend:    backend,
		config:     config,
		inputName:  DefaultInputName,
		outputName: DefaultOutputName,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	pre, err := preprocess.NewPreprocessor(config,
		preprocess.WithLogger(d.logger),
		preprocess.WithResizer(d.resizer))
	if err != nil {
		return nil, err
	}
	d.preprocessor = pre
	return d, nil
}

// Config returns the model parameters the detector was built with.
func (d *Detector) Config() models.Config {
	return d.config
}

// Detect runs the full pipeline on one encoded frame.
//
// Arguments:
//   - ctx: Passed to the backend.
//   - data: The encoded JPEG, PNG or WebP frame.
//
// Returns:
//   - *Result: Up to MaxDetections detections in source-image pixels.
//   - error: A wrapped common.ErrBadInput, common.ErrUnsupportedFormat,
//     common.ErrInvalidOutputShape, or the backend's error. No partial result is returned.
func (d *Detector) Detect(ctx context.Context, data []byte) (*Result, error) {
	frameID := uuid.NewString()
	log := d.logger.With(zap.String("frame_id", frameID))

	res, err := d.detect(ctx, frameID, data)
	if err != nil {
		log.Warn("detection failed", zap.Stringer("kind", common.KindOf(err)), zap.Error(err))
		return nil, err
	}

	log.Debug("detection complete",
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Int("detections", len(res.Detections)),
		zap.Duration("preprocess", res.Timings.Preprocess),
		zap.Duration("inference", res.Timings.Inference),
		zap.Duration("postprocess", res.Timings.Postprocess),
		zap.Duration("total", res.Timings.Total))
	return res, nil
}

func (d *Detector) detect(ctx context.Context, frameID string, data []byte) (*Result, error) {
	start := time.Now()

	input, err := d.preprocessor.Preprocess(data)
	if err != nil {
		return nil, err
	}
	preprocessed := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "detection cancelled")
	}
	outputs, err := d.backend.Infer(ctx, Tensor{Name: d.inputName, Shape: input.Shape, Data: input.Data})
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	inferred := time.Now()

	output, err := SelectOutput(outputs, d.outputName)
	if err != nil {
		return nil, err
	}
	resolved, err := postprocess.Resolve(output.Shape, output.Data, d.config.Stride())
	if err != nil {
		return nil, errors.Wrap(err, "output resolution failed")
	}
	candidates := postprocess.Decode(resolved, input.Letterbox, d.config)
	detections := postprocess.ApplyNMS(candidates, postprocess.NMSConfig{
		IoUThreshold:  d.config.IoUThreshold,
		MaxDetections: d.config.MaxDetections,
		ClassAware:    d.config.ClassAware,
	})
	done := time.Now()

	d.logger.Debug("postprocessed output",
		zap.String("frame_id", frameID),
		zap.Stringer("layout", resolved.Layout),
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(detections)))

	return &Result{
		FrameID:    frameID,
		Width:      input.Letterbox.OrigWidth,
		Height:     input.Letterbox.OrigHeight,
		Format:     input.Format,
		Detections: detections,
		Timings: Timings{
			Preprocess:  preprocessed.Sub(start),
			Inference:   inferred.Sub(preprocessed),
			Postprocess: done.Sub(inferred),
			Total:       done.Sub(start),
		},
	}, nil
}

// DetectBatch runs Detect on independent frames with at most concurrency in flight. A failed
// frame does not affect the others.
//
// Arguments:
//   - ctx: Passed to every Detect call.
//   - frames: The encoded frames.
//   - concurrency: The parallelism limit. Zero or less uses GOMAXPROCS.
//
// Returns:
//   - []FrameResult: One entry per frame, in input order.
func (d *Detector) DetectBatch(ctx context.Context, frames [][]byte, concurrency int) []FrameResult {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	results := make([]FrameResult, len(frames))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			res, err := d.Detect(ctx, frame)
			results[i] = FrameResult{Index: i, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
