// Package providers - ONNX Runtime inference backend.
package providers

import (
	"context"
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/inference"
)

// GraphOptimization names an ONNX Runtime graph optimization level.
type GraphOptimization string

const (
	GraphOptimizationDisabled GraphOptimization = "disabled"
	GraphOptimizationBasic    GraphOptimization = "basic"
	GraphOptimizationExtended GraphOptimization = "extended"
	GraphOptimizationAll      GraphOptimization = "all"
)

func (g GraphOptimization) level() (ort.GraphOptimizationLevel, error) {
	switch g {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case GraphOptimizationExtended, "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", g)
	}
}

// SessionConfig describes how to load a model into ONNX Runtime.
type SessionConfig struct {
	// ModelPath is the path to the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the onnxruntime shared library. Empty uses GetSharedLibPath.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// InputName and OutputName are the graph tensor names.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputShape is used for warmup runs.
	InputShape []int64 `json:"input_shape" yaml:"input_shape"`
	// IntraOpThreads and InterOpThreads size the runtime thread pools. Zero lets ONNX Runtime
	// decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// GraphOptimization is the graph rewrite level applied when loading.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`
	// Warmup is the number of throwaway runs made before the session is returned.
	Warmup int `json:"warmup" yaml:"warmup"`
}

// DefaultSessionConfig returns the settings for a stock 640x640 YOLO export.
func DefaultSessionConfig(modelPath string) SessionConfig {
	return SessionConfig{
		ModelPath:         modelPath,
		InputName:         inference.DefaultInputName,
		OutputName:        inference.DefaultOutputName,
		InputShape:        []int64{1, 3, 640, 640},
		GraphOptimization: GraphOptimizationExtended,
	}
}

// Validate checks the config without touching the filesystem.
func (c SessionConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("input_name and output_name are required")
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	if c.Warmup < 0 {
		return errors.New("warmup must not be negative")
	}
	if c.Warmup > 0 && len(c.InputShape) == 0 {
		return errors.New("input_shape is required for warmup")
	}
	if _, err := c.GraphOptimization.level(); err != nil {
		return err
	}
	return nil
}

// The ONNX Runtime environment is process-wide. Sessions share it and the last one to close
// tears it down.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "error initializing ORT environment")
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		return errors.Wrap(ort.DestroyEnvironment(), "error destroying ORT environment")
	}
	return nil
}

// Session is an inference.Backend running a model through ONNX Runtime. Runs may be issued
// concurrently. Close waits for runs in flight; later runs fail.
type Session struct {
	// mu guards session: Infer holds it for reading, Close for writing.
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
	config  SessionConfig
	logger  *zap.Logger
	once    sync.Once
	err     error
}

var _ inference.Backend = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession loads a model into ONNX Runtime.
//
// Order of operations:
//  1. Validate the config and check the model and shared library exist.
//  2. Initialise the runtime environment, once per process.
//  3. Build session options (threads, graph optimization).
//  4. Create the session for the configured input and output names.
//  5. Run the configured number of warmup passes.
//
// Arguments:
//   - config: The session settings.
//   - opts: Optional logger.
//
// Returns:
//   - *Session: The session. The caller owns it and must call Close.
//   - error: An error if any step fails. Nothing is leaked on failure.
func NewSession(config SessionConfig, opts ...Option) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", config.ModelPath)
	}

	libPath := config.SharedLibraryPath
	if libPath == "" {
		var err error
		if libPath, err = GetSharedLibPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	s := &Session{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := acquireEnvironment(libPath); err != nil {
		return nil, err
	}

	session, err := createSession(config)
	if err != nil {
		return nil, multierr.Append(err, releaseEnvironment())
	}
	s.session = session

	s.logger.Info("onnx session created",
		zap.String("model", config.ModelPath),
		zap.String("library", libPath),
		zap.String("input", config.InputName),
		zap.String("output", config.OutputName),
		zap.Int("intra_op_threads", config.IntraOpThreads),
		zap.Int("inter_op_threads", config.InterOpThreads))

	if err := s.warmup(config.Warmup); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	return s, nil
}

func createSession(config SessionConfig) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(config.IntraOpThreads); err != nil {
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(config.InterOpThreads); err != nil {
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}
	level, err := config.GraphOptimization.level()
	if err != nil {
		return nil, err
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	session, err := ort.NewDynamicAdvancedSession(config.ModelPath,
		[]string{config.InputName}, []string{config.OutputName}, options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	return session, nil
}

func (s *Session) warmup(runs int) error {
	if runs == 0 {
		return nil
	}
	size := int64(1)
	for _, d := range s.config.InputShape {
		size *= d
	}
	input := inference.Tensor{Name: s.config.InputName, Shape: s.config.InputShape, Data: make([]float32, size)}
	for i := 0; i < runs; i++ {
		if _, err := s.Infer(context.Background(), input); err != nil {
			return errors.Wrapf(err, "warmup run %d failed", i)
		}
	}
	s.logger.Debug("onnx session warmed up", zap.Int("runs", runs))
	return nil
}

// Infer runs the model on one input tensor and returns the configured output.
func (s *Session) Infer(ctx context.Context, input inference.Tensor) ([]inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	// A nil output is allocated by the runtime with whatever shape the graph produces.
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q has unsupported type %T", s.config.OutputName, outputs[0])
	}
	return []inference.Tensor{{
		Name:  s.config.OutputName,
		Shape: slices.Clone([]int64(out.GetShape())),
		Data:  slices.Clone(out.GetData()),
	}}, nil
}

// Close destroys the session and releases the shared environment. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		if s.session != nil {
			s.err = multierr.Append(s.err, errors.Wrap(s.session.Destroy(), "error destroying ORT session"))
			s.session = nil
		}
		s.mu.Unlock()
		s.err = multierr.Append(s.err, releaseEnvironment())
		s.logger.Debug("onnx session closed", zap.String("model", s.config.ModelPath))
	})
	return s.err
}
