package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logging"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/util"
)

const (
	flagConfig      = "config"
	flagModel       = "model"
	flagORTLib      = "ort-lib"
	flagConfidence  = "confidence"
	flagIoU         = "iou"
	flagClassAware  = "class-aware"
	flagConcurrency = "concurrency"
	flagDir         = "dir"
	flagClasses     = "classes"
	flagLogLevel    = "log-level"
)

// backend is an inference backend whose lifecycle the command owns.
type backend interface {
	inference.Backend
	io.Closer
}

// openBackend is replaced in tests.
var openBackend = func(cfg providers.SessionConfig, logger *zap.Logger) (backend, error) {
	return providers.NewSession(cfg, providers.WithLogger(logger))
}

// frameOutput is the JSON line printed per frame.
type frameOutput struct {
	Path string `json:"path"`
	*inference.Result
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
	// ClientFault marks failures caused by the frame itself rather than the model.
	ClientFault bool `json:"client_fault,omitempty"`
}

// pipeline is a detector with the resources it depends on.
type pipeline struct {
	cfg      config.Config
	logger   *zap.Logger
	detector *inference.Detector
	close    func()
}

// openPipeline builds the logger and opens the model.
func openPipeline(cfg config.Config) (*pipeline, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	session, err := openBackend(cfg.Session(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening model")
	}

	detector, err := inference.NewDetector(session, cfg.Model,
		inference.WithLogger(logger),
		inference.WithInputName(cfg.Runtime.InputName),
		inference.WithOutputName(cfg.Runtime.OutputName))
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		detector: detector,
		close: func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing model failed", zap.Error(err))
			}
			_ = logger.Sync()
		},
	}, nil
}

func detectAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	classes, err := parseClasses(c.StringSlice(flagClasses))
	if err != nil {
		return err
	}

	files, err := collectFiles(c.String(flagDir), c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no images given: pass paths or --dir")
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	frames := make([][]byte, len(files))
	for i, f := range files {
		frames[i] = f.Data
	}
	results := p.detector.DetectBatch(c.Context, frames, p.cfg.Concurrency)

	failed, err := writeResults(c.App.Writer, files, results, classes)
	if err != nil {
		return err
	}
	p.logger.Info("detection finished", zap.Int("frames", len(files)), zap.Int("failed", failed))
	if failed > 0 {
		return errors.Errorf("%d of %d frames failed", failed, len(files))
	}
	return nil
}

// loadConfig reads the config file and environment, then applies flags that were set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return config.Config{}, err
	}

	if c.IsSet(flagModel) {
		cfg.Runtime.ModelPath = c.String(flagModel)
	}
	if c.IsSet(flagORTLib) {
		cfg.Runtime.SharedLibraryPath = c.String(flagORTLib)
	}
	if c.IsSet(flagConfidence) {
		cfg.Model.ConfidenceThreshold = float32(c.Float64(flagConfidence))
	}
	if c.IsSet(flagIoU) {
		cfg.Model.IoUThreshold = float32(c.Float64(flagIoU))
	}
	if c.IsSet(flagClassAware) {
		cfg.Model.ClassAware = c.Bool(flagClassAware)
	}
	if c.IsSet(flagConcurrency) {
		cfg.Concurrency = c.Int(flagConcurrency)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// parseClasses maps class names to ids. An empty list keeps every class.
func parseClasses(names []string) (map[int]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	classes := make(map[int]bool, len(names))
	for _, name := range names {
		idx, ok := models.ClassIndex(name)
		if !ok {
			return nil, errors.Errorf("unknown class %q", name)
		}
		classes[idx] = true
	}
	return classes, nil
}

func collectFiles(dir string, paths []string) ([]util.ImageFile, error) {
	var files []util.ImageFile
	if dir != "" {
		loaded, err := util.LoadDirectoryImageFiles(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, loaded...)
	}
	for _, path := range paths {
		f, err := util.LoadImageFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// writeResults prints one JSON line per frame and returns how many frames failed.
func writeResults(w io.Writer, files []util.ImageFile, results []inference.FrameResult, classes map[int]bool) (int, error) {
	enc := json.NewEncoder(w)
	failed := 0
	for i, r := range results {
		out := frameOutput{Path: files[i].Path, Result: r.Result}
		if r.Err != nil {
			failed++
			out.Error = r.Err.Error()
			kind := common.KindOf(r.Err)
			out.Kind = kind.String()
			out.ClientFault = kind.ClientFault()
		} else if classes != nil {
			out.Result.Detections = filterClasses(out.Result.Detections, classes)
		}
		if err := enc.Encode(out); err != nil {
			return failed, errors.Wrap(err, "writing result")
		}
	}
	return failed, nil
}

func filterClasses(detections []postprocess.Detection, classes map[int]bool) []postprocess.Detection {
	kept := make([]postprocess.Detection, 0, len(detections))
	for _, d := range detections {
		if classes[d.Class] {
			kept = append(kept, d)
		}
	}
	return kept
}
