// Package config - Program configuration from a YAML file and the environment.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logging"
	"github.com/nvr-ai/go-detect/models"
)

// Environment variables that override file values.
const (
	EnvModelPath  = "DETECT_MODEL_PATH"
	EnvORTLibrary = "DETECT_ORT_LIB"
	EnvLogLevel   = "DETECT_LOG_LEVEL"
	EnvConfidence = "DETECT_CONFIDENCE"
	EnvIoU        = "DETECT_IOU"
)

// Config is the full program configuration.
type Config struct {
	Model   models.Config           `json:"model" yaml:"model"`
	Runtime providers.SessionConfig `json:"runtime" yaml:"runtime"`
	Log     logging.Config          `json:"log" yaml:"log"`
	// Concurrency is the number of frames processed at once. Zero uses GOMAXPROCS.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Model:   models.DefaultConfig(),
		Runtime: providers.DefaultSessionConfig(""),
		Log:     logging.DefaultConfig(),
	}
}

// Read loads defaults, overlays the YAML file at path (if any) and then the environment.
// The result is not validated.
//
// Arguments:
//   - path: The YAML file. Empty skips the file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed, or an override is malformed.
func Read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is Read followed by Validate.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvModelPath); ok {
		c.Runtime.ModelPath = v
	}
	if v, ok := lookup(EnvORTLibrary); ok {
		c.Runtime.SharedLibraryPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvConfidence); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvConfidence)
		}
		c.Model.ConfidenceThreshold = float32(f)
	}
	if v, ok := lookup(EnvIoU); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvIoU)
		}
		c.Model.IoUThreshold = float32(f)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return errors.Wrap(err, "model")
	}
	if err := c.Session().Validate(); err != nil {
		return errors.Wrap(err, "runtime")
	}
	if err := c.Log.Validate(); err != nil {
		return errors.Wrap(err, "log")
	}
	if c.Concurrency < 0 {
		return errors.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// Session returns the runtime settings with the input shape derived from the model input size.
func (c Config) Session() providers.SessionConfig {
	s := c.Runtime
	size := int64(c.Model.InputSize)
	s.InputShape = []int64{1, 3, size, size}
	return s
}
