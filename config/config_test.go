package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadDefaults(t *testing.T) {
	cfg, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultConfig(), cfg.Model)
	assert.Equal(t, "images", cfg.Runtime.InputName)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Error(t, cfg.Validate(), "a model path is required")
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
model:
  confidence_threshold: 0.25
  class_aware: true
  resampler: imaging
  input_size: 320
runtime:
  model_path: /models/yolov8n.onnx
  intra_op_threads: 2
  graph_optimization: all
log:
  level: debug
  format: console
concurrency: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float32(0.25), cfg.Model.ConfidenceThreshold)
	assert.Equal(t, float32(0.45), cfg.Model.IoUThreshold, "unset values keep their defaults")
	assert.True(t, cfg.Model.ClassAware)
	assert.Equal(t, models.ResamplerImaging, cfg.Model.Resampler)
	assert.Equal(t, "/models/yolov8n.onnx", cfg.Runtime.ModelPath)
	assert.Equal(t, "output0", cfg.Runtime.OutputName)
	assert.Equal(t, 2, cfg.Runtime.IntraOpThreads)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []int64{1, 3, 320, 320}, cfg.Session().InputShape)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "runtime:\n  model_path: from-file.onnx\n")
	t.Setenv(EnvModelPath, "from-env.onnx")
	t.Setenv(EnvORTLibrary, "/opt/ort/libonnxruntime.so")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvConfidence, "0.7")
	t.Setenv(EnvIoU, "0.3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.onnx", cfg.Runtime.ModelPath)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", cfg.Runtime.SharedLibraryPath)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, float32(0.7), cfg.Model.ConfidenceThreshold)
	assert.Equal(t, float32(0.3), cfg.Model.IoUThreshold)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "malformed yaml", body: "model: [1, 2"},
		{name: "invalid model", body: "runtime:\n  model_path: m.onnx\nmodel:\n  iou_threshold: 2\n"},
		{name: "invalid log level", body: "runtime:\n  model_path: m.onnx\nlog:\n  level: loud\n"},
		{name: "negative concurrency", body: "runtime:\n  model_path: m.onnx\nconcurrency: -1\n"},
		{name: "bad confidence env", body: "runtime:\n  model_path: m.onnx\n", env: map[string]string{EnvConfidence: "high"}},
		{name: "bad iou env", body: "runtime:\n  model_path: m.onnx\n", env: map[string]string{EnvIoU: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
