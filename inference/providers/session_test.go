package providers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/inference"
)

func TestDefaultSessionConfig(t *testing.T) {
	cfg := DefaultSessionConfig("yolov8n.onnx")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "images", cfg.InputName)
	assert.Equal(t, "output0", cfg.OutputName)
	assert.Equal(t, []int64{1, 3, 640, 640}, cfg.InputShape)
	assert.Equal(t, GraphOptimizationExtended, cfg.GraphOptimization)
}

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{name: "no model", mutate: func(c *SessionConfig) { c.ModelPath = "" }},
		{name: "no input name", mutate: func(c *SessionConfig) { c.InputName = "" }},
		{name: "negative threads", mutate: func(c *SessionConfig) { c.IntraOpThreads = -1 }},
		{name: "negative warmup", mutate: func(c *SessionConfig) { c.Warmup = -2 }},
		{name: "warmup without shape", mutate: func(c *SessionConfig) { c.Warmup = 1; c.InputShape = nil }},
		{name: "unknown optimization", mutate: func(c *SessionConfig) { c.GraphOptimization = "max" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSessionConfig("model.onnx")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGraphOptimizationLevel(t *testing.T) {
	tests := []struct {
		in       GraphOptimization
		expected ort.GraphOptimizationLevel
	}{
		{in: GraphOptimizationDisabled, expected: ort.GraphOptimizationLevelDisableAll},
		{in: GraphOptimizationBasic, expected: ort.GraphOptimizationLevelEnableBasic},
		{in: GraphOptimizationExtended, expected: ort.GraphOptimizationLevelEnableExtended},
		{in: "", expected: ort.GraphOptimizationLevelEnableExtended},
		{in: GraphOptimizationAll, expected: ort.GraphOptimizationLevelEnableAll},
	}

	for _, tt := range tests {
		level, err := tt.in.level()
		require.NoError(t, err)
		assert.Equal(t, tt.expected, level)
	}
}

func TestSharedLibPath(t *testing.T) {
	path, err := sharedLibPath("linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "./third_party/onnxruntime.so", path)

	path, err = sharedLibPath("linux", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "./third_party/onnxruntime_arm64.so", path)

	_, err = sharedLibPath("plan9", "386")
	assert.Error(t, err)
}

func TestNewSessionMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := NewSession(DefaultSessionConfig(filepath.Join(dir, "missing.onnx")))
	assert.ErrorContains(t, err, "model not found")

	model := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("not a model"), 0o600))

	cfg := DefaultSessionConfig(model)
	cfg.SharedLibraryPath = filepath.Join(dir, "libonnxruntime.so")
	_, err = NewSession(cfg)
	assert.ErrorContains(t, err, "ONNX Runtime library not found")
}

// TestCloseRacesInfer validates that Close may overlap Infer calls and that runs after Close
// fail instead of touching a destroyed session. Run with -race.
func TestCloseRacesInfer(t *testing.T) {
	s := &Session{config: DefaultSessionConfig("model.onnx"), logger: zap.NewNop()}
	input := inference.Tensor{Name: "images", Shape: []int64{1, 3, 2, 2}, Data: make([]float32, 12)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Infer(context.Background(), input)
			assert.ErrorContains(t, err, "session is closed")
		}()
	}
	assert.NoError(t, s.Close())
	wg.Wait()

	_, err := s.Infer(context.Background(), input)
	assert.ErrorContains(t, err, "session is closed")
	assert.NoError(t, s.Close())
}

// TestSessionInfer runs a real model. It needs DETECT_TEST_MODEL and, unless the library is at
// the platform default, DETECT_ORT_LIB.
func TestSessionInfer(t *testing.T) {
	model := os.Getenv("DETECT_TEST_MODEL")
	if model == "" {
		t.Skip("DETECT_TEST_MODEL not set")
	}

	cfg := DefaultSessionConfig(model)
	cfg.SharedLibraryPath = os.Getenv("DETECT_ORT_LIB")
	cfg.Warmup = 1

	session, err := NewSession(cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, session.Close())
		assert.NoError(t, session.Close())
	}()

	input := inference.Tensor{Name: cfg.InputName, Shape: cfg.InputShape, Data: make([]float32, 3*640*640)}
	outputs, err := session.Infer(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, cfg.OutputName, outputs[0].Name)
	assert.Len(t, outputs[0].Shape, 3)

	n := int64(1)
	for _, d := range outputs[0].Shape {
		n *= d
	}
	assert.Len(t, outputs[0].Data, int(n))
}
