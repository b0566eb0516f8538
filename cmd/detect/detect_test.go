package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
)

// stubBackend returns two candidates: a person and a car in model space.
type stubBackend struct {
	closed bool
}

func (s *stubBackend) Infer(context.Context, inference.Tensor) ([]inference.Tensor, error) {
	data := make([]float32, 2*84)
	copy(data[0:4], []float32{320, 320, 100, 100})
	data[4+0] = 0.9
	copy(data[84:88], []float32{100, 100, 50, 50})
	data[84+4+2] = 0.8
	return []inference.Tensor{{Name: "output0", Shape: []int64{1, 2, 84}, Data: data}}, nil
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

func useStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	stub := &stubBackend{}
	original := openBackend
	openBackend = func(cfg providers.SessionConfig, _ *zap.Logger) (backend, error) {
		assert.Equal(t, "model.onnx", cfg.ModelPath)
		return stub, nil
	}
	t.Cleanup(func() { openBackend = original })
	return stub
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

type line struct {
	Path       string `json:"path"`
	Width      int    `json:"width"`
	Detections []struct {
		Class int    `json:"class"`
		Label string `json:"label"`
	} `json:"detections"`
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	ClientFault bool   `json:"client_fault"`
}

func run(t *testing.T, args ...string) ([]line, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"detect", "--model", "model.onnx", "--log-level", "error"}, args...))

	var lines []line
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var l line
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	return lines, err
}

func TestDetectDirectory(t *testing.T) {
	stub := useStubBackend(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame-2.png"))
	writePNG(t, filepath.Join(dir, "frame-1.png"))

	lines, err := run(t, "--dir", dir)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, filepath.Join(dir, "frame-1.png"), lines[0].Path)
	assert.Equal(t, 64, lines[0].Width)
	require.Len(t, lines[0].Detections, 2)
	assert.Equal(t, "person", lines[0].Detections[0].Label)
	assert.Equal(t, "car", lines[0].Detections[1].Label)
	assert.True(t, stub.closed)
}

func TestDetectClassFilter(t *testing.T) {
	useStubBackend(t)
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path)

	lines, err := run(t, "--classes", "car", path)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Detections, 1)
	assert.Equal(t, 2, lines[0].Detections[0].Class)

	_, err = run(t, "--classes", "dragon", path)
	assert.ErrorContains(t, err, "unknown class")
}

func TestDetectReportsFailedFrames(t *testing.T) {
	useStubBackend(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good)
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("GIF89a not really"), 0o600))

	lines, err := run(t, good, bad)
	assert.ErrorContains(t, err, "1 of 2 frames failed")
	require.Len(t, lines, 2)
	assert.Empty(t, lines[0].Error)
	assert.False(t, lines[0].ClientFault)
	assert.Equal(t, "UnsupportedFormat", lines[1].Kind)
	assert.True(t, lines[1].ClientFault)
	assert.NotEmpty(t, lines[1].Error)
}

func TestDetectNeedsInput(t *testing.T) {
	useStubBackend(t)
	_, err := run(t)
	assert.ErrorContains(t, err, "no images given")

	_, err = run(t, "--confidence", "1.5", "x.png")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestBenchCommand(t *testing.T) {
	stub := useStubBackend(t)
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	err := app.Run([]string{"detect", "--model", "model.onnx", "--log-level", "error",
		"bench", "--iterations", "1", "--warmup", "0"})
	require.NoError(t, err)
	assert.True(t, stub.closed)

	var names []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m struct {
			Scenario struct {
				Name string `json:"name"`
			} `json:"scenario"`
			Frames         int `json:"frames"`
			DetectionCount int `json:"detection_count"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		assert.Equal(t, 1, m.Frames)
		assert.Equal(t, 2, m.DetectionCount)
		names = append(names, m.Scenario.Name)
	}
	assert.Equal(t, []string{"quick_1280x720", "quick_1920x1080"}, names)
}
