// Package preprocess - Letterbox preprocessing: encoded frame to planar model input tensor.
package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
)

// Channels is the number of planes in the input tensor (R, G, B).
const Channels = 3

// Resizer scales image content to exact pixel dimensions.
type Resizer interface {
	Resize(img image.Image, width, height int) image.Image
}

// NFNTResizer resizes with nfnt/resize Lanczos3.
type NFNTResizer struct{}

// Resize implements Resizer.
func (NFNTResizer) Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ImagingResizer resizes with disintegration/imaging Lanczos.
type ImagingResizer struct{}

// Resize implements Resizer.
func (ImagingResizer) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// NewResizer returns the Resizer for a configured resampler name.
func NewResizer(name models.Resampler) (Resizer, error) {
	switch name {
	case models.ResamplerNFNT, "":
		return NFNTResizer{}, nil
	case models.ResamplerImaging:
		return ImagingResizer{}, nil
	default:
		return nil, errors.Errorf("unknown resampler %q", name)
	}
}

// Result contains the model input tensor and the transform needed to invert it.
type Result struct {
	// Data is the planar float32 tensor [R plane][G plane][B plane], each row-major S x S,
	// values in [0, 1].
	Data []float32
	// Shape is the tensor shape [1, 3, S, S].
	Shape []int64
	// Letterbox maps model-space coordinates back to the source image.
	Letterbox images.Letterbox
	// Format is the detected encoding of the source bytes.
	Format images.ImageFormat
}

// Preprocessor turns frames into model input. It holds no per-frame state and is safe for
// concurrent use.
type Preprocessor struct {
	config     models.Config
	resizer    Resizer
	background *image.NRGBA
	scale      [256]float32
	logger     *zap.Logger
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Preprocessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithResizer overrides the resizer selected by the config.
func WithResizer(r Resizer) Option {
	return func(p *Preprocessor) {
		if r != nil {
			p.resizer = r
		}
	}
}

// NewPreprocessor creates a preprocessor for the given model parameters.
//
// Arguments:
//   - config: The model parameters. InputSize, PadValue, MaxImageBytes and Resampler are used.
//   - opts: Optional logger and resizer overrides.
//
// Returns:
//   - *Preprocessor: The configured preprocessor.
//   - error: An error if the config is invalid.
//
// @example
//
//	p, err := NewPreprocessor(models.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := p.Preprocess(jpegBytes)
func NewPreprocessor(config models.Config, opts ...Option) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model config")
	}
	resizer, err := NewResizer(config.Resampler)
	if err != nil {
		return nil, err
	}

	pad := config.PadValue
	p := &Preprocessor{
		config:     config,
		resizer:    resizer,
		background: imaging.New(config.InputSize, config.InputSize, color.NRGBA{R: pad, G: pad, B: pad, A: 255}),
		logger:     zap.NewNop(),
	}
	for i := range p.scale {
		p.scale[i] = float32(i) / 255.0
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Preprocess validates, decodes and letterboxes an encoded frame.
//
// Arguments:
//   - data: The encoded JPEG, PNG or WebP frame.
//
// Returns:
//   - *Result: The input tensor and letterbox transform.
//   - error: common.ErrBadInput or common.ErrUnsupportedFormat (wrapped) on rejected input.
func (p *Preprocessor) Preprocess(data []byte) (*Result, error) {
	decoded, format, err := images.DecodeBytes(data, p.config.MaxImageBytes)
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}

	p.logger.Debug("decoded frame",
		zap.Stringer("format", format),
		zap.Int("width", decoded.Bounds().Dx()),
		zap.Int("height", decoded.Bounds().Dy()),
		zap.Int("bytes", len(data)))

	res, err := p.PreprocessImage(decoded)
	if err != nil {
		return nil, err
	}
	res.Format = format
	return res, nil
}

// PreprocessImage letterboxes an already decoded image.
//
// The content is resized to round(w*ratio) x round(h*ratio), pasted at (PadX, PadY) on a
// S x S canvas filled with PadValue, stripped of alpha, scaled to [0, 1] and laid out as
// R, G, B planes.
func (p *Preprocessor) PreprocessImage(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	size := p.config.InputSize

	lb, err := images.NewLetterbox(bounds.Dx(), bounds.Dy(), size)
	if err != nil {
		return nil, errors.Wrap(err, "letterbox failed")
	}

	content := img
	if lb.NewWidth != bounds.Dx() || lb.NewHeight != bounds.Dy() {
		content = p.resizer.Resize(img, lb.NewWidth, lb.NewHeight)
	}
	canvas := imaging.Paste(p.background, content, image.Pt(lb.PadX, lb.PadY))

	p.logger.Debug("letterboxed frame",
		zap.Float64("ratio", lb.Ratio),
		zap.Int("pad_x", lb.PadX),
		zap.Int("pad_y", lb.PadY),
		zap.Int("new_width", lb.NewWidth),
		zap.Int("new_height", lb.NewHeight))

	return &Result{
		Data:      p.toTensor(canvas),
		Shape:     []int64{1, Channels, int64(size), int64(size)},
		Letterbox: lb,
	}, nil
}

// toTensor converts the S x S canvas into a planar CHW tensor. The alpha byte is ignored.
func (p *Preprocessor) toTensor(canvas *image.NRGBA) []float32 {
	size := p.config.InputSize
	plane := size * size
	tensor := make([]float32, Channels*plane)

	red := tensor[0:plane]
	green := tensor[plane : 2*plane]
	blue := tensor[2*plane : 3*plane]

	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+size*4]
		offset := y * size
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+4]
			red[offset+x] = p.scale[px[0]]
			green[offset+x] = p.scale[px[1]]
			blue[offset+x] = p.scale[px[2]]
		}
	}
	return tensor
}
