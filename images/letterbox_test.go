package images

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
)

// TestNewLetterboxSquareIdentity verifies a 640x640 source maps onto the model input unchanged.
func TestNewLetterboxSquareIdentity(t *testing.T) {
	lb, err := NewLetterbox(640, 640, 640)
	require.NoError(t, err)

	assert.Equal(t, 1.0, lb.Ratio)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 0, lb.PadY)
	assert.Equal(t, 640, lb.NewWidth)
	assert.Equal(t, 640, lb.NewHeight)
}

// TestNewLetterboxWidescreen verifies the 1280x720 example: content 640x360, 140px bars.
func TestNewLetterboxWidescreen(t *testing.T) {
	lb, err := NewLetterbox(1280, 720, 640)
	require.NoError(t, err)

	assert.Equal(t, 0.5, lb.Ratio)
	assert.Equal(t, 640, lb.NewWidth)
	assert.Equal(t, 360, lb.NewHeight)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 0, lb.PadRight())
	assert.Equal(t, 140, lb.PadY)
	assert.Equal(t, 140, lb.PadBottom())
}

// TestNewLetterboxPaddingSplit verifies the floor/remainder split for odd slack and that the
// pieces always add up to the model size.
func TestNewLetterboxPaddingSplit(t *testing.T) {
	tests := []struct {
		width, height int
		padX, padY    int
		right, bottom int
	}{
		// ratio 640/1000 = 0.64, newH = round(0.64*333) = round(213.12) = 213, slack 427.
		{width: 1000, height: 333, padX: 0, padY: 213, right: 0, bottom: 214},
		// ratio 640/480 = 1.333..., newW = round(1.333*101) = 135, slack 505.
		{width: 101, height: 480, padX: 252, padY: 0, right: 253, bottom: 0},
		{width: 1920, height: 1080, padX: 0, padY: 140, right: 0, bottom: 140},
		{width: 1, height: 1, padX: 0, padY: 0, right: 0, bottom: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.width, tt.height), func(t *testing.T) {
			lb, err := NewLetterbox(tt.width, tt.height, 640)
			require.NoError(t, err)

			assert.Equal(t, tt.padX, lb.PadX)
			assert.Equal(t, tt.padY, lb.PadY)
			assert.Equal(t, tt.right, lb.PadRight())
			assert.Equal(t, tt.bottom, lb.PadBottom())
			assert.Equal(t, 640, lb.PadX+lb.NewWidth+lb.PadRight())
			assert.Equal(t, 640, lb.PadY+lb.NewHeight+lb.PadBottom())
		})
	}
}

// TestNewLetterboxExtremeAspect verifies the short side never collapses to zero pixels.
func TestNewLetterboxExtremeAspect(t *testing.T) {
	lb, err := NewLetterbox(10000, 2, 640)
	require.NoError(t, err)

	assert.Equal(t, 640, lb.NewWidth)
	assert.Equal(t, 1, lb.NewHeight)
	assert.Equal(t, 319, lb.PadY)
	assert.Equal(t, 320, lb.PadBottom())
}

func TestNewLetterboxRejectsInvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-5, 10}} {
		_, err := NewLetterbox(dims[0], dims[1], 640)
		require.Error(t, err)
		assert.Equal(t, common.KindBadInput, common.KindOf(err))
	}

	_, err := NewLetterbox(10, 10, 0)
	assert.Error(t, err)
}

// TestLetterboxInvertibility verifies Inverse(Forward(p)) == p for a spread of image sizes.
func TestLetterboxInvertibility(t *testing.T) {
	sizes := [][2]int{{640, 640}, {1280, 720}, {720, 1280}, {333, 1000}, {7, 3}, {4096, 2160}}

	for _, size := range sizes {
		lb, err := NewLetterbox(size[0], size[1], 640)
		require.NoError(t, err)

		points := [][2]float64{
			{0, 0},
			{float64(size[0]), float64(size[1])},
			{float64(size[0]) / 3, float64(size[1]) / 7},
		}
		for _, p := range points {
			mx, my := lb.Forward(p[0], p[1])
			x, y := lb.Inverse(mx, my)
			assert.InDelta(t, p[0], x, 1e-9, "x for %v in %dx%d", p, size[0], size[1])
			assert.InDelta(t, p[1], y, 1e-9, "y for %v in %dx%d", p, size[0], size[1])
		}
	}
}

func TestLetterboxClamp(t *testing.T) {
	lb, err := NewLetterbox(1280, 720, 640)
	require.NoError(t, err)

	x, y := lb.Clamp(-3, 900)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 720.0, y)

	x, y = lb.Clamp(1300, -1)
	assert.Equal(t, 1280.0, x)
	assert.Equal(t, 0.0, y)
}
