package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetResolutionByType(t *testing.T) {
	res, ok := GetResolutionByType(ResolutionTypeFHD1080p)
	require.True(t, ok)
	assert.Equal(t, 1920, res.Width)
	assert.Equal(t, 1080, res.Height)
	assert.Equal(t, 2.07, res.MegaPixels())
	assert.Equal(t, "Full HD 1080p (1920x1080, 2.07MP)", res.String())

	_, ok = GetResolutionByType("8K")
	assert.False(t, ok)
}

func TestGetAllResolutionsOrdered(t *testing.T) {
	all := GetAllResolutions()
	require.Len(t, all, 9)
	assert.Equal(t, ResolutionTypeNHD, all[0].Type)
	assert.Equal(t, ResolutionType4KUHD, all[len(all)-1].Type)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height)
	}
}

// TestResolutionsLetterbox checks every camera resolution fits the default model input.
func TestResolutionsLetterbox(t *testing.T) {
	for _, res := range GetAllResolutions() {
		lb, err := NewLetterbox(res.Width, res.Height, 640)
		require.NoError(t, err, res.String())
		assert.Equal(t, 640, max(lb.NewWidth, lb.NewHeight), res.String())
		assert.Equal(t, 640, lb.PadX+lb.NewWidth+lb.PadRight(), res.String())
		assert.Equal(t, 640, lb.PadY+lb.NewHeight+lb.PadBottom(), res.String())
	}
}

func TestMegaPixelsDegenerate(t *testing.T) {
	assert.Zero(t, Resolution{Width: 0, Height: 10}.MegaPixels())
}
