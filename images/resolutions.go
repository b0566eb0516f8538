// Package images - Common surveillance camera resolutions.
package images

import (
	"fmt"
	"math"
	"sort"
)

// ResolutionType is the common name of a camera resolution.
type ResolutionType string

const (
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType2MP43    ResolutionType = "2MP (4:3)"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4MP169   ResolutionType = "4MP (16:9)"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// Resolution is a named frame size.
type Resolution struct {
	Type   ResolutionType `json:"type" yaml:"type"`
	Width  int            `json:"width" yaml:"width"`
	Height int            `json:"height" yaml:"height"`
}

// MegaPixels returns width*height in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return math.Round(float64(r.Width*r.Height)/1e4) / 100
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Type, r.Width, r.Height, r.MegaPixels())
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeNHD:      {Type: ResolutionTypeNHD, Width: 640, Height: 360},
	ResolutionTypeVGA:      {Type: ResolutionTypeVGA, Width: 640, Height: 480},
	ResolutionTypeHD720p:   {Type: ResolutionTypeHD720p, Width: 1280, Height: 720},
	ResolutionType1MP54:    {Type: ResolutionType1MP54, Width: 1280, Height: 1024},
	ResolutionTypeFHD1080p: {Type: ResolutionTypeFHD1080p, Width: 1920, Height: 1080},
	ResolutionType2MP43:    {Type: ResolutionType2MP43, Width: 1600, Height: 1200},
	ResolutionTypeQHD1440p: {Type: ResolutionTypeQHD1440p, Width: 2560, Height: 1440},
	ResolutionType4MP169:   {Type: ResolutionType4MP169, Width: 2688, Height: 1520},
	ResolutionType4KUHD:    {Type: ResolutionType4KUHD, Width: 3840, Height: 2160},
}

// GetResolutionByType looks up a resolution by name.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// GetAllResolutions returns every known resolution ordered by pixel count.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Width*all[i].Height, all[j].Width*all[j].Height
		if a != b {
			return a < b
		}
		return all[i].Type < all[j].Type
	})
	return all
}
