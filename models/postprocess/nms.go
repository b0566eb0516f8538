// Package postprocess - Greedy non-maximum suppression.
package postprocess

import (
	"cmp"
	"slices"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float32 // Overlap above which the lower-confidence box is suppressed.
	MaxDetections int     // Upper bound on kept boxes. Zero or less disables the cap.
	ClassAware    bool    // If true, suppress only within same class.
}

// ApplyNMS filters overlapping detections using greedy Non-Maximum Suppression.
//
// Detections are ordered by confidence, highest first, with ties kept in input order. The
// best remaining detection is kept and every remaining detection whose IoU with it exceeds
// IoUThreshold is dropped, until nothing remains or MaxDetections are kept.
//
// Arguments:
//   - detections: The decoded detections in decode order. The slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - []Detection: The kept detections by descending confidence. Never nil.
func ApplyNMS(detections []Detection, config NMSConfig) []Detection {
	n := len(detections)
	if n == 0 {
		return []Detection{}
	}

	sorted := slices.Clone(detections)
	slices.SortStableFunc(sorted, func(a, b Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	limit := n
	if config.MaxDetections > 0 && config.MaxDetections < n {
		limit = config.MaxDetections
	}

	boxes := make([]images.Rect, n)
	for i := range sorted {
		boxes[i] = sorted[i].Box()
	}

	used := make([]bool, n)
	kept := make([]Detection, 0, limit)

	for i := 0; i < n && len(kept) < limit; i++ {
		if used[i] {
			continue
		}
		kept = append(kept, sorted[i])
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[i].Class != sorted[j].Class {
				continue
			}
			if images.CalculateIoU(boxes[i], boxes[j]) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept
}
