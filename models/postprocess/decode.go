// Package postprocess - Candidate row decoding into detections.
package postprocess

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
)

// normalizedLimit is the largest |w|, |h|, xc and yc of a box read as normalized.
const normalizedLimit = 2

// Decode converts resolved candidate rows into detections in source-image space.
//
// For each row [xc, yc, w, h, score_0 ... score_k]:
//   - the class is the argmax of the scores (first maximum wins, NaN scores never win);
//   - the best score is passed through the logistic function when it is outside [0, 1];
//   - rows with confidence <= config.ConfidenceThreshold are dropped, the rest are capped at 1;
//   - the box is scaled by config.InputSize when |w|, |h|, xc and yc are all <= 2;
//   - the centre box is converted to corners, mapped through the inverse letterbox and
//     clamped to the source image.
//
// config.ScoreFormat and config.BoxFormat replace the two guesses when set to anything other
// than auto. Rows with a non-finite box or no comparable score are skipped.
//
// Arguments:
//   - resolved: The candidate-major output.
//   - letterbox: The transform used to build the input tensor.
//   - config: The model parameters.
//
// Returns:
//   - []Detection: Candidates in row order. Never nil.
func Decode(resolved *Resolved, letterbox images.Letterbox, config models.Config) []Detection {
	detections := []Detection{}
	if resolved == nil || resolved.Stride <= 4 {
		return detections
	}

	size := float32(config.InputSize)
	rows := resolved.Rows()
	for i := 0; i < rows; i++ {
		row := resolved.Row(i)

		class, score := argmax(row[4:])
		if class < 0 {
			continue
		}

		confidence := score
		if useSigmoid(config.ScoreFormat, score) {
			confidence = sigmoid(score)
		}
		if !(confidence > config.ConfidenceThreshold) {
			continue
		}
		confidence = min(confidence, 1)

		xc, yc, w, h := row[0], row[1], row[2], row[3]
		if !finite(xc) || !finite(yc) || !finite(w) || !finite(h) {
			continue
		}
		if useNormalized(config.BoxFormat, xc, yc, w, h) {
			xc, yc, w, h = xc*size, yc*size, w*size, h*size
		}

		x1, y1 := letterbox.Clamp(letterbox.Inverse(float64(xc-w/2), float64(yc-h/2)))
		x2, y2 := letterbox.Clamp(letterbox.Inverse(float64(xc+w/2), float64(yc+h/2)))
		box := images.Rect{X1: float32(x1), Y1: float32(y1), X2: float32(x2), Y2: float32(y2)}.Canon()

		detections = append(detections, Detection{
			X1:         box.X1,
			Y1:         box.Y1,
			X2:         box.X2,
			Y2:         box.Y2,
			Confidence: confidence,
			Class:      class,
			Label:      models.ClassName(class),
		})
	}
	return detections
}

// argmax returns the index and value of the first maximum score, or -1 when no score compares.
func argmax(scores []float32) (int, float32) {
	best := -1
	var bestScore float32
	for c, s := range scores {
		if math32.IsNaN(s) {
			continue
		}
		if best < 0 || s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

func useSigmoid(format models.ScoreFormat, score float32) bool {
	switch format {
	case models.ScoreLogit:
		return true
	case models.ScoreProbability:
		return false
	default:
		return score < 0 || score > 1
	}
}

func useNormalized(format models.BoxFormat, xc, yc, w, h float32) bool {
	switch format {
	case models.BoxNormalized:
		return true
	case models.BoxPixel:
		return false
	default:
		return math32.Abs(w) <= normalizedLimit && math32.Abs(h) <= normalizedLimit &&
			xc <= normalizedLimit && yc <= normalizedLimit
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
