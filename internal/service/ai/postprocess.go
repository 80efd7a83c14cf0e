package ai

import (
	"crackdetector/internal/model"
)

// ScoreThreshold is the minimum confidence a detection must exceed to be returned.
const ScoreThreshold = 0.5

// FilterDetections keeps detections scoring above ScoreThreshold and reorders
// each box from the tensor's (ymin, xmin, ymax, xmax) into (xmin, ymin, xmax, ymax).
func FilterDetections(out *Outputs) []model.Detection {
	detections := make([]model.Detection, 0)
	if out == nil {
		return detections
	}

	n := len(out.Scores)
	if len(out.Boxes) < n {
		n = len(out.Boxes)
	}

	for i := 0; i < n; i++ {
		score := out.Scores[i]
		// NaN fails this comparison too
		if !(score > ScoreThreshold) {
			continue
		}
		if score > 1 {
			score = 1
		}

		ymin, xmin, ymax, xmax := out.Boxes[i][0], out.Boxes[i][1], out.Boxes[i][2], out.Boxes[i][3]
		xmin, xmax = orderedUnit(xmin, xmax)
		ymin, ymax = orderedUnit(ymin, ymax)

		detections = append(detections, model.Detection{
			Score: score,
			Box:   [4]float32{xmin, ymin, xmax, ymax},
		})
	}

	return detections
}

// orderedUnit clamps both values into [0,1] and returns them as (min, max).
func orderedUnit(a, b float32) (float32, float32) {
	a, b = clampUnit(a), clampUnit(b)
	if a > b {
		return b, a
	}
	return a, b
}

func clampUnit(v float32) float32 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
