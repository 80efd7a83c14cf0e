//go:build noopencv

package ai

import (
	"fmt"

	"crackdetector/internal/model"
)

// DrawRectangle needs OpenCV; builds tagged noopencv only report ErrUnavailable.
func (s *DetectorService) DrawRectangle(_ []model.Detection, _ []byte) ([]byte, error) {
	return nil, fmt.Errorf("annotation: %w", ErrUnavailable)
}
