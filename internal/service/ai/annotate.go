//go:build !noopencv

package ai

import (
	"fmt"
	"image"
	"image/color"

	"crackdetector/internal/model"

	"gocv.io/x/gocv"
)

const (
	labelFont  = gocv.FontHersheySimplex
	labelScale = 0.5
	labelPad   = 4
)

var crackColor = color.RGBA{R: 255, G: 64, B: 0, A: 255}

// DrawRectangle draws every detection box with a numbered score label onto
// the image and returns it re-encoded as JPEG.
func (s *DetectorService) DrawRectangle(detections []model.Detection, img []byte) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	frame := image.Rect(0, 0, mat.Cols(), mat.Rows())
	for i, d := range detections {
		box := boxRect(d.Box, frame)
		if box.Empty() {
			continue
		}
		if err := gocv.Rectangle(&mat, box, crackColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw box %d: %w", i+1, err)
		}

		label := fmt.Sprintf("crack %d (%.1f%%)", i+1, d.Score*100)
		size := gocv.GetTextSize(label, labelFont, labelScale, 1)
		if err := gocv.PutText(&mat, label, labelOrigin(box, size), labelFont, labelScale, crackColor, 1); err != nil {
			return nil, fmt.Errorf("failed to draw label %d: %w", i+1, err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Error("Failed to encode annotated image: %v", err)
		return nil, err
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// boxRect scales a normalized box to pixels and clips it to the frame.
func boxRect(box [4]float32, frame image.Rectangle) image.Rectangle {
	w, h := float32(frame.Dx()), float32(frame.Dy())
	r := image.Rect(int(box[0]*w), int(box[1]*h), int(box[2]*w), int(box[3]*h))
	return r.Intersect(frame)
}

// labelOrigin places the label baseline above the box, or inside its top edge
// when there is no room above.
func labelOrigin(box image.Rectangle, text image.Point) image.Point {
	if box.Min.Y-labelPad-text.Y >= 0 {
		return image.Pt(box.Min.X, box.Min.Y-labelPad)
	}
	return image.Pt(box.Min.X+labelPad, box.Min.Y+labelPad+text.Y)
}
