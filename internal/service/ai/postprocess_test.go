package ai

import (
	"math"
	"testing"
)

func TestFilterDetections_SwapsToXYOrder(t *testing.T) {
	out := &Outputs{
		Boxes:  [][4]float32{{0.1, 0.2, 0.4, 0.6}},
		Scores: []float32{0.9},
	}

	detections := FilterDetections(out)

	if len(detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(detections))
	}
	if detections[0].Score != 0.9 {
		t.Errorf("Expected score 0.9, got %v", detections[0].Score)
	}
	expected := [4]float32{0.2, 0.1, 0.6, 0.4}
	if detections[0].Box != expected {
		t.Errorf("Expected box %v, got %v", expected, detections[0].Box)
	}
}

func TestFilterDetections_Threshold(t *testing.T) {
	out := &Outputs{
		Boxes: [][4]float32{
			{0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1},
		},
		Scores: []float32{0.5, 0.50001, 0.1, 1.0, float32(math.NaN())},
	}

	detections := FilterDetections(out)

	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d: %v", len(detections), detections)
	}
	for _, d := range detections {
		if !(d.Score > ScoreThreshold && d.Score <= 1) {
			t.Errorf("Score %v outside (0.5, 1]", d.Score)
		}
	}
}

func TestFilterDetections_AllBelowThreshold(t *testing.T) {
	out := &Outputs{
		Boxes:  [][4]float32{{0.1, 0.1, 0.2, 0.2}, {0.3, 0.3, 0.4, 0.4}},
		Scores: []float32{0.5, 0.49},
	}

	detections := FilterDetections(out)

	if detections == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(detections) != 0 {
		t.Errorf("Expected no detections, got %v", detections)
	}
}

func TestFilterDetections_ClampsAndOrders(t *testing.T) {
	out := &Outputs{
		Boxes: [][4]float32{
			{-0.05, 0.3, 1.2, 0.1},
		},
		Scores: []float32{1.3},
	}

	detections := FilterDetections(out)

	if len(detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(detections))
	}
	d := detections[0]
	if d.Score != 1 {
		t.Errorf("Expected score clamped to 1, got %v", d.Score)
	}
	expected := [4]float32{0.1, 0, 0.3, 1}
	if d.Box != expected {
		t.Errorf("Expected box %v, got %v", expected, d.Box)
	}
	for _, v := range d.Box {
		if v < 0 || v > 1 {
			t.Errorf("Coordinate %v outside [0,1]", v)
		}
	}
}

func TestFilterDetections_MismatchedLengths(t *testing.T) {
	out := &Outputs{
		Boxes:  [][4]float32{{0.1, 0.1, 0.2, 0.2}},
		Scores: []float32{0.9, 0.9, 0.9},
	}

	if got := len(FilterDetections(out)); got != 1 {
		t.Errorf("Expected 1 detection, got %d", got)
	}
	if got := len(FilterDetections(nil)); got != 0 {
		t.Errorf("Expected no detections for nil outputs, got %d", got)
	}
}
