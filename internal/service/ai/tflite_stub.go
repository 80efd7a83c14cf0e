//go:build notflite

package ai

import "fmt"

func openTFLite(modelPath string, _ EngineOptions) (Engine, error) {
	return nil, fmt.Errorf("tflite model %s: %w", modelPath, ErrUnavailable)
}
