package handler_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"crackdetector/internal/config"
	"crackdetector/internal/logger"
	"crackdetector/internal/service/ai"
	"crackdetector/internal/service/ai/aitest"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               5000,
		ModelPath:          "test.tflite",
		InferenceWorkers:   1,
		InferenceThreads:   1,
		BoxesOutputIndex:   0,
		ClassesOutputIndex: 1,
		ScoresOutputIndex:  2,
		MaxUploadSize:      1,
	}
}

func setupLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "info"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(log.Close)
	return log
}

func setupDetector(t *testing.T, log *logger.Logger, engines ...*aitest.Engine) *ai.DetectorService {
	t.Helper()

	pool, err := aitest.Pool(engines...)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	detector := ai.NewDetectorServiceWithPool(pool, "test.tflite", log)
	t.Cleanup(detector.Close)
	return detector
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart request carrying data in the given form field.
func uploadRequest(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if data != nil {
		part, err := writer.CreateFormFile(field, "frame.png")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
