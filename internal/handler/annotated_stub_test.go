//go:build noopencv

package handler_test

import (
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"crackdetector/internal/handler"
	"crackdetector/internal/service/ai/aitest"
)

func TestAnnotatedDetectHandler_NotImplemented(t *testing.T) {
	log := setupLogger(t)
	engine := aitest.NewEngine(8, 8, 1, aitest.Fixed(nil, nil))
	h := handler.AnnotatedDetectHandler(setupDetector(t, log, engine), testConfig(), log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/detect/annotated", "image", solidPNG(t, 8, 8, color.White)))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", rec.Code)
	}
}
