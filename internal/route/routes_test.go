package route

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crackdetector/internal/config"
	"crackdetector/internal/dto"
	"crackdetector/internal/logger"
	"crackdetector/internal/model"
	"crackdetector/internal/service/ai"
	"crackdetector/internal/service/ai/aitest"
	wshub "crackdetector/internal/service/websocket"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{Port: 5000, MaxUploadSize: 1, LogDirectory: t.TempDir(), LogLevel: "info"}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(log.Close)

	pool, err := aitest.Pool(aitest.NewEngine(8, 8, 2, aitest.Fixed(
		[][4]float32{{0.1, 0.2, 0.4, 0.6}, {0, 0, 1, 1}},
		[]float32{0.9, 0.3},
	)))
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	detector := ai.NewDetectorServiceWithPool(pool, "test.tflite", log)
	t.Cleanup(detector.Close)

	hub := wshub.NewHubService(log)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	server := httptest.NewServer(SetupRoutes(detector, hub, cfg, log))
	t.Cleanup(server.Close)
	return server
}

func multipartImage(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(img.Bytes())
	writer.Close()
	return &body, writer.FormDataContentType()
}

func TestRoutes_Detect(t *testing.T) {
	server := setupServer(t)

	body, contentType := multipartImage(t)
	resp, err := http.Post(server.URL+"/detect", contentType, body)
	if err != nil {
		t.Fatalf("POST /detect failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	var detections []model.Detection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		t.Fatalf("Invalid JSON body: %v", err)
	}
	expected := model.Detection{Score: 0.9, Box: [4]float32{0.2, 0.1, 0.6, 0.4}}
	if len(detections) != 1 || detections[0] != expected {
		t.Errorf("Expected [%v], got %v", expected, detections)
	}
}

func TestRoutes_DetectMissingImage(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Post(server.URL+"/detect", "application/x-www-form-urlencoded", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST /detect failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	var body dto.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid JSON body: %v", err)
	}
	if body.Error != "No image uploaded" {
		t.Errorf("Unexpected error %q", body.Error)
	}
}

func TestRoutes_Endpoints(t *testing.T) {
	server := setupServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/logs/info", http.StatusOK},
		{http.MethodGet, "/logs/warning", http.StatusOK},
		{http.MethodGet, "/logs/error", http.StatusOK},
		{http.MethodPost, "/logs/warning/clear", http.StatusNoContent},
		{http.MethodGet, "/detect", http.StatusMethodNotAllowed},
		{http.MethodGet, "/detect/annotated", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodOptions, "/detect", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}
