package app

import (
	"context"
	"testing"
	"time"

	"crackdetector/internal/config"
	"crackdetector/internal/logger"
	"crackdetector/internal/service/ai"
	"crackdetector/internal/service/ai/aitest"
)

func TestNewApp_InvalidConfig(t *testing.T) {
	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	if _, err := NewApp(&config.Config{Port: 0}, log); err == nil {
		t.Error("Expected error for invalid configuration")
	}
}

func TestNewApp_MissingModel(t *testing.T) {
	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	cfg := &config.Config{
		Port:               5000,
		ModelPath:          "/nonexistent/wallcrack.tflite",
		InferenceWorkers:   1,
		InferenceThreads:   1,
		BoxesOutputIndex:   0,
		ClassesOutputIndex: 1,
		ScoresOutputIndex:  2,
		MaxUploadSize:      10,
	}

	if _, err := NewApp(cfg, log); err == nil {
		t.Error("Expected error for missing model file")
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()

	engine := aitest.NewEngine(8, 8, 1, aitest.Fixed(nil, nil))
	pool, err := aitest.Pool(engine)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	cfg := &config.Config{Port: 0, MaxUploadSize: 1, ShutdownTimeout: 1}
	application := newApp(cfg, log, ai.NewDetectorServiceWithPool(pool, "test.tflite", log))
	application.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !engine.Closed() {
		t.Error("Expected model released on shutdown")
	}
}
