package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "MODEL_PATH", "INFERENCE_WORKERS", "OUTPUT_BOXES_INDEX",
		"OUTPUT_CLASSES_INDEX", "OUTPUT_SCORES_INDEX", "MAX_UPLOAD_MB"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", cfg.Port)
	}
	if cfg.InferenceWorkers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.InferenceWorkers)
	}
	if cfg.BoxesOutputIndex != 0 || cfg.ClassesOutputIndex != 1 || cfg.ScoresOutputIndex != 2 {
		t.Errorf("Unexpected default mapping: %d/%d/%d", cfg.BoxesOutputIndex, cfg.ClassesOutputIndex, cfg.ScoresOutputIndex)
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Errorf("Expected 10MB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("MODEL_PATH", "/models/crack.onnx")
	t.Setenv("INFERENCE_WORKERS", "4")
	t.Setenv("OUTPUT_CLASSES_INDEX", "-1")
	t.Setenv("MAX_UPLOAD_MB", "abc")
	t.Setenv("INFERENCE_THREADS", " 3 ")
	t.Setenv("LOG_LEVEL", "   ")

	cfg := Load()

	if cfg.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Port)
	}
	if cfg.ModelPath != "/models/crack.onnx" {
		t.Errorf("Expected model path from env, got %s", cfg.ModelPath)
	}
	if cfg.InferenceWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.InferenceWorkers)
	}
	if cfg.ClassesOutputIndex != -1 {
		t.Errorf("Expected classes disabled, got %d", cfg.ClassesOutputIndex)
	}
	if cfg.MaxUploadSize != 10 {
		t.Errorf("Invalid number should fall back to default, got %d", cfg.MaxUploadSize)
	}
	if cfg.InferenceThreads != 3 {
		t.Errorf("Expected surrounding spaces ignored, got %d threads", cfg.InferenceThreads)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Blank value should fall back to default, got %q", cfg.LogLevel)
	}
}

func TestValidate_Invalid(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:               5000,
			ModelPath:          "model.tflite",
			InferenceWorkers:   1,
			InferenceThreads:   1,
			BoxesOutputIndex:   0,
			ClassesOutputIndex: 1,
			ScoresOutputIndex:  2,
			MaxUploadSize:      10,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"empty model", func(c *Config) { c.ModelPath = "" }},
		{"no workers", func(c *Config) { c.InferenceWorkers = 0 }},
		{"no threads", func(c *Config) { c.InferenceThreads = 0 }},
		{"no upload", func(c *Config) { c.MaxUploadSize = 0 }},
		{"boxes unset", func(c *Config) { c.BoxesOutputIndex = -1 }},
		{"duplicate boxes/scores", func(c *Config) { c.ScoresOutputIndex = 0 }},
		{"duplicate classes", func(c *Config) { c.ClassesOutputIndex = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}
