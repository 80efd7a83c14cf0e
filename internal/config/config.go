package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	ModelPath          string
	InferenceWorkers   int // Liczba niezależnie załadowanych instancji modelu
	InferenceThreads   int // Wątki runtime na jedną instancję
	BoxesOutputIndex   int
	ClassesOutputIndex int // -1 wyłącza kanał klas
	ScoresOutputIndex  int
	MaxUploadSize      int64 // Maksymalny rozmiar uploadu w MB
	OnnxRuntimeLib     string
	LogDirectory       string
	LogLevel           string
	ShutdownTimeout    int // Sekundy na łagodne zamknięcie serwera
}

// Load reads the optional .env file and builds the configuration from the environment.
func Load() *Config {
	// brak pliku .env nie jest błędem
	_ = godotenv.Load()

	return &Config{
		Port:               getEnvAsInt("PORT", 5000),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "wallcrack.tflite")),
		InferenceWorkers:   getEnvAsInt("INFERENCE_WORKERS", 2),
		InferenceThreads:   getEnvAsInt("INFERENCE_THREADS", 1),
		BoxesOutputIndex:   getEnvAsInt("OUTPUT_BOXES_INDEX", 0),
		ClassesOutputIndex: getEnvAsInt("OUTPUT_CLASSES_INDEX", 1),
		ScoresOutputIndex:  getEnvAsInt("OUTPUT_SCORES_INDEX", 2),
		MaxUploadSize:      getEnvAsInt64("MAX_UPLOAD_MB", 10),
		OnnxRuntimeLib:     getEnv("ONNXRUNTIME_LIB", ""),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:    getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
	}
}

// Validate checks values that would otherwise only fail once the server is running.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model path is empty")
	}
	if c.InferenceWorkers <= 0 {
		return fmt.Errorf("inference workers must be positive, got %d", c.InferenceWorkers)
	}
	if c.InferenceThreads <= 0 {
		return fmt.Errorf("inference threads must be positive, got %d", c.InferenceThreads)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	}
	if c.BoxesOutputIndex < 0 || c.ScoresOutputIndex < 0 {
		return fmt.Errorf("boxes and scores output indices must be set")
	}
	if c.BoxesOutputIndex == c.ScoresOutputIndex ||
		c.BoxesOutputIndex == c.ClassesOutputIndex ||
		c.ScoresOutputIndex == c.ClassesOutputIndex {
		return fmt.Errorf("output indices must be distinct: boxes=%d classes=%d scores=%d",
			c.BoxesOutputIndex, c.ClassesOutputIndex, c.ScoresOutputIndex)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSize << 20
}

func getEnv(key, defaultValue string) string {
	return envOr(key, defaultValue, func(v string) (string, error) { return v, nil })
}

func getEnvAsInt(key string, defaultValue int) int {
	return envOr(key, defaultValue, strconv.Atoi)
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	return envOr(key, defaultValue, func(v string) (int64, error) {
		return strconv.ParseInt(v, 10, 64)
	})
}

// envOr parses the trimmed variable, falling back to defaultValue when it is
// unset, blank or unparsable.
func envOr[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := parse(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
