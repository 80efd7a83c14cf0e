package ai

import (
	"context"
	"image"
	"time"

	"crackdetector/internal/config"
	"crackdetector/internal/logger"
	"crackdetector/internal/model"
)

type DetectorService struct {
	pool      *Pool
	modelPath string
	logger    *logger.Logger
}

// NewDetectorService loads cfg.InferenceWorkers independent copies of the model.
// Any layout mismatch is reported here, before the server starts.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) (*DetectorService, error) {
	opts := EngineOptions{
		Threads: cfg.InferenceThreads,
		Mapping: OutputMapping{
			Boxes:   cfg.BoxesOutputIndex,
			Classes: cfg.ClassesOutputIndex,
			Scores:  cfg.ScoresOutputIndex,
		},
		OnnxRuntimeLib: cfg.OnnxRuntimeLib,
	}

	pool, err := NewPool(cfg.InferenceWorkers, func() (Engine, error) {
		return OpenEngine(cfg.ModelPath, opts)
	})
	if err != nil {
		return nil, err
	}

	layout := pool.Layout()
	logger.Info("Detection model %s loaded: input %dx%d (%s), %d outputs, %d detection slots, %d instances",
		cfg.ModelPath, layout.Width, layout.Height, layout.InputType, len(layout.Outputs), layout.Detections, pool.Size())

	return NewDetectorServiceWithPool(pool, cfg.ModelPath, logger), nil
}

// NewDetectorServiceWithPool wraps an already loaded engine pool.
func NewDetectorServiceWithPool(pool *Pool, modelPath string, logger *logger.Logger) *DetectorService {
	return &DetectorService{
		pool:      pool,
		modelPath: modelPath,
		logger:    logger,
	}
}

// DetectObjects decodes the uploaded image and returns the detections above ScoreThreshold.
func (s *DetectorService) DetectObjects(ctx context.Context, imageBytes []byte) ([]model.Detection, error) {
	img, err := DecodeImage(imageBytes)
	if err != nil {
		return nil, err
	}
	return s.DetectImage(ctx, img)
}

// DetectImage runs one inference pass on an already decoded image.
func (s *DetectorService) DetectImage(ctx context.Context, img image.Image) ([]model.Detection, error) {
	layout := s.pool.Layout()
	input := PrepareInput(img, layout.Height, layout.Width)

	start := time.Now()
	outputs, err := s.pool.Infer(ctx, input)
	if err != nil {
		return nil, err
	}

	detections := FilterDetections(outputs)
	s.logger.Info("Detected %d crack(s) in %v", len(detections), time.Since(start))

	return detections, nil
}

// Layout returns the input/output layout of the loaded model.
func (s *DetectorService) Layout() Layout {
	return s.pool.Layout()
}

// Workers returns the number of model instances serving requests.
func (s *DetectorService) Workers() int {
	return s.pool.Size()
}

// ModelPath returns the path the model was loaded from.
func (s *DetectorService) ModelPath() string {
	return s.modelPath
}

// Close waits for in-flight inferences and releases every model instance.
func (s *DetectorService) Close() {
	s.pool.Close()
	s.logger.Info("Detection model released")
}
