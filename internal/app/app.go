package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crackdetector/internal/config"
	"crackdetector/internal/logger"
	"crackdetector/internal/route"
	"crackdetector/internal/service/ai"
	"crackdetector/internal/service/websocket"
)

type App struct {
	config          *config.Config
	logger          *logger.Logger
	detectorService *ai.DetectorService
	hubService      *websocket.HubService
	server          *http.Server
}

// NewApp loads the model and wires the HTTP server. It fails if the model
// cannot be loaded or does not match the configured output mapping.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	detector, err := ai.NewDetectorService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load detection model: %w", err)
	}

	return newApp(cfg, logger, detector), nil
}

func newApp(cfg *config.Config, logger *logger.Logger, detector *ai.DetectorService) *App {
	hub := websocket.NewHubService(logger)

	return &App{
		config:          cfg,
		logger:          logger,
		detectorService: detector,
		hubService:      hub,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           route.SetupRoutes(detector, hub, cfg, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully and releases the model.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run()

	a.logger.Info("🚀 Wall Crack Detector")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🤖 Model: %s (%d instance(s))", a.config.ModelPath, a.detectorService.Workers())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		a.logger.Info("🛑 Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.config.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown error: %v", err)
	}
	a.hubService.Shutdown()
	a.detectorService.Close()
	ai.ShutdownONNXRuntime()

	return serveErr
}
