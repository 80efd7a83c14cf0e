package route

import (
	"net/http"

	"crackdetector/internal/config"
	"crackdetector/internal/handler"
	"crackdetector/internal/logger"
	"crackdetector/internal/middleware"
	"crackdetector/internal/service/ai"
	wshub "crackdetector/internal/service/websocket"
)

// SetupRoutes registers the capture page, detection endpoints, health and log
// endpoints, and wraps the mux with recover, logging and CORS middleware.
func SetupRoutes(detector *ai.DetectorService, hub *wshub.HubService, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Capture client
	mux.HandleFunc("/", handler.IndexHandler())

	// Detection endpoints
	mux.HandleFunc("/detect", handler.DetectHandler(detector, cfg, log))
	mux.HandleFunc("/detect/annotated", handler.AnnotatedDetectHandler(detector, cfg, log))
	mux.HandleFunc("/ws/detect", handler.StreamDetectHandler(detector, hub, cfg, log))
	mux.HandleFunc("/health", handler.HealthHandler(detector, hub))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	// Apply middleware
	return middleware.CORSMiddleware(middleware.LoggingMiddleware(log, middleware.RecoverMiddleware(log, mux)))
}
