package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"crackdetector/internal/config"
	"crackdetector/internal/logger"
	"crackdetector/internal/model"
	"crackdetector/internal/service/ai"
)

// MissingImageMessage is the error returned when the "image" form field is absent.
const MissingImageMessage = "No image uploaded"

// DetectHandler handles POST /detect: one multipart "image" file in, a JSON
// array of detections out.
func DetectHandler(detector *ai.DetectorService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		imageData, ok := readImageUpload(w, r, cfg.MaxUploadBytes(), logger)
		if !ok {
			return
		}

		detections, ok := detect(r.Context(), w, detector, imageData, logger)
		if !ok {
			return
		}

		respondJSON(w, detections, http.StatusOK)
	}
}

// AnnotatedDetectHandler handles POST /detect/annotated and returns the upload
// as JPEG with the detected boxes drawn on it.
func AnnotatedDetectHandler(detector *ai.DetectorService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		imageData, ok := readImageUpload(w, r, cfg.MaxUploadBytes(), logger)
		if !ok {
			return
		}

		detections, ok := detect(r.Context(), w, detector, imageData, logger)
		if !ok {
			return
		}

		annotated, err := detector.DrawRectangle(detections, imageData)
		if errors.Is(err, ai.ErrUnavailable) {
			respondError(w, "Annotation is not available in this build", http.StatusNotImplemented)
			return
		}
		if err != nil {
			logger.Error("Failed to annotate image: %v", err)
			respondError(w, "Failed to annotate image", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Detections", fmt.Sprintf("%d", len(detections)))
		w.Write(annotated)
	}
}

// readImageUpload reads the "image" form file, writing the error response itself on failure.
func readImageUpload(w http.ResponseWriter, r *http.Request, maxBytes int64, logger *logger.Logger) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, _, err := r.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			respondError(w, "Image too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		respondError(w, MissingImageMessage, http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read upload: %v", err)
		respondError(w, "Failed to read image", http.StatusBadRequest)
		return nil, false
	}

	return imageData, true
}

// detect runs the detector and maps its errors onto HTTP statuses.
func detect(ctx context.Context, w http.ResponseWriter, detector *ai.DetectorService, imageData []byte, logger *logger.Logger) ([]model.Detection, bool) {
	detections, err := detector.DetectObjects(ctx, imageData)
	if err == nil {
		return detections, true
	}

	message, status := detectionError(err, logger)
	respondError(w, message, status)
	return nil, false
}

// detectionError logs a detection failure and returns the client-facing
// message with its HTTP status.
func detectionError(err error, logger *logger.Logger) (string, int) {
	switch {
	case errors.Is(err, ai.ErrDecode):
		logger.Warning("Rejected upload: %v", err)
		return decodeMessage(err), http.StatusBadRequest
	case errors.Is(err, ai.ErrPoolClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warning("Detection aborted: %v", err)
		return "Detection service unavailable", http.StatusServiceUnavailable
	default:
		logger.Error("Detection failed: %v", err)
		return "Detection failed", http.StatusInternalServerError
	}
}

// decodeMessage turns "failed to decode image: reason" into "Failed to decode image: reason".
func decodeMessage(err error) string {
	reason := strings.TrimPrefix(err.Error(), ai.ErrDecode.Error())
	return "Failed to decode image" + reason
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
