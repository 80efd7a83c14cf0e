package handler

import (
	"net/http"

	"crackdetector/internal/dto"
	"crackdetector/internal/service/ai"
	wshub "crackdetector/internal/service/websocket"
)

// HealthHandler reports the loaded model and the number of open streams.
func HealthHandler(detector *ai.DetectorService, hub *wshub.HubService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layout := detector.Layout()
		respondJSON(w, dto.HealthInfo{
			Status:  "ok",
			Model:   detector.ModelPath(),
			Input:   [2]int{layout.Height, layout.Width},
			Workers: detector.Workers(),
			Streams: hub.GetClientCount(),
		}, http.StatusOK)
	}
}
