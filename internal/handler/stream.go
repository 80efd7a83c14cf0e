package handler

import (
	"net/http"

	"crackdetector/internal/config"
	"crackdetector/internal/dto"
	"crackdetector/internal/logger"
	"crackdetector/internal/service/ai"
	wshub "crackdetector/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamDetectHandler handles GET /ws/detect. Every binary message is one
// encoded frame; every reply is the JSON detection array for that frame.
func StreamDetectHandler(detector *ai.DetectorService, hub *wshub.HubService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if !hub.Register(connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		connection.SetReadLimit(cfg.MaxUploadBytes())

		for {
			messageType, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Stream closed normally")
				} else {
					logger.Warning("Stream closed with error: %v", err)
				}
				return
			}

			if messageType != websocket.BinaryMessage {
				if err := connection.WriteJSON(dto.ErrorResponse{Error: "Expected binary image frame"}); err != nil {
					return
				}
				continue
			}

			var reply interface{}
			detections, err := detector.DetectObjects(r.Context(), data)
			if err != nil {
				message, _ := detectionError(err, logger)
				reply = dto.ErrorResponse{Error: message}
			} else {
				reply = detections
			}

			if err := connection.WriteJSON(reply); err != nil {
				logger.Warning("Error sending detections: %v", err)
				return
			}
		}
	}
}
