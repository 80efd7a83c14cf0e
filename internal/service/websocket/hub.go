package websocket

import (
	"sync"
	"time"

	"crackdetector/internal/logger"

	"github.com/gorilla/websocket"
)

// HubService tracks open streaming connections and closes them on shutdown.
type HubService struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	shutdown   chan struct{}
	done       chan struct{}
	once       sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register/unregister requests until Shutdown is called.
func (h *HubService) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Stream connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Stream disconnected. Total: %d", count)

		case <-h.shutdown:
			h.closeAll()
			return
		}
	}
}

// closeAll sends a going-away close frame to every client and drops it.
func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	deadline := time.Now().Add(time.Second)
	for client := range h.clients {
		if err := client.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			h.logger.Warning("Error sending close frame: %v", err)
		}
		client.Close()
		delete(h.clients, client)
	}
	h.logger.Info("All streams closed")
}

// Register adds a client. It returns false once the hub has shut down.
func (h *HubService) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes a client.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Shutdown closes every client and stops Run. It waits for Run to exit.
func (h *HubService) Shutdown() {
	h.once.Do(func() {
		close(h.shutdown)
	})
	<-h.done
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
