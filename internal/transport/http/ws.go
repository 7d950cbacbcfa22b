package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"stablewatch/internal/domain/job"
)

// Hub fans job state changes out to connected websocket clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHub creates the websocket broadcast hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the connection and keeps it registered until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Drain reads to observe the close.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastJob sends a job state change to every connected client.
func (h *Hub) BroadcastJob(j job.Job) {
	update := map[string]interface{}{
		"type":     "job_update",
		"jobId":    j.ID,
		"streamId": j.Chunk.StreamID,
		"chunkId":  j.Chunk.ID,
		"status":   j.Status,
		"attempts": j.Attempts,
	}
	if j.Status == job.StatusFailed && j.LastError != "" {
		update["error"] = j.LastError
	}

	data, err := json.Marshal(update)
	if err != nil {
		return
	}

	h.mu.Lock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
	h.mu.Unlock()
}
