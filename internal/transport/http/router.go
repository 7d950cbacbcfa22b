package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter configures HTTP routes, metrics and static live-playlist serving.
func NewRouter(handler *Handler, liveDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/streams", handler.ListStreams).Methods("GET")
	r.HandleFunc("/api/streams/reload", handler.ReloadStreams).Methods("POST")
	r.HandleFunc("/api/streams/{id}/start", handler.StartStream).Methods("POST")
	r.HandleFunc("/api/streams/{id}/stop", handler.StopStream).Methods("POST")
	r.HandleFunc("/api/streams/{id}/restart", handler.RestartStream).Methods("POST")
	r.HandleFunc("/api/streams/{id}", handler.StreamStatus).Methods("GET")
	r.HandleFunc("/api/chunks/{id}", handler.DownloadChunk).Methods("GET")
	r.HandleFunc("/api/queue", handler.QueueStatus).Methods("GET")
	r.HandleFunc("/api/queue/history", handler.QueueHistory).Methods("GET")
	r.HandleFunc("/api/queue/failed", handler.QueueFailed).Methods("GET")
	r.HandleFunc("/api/retention/sweep", handler.TriggerSweep).Methods("POST")
	r.HandleFunc("/api/health", handler.Health).Methods("GET")
	r.HandleFunc("/api/ws", handler.ServeWS).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix("/live/").Handler(http.StripPrefix("/live/", http.FileServer(http.Dir(liveDir))))
	return r
}
