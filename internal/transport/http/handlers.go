package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stablewatch/internal/application/analysis"
	"stablewatch/internal/application/supervisor"
	"stablewatch/internal/domain/job"
	"stablewatch/internal/domain/stream"
)

type streamControl interface {
	Start(desc stream.Descriptor) error
	Stop(id string) error
	Restart(id string) error
	Status(id string) (stream.RuntimeInfo, error)
	List() []stream.RuntimeInfo
}

type chunkScheduler interface {
	Attach(desc stream.Descriptor) error
	Detach(streamID string)
	Offset(streamID string) (int, bool)
}

type descriptorSource interface {
	Get(id string) (stream.Descriptor, error)
	List() ([]stream.Descriptor, error)
	Reload() error
}

type queueView interface {
	Snapshot() analysis.Status
	History() []job.Job
	Depth() int
}

type sweepTrigger interface {
	SweepNow() (int, error)
}

type mediaFiles interface {
	PlaylistInfo(streamID string) (segments int, lastWrite time.Time, err error)
	FindChunk(chunkID string) (string, error)
}

type failureLog interface {
	RecentFailed(ctx context.Context, limit int) ([]job.Job, error)
}

// Handler wires HTTP handlers with application use cases.
type Handler struct {
	streams   streamControl
	scheduler chunkScheduler
	descs     descriptorSource
	queue     queueView
	sweeper   sweepTrigger
	files     mediaFiles
	failures  failureLog
	metrics   *analysis.Metrics
	hub       *Hub
	logger    *log.Logger
}

// NewHandler creates the control-surface handler set.
func NewHandler(streams streamControl, scheduler chunkScheduler, descs descriptorSource, queue queueView, sweeper sweepTrigger, files mediaFiles, metrics *analysis.Metrics, hub *Hub, logger *log.Logger) *Handler {
	return &Handler{
		streams:   streams,
		scheduler: scheduler,
		descs:     descs,
		queue:     queue,
		sweeper:   sweeper,
		files:     files,
		metrics:   metrics,
		hub:       hub,
		logger:    logger,
	}
}

// SetFailureLog installs the optional durable failure archive reader.
func (h *Handler) SetFailureLog(fl failureLog) {
	h.failures = fl
}

// ListStreams handles GET /api/streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	descs, err := h.descs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	running := make(map[string]stream.RuntimeInfo)
	for _, info := range h.streams.List() {
		running[info.ID] = info
	}

	resp := make([]map[string]interface{}, 0, len(descs))
	for _, desc := range descs {
		item := map[string]interface{}{
			"id":      desc.ID,
			"name":    desc.Name,
			"kind":    desc.Source.Kind,
			"source":  desc.Source.Redacted(),
			"desired": desc.Desired,
			"status":  stream.StatusStopped,
		}
		if info, ok := running[desc.ID]; ok {
			item["status"] = info.Status
			item["restarts"] = info.Restarts
			item["playlistUrl"] = info.PlaylistURL
		}
		resp = append(resp, item)
	}

	writeJSON(w, resp)
}

// StartStream handles POST /api/streams/{id}/start.
func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	desc, err := h.descs.Get(id)
	if err != nil {
		http.Error(w, "stream not configured", http.StatusNotFound)
		return
	}

	if err := h.streams.Start(desc); err != nil {
		switch {
		case errors.Is(err, supervisor.ErrAlreadyRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, supervisor.ErrMaxStreams):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := h.scheduler.Attach(desc); err != nil {
		h.logger.Printf("stream %s: chunk schedule attach skipped: %v", id, err)
	}

	info, _ := h.streams.Status(id)
	writeJSON(w, info)
}

// StopStream handles POST /api/streams/{id}/stop.
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.scheduler.Detach(id)
	if err := h.streams.Stop(id); err != nil {
		if errors.Is(err, supervisor.ErrUnknownStream) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info, _ := h.streams.Status(id)
	writeJSON(w, info)
}

// RestartStream handles POST /api/streams/{id}/restart.
func (h *Handler) RestartStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.streams.Restart(id); err != nil {
		if errors.Is(err, supervisor.ErrUnknownStream) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info, _ := h.streams.Status(id)
	writeJSON(w, info)
}

// StreamStatus handles GET /api/streams/{id}.
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	info, err := h.streams.Status(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	resp := map[string]interface{}{
		"stream": info,
	}
	if segments, lastWrite, err := h.files.PlaylistInfo(id); err == nil {
		resp["playlist"] = map[string]interface{}{
			"segments":     segments,
			"lastWriteAge": time.Since(lastWrite).Seconds(),
		}
	}
	if offset, ok := h.scheduler.Offset(id); ok {
		resp["nextChunkOffset"] = offset
	}

	writeJSON(w, resp)
}

// ReloadStreams handles POST /api/streams/reload. New descriptors take effect
// on the next health pass; removed streams keep running until stopped.
func (h *Handler) ReloadStreams(w http.ResponseWriter, r *http.Request) {
	if err := h.descs.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	descs, err := h.descs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"streams": len(descs)})
}

// DownloadChunk handles GET /api/chunks/{id}, serving the chunk file by id.
func (h *Handler) DownloadChunk(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, err := h.files.FindChunk(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// QueueStatus handles GET /api/queue.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"queue":   h.queue.Snapshot(),
		"metrics": h.metrics.Snapshot(),
	})
}

// QueueHistory handles GET /api/queue/history.
func (h *Handler) QueueHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.queue.History())
}

// QueueFailed handles GET /api/queue/failed, backed by the durable archive.
func (h *Handler) QueueFailed(w http.ResponseWriter, r *http.Request) {
	if h.failures == nil {
		http.Error(w, "failure archive is not configured", http.StatusNotFound)
		return
	}
	jobs, err := h.failures.RecentFailed(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, jobs)
}

// TriggerSweep handles POST /api/retention/sweep.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sweeper.SweepNow()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"removed": removed})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	descs, err := h.descs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	running := make(map[string]stream.RuntimeInfo)
	for _, info := range h.streams.List() {
		running[info.ID] = info
	}

	dead := 0
	for _, desc := range descs {
		if !desc.Desired {
			continue
		}
		info, ok := running[desc.ID]
		if !ok || info.Status != stream.StatusActive {
			dead++
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":      h.metrics.Health(h.queue.Depth(), dead),
		"deadStreams": dead,
		"queueDepth":  h.queue.Depth(),
	})
}

// ServeWS handles GET /api/ws job-update subscriptions.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.Serve(w, r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
