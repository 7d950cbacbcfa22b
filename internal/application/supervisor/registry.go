package supervisor

import (
	"sync"
	"time"

	"stablewatch/internal/domain/stream"
)

// entry is the exclusively-owned runtime state of one supervised stream.
// At most one live subprocess handle exists per id at any instant.
type entry struct {
	desc        stream.Descriptor
	status      stream.Status
	proc        Process
	startedAt   time.Time
	restarts    int
	lastError   string
	manualStop  bool
	outputDir   string
	playlistURL string

	// generation invalidates stale verify/watch/restart callbacks after a
	// stop or relaunch.
	generation uint64
}

func (e *entry) live() bool {
	return e.status == stream.StatusStarting || e.status == stream.StatusActive
}

func (e *entry) info() stream.RuntimeInfo {
	return stream.RuntimeInfo{
		ID:          e.desc.ID,
		Name:        e.desc.Name,
		Status:      e.status,
		StartedAt:   e.startedAt,
		Restarts:    e.restarts,
		LastError:   e.lastError,
		ManualStop:  e.manualStop,
		PlaylistURL: e.playlistURL,
	}
}

// Registry holds runtime state per stream id. It is injected into the
// Supervisor, which is its only writer.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*entry
}

// NewRegistry creates an empty stream runtime registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*entry)}
}

func (r *Registry) liveCount() int {
	n := 0
	for _, e := range r.streams {
		if e.live() {
			n++
		}
	}
	return n
}
