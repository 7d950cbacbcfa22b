package job

import (
	"encoding/json"
	"time"

	"stablewatch/internal/domain/chunk"
)

// Status describes the dispatch lifecycle of a processing job.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job carries one extracted chunk through the detection pipeline.
// Transitions: waiting -> processing -> {completed, failed};
// failed -> waiting while attempts < max, terminal at the cap.
type Job struct {
	ID            string          `json:"id"`
	Chunk         chunk.Chunk     `json:"chunk"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     time.Time       `json:"startedAt,omitempty"`
	CompletedAt   time.Time       `json:"completedAt,omitempty"`
	NextAttemptAt time.Time       `json:"-"`
	Result        json.RawMessage `json:"result,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

// Older reports whether this job's chunk was extracted before other's.
// Older chunks are dispatched first so a backlog drains oldest-first.
func (j *Job) Older(other *Job) bool {
	return j.Chunk.ExtractedAt.Before(other.Chunk.ExtractedAt)
}
