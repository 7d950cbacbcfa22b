package stream

import (
	"errors"
	"strings"
	"time"
)

// Status describes the lifecycle of a supervised stream.
type Status string

const (
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusError    Status = "error"
	StatusStopped  Status = "stopped"
)

var ErrInvalidID = errors.New("invalid stream id")

// Descriptor is the configured identity of a camera stream. It is owned by
// the external configuration layer and immutable at runtime.
type Descriptor struct {
	ID      string
	Name    string
	Source  Source
	Desired bool
}

// NewDescriptor validates configured stream identity.
func NewDescriptor(id, name string, source Source, desired bool) (Descriptor, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\_ ") {
		return Descriptor{}, ErrInvalidID
	}
	if name == "" {
		name = id
	}
	return Descriptor{ID: id, Name: name, Source: source, Desired: desired}, nil
}

// RuntimeInfo is the read-only snapshot of a stream's runtime state returned
// by status queries.
type RuntimeInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	Restarts    int       `json:"restarts"`
	LastError   string    `json:"lastError,omitempty"`
	ManualStop  bool      `json:"manualStop"`
	PlaylistURL string    `json:"playlistUrl,omitempty"`
}
