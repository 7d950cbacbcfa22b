package chunk

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status describes the extraction lifecycle of a chunk.
type Status string

const (
	StatusExtracting Status = "extracting"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

var ErrBadFileName = errors.New("malformed chunk file name")

// Chunk is a fixed-duration slice of a stream's video extracted for analysis.
type Chunk struct {
	ID          string    `json:"id"`
	StreamID    string    `json:"streamId"`
	Offset      int       `json:"offset"` // seconds, stream-relative
	Duration    int       `json:"duration"`
	Path        string    `json:"path"`
	Status      Status    `json:"status"`
	Size        int64     `json:"size,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
	Error       string    `json:"error,omitempty"`
}

// FileName encodes stream id and chunk id so a chunk can be located by id
// with a linear directory scan, without any index.
func FileName(streamID, chunkID string) string {
	return fmt.Sprintf("%s_%s.mp4", streamID, chunkID)
}

// ParseFileName splits a chunk file name back into stream id and chunk id.
func ParseFileName(name string) (streamID, chunkID string, err error) {
	base := strings.TrimSuffix(name, ".mp4")
	if base == name {
		return "", "", ErrBadFileName
	}
	idx := strings.Index(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", ErrBadFileName
	}
	return base[:idx], base[idx+1:], nil
}
