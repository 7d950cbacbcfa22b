package schedule

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/stream"
)

// Extractor performs one bounded-duration extraction from a live source into
// a uniquely named chunk file.
type Extractor struct {
	pipeline ChunkPipeline
	store    ChunkStore
	duration int
	timeout  time.Duration
}

// NewExtractor creates the extractor with a fixed chunk duration and a hard
// per-call timeout independent of that duration.
func NewExtractor(pipeline ChunkPipeline, store ChunkStore, durationSeconds int, timeout time.Duration) *Extractor {
	return &Extractor{pipeline: pipeline, store: store, duration: durationSeconds, timeout: timeout}
}

// Extract produces a ready chunk at the given stream-relative offset, or an
// error. Partial output is deleted on any failure, including timeouts.
func (x *Extractor) Extract(src stream.Source, streamID string, offsetSeconds int) (chunk.Chunk, error) {
	id := uuid.New().String()
	outPath := x.store.ChunkPath(streamID, id)

	ctx, cancel := context.WithTimeout(context.Background(), x.timeout)
	defer cancel()

	if err := x.pipeline.Extract(ctx, src, offsetSeconds, x.duration, outPath); err != nil {
		_ = os.Remove(outPath)
		return chunk.Chunk{}, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("chunk output missing: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(outPath)
		return chunk.Chunk{}, fmt.Errorf("chunk output empty: %s", outPath)
	}

	return chunk.Chunk{
		ID:          id,
		StreamID:    streamID,
		Offset:      offsetSeconds,
		Duration:    x.duration,
		Path:        outPath,
		Status:      chunk.StatusReady,
		Size:        info.Size(),
		ExtractedAt: time.Now(),
	}, nil
}
