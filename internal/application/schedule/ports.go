package schedule

import (
	"context"
	"time"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/stream"
)

// ChunkPipeline is an application port for bounded-duration extraction runs.
type ChunkPipeline interface {
	Extract(ctx context.Context, src stream.Source, offsetSeconds, durationSeconds int, outPath string) error
}

// ChunkStore resolves output paths for extracted chunks.
type ChunkStore interface {
	ChunkPath(streamID, chunkID string) string
}

// Sink accepts ready chunks for downstream processing. Offer is fallible:
// backpressure rejections come back as errors, never as blocking.
type Sink interface {
	Offer(c chunk.Chunk) error
}

// Observer receives extraction lifecycle signals for metrics aggregation.
type Observer interface {
	ExtractionStarted()
	ExtractionFinished(d time.Duration, ok bool)
}
