package analysis

import (
	"context"
	"encoding/json"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/job"
)

// Analyzer is an application port for the external detection pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, c chunk.Chunk) (json.RawMessage, error)
}

// FailureArchive durably records terminally-failed jobs. Optional: a nil
// archive disables durable dead-lettering without affecting the queue.
type FailureArchive interface {
	SaveFailed(ctx context.Context, j job.Job) error
}
