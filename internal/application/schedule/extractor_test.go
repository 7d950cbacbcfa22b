package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/stream"
)

type stubPipeline struct {
	mu      sync.Mutex
	payload []byte
	err     error

	lastOffset   int
	lastDuration int
}

func (p *stubPipeline) Extract(_ context.Context, _ stream.Source, offsetSeconds, durationSeconds int, outPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOffset = offsetSeconds
	p.lastDuration = durationSeconds
	if p.err != nil {
		// Simulate partial output left behind by a failed run.
		_ = os.WriteFile(outPath, []byte("partial"), 0o644)
		return p.err
	}
	return os.WriteFile(outPath, p.payload, 0o644)
}

type dirStore struct {
	dir string
}

func (s dirStore) ChunkPath(streamID, chunkID string) string {
	return filepath.Join(s.dir, chunk.FileName(streamID, chunkID))
}

func testSource(t *testing.T) stream.Source {
	t.Helper()
	src, err := stream.NewLoopFileSource("./media/cam-1.mp4")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	return src
}

func TestExtract_ProducesReadyChunk(t *testing.T) {
	dir := t.TempDir()
	pipeline := &stubPipeline{payload: []byte("mp4-bytes")}
	x := NewExtractor(pipeline, dirStore{dir}, 10, time.Second)

	c, err := x.Extract(testSource(t), "cam-1", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != chunk.StatusReady {
		t.Fatalf("expected ready chunk, got %s", c.Status)
	}
	if c.StreamID != "cam-1" || c.Offset != 30 || c.Duration != 10 {
		t.Fatalf("unexpected chunk: %+v", c)
	}
	if c.Size != int64(len("mp4-bytes")) {
		t.Fatalf("unexpected size: %d", c.Size)
	}
	if pipeline.lastOffset != 30 || pipeline.lastDuration != 10 {
		t.Fatalf("unexpected pipeline call: offset=%d duration=%d", pipeline.lastOffset, pipeline.lastDuration)
	}
	if _, err := os.Stat(c.Path); err != nil {
		t.Fatalf("chunk file missing: %v", err)
	}
}

func TestExtract_RemovesPartialOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	pipeline := &stubPipeline{err: errors.New("extraction timed out")}
	x := NewExtractor(pipeline, dirStore{dir}, 10, time.Second)

	if _, err := x.Extract(testSource(t), "cam-1", 0); err == nil {
		t.Fatalf("expected error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("partial output must be removed, found %d files", len(entries))
	}
}

// blockingPipeline simulates an ffmpeg run that hangs until the extraction
// deadline cancels it, leaving partial output behind.
type blockingPipeline struct{}

func (blockingPipeline) Extract(ctx context.Context, _ stream.Source, _, _ int, outPath string) error {
	_ = os.WriteFile(outPath, []byte("partial"), 0o644)
	<-ctx.Done()
	return fmt.Errorf("extraction timed out: %w", ctx.Err())
}

func TestExtract_TimeoutKillsRunAndRemovesOutput(t *testing.T) {
	dir := t.TempDir()
	x := NewExtractor(blockingPipeline{}, dirStore{dir}, 10, 20*time.Millisecond)

	start := time.Now()
	_, err := x.Extract(testSource(t), "cam-1", 0)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("extraction must stop at the timeout, took %s", elapsed)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatalf("readdir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("timed-out output must be removed, found %d files", len(entries))
	}
}

func TestExtract_RejectsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	pipeline := &stubPipeline{payload: nil}
	x := NewExtractor(pipeline, dirStore{dir}, 10, time.Second)

	if _, err := x.Extract(testSource(t), "cam-1", 0); err == nil {
		t.Fatalf("expected error for zero-byte output")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("empty output must be removed, found %d files", len(entries))
	}
}

func TestExtract_UniqueChunkIDs(t *testing.T) {
	dir := t.TempDir()
	pipeline := &stubPipeline{payload: []byte("x")}
	x := NewExtractor(pipeline, dirStore{dir}, 10, time.Second)

	a, err := x.Extract(testSource(t), "cam-1", 0)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	b, err := x.Extract(testSource(t), "cam-1", 9)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if a.ID == b.ID || a.Path == b.Path {
		t.Fatalf("chunk ids must be unique: %q vs %q", a.ID, b.ID)
	}
}
