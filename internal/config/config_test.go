package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Fatalf("unexpected server addr: %q", cfg.ServerAddr)
	}
	if cfg.ChunkSeconds != 60 || cfg.ChunkOverlapSeconds != 5 {
		t.Fatalf("unexpected chunk defaults: %d/%d", cfg.ChunkSeconds, cfg.ChunkOverlapSeconds)
	}
	if cfg.Workers != 2 || cfg.MaxQueueSize != 32 {
		t.Fatalf("unexpected queue defaults: %d/%d", cfg.Workers, cfg.MaxQueueSize)
	}
	if cfg.RetentionWindow != 24*time.Hour {
		t.Fatalf("unexpected retention window: %s", cfg.RetentionWindow)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("CHUNK_SECONDS", "30")
	t.Setenv("RETRY_BACKOFF", "2s")
	t.Setenv("FRAME_INTERVAL", "0.5")

	cfg := Load()
	if cfg.ServerAddr != ":9999" {
		t.Fatalf("unexpected server addr: %q", cfg.ServerAddr)
	}
	if cfg.ChunkSeconds != 30 {
		t.Fatalf("unexpected chunk seconds: %d", cfg.ChunkSeconds)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Fatalf("unexpected retry backoff: %s", cfg.RetryBackoff)
	}
	if cfg.FrameInterval != 0.5 {
		t.Fatalf("unexpected frame interval: %g", cfg.FrameInterval)
	}
}

func TestLoad_FallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("CHUNK_SECONDS", "minus-ten")
	t.Setenv("MAX_STREAMS", "-3")
	t.Setenv("RETRY_BACKOFF", "soon")

	cfg := Load()
	if cfg.ChunkSeconds != 60 {
		t.Fatalf("unexpected chunk seconds: %d", cfg.ChunkSeconds)
	}
	if cfg.MaxStreams != 8 {
		t.Fatalf("unexpected max streams: %d", cfg.MaxStreams)
	}
	if cfg.RetryBackoff != 10*time.Second {
		t.Fatalf("unexpected retry backoff: %s", cfg.RetryBackoff)
	}
}

func TestChunkStep_SubtractsOverlap(t *testing.T) {
	cfg := Config{ChunkSeconds: 10, ChunkOverlapSeconds: 1}
	if cfg.ChunkStep() != 9 {
		t.Fatalf("expected step 9, got %d", cfg.ChunkStep())
	}

	cfg = Config{ChunkSeconds: 10, ChunkOverlapSeconds: 10}
	if cfg.ChunkStep() != 10 {
		t.Fatalf("expected degenerate overlap to fall back to duration, got %d", cfg.ChunkStep())
	}
}
