package analysis

import (
	"testing"
	"time"
)

func TestExtractionFinished_SmoothsDurations(t *testing.T) {
	m := NewMetrics(8)

	m.ExtractionStarted()
	m.ExtractionFinished(10*time.Second, true)

	snap := m.Snapshot()
	if snap.AvgExtractSeconds != 10 {
		t.Fatalf("first sample must seed the average, got %g", snap.AvgExtractSeconds)
	}
	if snap.InflightExtractions != 0 {
		t.Fatalf("expected inflight gauge back to zero, got %d", snap.InflightExtractions)
	}

	m.ExtractionStarted()
	m.ExtractionFinished(20*time.Second, true)

	snap = m.Snapshot()
	want := 10*(1-ewmaAlpha) + 20*ewmaAlpha
	if snap.AvgExtractSeconds != want {
		t.Fatalf("expected smoothed average %g, got %g", want, snap.AvgExtractSeconds)
	}
	if snap.ChunksExtracted != 2 {
		t.Fatalf("expected 2 extracted chunks, got %d", snap.ChunksExtracted)
	}
}

func TestExtractionFinished_FailureSkipsAverage(t *testing.T) {
	m := NewMetrics(8)

	m.ExtractionStarted()
	m.ExtractionFinished(time.Minute, false)

	snap := m.Snapshot()
	if snap.ExtractFailed != 1 || snap.ChunksExtracted != 0 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.AvgExtractSeconds != 0 {
		t.Fatalf("failed extraction must not move the average, got %g", snap.AvgExtractSeconds)
	}
}

func TestProcessingFinished_Counters(t *testing.T) {
	m := NewMetrics(8)

	m.ProcessingFinished(2*time.Second, true)
	m.ProcessingFinished(4*time.Second, false)

	snap := m.Snapshot()
	if snap.JobsProcessed != 1 || snap.JobsFailed != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.AvgProcessSeconds != 2 {
		t.Fatalf("unexpected average: %g", snap.AvgProcessSeconds)
	}
}

func TestHealth_Thresholds(t *testing.T) {
	m := NewMetrics(8)

	cases := []struct {
		depth int
		dead  int
		want  HealthState
	}{
		{0, 0, Healthy},
		{3, 0, Healthy},
		{4, 0, Degraded},
		{0, 1, Degraded},
		{4, 1, Unhealthy},
		{8, 0, Unhealthy},
	}
	for _, tc := range cases {
		if got := m.Health(tc.depth, tc.dead); got != tc.want {
			t.Fatalf("depth=%d dead=%d: expected %s, got %s", tc.depth, tc.dead, tc.want, got)
		}
	}
}

func TestHealth_InflightOverloadDegrades(t *testing.T) {
	m := NewMetrics(2)
	for i := 0; i < 3; i++ {
		m.ExtractionStarted()
	}
	if got := m.Health(0, 0); got != Degraded {
		t.Fatalf("expected degraded under extraction overload, got %s", got)
	}
}
