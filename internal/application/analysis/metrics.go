package analysis

import (
	"sync"
	"time"
)

// ewmaAlpha is the smoothing factor for rolling duration averages.
const ewmaAlpha = 0.2

// HealthState is the aggregate pipeline health signal.
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// Metrics aggregates extraction and processing observations. Derived, never
// authoritative: counters and averages only.
type Metrics struct {
	mu sync.Mutex

	chunksExtracted uint64
	extractFailed   uint64
	jobsProcessed   uint64
	jobsFailed      uint64

	inflightExtractions int

	avgExtractSeconds float64
	avgProcessSeconds float64

	queueCapacity int
}

// NewMetrics creates the aggregator; queueCapacity feeds health thresholds.
func NewMetrics(queueCapacity int) *Metrics {
	return &Metrics{queueCapacity: queueCapacity}
}

// ExtractionStarted increments the in-flight extraction gauge.
func (m *Metrics) ExtractionStarted() {
	m.mu.Lock()
	m.inflightExtractions++
	m.mu.Unlock()
}

// ExtractionFinished records one extraction outcome and duration.
func (m *Metrics) ExtractionFinished(d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflightExtractions > 0 {
		m.inflightExtractions--
	}
	if ok {
		m.chunksExtracted++
		m.avgExtractSeconds = smooth(m.avgExtractSeconds, d.Seconds())
	} else {
		m.extractFailed++
	}
}

// ProcessingFinished records one detection-call outcome and duration.
func (m *Metrics) ProcessingFinished(d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.jobsProcessed++
		m.avgProcessSeconds = smooth(m.avgProcessSeconds, d.Seconds())
	} else {
		m.jobsFailed++
	}
}

func smooth(avg, sample float64) float64 {
	if avg == 0 {
		return sample
	}
	return avg*(1-ewmaAlpha) + sample*ewmaAlpha
}

// Snapshot is the read-only metrics view.
type Snapshot struct {
	ChunksExtracted     uint64  `json:"chunksExtracted"`
	ExtractFailed       uint64  `json:"extractFailed"`
	JobsProcessed       uint64  `json:"jobsProcessed"`
	JobsFailed          uint64  `json:"jobsFailed"`
	InflightExtractions int     `json:"inflightExtractions"`
	AvgExtractSeconds   float64 `json:"avgExtractSeconds"`
	AvgProcessSeconds   float64 `json:"avgProcessSeconds"`
}

// Snapshot returns current counters and smoothed averages.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ChunksExtracted:     m.chunksExtracted,
		ExtractFailed:       m.extractFailed,
		JobsProcessed:       m.jobsProcessed,
		JobsFailed:          m.jobsFailed,
		InflightExtractions: m.inflightExtractions,
		AvgExtractSeconds:   m.avgExtractSeconds,
		AvgProcessSeconds:   m.avgProcessSeconds,
	}
}

// Health derives the aggregate signal from queue depth and the count of
// streams that are configured as desired but have no live instance.
func (m *Metrics) Health(queueDepth, deadStreams int) HealthState {
	m.mu.Lock()
	inflight := m.inflightExtractions
	m.mu.Unlock()

	half := m.queueCapacity / 2
	switch {
	case queueDepth >= m.queueCapacity || (deadStreams > 0 && queueDepth >= half):
		return Unhealthy
	case deadStreams > 0 || queueDepth >= half || inflight > m.queueCapacity:
		return Degraded
	default:
		return Healthy
	}
}
