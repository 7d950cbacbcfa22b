package supervisor

import (
	"context"
	"errors"
	"log"
	"time"

	"stablewatch/internal/domain/stream"
)

// Monitor polls desired-vs-actual state and playlist freshness on a fixed
// interval and corrects drift through the supervisor. Its restarts are
// uncapped but infrequent, which bounds crash-loop storms while still
// guaranteeing eventual recovery for desired streams.
type Monitor struct {
	sup       *Supervisor
	descs     DescriptorSource
	store     OutputStore
	schedules ChunkSchedules
	logger    *log.Logger
	interval  time.Duration
	freshness time.Duration
}

// NewMonitor creates the health control loop.
func NewMonitor(sup *Supervisor, descs DescriptorSource, store OutputStore, schedules ChunkSchedules, logger *log.Logger, interval, freshness time.Duration) *Monitor {
	return &Monitor{sup: sup, descs: descs, store: store, schedules: schedules, logger: logger, interval: interval, freshness: freshness}
}

// Run drives the check loop until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce()
		}
	}
}

// CheckOnce runs one full health pass over all configured streams.
func (m *Monitor) CheckOnce() {
	descs, err := m.descs.List()
	if err != nil {
		m.logger.Printf("health: descriptor read failed: %v", err)
		return
	}

	for _, desc := range descs {
		m.checkStream(desc)
	}
}

func (m *Monitor) checkStream(desc stream.Descriptor) {
	info, err := m.sup.Status(desc.ID)
	if errors.Is(err, ErrUnknownStream) {
		if desc.Desired {
			m.logger.Printf("health: stream %s desired but not running, starting", desc.ID)
			if err := m.sup.Start(desc); err != nil {
				m.logger.Printf("health: stream %s start failed: %v", desc.ID, err)
				return
			}
			m.ensureSchedule(desc)
		}
		return
	}
	if err != nil || info.ManualStop {
		return
	}

	switch {
	case desc.Desired && (info.Status == stream.StatusStopped || info.Status == stream.StatusError):
		m.logger.Printf("health: stream %s is %s but desired active, reviving", desc.ID, info.Status)
		if err := m.sup.Revive(desc.ID); err != nil {
			m.logger.Printf("health: stream %s revive failed: %v", desc.ID, err)
			return
		}
		m.ensureSchedule(desc)

	case info.Status == stream.StatusActive:
		if time.Since(info.StartedAt) < m.freshness {
			return
		}
		segments, lastWrite, err := m.store.PlaylistInfo(desc.ID)
		stale := err != nil || segments == 0 || time.Since(lastWrite) > m.freshness
		if !stale {
			return
		}
		m.logger.Printf("health: stream %s playlist stale (segments=%d), forcing restart", desc.ID, segments)
		if err := m.sup.Restart(desc.ID); err != nil {
			m.logger.Printf("health: stream %s restart failed: %v", desc.ID, err)
		}
	}
}

// ensureSchedule attaches the recurring extraction for a stream the monitor
// brought up, matching what an explicit start does.
func (m *Monitor) ensureSchedule(desc stream.Descriptor) {
	if m.schedules == nil || m.schedules.Attached(desc.ID) {
		return
	}
	if err := m.schedules.Attach(desc); err != nil {
		m.logger.Printf("health: stream %s chunk schedule attach failed: %v", desc.ID, err)
	}
}
