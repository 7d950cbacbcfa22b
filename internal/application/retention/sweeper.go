package retention

import (
	"context"
	"log"
	"time"
)

// Store is the sweeper's port to chunk storage.
type Store interface {
	SweepChunks(cutoff time.Time) (int, error)
}

// Sweeper periodically deletes chunk files older than the retention window,
// regardless of whether they were successfully processed.
type Sweeper struct {
	store    Store
	window   time.Duration
	interval time.Duration
	logger   *log.Logger
}

// NewSweeper creates the retention control loop.
func NewSweeper(store Store, window, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{store: store, window: window, interval: interval, logger: logger}
}

// Run drives the sweep loop until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepNow(); err != nil {
				s.logger.Printf("retention: sweep failed: %v", err)
			}
		}
	}
}

// SweepNow runs one sweep immediately; also the out-of-band HTTP trigger.
func (s *Sweeper) SweepNow() (int, error) {
	removed, err := s.store.SweepChunks(time.Now().Add(-s.window))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Printf("retention: removed %d expired chunks", removed)
	}
	return removed, nil
}
