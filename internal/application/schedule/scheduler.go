package schedule

import (
	"errors"
	"log"
	"sync"
	"time"

	"stablewatch/internal/domain/stream"
)

var ErrAlreadyAttached = errors.New("stream already has a chunk schedule")

// ticket is the per-stream scheduling state. Closing stop cancels the loop
// atomically: no tick fires after Detach returns.
type ticket struct {
	stop     chan struct{}
	offset   int
	failures int
}

// Scheduler fires one recurring extraction per attached stream, advancing a
// monotonic offset by duration minus overlap each tick regardless of outcome.
type Scheduler struct {
	mu      sync.Mutex
	tickets map[string]*ticket

	extractor *Extractor
	sink      Sink
	obs       Observer
	step      int // seconds
	logger    *log.Logger
}

// NewScheduler creates the per-stream chunk scheduler.
func NewScheduler(extractor *Extractor, sink Sink, obs Observer, stepSeconds int, logger *log.Logger) *Scheduler {
	return &Scheduler{
		tickets:   make(map[string]*ticket),
		extractor: extractor,
		sink:      sink,
		obs:       obs,
		step:      stepSeconds,
		logger:    logger,
	}
}

// Attach starts the recurring extraction timer for a stream. The offset
// sequence begins at zero for every new attachment.
func (s *Scheduler) Attach(desc stream.Descriptor) error {
	s.mu.Lock()
	if _, ok := s.tickets[desc.ID]; ok {
		s.mu.Unlock()
		return ErrAlreadyAttached
	}
	t := &ticket{stop: make(chan struct{})}
	s.tickets[desc.ID] = t
	s.mu.Unlock()

	go s.run(desc, t)
	return nil
}

// Detach cancels a stream's schedule. Safe to call for unknown ids.
func (s *Scheduler) Detach(streamID string) {
	s.mu.Lock()
	t, ok := s.tickets[streamID]
	if ok {
		delete(s.tickets, streamID)
		close(t.stop)
	}
	s.mu.Unlock()
}

// DetachAll cancels every schedule; used on shutdown.
func (s *Scheduler) DetachAll() {
	s.mu.Lock()
	for id, t := range s.tickets {
		delete(s.tickets, id)
		close(t.stop)
	}
	s.mu.Unlock()
}

// Attached reports whether a stream currently has a schedule.
func (s *Scheduler) Attached(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tickets[streamID]
	return ok
}

// Offset returns the next extraction offset for a stream.
func (s *Scheduler) Offset(streamID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[streamID]
	if !ok {
		return 0, false
	}
	return t.offset, true
}

func (s *Scheduler) run(desc stream.Descriptor, t *ticket) {
	ticker := time.NewTicker(time.Duration(s.step) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
		// A Detach racing the tick must win.
		select {
		case <-t.stop:
			return
		default:
		}

		s.mu.Lock()
		offset := t.offset
		t.offset += s.step
		s.mu.Unlock()

		s.tick(desc, t, offset)
	}
}

func (s *Scheduler) tick(desc stream.Descriptor, t *ticket, offset int) {
	s.obs.ExtractionStarted()
	start := time.Now()
	c, err := s.extractor.Extract(desc.Source, desc.ID, offset)
	s.obs.ExtractionFinished(time.Since(start), err == nil)

	if err != nil {
		// The offset has already advanced: a failed interval is skipped,
		// not retried.
		s.mu.Lock()
		t.failures++
		s.mu.Unlock()
		s.logger.Printf("chunk %s@%ds: extraction failed: %v", desc.ID, offset, err)
		return
	}

	if err := s.sink.Offer(c); err != nil {
		s.logger.Printf("chunk %s@%ds: queue rejected: %v", desc.ID, offset, err)
	}
}
