package supervisor

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"stablewatch/internal/domain/stream"
)

type fakeDescs struct {
	descs []stream.Descriptor
}

func (d *fakeDescs) List() ([]stream.Descriptor, error) { return d.descs, nil }

func (d *fakeDescs) Get(id string) (stream.Descriptor, error) {
	for _, desc := range d.descs {
		if desc.ID == id {
			return desc, nil
		}
	}
	return stream.Descriptor{}, ErrUnknownStream
}

type fakeSchedules struct {
	mu       sync.Mutex
	attached map[string]int
}

func (s *fakeSchedules) Attach(desc stream.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached == nil {
		s.attached = make(map[string]int)
	}
	s.attached[desc.ID]++
	return nil
}

func (s *fakeSchedules) Attached(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[streamID] > 0
}

func (s *fakeSchedules) attachCount(streamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[streamID]
}

func TestCheckOnce_StartsDesiredUnknownStream(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 50*time.Millisecond)

	monitor.CheckOnce()

	if _, err := sup.Status("cam-1"); err != nil {
		t.Fatalf("expected stream to be started, got %v", err)
	}
	if got := launcher.count(); got != 1 {
		t.Fatalf("expected one spawn, got %d", got)
	}
}

func TestCheckOnce_IgnoresUndesiredStream(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	src, _ := stream.NewLoopFileSource("./media/cam-1.mp4")
	desc, _ := stream.NewDescriptor("cam-1", "cam-1", src, false)
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 50*time.Millisecond)

	monitor.CheckOnce()

	if got := launcher.count(); got != 0 {
		t.Fatalf("undesired stream must not be started, got %d launches", got)
	}
}

func TestCheckOnce_SkipsManuallyStoppedStream(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 50*time.Millisecond)

	if err := sup.Start(desc); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sup.Stop("cam-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	monitor.CheckOnce()
	time.Sleep(30 * time.Millisecond)

	info, _ := sup.Status("cam-1")
	if info.Status != stream.StatusStopped {
		t.Fatalf("manually stopped stream must stay stopped, got %s", info.Status)
	}
	if got := launcher.count(); got != 1 {
		t.Fatalf("expected no relaunch, got %d launches", got)
	}
}

func TestCheckOnce_RevivesDesiredErroredStream(t *testing.T) {
	launcher := &fakeLauncher{exitImmediately: true}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 50*time.Millisecond)

	if err := sup.Start(desc); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return launcher.count() == 3 }, "restart cap")

	launcher.mu.Lock()
	launcher.exitImmediately = false
	launcher.mu.Unlock()

	monitor.CheckOnce()

	waitFor(t, func() bool {
		info, err := sup.Status("cam-1")
		return err == nil && info.Status == stream.StatusActive
	}, "revived stream to become active")
}

func TestCheckOnce_RestartsStalePlaylist(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{segments: 0}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 40*time.Millisecond)

	if err := sup.Start(desc); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		info, err := sup.Status("cam-1")
		return err == nil && info.Status == stream.StatusActive
	}, "stream to become active")

	// Within the grace window after start the probe is skipped.
	monitor.CheckOnce()
	if got := launcher.count(); got != 1 {
		t.Fatalf("freshness grace must suppress the probe, got %d launches", got)
	}

	time.Sleep(50 * time.Millisecond)
	monitor.CheckOnce()

	waitFor(t, func() bool { return launcher.count() == 2 }, "stale restart")
}

func TestCheckOnce_FreshPlaylistLeftAlone(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{segments: 5, lastWrite: time.Now().Add(time.Hour)}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, nil, logger, time.Second, 40*time.Millisecond)

	if err := sup.Start(desc); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		info, err := sup.Status("cam-1")
		return err == nil && info.Status == stream.StatusActive
	}, "stream to become active")

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	store.lastWrite = time.Now()
	store.mu.Unlock()

	monitor.CheckOnce()
	time.Sleep(30 * time.Millisecond)

	if got := launcher.count(); got != 1 {
		t.Fatalf("fresh playlist must not trigger a restart, got %d launches", got)
	}
}

func TestCheckOnce_AttachesScheduleForStreamItStarts(t *testing.T) {
	launcher := &fakeLauncher{}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	schedules := &fakeSchedules{}
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, schedules, logger, time.Second, 50*time.Millisecond)

	monitor.CheckOnce()

	if !schedules.Attached("cam-1") {
		t.Fatalf("stream started by the health check must get a chunk schedule")
	}

	// Repeated passes over an already-scheduled stream must not stack
	// duplicate schedules.
	monitor.CheckOnce()
	if got := schedules.attachCount("cam-1"); got != 1 {
		t.Fatalf("expected one attach, got %d", got)
	}
}

func TestCheckOnce_AttachesScheduleOnRevive(t *testing.T) {
	launcher := &fakeLauncher{exitImmediately: true}
	store := &fakeStore{}
	logger := log.New(io.Discard, "", 0)
	sup := New(NewRegistry(), launcher, store, logger, testOptions())

	desc := testDescriptor(t, "cam-1")
	schedules := &fakeSchedules{}
	monitor := NewMonitor(sup, &fakeDescs{descs: []stream.Descriptor{desc}}, store, schedules, logger, time.Second, 50*time.Millisecond)

	if err := sup.Start(desc); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return launcher.count() == 3 }, "restart cap")

	launcher.mu.Lock()
	launcher.exitImmediately = false
	launcher.mu.Unlock()

	monitor.CheckOnce()

	if got := schedules.attachCount("cam-1"); got != 1 {
		t.Fatalf("revived stream must get a chunk schedule, got %d attaches", got)
	}
}
