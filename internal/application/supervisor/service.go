package supervisor

import (
	"errors"
	"log"
	"sort"
	"time"

	"stablewatch/internal/domain/stream"
)

var (
	ErrAlreadyRunning = errors.New("stream is already running")
	ErrMaxStreams     = errors.New("maximum concurrent streams reached")
	ErrUnknownStream  = errors.New("unknown stream")
)

// Options bundles the supervision timing knobs.
type Options struct {
	MaxStreams       int
	RestartMax       int
	RestartDelay     time.Duration
	StartVerifyDelay time.Duration
	StopGrace        time.Duration
}

// Supervisor owns exactly one transcoding subprocess per active stream and
// drives its lifecycle: starting -> active -> error/stopped, with capped
// automatic restarts for spontaneous failures.
type Supervisor struct {
	reg      *Registry
	launcher Launcher
	store    OutputStore
	logger   *log.Logger
	opts     Options
}

// New wires the supervisor with its injected registry and ports.
func New(reg *Registry, launcher Launcher, store OutputStore, logger *log.Logger, opts Options) *Supervisor {
	return &Supervisor{reg: reg, launcher: launcher, store: store, logger: logger, opts: opts}
}

// Start brings a stream up. It rejects synchronously when the stream is
// already running or the concurrent-stream limit is reached; spawn failures
// after that are not surfaced here, only through observable state.
func (s *Supervisor) Start(desc stream.Descriptor) error {
	s.reg.mu.Lock()
	e, ok := s.reg.streams[desc.ID]
	if ok && e.live() {
		s.reg.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.reg.liveCount() >= s.opts.MaxStreams {
		s.reg.mu.Unlock()
		return ErrMaxStreams
	}
	if !ok {
		e = &entry{}
		s.reg.streams[desc.ID] = e
	}
	e.desc = desc
	e.manualStop = false
	e.lastError = ""
	e.restarts = 0
	e.status = stream.StatusStarting
	e.generation++
	gen := e.generation
	s.reg.mu.Unlock()

	if _, err := s.store.PrepareStreamDir(desc.ID); err != nil {
		s.reg.mu.Lock()
		if e.generation == gen {
			e.status = stream.StatusError
			e.lastError = err.Error()
		}
		s.reg.mu.Unlock()
		return err
	}

	s.logger.Printf("stream %s: starting (%s)", desc.ID, desc.Source.Redacted())
	s.launch(desc, gen)
	return nil
}

// Stop sets the manual-stop flag, terminates the subprocess (escalating to a
// kill after the grace period) and releases the output directory. The stream
// stays stopped until an explicit Start or Restart.
func (s *Supervisor) Stop(id string) error {
	s.reg.mu.Lock()
	e, ok := s.reg.streams[id]
	if !ok {
		s.reg.mu.Unlock()
		return ErrUnknownStream
	}
	e.manualStop = true
	e.generation++
	gen := e.generation
	proc := e.proc
	e.proc = nil
	s.reg.mu.Unlock()

	s.shutdown(proc)

	// A restart issued during the grace period owns the entry now; it must
	// not be clobbered to stopped or have its fresh directory removed.
	s.reg.mu.Lock()
	if e.generation != gen {
		s.reg.mu.Unlock()
		return nil
	}
	e.status = stream.StatusStopped
	_ = s.store.ReleaseStreamDir(id)
	s.reg.mu.Unlock()

	s.logger.Printf("stream %s: stopped", id)
	return nil
}

// Restart relaunches a stream, clearing the manual-stop flag and last error.
// The spontaneous-failure counter is left as is.
func (s *Supervisor) Restart(id string) error {
	return s.restart(id, false)
}

// Revive is the health-driven restart: it additionally resets the restart
// counter to zero, so persistently-desired streams self-heal indefinitely.
func (s *Supervisor) Revive(id string) error {
	return s.restart(id, true)
}

func (s *Supervisor) restart(id string, resetCounter bool) error {
	s.reg.mu.Lock()
	e, ok := s.reg.streams[id]
	if !ok {
		s.reg.mu.Unlock()
		return ErrUnknownStream
	}
	e.manualStop = false
	e.lastError = ""
	if resetCounter {
		e.restarts = 0
	}
	e.status = stream.StatusStarting
	e.generation++
	gen := e.generation
	desc := e.desc
	proc := e.proc
	e.proc = nil
	s.reg.mu.Unlock()

	s.shutdown(proc)

	// Stop releases the output directory, so a relaunch must allocate a
	// fresh one.
	if _, err := s.store.PrepareStreamDir(id); err != nil {
		s.reg.mu.Lock()
		if e.generation == gen {
			e.status = stream.StatusError
			e.lastError = err.Error()
		}
		s.reg.mu.Unlock()
		return err
	}

	s.logger.Printf("stream %s: restarting", id)
	s.launch(desc, gen)
	return nil
}

// Status returns a read-only snapshot of a stream's runtime state.
func (s *Supervisor) Status(id string) (stream.RuntimeInfo, error) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	e, ok := s.reg.streams[id]
	if !ok {
		return stream.RuntimeInfo{}, ErrUnknownStream
	}
	return e.info(), nil
}

// List returns snapshots for all known streams, ordered by id.
func (s *Supervisor) List() []stream.RuntimeInfo {
	s.reg.mu.Lock()
	infos := make([]stream.RuntimeInfo, 0, len(s.reg.streams))
	for _, e := range s.reg.streams {
		infos = append(infos, e.info())
	}
	s.reg.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ActiveCount reports how many streams are currently live.
func (s *Supervisor) ActiveCount() int {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.reg.liveCount()
}

// StopAll terminates every live stream; used on shutdown.
func (s *Supervisor) StopAll() {
	for _, info := range s.List() {
		if info.Status == stream.StatusStarting || info.Status == stream.StatusActive {
			_ = s.Stop(info.ID)
		}
	}
}

func (s *Supervisor) launch(desc stream.Descriptor, gen uint64) {
	outputDir, playlistPath, playlistURL := s.store.StreamPaths(desc.ID)

	proc, err := s.launcher.StartLive(desc.Source, outputDir, playlistPath)

	s.reg.mu.Lock()
	e, ok := s.reg.streams[desc.ID]
	if !ok || e.generation != gen {
		s.reg.mu.Unlock()
		if proc != nil {
			_ = proc.Kill()
		}
		return
	}
	if err != nil {
		e.status = stream.StatusError
		e.lastError = err.Error()
		s.logger.Printf("stream %s: spawn failed: %v", desc.ID, err)
		s.scheduleRestartLocked(e)
		s.reg.mu.Unlock()
		return
	}
	e.proc = proc
	e.startedAt = time.Now()
	e.outputDir = outputDir
	e.playlistURL = playlistURL
	s.reg.mu.Unlock()

	go s.verify(desc.ID, gen, proc)
	go s.watch(desc.ID, gen, proc)
}

// verify confirms the subprocess survived the verification delay before the
// stream is reported active.
func (s *Supervisor) verify(id string, gen uint64, proc Process) {
	timer := time.NewTimer(s.opts.StartVerifyDelay)
	defer timer.Stop()
	select {
	case <-proc.Done():
		return
	case <-timer.C:
	}

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	e, ok := s.reg.streams[id]
	if !ok || e.generation != gen {
		return
	}
	if e.status == stream.StatusStarting && proc.Alive() {
		e.status = stream.StatusActive
		s.logger.Printf("stream %s: active", id)
	}
}

// watch observes the single-resolution exit of the subprocess.
func (s *Supervisor) watch(id string, gen uint64, proc Process) {
	<-proc.Done()

	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	e, ok := s.reg.streams[id]
	if !ok || e.generation != gen || e.manualStop {
		return
	}
	e.proc = nil
	e.status = stream.StatusError
	if err := proc.Err(); err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = "transcoder exited unexpectedly"
	}
	s.logger.Printf("stream %s: %s", id, e.lastError)
	s.scheduleRestartLocked(e)
}

// scheduleRestartLocked arms one delayed restart attempt while the
// spontaneous-failure counter is below the cap. Caller holds the registry
// lock.
func (s *Supervisor) scheduleRestartLocked(e *entry) {
	if e.restarts >= s.opts.RestartMax {
		s.logger.Printf("stream %s: restart cap reached (%d), waiting for health check or operator", e.desc.ID, e.restarts)
		return
	}
	e.restarts++
	gen := e.generation
	desc := e.desc
	s.logger.Printf("stream %s: restart %d/%d in %s", desc.ID, e.restarts, s.opts.RestartMax, s.opts.RestartDelay)

	time.AfterFunc(s.opts.RestartDelay, func() {
		s.reg.mu.Lock()
		e, ok := s.reg.streams[desc.ID]
		if !ok || e.generation != gen || e.manualStop {
			s.reg.mu.Unlock()
			return
		}
		e.status = stream.StatusStarting
		e.generation++
		next := e.generation
		s.reg.mu.Unlock()
		s.launch(desc, next)
	})
}

func (s *Supervisor) shutdown(proc Process) {
	if proc == nil {
		return
	}
	_ = proc.Terminate()
	timer := time.NewTimer(s.opts.StopGrace)
	defer timer.Stop()
	select {
	case <-proc.Done():
	case <-timer.C:
		_ = proc.Kill()
		<-proc.Done()
	}
}
