package analysis

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/job"
)

var ErrQueueFull = errors.New("processing queue is full")

const workerPoll = 200 * time.Millisecond

// Options bundles the queue's capacity and retry knobs.
type Options struct {
	Workers      int
	MaxWaiting   int
	MaxAttempts  int
	RetryBackoff time.Duration
	HistorySize  int

	// ProcessDelay holds each job back for a minimum age before dispatch,
	// giving the chunk file time to settle on disk. Zero disables it.
	ProcessDelay time.Duration
}

// Queue accepts extracted chunks as jobs and dispatches them to a bounded
// pool of workers calling the detection pipeline. It is the single writer of
// its job registry; everything observable is a snapshot.
type Queue struct {
	mu         sync.Mutex
	waiting    []*job.Job
	processing map[string]*job.Job
	history    []job.Job // newest first, bounded

	completed int64
	failed    int64
	evicted   int64
	rejected  int64

	analyzer Analyzer
	archive  FailureArchive
	metrics  *Metrics
	logger   *log.Logger
	opts     Options

	notify func(job.Job)
}

// NewQueue creates the processing queue. archive may be nil.
func NewQueue(analyzer Analyzer, archive FailureArchive, metrics *Metrics, logger *log.Logger, opts Options) *Queue {
	return &Queue{
		processing: make(map[string]*job.Job),
		analyzer:   analyzer,
		archive:    archive,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// SetNotifier installs a callback invoked after every job state change.
// Must be set before Run.
func (q *Queue) SetNotifier(fn func(job.Job)) {
	q.notify = fn
}

// Offer enqueues a ready chunk. When the waiting set is at capacity it evicts
// the newest-chunk waiting job if the incoming chunk is older, and rejects
// with ErrQueueFull otherwise. Never blocks.
func (q *Queue) Offer(c chunk.Chunk) error {
	j := &job.Job{
		ID:        uuid.New().String(),
		Chunk:     c,
		Status:    job.StatusWaiting,
		CreatedAt: time.Now(),
	}
	if q.opts.ProcessDelay > 0 {
		j.NextAttemptAt = j.CreatedAt.Add(q.opts.ProcessDelay)
	}

	var evicted *job.Job
	q.mu.Lock()
	if len(q.waiting) >= q.opts.MaxWaiting {
		idx := q.newestLocked()
		if idx < 0 || !c.ExtractedAt.Before(q.waiting[idx].Chunk.ExtractedAt) {
			q.rejected++
			q.mu.Unlock()
			return ErrQueueFull
		}
		evicted = q.waiting[idx]
		q.waiting = append(q.waiting[:idx], q.waiting[idx+1:]...)
		evicted.Status = job.StatusFailed
		evicted.LastError = "evicted under backpressure"
		evicted.CompletedAt = time.Now()
		q.evicted++
		q.failed++
		q.pushHistoryLocked(*evicted)
	}
	q.waiting = append(q.waiting, j)
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Printf("job %s: evicted for newer backlog pressure (chunk %s)", evicted.ID, evicted.Chunk.ID)
		q.emit(*evicted)
	}
	q.emit(*j)
	return nil
}

// Run launches the worker pool and blocks until the context is cancelled.
func (q *Queue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.worker(ctx, id)
		}(i + 1)
	}
	wg.Wait()
}

func (q *Queue) worker(ctx context.Context, id int) {
	ticker := time.NewTicker(workerPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		j := q.claim()
		if j == nil {
			continue
		}

		start := time.Now()
		result, err := q.analyzer.Analyze(ctx, j.Chunk)
		q.metrics.ProcessingFinished(time.Since(start), err == nil)
		q.finish(j, result, err)
	}
}

// claim pops the highest-priority eligible job: oldest chunk first, retry
// backoff respected.
func (q *Queue) claim() *job.Job {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	best := -1
	for i, j := range q.waiting {
		if j.NextAttemptAt.After(now) {
			continue
		}
		if best < 0 || j.Older(q.waiting[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	j := q.waiting[best]
	q.waiting = append(q.waiting[:best], q.waiting[best+1:]...)
	j.Status = job.StatusProcessing
	if j.StartedAt.IsZero() {
		j.StartedAt = now
	}
	q.processing[j.ID] = j
	return j
}

func (q *Queue) finish(j *job.Job, result []byte, err error) {
	q.mu.Lock()
	delete(q.processing, j.ID)

	if err == nil {
		j.Status = job.StatusCompleted
		j.Result = result
		j.CompletedAt = time.Now()
		q.completed++
		q.pushHistoryLocked(*j)
		q.mu.Unlock()
		q.emit(*j)
		return
	}

	j.Attempts++
	j.LastError = err.Error()

	if j.Attempts < q.opts.MaxAttempts {
		backoff := q.opts.RetryBackoff << (j.Attempts - 1)
		j.Status = job.StatusWaiting
		j.NextAttemptAt = time.Now().Add(backoff)
		q.waiting = append(q.waiting, j)
		q.mu.Unlock()
		q.logger.Printf("job %s: attempt %d/%d failed, retry in %s: %v", j.ID, j.Attempts, q.opts.MaxAttempts, backoff, err)
		q.emit(*j)
		return
	}

	j.Status = job.StatusFailed
	j.CompletedAt = time.Now()
	q.failed++
	q.pushHistoryLocked(*j)
	q.mu.Unlock()

	q.logger.Printf("job %s: failed terminally after %d attempts: %v", j.ID, j.Attempts, err)
	q.emit(*j)

	if q.archive != nil {
		archived := *j
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := q.archive.SaveFailed(ctx, archived); err != nil {
				q.logger.Printf("job %s: failure archive write failed: %v", archived.ID, err)
			}
		}()
	}
}

func (q *Queue) newestLocked() int {
	idx := -1
	for i, j := range q.waiting {
		if idx < 0 || q.waiting[idx].Older(j) {
			idx = i
		}
	}
	return idx
}

func (q *Queue) pushHistoryLocked(j job.Job) {
	q.history = append([]job.Job{j}, q.history...)
	if len(q.history) > q.opts.HistorySize {
		q.history = q.history[:q.opts.HistorySize]
	}
}

func (q *Queue) emit(j job.Job) {
	if q.notify != nil {
		q.notify(j)
	}
}

// Depth returns the current waiting-job count.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Status is a read-only snapshot of queue state.
type Status struct {
	Waiting    int   `json:"waiting"`
	Processing int   `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Evicted    int64 `json:"evicted"`
	Rejected   int64 `json:"rejected"`
}

// Snapshot returns current per-status counts.
func (q *Queue) Snapshot() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Waiting:    len(q.waiting),
		Processing: len(q.processing),
		Completed:  q.completed,
		Failed:     q.failed,
		Evicted:    q.evicted,
		Rejected:   q.rejected,
	}
}

// History returns the bounded recent-outcome buffer, newest first.
func (q *Queue) History() []job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]job.Job, len(q.history))
	copy(out, q.history)
	return out
}
