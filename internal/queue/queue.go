package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albachteng/workq/internal/jobs"
	"github.com/albachteng/workq/internal/tracking"
)

const (
	DefaultConcurrency  = 2
	DefaultPollInterval = 100 * time.Millisecond
	DefaultJobTimeout   = 10 * time.Second
)

// Queue drives the dispatch loop for one named queue: each cycle fetches the
// eligible jobs from the backend, runs up to the concurrency cap of them in
// parallel under the per-job timeout, and routes every outcome back into the
// backend. Cycles never overlap; the next poll is scheduled only after all
// jobs dispatched in the current one have settled.
type Queue struct {
	name    string
	backend Backend
	tracker *tracking.Tracker
	logger  *slog.Logger

	mu           sync.Mutex
	concurrency  int
	pollInterval time.Duration
	jobTimeout   time.Duration
	errFn        func(error)
	started      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(name string, backend Backend, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		name:         name,
		backend:      backend,
		logger:       logger.With("queue", name),
		concurrency:  DefaultConcurrency,
		pollInterval: DefaultPollInterval,
		jobTimeout:   DefaultJobTimeout,
		done:         make(chan struct{}),
	}
	q.errFn = func(err error) {
		q.logger.Error("work loop error", "error", err)
	}
	return q
}

func (q *Queue) Name() string {
	return q.name
}

// SetConcurrency sets the per-cycle dispatch cap. Zero or negative values
// are ignored and the previous cap is retained.
func (q *Queue) SetConcurrency(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.concurrency = n
}

func (q *Queue) Concurrency() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.concurrency
}

// SetJobTimeout sets the per-job timeout in seconds. Non-positive values
// are ignored.
func (q *Queue) SetJobTimeout(seconds int) {
	if seconds <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobTimeout = time.Duration(seconds) * time.Second
}

func (q *Queue) JobTimeout() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobTimeout
}

// SetPollInterval overrides the delay between cycles. Non-positive values
// are ignored.
func (q *Queue) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pollInterval = d
}

func (q *Queue) PollInterval() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pollInterval
}

// SetErrorHook routes every error the loop swallows (fetch failures, backend
// outcome failures) to fn instead of the queue logger.
func (q *Queue) SetErrorHook(fn func(error)) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errFn = fn
}

// SetTracker attaches an outcome tracker that records each job's status
// transitions for host inspection.
func (q *Queue) SetTracker(t *tracking.Tracker) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracker = t
}

// Insert adds a job to the queue's backend and binds the queue as the job's
// owner so cancellation can remove it.
func (q *Queue) Insert(ctx context.Context, job *jobs.Job) error {
	job.Queue = q.name
	job.Bind(q)

	if err := q.backend.Insert(ctx, job); err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID(), err)
	}

	if t := q.trackerRef(); t != nil {
		t.Register(job)
	}

	q.logger.Info("job inserted",
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"available_at", job.AvailableAt)
	return nil
}

// Discard removes a cancelled job from active consideration. Implements
// jobs.Owner.
func (q *Queue) Discard(ctx context.Context, job *jobs.Job) error {
	if err := q.backend.CancelJob(ctx, job); err != nil {
		return fmt.Errorf("failed to discard job %s: %w", job.ID(), err)
	}

	if t := q.trackerRef(); t != nil {
		t.MarkCancelled(job.ID())
	}

	q.logger.Info("job cancelled", "job_id", job.ID())
	return nil
}

// Work starts the poll loop. Subsequent calls are no-ops; the loop runs until
// Stop.
func (q *Queue) Work() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.mu.Unlock()

	q.logger.Info("work loop starting",
		"concurrency", q.Concurrency(),
		"poll_interval", q.PollInterval(),
		"job_timeout", q.JobTimeout())

	go q.run(ctx)
}

// Stop ends the poll loop and waits for the in-flight cycle to settle.
// Safe to call before Work or more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	<-q.done
	q.logger.Info("work loop stopped")
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		q.cycle(ctx)

		timer := time.NewTimer(q.PollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle runs one poll iteration: fetch eligible jobs, dispatch them all
// concurrently, wait for every one to settle. A fetch error is reported and
// swallowed; the next cycle retries.
func (q *Queue) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	eligible, err := q.backend.NextJobs(ctx, q.Concurrency())
	if err != nil {
		q.report(fmt.Errorf("failed to fetch eligible jobs: %w", err))
		return
	}

	var wg sync.WaitGroup
	for _, job := range eligible {
		// Durable backends hand back freshly restored jobs; rebind so
		// cancellation mid-flight still reaches this queue.
		job.Bind(q)
		wg.Add(1)
		go func(j *jobs.Job) {
			defer wg.Done()
			q.dispatch(ctx, j)
		}(job)
	}
	wg.Wait()
}

// dispatch runs the per-job procedure. Nothing it does can escape the loop:
// every error routes through the backend's outcome operations or the error
// hook.
func (q *Queue) dispatch(ctx context.Context, job *jobs.Job) {
	if job.TriedMaxAttempts() {
		if err := q.backend.FailJobForever(ctx, job, nil); err != nil {
			q.report(fmt.Errorf("failed to finalize job %s: %w", job.ID(), err))
			return
		}
		if t := q.trackerRef(); t != nil {
			t.MarkFailed(job.ID(), jobs.ErrMaxAttempts)
		}
		return
	}

	// A job may be cancelled between selection and dispatch.
	if job.IsCancelled() {
		return
	}

	job.BeginAttempt()
	if t := q.trackerRef(); t != nil {
		t.MarkProcessing(job.ID())
	}

	err := q.runWithTimeout(ctx, job)
	if err == nil {
		if finishErr := q.backend.FinishJob(ctx, job); finishErr != nil {
			q.report(fmt.Errorf("failed to finish job %s: %w", job.ID(), finishErr))
			return
		}
		if t := q.trackerRef(); t != nil {
			t.MarkCompleted(job.ID())
		}
		q.logger.Info("job completed",
			"job_id", job.ID(),
			"job_kind", job.Kind(),
			"attempts", job.Attempts)
		return
	}

	q.logger.Warn("job attempt failed",
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"attempts", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", err)

	if failErr := q.backend.FailJob(ctx, job, err); failErr != nil {
		q.report(fmt.Errorf("failed to record job failure %s: %w", job.ID(), failErr))
		return
	}
	if t := q.trackerRef(); t != nil {
		t.MarkRetrying(job.ID(), err)
	}
}

// runWithTimeout races the job's task against the per-job timeout. A timeout
// counts as a failed attempt even if the task later completes; the late
// result is discarded. The context handed to the task carries the deadline
// so cooperative tasks can stop early, but nothing forces them to.
func (q *Queue) runWithTimeout(ctx context.Context, job *jobs.Job) error {
	timeout := q.JobTimeout()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- job.Process(tctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrJobTimeout, timeout)
	}
}

func (q *Queue) report(err error) {
	q.mu.Lock()
	fn := q.errFn
	q.mu.Unlock()
	fn(err)
}

func (q *Queue) trackerRef() *tracking.Tracker {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tracker
}
