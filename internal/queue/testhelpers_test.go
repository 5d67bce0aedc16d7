package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/albachteng/workq/internal/jobs"
)

// recordingTask counts processing attempts and hook invocations. fn, when
// set, supplies the processing behavior.
type recordingTask struct {
	kind string
	fn   func(ctx context.Context, job *jobs.Job) error

	mu         sync.Mutex
	processed  int
	successes  int
	failures   []error
	permanents []error
}

func newRecordingTask(kind string, fn func(ctx context.Context, job *jobs.Job) error) *recordingTask {
	return &recordingTask{kind: kind, fn: fn}
}

func (t *recordingTask) Process(ctx context.Context, job *jobs.Job) error {
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()

	if t.fn == nil {
		return nil
	}
	return t.fn(ctx, job)
}

func (t *recordingTask) Kind() string { return t.kind }

func (t *recordingTask) OnSuccess(job *jobs.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes++
}

func (t *recordingTask) OnFailure(job *jobs.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, err)
}

func (t *recordingTask) OnPermanentFailure(job *jobs.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permanents = append(t.permanents, err)
}

func (t *recordingTask) processedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

func (t *recordingTask) successCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.successes
}

func (t *recordingTask) failureCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures)
}

func (t *recordingTask) permanentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.permanents)
}

func mustJob(t *testing.T, task jobs.Task) *jobs.Job {
	t.Helper()
	job, err := jobs.New(task, nil)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// setJobTimeout reaches past the seconds-granularity setter so tests can use
// sub-second timeouts.
func setJobTimeout(q *Queue, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobTimeout = d
}
