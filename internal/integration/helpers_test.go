package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/albachteng/workq/internal/jobs"
)

// countingTask records every outcome hook, for asserting on the full
// lifecycle from outside the queue package.
type countingTask struct {
	kind string
	fn   func(ctx context.Context, job *jobs.Job) error

	mu         sync.Mutex
	processed  int
	successes  int
	failures   int
	permanents int
}

func newCountingTask(kind string, fn func(ctx context.Context, job *jobs.Job) error) *countingTask {
	return &countingTask{kind: kind, fn: fn}
}

func (t *countingTask) Process(ctx context.Context, job *jobs.Job) error {
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()

	if t.fn == nil {
		return nil
	}
	return t.fn(ctx, job)
}

func (t *countingTask) Kind() string { return t.kind }

func (t *countingTask) OnSuccess(job *jobs.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes++
}

func (t *countingTask) OnFailure(job *jobs.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}

func (t *countingTask) OnPermanentFailure(job *jobs.Job, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.permanents++
}

func (t *countingTask) counts() (processed, successes, failures, permanents int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed, t.successes, t.failures, t.permanents
}

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
