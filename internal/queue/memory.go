package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/albachteng/workq/internal/jobs"
)

// MemoryBackend is the reference backend: an unordered in-process collection
// guarded by a mutex. Losing the process loses all unfinished jobs, which is
// a characteristic of this variant rather than a defect of the contract.
type MemoryBackend struct {
	mu     sync.Mutex
	jobs   []*jobs.Job
	failed []*jobs.Job
	logger *slog.Logger
}

func NewMemoryBackend(logger *slog.Logger) *MemoryBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBackend{
		jobs:   make([]*jobs.Job, 0),
		logger: logger,
	}
}

func (b *MemoryBackend) Insert(ctx context.Context, job *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.jobs = append(b.jobs, job)
	return nil
}

func (b *MemoryBackend) NextJobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	eligible := make([]*jobs.Job, 0, len(b.jobs))
	for _, job := range b.jobs {
		if job.IsAvailable() && !job.IsStillLocked() && !job.IsCancelled() {
			eligible = append(eligible, job)
		}
	}

	// Earliest-due first; stable so equal AvailableAt keeps insertion order.
	sort.SliceStable(eligible, func(i, k int) bool {
		return eligible[i].AvailableAt < eligible[k].AvailableAt
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (b *MemoryBackend) FailJob(ctx context.Context, job *jobs.Job, jobErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if jobErr == nil {
		jobErr = jobs.ErrAttemptFailed
	}

	if hookErr := job.NotifyFailure(jobErr); hookErr != nil {
		b.logger.Error("failure hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *MemoryBackend) FailJobForever(ctx context.Context, job *jobs.Job, jobErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if jobErr == nil {
		jobErr = jobs.ErrMaxAttempts
	}

	b.mu.Lock()
	b.remove(job)
	b.failed = append(b.failed, job)
	b.mu.Unlock()

	b.logger.Error("job failed permanently",
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"attempts", job.Attempts,
		"error", jobErr)

	if hookErr := job.NotifyPermanentFailure(jobErr); hookErr != nil {
		b.logger.Error("permanent failure hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *MemoryBackend) FinishJob(ctx context.Context, job *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.remove(job)
	b.mu.Unlock()

	if hookErr := job.NotifySuccess(); hookErr != nil {
		b.logger.Error("success hook error", "job_id", job.ID(), "error", hookErr)
	}
	return nil
}

func (b *MemoryBackend) CancelJob(ctx context.Context, job *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.remove(job)
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Failed returns the permanently failed jobs, for host inspection.
func (b *MemoryBackend) Failed() []*jobs.Job {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := make([]*jobs.Job, len(b.failed))
	copy(failed, b.failed)
	return failed
}

// Len reports the size of the active set.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// remove excises a job by identity. Caller holds the lock.
func (b *MemoryBackend) remove(job *jobs.Job) {
	for i, j := range b.jobs {
		if j == job {
			b.jobs = append(b.jobs[:i], b.jobs[i+1:]...)
			return
		}
	}
}
