package queue

import (
	"context"
	"errors"

	"github.com/albachteng/workq/internal/jobs"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueExists = errors.New("queue already registered")
	ErrJobTimeout  = errors.New("job timed out")
)

// Backend holds the active job set for a queue. It is the only component
// that mutates the set; the scheduler reads eligibility through NextJobs and
// reports outcomes through the remaining operations. Backends that serve a
// concurrent scheduler must serialize mutations to the set.
type Backend interface {
	// Insert adds a job to active storage. It never drops silently.
	Insert(ctx context.Context, job *jobs.Job) error

	// NextJobs returns the jobs eligible for dispatch right now: available,
	// retry cooldown elapsed, not cancelled. Ordered ascending by
	// AvailableAt and truncated to limit; limit <= 0 returns all eligible.
	NextJobs(ctx context.Context, limit int) ([]*jobs.Job, error)

	// FailJob records a transient failure and runs the failure hook. The job
	// stays in active storage so it can be retried once its cooldown passes.
	// A nil jobErr is recorded as jobs.ErrAttemptFailed.
	FailJob(ctx context.Context, job *jobs.Job, jobErr error) error

	// FailJobForever removes the job from the active set for good and runs
	// the permanent-failure hook. A nil jobErr means retries were exhausted.
	FailJobForever(ctx context.Context, job *jobs.Job, jobErr error) error

	// FinishJob removes the job from the active set and runs the success hook.
	FinishJob(ctx context.Context, job *jobs.Job) error

	// CancelJob removes a cancelled job from active consideration. Durable
	// backends persist the cancelled flag.
	CancelJob(ctx context.Context, job *jobs.Job) error

	Close() error
}
