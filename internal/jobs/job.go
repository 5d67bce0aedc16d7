package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobID string

const (
	DefaultQueue       = "default"
	DefaultMaxAttempts = 5
)

// Task supplies the processing logic for one job variant. Variants share the
// scheduling state in Job and differ only in what Process does and the kind
// discriminator used to rebuild them from persisted data.
type Task interface {
	Process(ctx context.Context, job *Job) error
	Kind() string
}

// SuccessListener is implemented by tasks that want a notification after
// their job is finished.
type SuccessListener interface {
	OnSuccess(job *Job)
}

// FailureListener is notified after a transient failure is recorded.
type FailureListener interface {
	OnFailure(job *Job, err error)
}

// PermanentFailureListener is notified after a job is failed for good.
type PermanentFailureListener interface {
	OnPermanentFailure(job *Job, err error)
}

// Owner is the queue-side handle a cancelled job uses to remove itself from
// active consideration. Bound by the queue at insert time.
type Owner interface {
	Discard(ctx context.Context, job *Job) error
}

// Metadata describes how to rebuild a persisted job's task.
type Metadata struct {
	Kind string `json:"kind"`
}

// Payload is the persisted representation of a job: the opaque data plus the
// metadata a durable backend needs to reconstruct the task.
type Payload struct {
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
}

// Job is the unit of deferred work. The backend owns the authoritative copy
// while the job is active; the scheduler mutates scheduling state only through
// BeginAttempt and reports outcomes through the backend.
type Job struct {
	Queue       string
	MaxAttempts int
	Attempts    int
	RetryWait   int64 // minimum millis between attempts
	LockedAt    int64 // epoch millis of last attempt start, 0 = never attempted
	AvailableAt int64 // epoch millis before which the job must not run
	Data        json.RawMessage
	CreatedAt   time.Time

	task Task

	mu        sync.Mutex
	id        JobID
	cancelled bool
	owner     Owner
}

// New creates a job for the given task, marshalling payload as its data.
// The job is immediately available on the default queue with default attempts.
func New(task Task, payload any) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	return &Job{
		Queue:       DefaultQueue,
		MaxAttempts: DefaultMaxAttempts,
		AvailableAt: now.UnixMilli(),
		Data:        data,
		CreatedAt:   now,
		task:        task,
	}, nil
}

// Restore rebuilds a job from persisted fields. Scheduling state is set by
// the backend after restore.
func Restore(id JobID, queueName string, task Task, data json.RawMessage) *Job {
	return &Job{
		Queue: queueName,
		Data:  data,
		task:  task,
		id:    id,
	}
}

// ID returns the job's identifier, generating it on first access.
// Stable once assigned.
func (j *Job) ID() JobID {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.id == "" {
		j.id = JobID(uuid.NewString())
	}
	return j.id
}

// Kind returns the task's reconstruction discriminator.
func (j *Job) Kind() string {
	if j.task == nil {
		return ""
	}
	return j.task.Kind()
}

// Delay pushes the job's availability d into the future.
func (j *Job) Delay(d time.Duration) {
	j.AvailableAt = time.Now().Add(d).UnixMilli()
}

// IsAvailable reports whether the job's availability time has passed.
func (j *Job) IsAvailable() bool {
	return time.Now().UnixMilli() >= j.AvailableAt
}

// IsStillLocked reports whether the job was attempted recently and its retry
// cooldown has not elapsed. A job that was never attempted is never locked.
func (j *Job) IsStillLocked() bool {
	if j.LockedAt == 0 {
		return false
	}
	return time.Now().UnixMilli() < j.LockedAt+j.RetryWait
}

func (j *Job) IsCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// TriedMaxAttempts reports whether the job has exhausted its attempts and
// must never be dispatched again.
func (j *Job) TriedMaxAttempts() bool {
	return j.Attempts >= j.MaxAttempts
}

// BeginAttempt records the start of a processing attempt: increments the
// attempt counter and stamps LockedAt. Called by the scheduler immediately
// before Process.
func (j *Job) BeginAttempt() {
	j.Attempts++
	j.LockedAt = time.Now().UnixMilli()
}

// Bind attaches the owning queue so Cancel can remove the job from it.
func (j *Job) Bind(owner Owner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.owner = owner
}

// Cancel marks the job cancelled and notifies the owning queue to drop it
// from active consideration. Idempotent; the cancelled flag never resets.
func (j *Job) Cancel(ctx context.Context) error {
	j.mu.Lock()
	if j.cancelled {
		j.mu.Unlock()
		return nil
	}
	j.cancelled = true
	owner := j.owner
	j.mu.Unlock()

	if owner == nil {
		return nil
	}
	return owner.Discard(ctx, j)
}

// Process executes the job's task.
func (j *Job) Process(ctx context.Context) error {
	if j.task == nil {
		return fmt.Errorf("%w: %s", ErrNoTask, j.ID())
	}
	return j.task.Process(ctx, j)
}

// QueueableData returns the persistable representation of the job.
func (j *Job) QueueableData() Payload {
	return Payload{
		Data:     j.Data,
		Metadata: Metadata{Kind: j.Kind()},
	}
}

// NotifySuccess runs the task's success hook, if any. A panic inside the
// hook is returned as an error for logging and never propagates.
func (j *Job) NotifySuccess() (err error) {
	l, ok := j.task.(SuccessListener)
	if !ok {
		return nil
	}
	defer recoverHook("success", &err)
	l.OnSuccess(j)
	return nil
}

// NotifyFailure runs the task's transient-failure hook, if any.
func (j *Job) NotifyFailure(jobErr error) (err error) {
	l, ok := j.task.(FailureListener)
	if !ok {
		return nil
	}
	defer recoverHook("failure", &err)
	l.OnFailure(j, jobErr)
	return nil
}

// NotifyPermanentFailure runs the task's permanent-failure hook, if any.
func (j *Job) NotifyPermanentFailure(jobErr error) (err error) {
	l, ok := j.task.(PermanentFailureListener)
	if !ok {
		return nil
	}
	defer recoverHook("permanent failure", &err)
	l.OnPermanentFailure(j, jobErr)
	return nil
}

func recoverHook(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s hook panicked: %v", name, r)
	}
}
