package tracking

import (
	"sync"
	"time"

	"github.com/albachteng/workq/internal/jobs"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusRetrying   JobStatus = "retrying"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// JobInfo is the observable record of one job's progress through the queue,
// including the permanent-failure outcome the host may want to log.
type JobInfo struct {
	JobID      jobs.JobID `json:"job_id"`
	Kind       string     `json:"kind"`
	Queue      string     `json:"queue"`
	Status     JobStatus  `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	job *jobs.Job
}

// Job returns the tracked job, for cancellation by ID.
func (i *JobInfo) Job() *jobs.Job {
	return i.job
}

// Tracker records job status transitions. Queues report into it; the host
// reads from it.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[jobs.JobID]*JobInfo
}

func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[jobs.JobID]*JobInfo),
	}
}

func (t *Tracker) Register(job *jobs.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.jobs[job.ID()] = &JobInfo{
		JobID:  job.ID(),
		Kind:   job.Kind(),
		Queue:  job.Queue,
		Status: StatusPending,
		job:    job,
	}
}

func (t *Tracker) MarkProcessing(id jobs.JobID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, exists := t.jobs[id]; exists {
		now := time.Now()
		info.Status = StatusProcessing
		info.Attempts = info.job.Attempts
		info.StartedAt = &now
	}
}

// MarkRetrying records a transient failure; the job remains queued for
// another attempt.
func (t *Tracker) MarkRetrying(id jobs.JobID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, exists := t.jobs[id]; exists {
		info.Status = StatusRetrying
		info.Attempts = info.job.Attempts
		info.Error = err.Error()
	}
}

func (t *Tracker) MarkCompleted(id jobs.JobID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, exists := t.jobs[id]; exists {
		now := time.Now()
		info.Status = StatusCompleted
		info.Attempts = info.job.Attempts
		info.Error = ""
		info.FinishedAt = &now
	}
}

func (t *Tracker) MarkFailed(id jobs.JobID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, exists := t.jobs[id]; exists {
		now := time.Now()
		info.Status = StatusFailed
		info.Attempts = info.job.Attempts
		info.Error = err.Error()
		info.FinishedAt = &now
	}
}

func (t *Tracker) MarkCancelled(id jobs.JobID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, exists := t.jobs[id]; exists {
		now := time.Now()
		info.Status = StatusCancelled
		info.FinishedAt = &now
	}
}

// Accessors return snapshots taken under the lock: dispatch goroutines keep
// mutating the live records, so callers must never see those directly. The
// copy still carries the job back-reference for cancel-by-ID.

func (t *Tracker) Get(id jobs.JobID) (*JobInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, exists := t.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *info
	return &snapshot, true
}

func (t *Tracker) List() []*JobInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]*JobInfo, 0, len(t.jobs))
	for _, info := range t.jobs {
		snapshot := *info
		list = append(list, &snapshot)
	}
	return list
}

func (t *Tracker) ListByStatus(status JobStatus) []*JobInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]*JobInfo, 0)
	for _, info := range t.jobs {
		if info.Status == status {
			snapshot := *info
			list = append(list, &snapshot)
		}
	}
	return list
}
