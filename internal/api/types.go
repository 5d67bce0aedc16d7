package api

import (
	"encoding/json"

	"github.com/albachteng/workq/internal/jobs"
)

type EnqueueRequest struct {
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Queue       string          `json:"queue,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	RetryWaitMS int64           `json:"retry_wait_ms,omitempty"`
	DelayMS     int64           `json:"delay_ms,omitempty"`
}

type EnqueueResponse struct {
	JobID  jobs.JobID `json:"job_id"`
	Status string     `json:"status"`
}

type QueueInfo struct {
	Name        string `json:"name"`
	Concurrency int    `json:"concurrency"`
}
