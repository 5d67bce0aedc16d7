package jobs

import "errors"

var (
	ErrNoTask        = errors.New("job has no task attached")
	ErrMaxAttempts   = errors.New("job exhausted max attempts")
	ErrAttemptFailed = errors.New("job attempt failed")
)
