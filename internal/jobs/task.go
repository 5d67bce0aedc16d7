package jobs

import "context"

// taskFunc adapts a plain function into a Task with the given kind.
type taskFunc struct {
	kind string
	fn   func(context.Context, *Job) error
}

// NewTask wraps fn as a Task identified by kind. Useful for stateless tasks
// that need no hooks.
func NewTask(kind string, fn func(context.Context, *Job) error) Task {
	return &taskFunc{kind: kind, fn: fn}
}

func (t *taskFunc) Process(ctx context.Context, job *Job) error {
	return t.fn(ctx, job)
}

func (t *taskFunc) Kind() string {
	return t.kind
}
