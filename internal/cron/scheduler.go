package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronparser "github.com/robfig/cron/v3"

	"github.com/albachteng/workq/internal/jobs"
	"github.com/albachteng/workq/internal/queue"
)

// Entry is a recurring job definition: every time the cron expression fires,
// Build produces a fresh job and the scheduler inserts it into the queue.
type Entry struct {
	Name  string
	Expr  string
	Queue *queue.Queue
	Build func() (*jobs.Job, error)

	next time.Time
}

// Scheduler turns cron expressions into queue inserts. It owns its own check
// loop, separate from the queues' poll loops.
type Scheduler struct {
	logger        *slog.Logger
	parser        cronparser.Parser
	checkInterval time.Duration

	mu      sync.Mutex
	entries []*Entry
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		logger:        logger,
		parser:        cronparser.NewParser(cronparser.Minute | cronparser.Hour | cronparser.Dom | cronparser.Month | cronparser.Dow),
		checkInterval: time.Second,
		done:          make(chan struct{}),
	}
}

// NextRun computes when expr fires next after from.
func (s *Scheduler) NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(from), nil
}

// Add registers a recurring entry. The expression is validated up front.
func (s *Scheduler) Add(name, expr string, q *queue.Queue, build func() (*jobs.Job, error)) error {
	next, err := s.NextRun(expr, time.Now())
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, &Entry{
		Name:  name,
		Expr:  expr,
		Queue: q,
		Build: build,
		next:  next,
	})
	return nil
}

// ProcessDue inserts a job for every entry whose next run time has passed
// and advances its schedule. Errors are logged per entry; one bad entry
// never blocks the rest.
func (s *Scheduler) ProcessDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	entries := make([]*Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	for _, entry := range entries {
		if entry.next.After(now) {
			continue
		}

		job, err := entry.Build()
		if err != nil {
			s.logger.Error("failed to build job from cron entry",
				"entry", entry.Name,
				"error", err)
		} else if err := entry.Queue.Insert(ctx, job); err != nil {
			s.logger.Error("failed to insert job from cron entry",
				"entry", entry.Name,
				"job_id", job.ID(),
				"error", err)
		} else {
			s.logger.Info("inserted job from cron schedule",
				"entry", entry.Name,
				"job_id", job.ID(),
				"job_kind", job.Kind())
		}

		next, err := s.NextRun(entry.Expr, now)
		if err != nil {
			s.logger.Error("failed to compute next run",
				"entry", entry.Name,
				"error", err)
			continue
		}

		s.mu.Lock()
		entry.next = next
		s.mu.Unlock()
	}
}

// Start begins the check loop. Subsequent calls are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ProcessDue(ctx)
			}
		}
	}()
}

// Stop ends the check loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
}
