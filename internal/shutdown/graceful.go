package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Task is a cleanup function run during shutdown.
type Task func(ctx context.Context) error

const defaultTimeout = 30 * time.Second

// Manager coordinates graceful teardown of the host's components: queue work
// loops, backends, the HTTP server. Tasks run concurrently under a shared
// timeout; shutdown happens at most once.
type Manager struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	tasks   []namedTask
	started bool
	errs    []error

	once sync.Once
	done chan struct{}
}

type namedTask struct {
	name string
	task Task
}

func NewManager(timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Register adds a named cleanup task. Registration after shutdown has begun
// is rejected.
func (m *Manager) Register(name string, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("cannot register task after shutdown has started")
	}

	m.tasks = append(m.tasks, namedTask{name: name, task: task})
	return nil
}

// Shutdown runs all registered tasks concurrently and waits for them or the
// timeout, whichever comes first. Idempotent.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.started = true
		tasks := m.tasks
		m.mu.Unlock()

		m.run(tasks)
		close(m.done)
	})
}

func (m *Manager) run(tasks []namedTask) {
	if len(tasks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var pending sync.Map

	for _, nt := range tasks {
		pending.Store(nt.name, true)
		wg.Add(1)
		go func(nt namedTask) {
			defer wg.Done()
			defer pending.Delete(nt.name)

			if err := nt.task(ctx); err != nil {
				m.recordError(err)
				m.logger.Error("shutdown task failed", "task", nt.name, "error", err)
			}
		}(nt)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info("shutdown completed", "tasks", len(tasks))
	case <-ctx.Done():
		var incomplete []string
		pending.Range(func(key, _ any) bool {
			incomplete = append(incomplete, key.(string))
			return true
		})
		m.logger.Warn("shutdown timeout exceeded",
			"timeout", m.timeout,
			"incomplete_tasks", incomplete)
	}
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Wait blocks until shutdown has completed.
func (m *Manager) Wait() {
	<-m.done
}

// Errors returns the errors collected from shutdown tasks.
func (m *Manager) Errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]error, len(m.errs))
	copy(errs, m.errs)
	return errs
}
