package queue

import (
	"fmt"
	"sync"
)

// Registry is the explicit process-wide mapping from queue name to queue
// handle, populated as queues are created. Producers and cross-queue
// cancellation resolve queues through Lookup; there is no implicit global.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

func NewRegistry() *Registry {
	return &Registry{
		queues: make(map[string]*Queue),
	}
}

func (r *Registry) Add(q *Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.queues[q.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrQueueExists, q.Name())
	}

	r.queues[q.Name()] = q
	return nil
}

func (r *Registry) Lookup(name string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, exists := r.queues[name]
	return q, exists
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	return names
}

// StopAll stops every registered queue's work loop.
func (r *Registry) StopAll() {
	r.mu.RLock()
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.RUnlock()

	for _, q := range queues {
		q.Stop()
	}
}
