package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrFactoryNotFound = errors.New("no task factory registered for kind")
	ErrFactoryExists   = errors.New("task factory already registered for kind")
)

// Factory rebuilds a task variant from its persisted data. Durable backends
// use factories to turn stored rows back into executable jobs.
type Factory func(data json.RawMessage) (Task, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(kind string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("%w: %s", ErrFactoryExists, kind)
	}

	r.factories[kind] = factory
	return nil
}

func (r *Registry) MustRegister(kind string, factory Factory) {
	if err := r.Register(kind, factory); err != nil {
		panic(err)
	}
}

// RegisterTask registers a stateless task under its own kind; the factory
// hands back the same task for every job.
func (r *Registry) RegisterTask(task Task) error {
	return r.Register(task.Kind(), func(json.RawMessage) (Task, error) {
		return task, nil
	})
}

func (r *Registry) Get(kind string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, kind)
	}

	return factory, nil
}

// Rebuild turns a persisted payload back into its task.
func (r *Registry) Rebuild(p Payload) (Task, error) {
	factory, err := r.Get(p.Metadata.Kind)
	if err != nil {
		return nil, err
	}

	return factory(p.Data)
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}
