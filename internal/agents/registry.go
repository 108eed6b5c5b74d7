package agents

import (
	"context"
	"fmt"
	"sort"

	"ShortsIntel/internal/domain"
)

// Worker captures a single analysis capability. The orchestrator treats all
// workers through this interface and never branches on concrete types.
type Worker interface {
	Name() string
	Analyze(ctx context.Context, snapshot Context) (domain.AgentReport, error)
}

// Registry keeps a mapping from worker names to their implementations.
type Registry struct {
	workers map[string]Worker
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: map[string]Worker{}}
}

// Register adds or replaces a worker implementation.
func (r *Registry) Register(worker Worker) {
	if r.workers == nil {
		r.workers = map[string]Worker{}
	}
	r.workers[worker.Name()] = worker
}

// Resolve returns a worker by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Worker, error) {
	if worker, ok := r.workers[name]; ok {
		return worker, nil
	}
	return nil, fmt.Errorf("worker %s is not registered", name)
}

// All returns every registered worker ordered by name.
func (r *Registry) All() []Worker {
	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	workers := make([]Worker, 0, len(names))
	for _, name := range names {
		workers = append(workers, r.workers[name])
	}
	return workers
}
