// Package scan discovers source system attributes and samples their values.
package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
)

// Adapter connects to one kind of upstream system. Scan enumerates the
// system's current attributes; Sample returns raw values for one
// attribute, used by mapping validation.
type Adapter interface {
	Name() string
	Scan(ctx context.Context, src *model.SourceSystem) ([]model.SourceAttribute, error)
	Sample(ctx context.Context, src *model.SourceSystem, attr *model.SourceAttribute, limit int) ([]string, error)
}

// Registry maps adapter names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("scan: no adapter named %q", name)
	}
	return a, nil
}

// Names returns registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
