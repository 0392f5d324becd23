package scan

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/harborgrid/c360/internal/model"
)

// StaticAdapter serves attribute sets and sample values held in memory,
// keyed by source system name. Used for seeded demo systems and tests.
type StaticAdapter struct {
	mu      sync.RWMutex
	attrs   map[string][]model.SourceAttribute
	samples map[string][]string // keyed by system name + "/" + attribute name
	fail    map[string]error
}

func NewStatic() *StaticAdapter {
	return &StaticAdapter{
		attrs:   map[string][]model.SourceAttribute{},
		samples: map[string][]string{},
		fail:    map[string]error{},
	}
}

func (a *StaticAdapter) Name() string { return "static" }

// SetAttributes installs the attribute set a future Scan returns for the
// named system.
func (a *StaticAdapter) SetAttributes(system string, attrs []model.SourceAttribute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attrs[system] = attrs
	delete(a.fail, system)
}

// SetSamples installs sample values for one attribute of the named system.
func (a *StaticAdapter) SetSamples(system, attribute string, values []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples[system+"/"+attribute] = values
}

// FailWith makes future Scans of the named system return err.
func (a *StaticAdapter) FailWith(system string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[system] = err
}

func (a *StaticAdapter) Scan(ctx context.Context, src *model.SourceSystem) ([]model.SourceAttribute, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if err, ok := a.fail[src.Name]; ok {
		return nil, err
	}
	attrs, ok := a.attrs[src.Name]
	if !ok {
		return nil, eris.Errorf("static: no attribute set for system %q", src.Name)
	}
	out := make([]model.SourceAttribute, len(attrs))
	copy(out, attrs)
	return out, nil
}

func (a *StaticAdapter) Sample(ctx context.Context, src *model.SourceSystem, attr *model.SourceAttribute, limit int) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	values := a.samples[src.Name+"/"+attr.Name]
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}
