package registry

import (
	"fmt"
	"sync/atomic"
)

// Reloadable is a Lookup whose catalogue can be replaced while requests are
// being served. Each Lookup call sees one complete catalogue.
type Reloadable struct {
	current    atomic.Pointer[Registry]
	generation atomic.Uint64
}

// NewReloadable wraps an initial registry.
func NewReloadable(r *Registry) *Reloadable {
	rl := &Reloadable{}
	rl.current.Store(r)
	return rl
}

// Lookup implements Lookup against the current catalogue.
func (rl *Reloadable) Lookup(label string) (*ToolDescriptor, bool) {
	return rl.current.Load().Lookup(label)
}

// Current returns the catalogue in use.
func (rl *Reloadable) Current() *Registry {
	return rl.current.Load()
}

// Len returns the number of tools in the current catalogue.
func (rl *Reloadable) Len() int {
	return rl.current.Load().Len()
}

// Swap installs r and returns the previous catalogue.
func (rl *Reloadable) Swap(r *Registry) *Registry {
	prev := rl.current.Swap(r)
	rl.generation.Add(1)
	return prev
}

// Generation counts installed catalogues. It starts at zero and lets callers
// tell results computed against an older catalogue apart.
func (rl *Reloadable) Generation() uint64 {
	return rl.generation.Load()
}

// Reload parses and validates the catalogue at path and installs it. On any
// error the current catalogue is kept.
func (rl *Reloadable) Reload(path string) (*Registry, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool catalogue: %w", err)
	}
	rl.Swap(r)
	return r, nil
}
