// Package state is the per-record artifact container: an ordered mapping from
// artifact name to value, with transparent resolution of lazy cache handles
// on access.
package state

import "fmt"

// Loader resolves a lazy handle to its concrete value. The cache gateway's
// bound entries satisfy this.
type Loader interface {
	Load() (any, error)
	Path() string
}

// Lazy is a placeholder for an artifact that lives in the cache rather than
// in memory.
type Lazy struct {
	// Name is the artifact name the handle stands in for.
	Name string

	// Resolve controls whether container access loads the value. When false,
	// Get hands the Lazy itself to the caller, giving stage code direct
	// access to the backing path without forcing a load.
	Resolve bool

	// Loader performs the actual load.
	Loader Loader
}

// Load resolves the handle through its loader.
func (l *Lazy) Load() (any, error) {
	if l.Loader == nil {
		return nil, fmt.Errorf("lazy artifact %q has no loader bound", l.Name)
	}
	return l.Loader.Load()
}

func (l *Lazy) String() string { return l.Name }

// State holds a record's artifacts. Writes always store eager values (or
// explicit lazy handles); reads resolve lazy handles unless resolution is
// switched off.
type State struct {
	order []string
	cells map[string]any

	// Resolve toggles resolve-on-access for the whole container. Turning it
	// off is useful for inspecting what is actually resident without forcing
	// loads.
	Resolve bool

	// Materialize, when set, replaces a lazy cell with its loaded value on
	// first access instead of re-resolving from cache every time. The default
	// keeps the handle so large artifacts never pin memory.
	Materialize bool
}

// New returns an empty container with resolution enabled.
func New() *State {
	return &State{cells: make(map[string]any), Resolve: true}
}

// Set stores an eager value, overwriting any previous cell under the name.
func (s *State) Set(name string, value any) {
	if _, ok := s.cells[name]; !ok {
		s.order = append(s.order, name)
	}
	s.cells[name] = value
}

// Get returns the value for an artifact, resolving a lazy cell through the
// cache when resolution is enabled.
func (s *State) Get(name string) (any, error) {
	cell, ok := s.cells[name]
	if !ok {
		return nil, fmt.Errorf("artifact %q not in state", name)
	}
	lazy, isLazy := cell.(*Lazy)
	if !isLazy || !s.Resolve || !lazy.Resolve {
		return cell, nil
	}
	value, err := lazy.Load()
	if err != nil {
		return nil, fmt.Errorf("resolving lazy artifact %q: %w", name, err)
	}
	if s.Materialize {
		s.cells[name] = value
	}
	return value, nil
}

// Raw returns the underlying cell without resolution, lazy handle and all.
func (s *State) Raw(name string) (any, bool) {
	cell, ok := s.cells[name]
	return cell, ok
}

// Has reports whether an artifact name is present.
func (s *State) Has(name string) bool {
	_, ok := s.cells[name]
	return ok
}

// Keys returns artifact names in insertion order.
func (s *State) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of artifacts held.
func (s *State) Len() int { return len(s.cells) }

// Copy duplicates the container cell-by-cell. Values are shared, not deep
// copied; lazy handles keep pointing at the same cache entries.
func (s *State) Copy() *State {
	out := New()
	out.Resolve = s.Resolve
	out.Materialize = s.Materialize
	for _, name := range s.order {
		out.Set(name, s.cells[name])
	}
	return out
}

// Snapshot returns the raw cells keyed by name, in no particular order. Lazy
// handles appear as handles; nothing is loaded.
func (s *State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}
