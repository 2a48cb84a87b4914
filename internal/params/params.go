package params

import (
	"fmt"
	"sort"
)

// OverrideFunc computes a custom hash representation for a single field. It
// receives the whole parameter set plus the field's current value, and returns
// the string to hash in place of the default representation.
type OverrideFunc func(ps *ParameterSet, value any) (string, error)

// ParameterSet is a named bundle of values controlling how stages compute.
// Name and Overwrite are bookkeeping fields and are never part of the hash.
type ParameterSet struct {
	// Name identifies the set in logs, reports and the run registry. Two sets
	// with identical values but different names hash identically.
	Name string

	// Overwrite requests recomputation of everything derived from this set,
	// ignoring existing cache entries.
	Overwrite bool

	values    map[string]any
	overrides map[string]OverrideFunc

	hash    string
	hashSet bool
}

// New returns an empty parameter set with the given name.
func New(name string) *ParameterSet {
	return &ParameterSet{
		Name:      name,
		values:    make(map[string]any),
		overrides: make(map[string]OverrideFunc),
	}
}

// FromMap returns a parameter set populated with the given values.
func FromMap(name string, values map[string]any) *ParameterSet {
	ps := New(name)
	for k, v := range values {
		ps.values[k] = v
	}
	return ps
}

// Set stores a field value. Setting a field after the fingerprint has been
// memoized does not change the fingerprint.
func (ps *ParameterSet) Set(field string, value any) *ParameterSet {
	ps.values[field] = value
	return ps
}

// Get returns the value of a field and whether the field is declared.
func (ps *ParameterSet) Get(field string) (any, bool) {
	v, ok := ps.values[field]
	return v, ok
}

// Fields returns the declared field names in sorted order. Sorting is for
// deterministic iteration in dry-run dumps; the hash itself is
// order-independent.
func (ps *ParameterSet) Fields() []string {
	names := make([]string, 0, len(ps.values))
	for name := range ps.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetOverride registers a custom hash representation for a field. Overrides
// are instance-local; declaring one on a set does not affect other sets.
func (ps *ParameterSet) SetOverride(field string, fn OverrideFunc) *ParameterSet {
	if fn == nil {
		ps.overrides[field] = nil
		return ps
	}
	ps.overrides[field] = fn
	return ps
}

// Ignore excludes a field from the hash entirely. Equivalent to registering a
// nil override.
func (ps *ParameterSet) Ignore(field string) *ParameterSet {
	ps.overrides[field] = nil
	return ps
}

// ClearOverride removes any override registered for a field, restoring the
// default representation chain for it.
func (ps *ParameterSet) ClearOverride(field string) {
	delete(ps.overrides, field)
}

// Override reports the override for a field: the function (nil means the
// field is ignored) and whether any override is registered at all.
func (ps *ParameterSet) Override(field string) (OverrideFunc, bool) {
	fn, ok := ps.overrides[field]
	return fn, ok
}

// SetHash memoizes the computed fingerprint. It may also be used to pin a
// hash manually, which forces cache addressing under the given string.
func (ps *ParameterSet) SetHash(hash string) {
	ps.hash = hash
	ps.hashSet = true
}

// StoredHash returns the memoized fingerprint, if one has been computed.
func (ps *ParameterSet) StoredHash() (string, bool) {
	return ps.hash, ps.hashSet
}

func (ps *ParameterSet) String() string {
	return fmt.Sprintf("ParameterSet(%q, %d fields)", ps.Name, len(ps.values))
}
