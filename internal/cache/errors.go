package cache

import (
	"errors"
	"fmt"
)

// ErrMissing reports that no file backs the requested cache entry. Callers
// treat this as "not yet computed".
var ErrMissing = errors.New("cache entry missing")

// IntegrityError reports a backing file that exists but cannot be
// deserialized. It is deliberately distinct from ErrMissing: recomputing
// silently on corruption would mask it.
type IntegrityError struct {
	Path string
	Err  error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("cache entry at %q is corrupt: %v", e.Path, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
