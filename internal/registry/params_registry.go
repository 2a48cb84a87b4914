package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// paramsRegistryFile is the well-known filename inside the cache directory.
const paramsRegistryFile = "params_registry.json"

// ParamRegistry is the append-only registry mapping parameter hashes to the
// full string representation of the values they were computed from. It lets a
// human answer "what configuration does this hash in a cache filename mean"
// long after the run.
type ParamRegistry struct {
	path string
	mu   sync.Mutex
}

// NewParamRegistry returns a registry stored inside the given directory.
func NewParamRegistry(dir string) *ParamRegistry {
	return &ParamRegistry{path: filepath.Join(dir, paramsRegistryFile)}
}

// Path returns the backing file path.
func (r *ParamRegistry) Path() string { return r.path }

// Store records the representation for a hash, preserving all previously
// registered entries. Re-registering a hash overwrites its entry; the
// representation is derived from the same values, so this is idempotent.
func (r *ParamRegistry) Store(hash string, representation map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make(map[string]any)
	data, err := os.ReadFile(r.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("params registry %s is unreadable: %w", r.path, err)
		}
	case !os.IsNotExist(err):
		return err
	}

	entries[hash] = representation

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding params registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.path, out, 0o644)
}

// Load returns all registered entries. A missing file is an empty registry.
func (r *ParamRegistry) Load() (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := make(map[string]any)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("params registry %s is unreadable: %w", r.path, err)
	}
	return entries, nil
}
