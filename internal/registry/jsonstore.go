package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// runStoreFile is the well-known filename for the JSON run store.
const runStoreFile = "store.json"

// JSONRunStore keeps run metadata in a single store.json inside the cache
// directory, which travels with the cache tree when it is copied around.
// Mutual exclusion covers in-process callers only; cross-process runs should
// prefer the SQLite store.
type JSONRunStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONRunStore returns a store backed by store.json in the given
// directory.
func NewJSONRunStore(dir string) *JSONRunStore {
	return &JSONRunStore{path: filepath.Join(dir, runStoreFile)}
}

func (s *JSONRunStore) load() ([]RunInfo, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []RunInfo
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("run store %s is unreadable: %w", s.path, err)
	}
	return runs, nil
}

func (s *JSONRunStore) save(runs []RunInfo) error {
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Begin allocates the next run number for the experiment, stamps the
// reference, and persists the block with whatever status it carries.
func (s *JSONRunStore) Begin(info *RunInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return err
	}
	next := 1
	for _, run := range runs {
		if run.Experiment == info.Experiment && run.RunNumber >= next {
			next = run.RunNumber + 1
		}
	}
	info.RunNumber = next
	info.Reference = FormatReference(info.Experiment, next, info.Timestamp)
	runs = append(runs, *info)
	return s.save(runs)
}

// Update rewrites the block with the same reference.
func (s *JSONRunStore) Update(info *RunInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return err
	}
	for i := range runs {
		if runs[i].Reference == info.Reference {
			runs[i] = *info
			return s.save(runs)
		}
	}
	return fmt.Errorf("run %q not found in store", info.Reference)
}

// List returns runs for the experiment, or all runs when experiment is empty.
func (s *JSONRunStore) List(experiment string) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return nil, err
	}
	if experiment == "" {
		return runs, nil
	}
	var out []RunInfo
	for _, run := range runs {
		if run.Experiment == experiment {
			out = append(out, run)
		}
	}
	return out, nil
}

// Close is a no-op for the JSON store.
func (s *JSONRunStore) Close() error { return nil }
