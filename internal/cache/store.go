package cache

import (
	"bytes"
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
)

// Store is a single serialization strategy. Each strategy owns its file
// extension and is free to write auxiliary files next to the main path.
type Store interface {
	Save(path string, value any) error
	Load(path string) (any, error)
	Extension() string
}

// Register makes a concrete type encodable by the gob-backed store. Values
// passed through GobStore must have had their types registered once.
func Register(value any) {
	gob.Register(value)
}

// JSONStore serializes values as indented JSON. Loaded values come back with
// JSON shapes (map[string]any, []any, float64).
type JSONStore struct{}

func (JSONStore) Extension() string { return ".json" }

func (JSONStore) Save(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (JSONStore) Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &IntegrityError{Path: path, Err: err}
	}
	return out, nil
}

// GobStore serializes arbitrary Go values with encoding/gob, the opaque
// catch-all strategy. Concrete types must be registered via Register.
type GobStore struct{}

func (GobStore) Extension() string { return ".gob" }

func (GobStore) Save(path string, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (GobStore) Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return nil, &IntegrityError{Path: path, Err: err}
	}
	return out, nil
}

// CSVStore serializes tabular data ([][]string rows, first row conventionally
// a header).
type CSVStore struct{}

func (CSVStore) Extension() string { return ".csv" }

func (CSVStore) Save(path string, value any) error {
	rows, ok := value.([][]string)
	if !ok {
		return fmt.Errorf("csv store requires [][]string, got %T", value)
	}
	var buf bytes.Buffer
	if err := csv.NewWriter(&buf).WriteAll(rows); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (CSVStore) Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, &IntegrityError{Path: path, Err: err}
	}
	return rows, nil
}

// RawStore writes byte slices untouched.
type RawStore struct{}

func (RawStore) Extension() string { return ".bin" }

func (RawStore) Save(path string, value any) error {
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("raw store requires []byte, got %T", value)
	}
	return os.WriteFile(path, data, 0o644)
}

func (RawStore) Load(path string) (any, error) {
	return os.ReadFile(path)
}

// FileRefStore stores a list of file paths rather than content: the
// "reference only" strategy for artifacts produced outside the cache tree.
type FileRefStore struct{}

func (FileRefStore) Extension() string { return ".refs.json" }

func (FileRefStore) Save(path string, value any) error {
	var refs []string
	switch v := value.(type) {
	case []string:
		refs = v
	case string:
		refs = []string{v}
	default:
		return fmt.Errorf("file reference store requires string or []string, got %T", value)
	}
	data, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (FileRefStore) Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var refs []string
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, &IntegrityError{Path: path, Err: err}
	}
	return refs, nil
}
