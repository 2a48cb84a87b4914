package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteRunStore persists run metadata in an embedded SQLite database. Run
// number allocation happens inside a transaction, so concurrent OS processes
// sharing the cache directory get distinct numbers without external locking.
type SQLiteRunStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteRunStore opens (creating if needed) the run database at path.
func NewSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		reference TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		run_number INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &SQLiteRunStore{db: db, path: path}, nil
}

// Begin allocates the next run number for the experiment and inserts the
// block, all inside one transaction.
func (s *SQLiteRunStore) Begin(info *RunInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	row := tx.QueryRow(`SELECT COALESCE(MAX(run_number), 0) + 1 FROM runs WHERE experiment = ?`, info.Experiment)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("allocate run number: %w", err)
	}
	info.RunNumber = next
	info.Reference = FormatReference(info.Experiment, next, info.Timestamp)

	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO runs (reference, experiment, run_number, payload) VALUES (?, ?, ?, ?)`,
		info.Reference, info.Experiment, info.RunNumber, payload); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return tx.Commit()
}

// Update rewrites the payload for the run's reference.
func (s *SQLiteRunStore) Update(info *RunInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE runs SET payload = ? WHERE reference = ?`, payload, info.Reference)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %q not found in store", info.Reference)
	}
	return nil
}

// List returns runs for the experiment in run-number order, or every run when
// experiment is empty.
func (s *SQLiteRunStore) List(experiment string) ([]RunInfo, error) {
	query := `SELECT payload FROM runs ORDER BY experiment, run_number`
	args := []any{}
	if experiment != "" {
		query = `SELECT payload FROM runs WHERE experiment = ? ORDER BY run_number`
		args = append(args, experiment)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RunInfo
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var info RunInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			return nil, fmt.Errorf("decode run payload: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteRunStore) Close() error { return s.db.Close() }
