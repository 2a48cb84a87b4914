package registry_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/registry"
)

func TestFormatReference(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, "exp_7_2026-03-14-T150926", registry.FormatReference("exp", 7, ts))
}

func TestParamRegistry_StoreAndLoad(t *testing.T) {
	t.Parallel()

	reg := registry.NewParamRegistry(t.TempDir())

	require.NoError(t, reg.Store("hash1", map[string]any{"name": "a", "lr": "0.1"}))
	require.NoError(t, reg.Store("hash2", map[string]any{"name": "b", "lr": "0.2"}))

	entries, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first, ok := entries["hash1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a", first["name"])
}

func TestParamRegistry_EmptyOnMissingFile(t *testing.T) {
	t.Parallel()

	reg := registry.NewParamRegistry(filepath.Join(t.TempDir(), "nested"))
	entries, err := reg.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParamRegistry_ReRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := registry.NewParamRegistry(t.TempDir())
	require.NoError(t, reg.Store("hash1", map[string]any{"v": "1"}))
	require.NoError(t, reg.Store("hash1", map[string]any{"v": "1"}))

	entries, err := reg.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func runStoreTest(t *testing.T, store registry.RunStore) {
	t.Helper()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := &registry.RunInfo{Experiment: "exp", Timestamp: ts, Status: registry.StatusIncomplete}
	require.NoError(t, store.Begin(first))
	assert.Equal(t, 1, first.RunNumber)
	assert.Equal(t, registry.FormatReference("exp", 1, ts), first.Reference)

	second := &registry.RunInfo{Experiment: "exp", Timestamp: ts.Add(time.Hour)}
	require.NoError(t, store.Begin(second))
	assert.Equal(t, 2, second.RunNumber)

	other := &registry.RunInfo{Experiment: "other", Timestamp: ts}
	require.NoError(t, store.Begin(other))
	assert.Equal(t, 1, other.RunNumber, "numbering is per experiment")

	first.Status = registry.StatusComplete
	require.NoError(t, store.Update(first))

	runs, err := store.List("exp")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, registry.StatusComplete, runs[0].Status)

	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	missing := &registry.RunInfo{Reference: "exp_99_nope"}
	assert.Error(t, store.Update(missing))
}

func TestJSONRunStore(t *testing.T) {
	t.Parallel()

	store := registry.NewJSONRunStore(t.TempDir())
	defer store.Close()
	runStoreTest(t, store)
}

func TestSQLiteRunStore(t *testing.T) {
	t.Parallel()

	store, err := registry.NewSQLiteRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreTest(t, store)
}
