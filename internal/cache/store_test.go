package cache_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/cache"
)

type corpusSample struct {
	Lines []string
	Count int
}

func init() {
	cache.Register(corpusSample{})
}

func TestGobStore_RegisteredStruct(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sample.gob")
	store := cache.GobStore{}

	in := corpusSample{Lines: []string{"a b", "c"}, Count: 2}
	require.NoError(t, store.Save(path, in))

	out, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCSVStore_Tabular(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rows.csv")
	store := cache.CSVStore{}

	rows := [][]string{{"name", "count"}, {"river", "3"}}
	require.NoError(t, store.Save(path, rows))

	out, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, rows, out)

	err = store.Save(path, "not tabular")
	assert.Error(t, err)
}

func TestRawStore_Bytes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob.bin")
	store := cache.RawStore{}

	require.NoError(t, store.Save(path, []byte{0x01, 0x02}))
	out, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, out)

	err = store.Save(path, 42)
	assert.Error(t, err)
}

func TestFileRefStore_References(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ptr.refs.json")
	store := cache.FileRefStore{}

	require.NoError(t, store.Save(path, "/data/huge.parquet"))
	out, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/huge.parquet"}, out)

	require.NoError(t, store.Save(path, []string{"/a", "/b"}))
	out, err = store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, out)
}
