package hclparams_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/hclparams"
)

func writeParams(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_SingleFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "base.hcl", `
params "baseline" {
  values = {
    learning_rate = 0.01
    epochs        = 10
    optimizer     = "adam"
    balanced      = true
  }
}
`)

	sets, err := hclparams.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	ps := sets[0]
	assert.Equal(t, "baseline", ps.Name)
	assert.False(t, ps.Overwrite)

	lr, ok := ps.Get("learning_rate")
	require.True(t, ok)
	assert.Equal(t, 0.01, lr)

	opt, _ := ps.Get("optimizer")
	assert.Equal(t, "adam", opt)

	balanced, _ := ps.Get("balanced")
	assert.Equal(t, true, balanced)
}

func TestLoad_MultipleBlocksAndFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "a.hcl", `
params "small" {
  values = { epochs = 1 }
}

params "medium" {
  values = { epochs = 5 }
}
`)
	writeParams(t, dir, "b.hcl", `
params "large" {
  values = { epochs = 50 }
}
`)

	sets, err := hclparams.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, sets, 3)

	names := []string{sets[0].Name, sets[1].Name, sets[2].Name}
	assert.ElementsMatch(t, []string{"small", "medium", "large"}, names)
}

func TestLoad_OverwriteAndIgnore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "p.hcl", `
params "tuned" {
  overwrite = true
  ignore    = ["seed"]
  values = {
    seed = 42
    lr   = 0.5
  }
}
`)

	sets, err := hclparams.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	ps := sets[0]
	assert.True(t, ps.Overwrite)

	fn, registered := ps.Override("seed")
	assert.True(t, registered)
	assert.Nil(t, fn, "ignored fields register a nil override")
}

func TestLoad_NestedValues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "p.hcl", `
params "deep" {
  values = {
    model = {
      layers = 4
      widths = [64, 32]
    }
  }
}
`)

	sets, err := hclparams.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	model, ok := sets[0].Get("model")
	require.True(t, ok)
	m, ok := model.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), m["layers"])
	assert.Equal(t, []any{float64(64), float64(32)}, m["widths"])
}

func TestLoad_DuplicateNamesRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "a.hcl", `
params "dup" {
  values = { x = 1 }
}
`)
	writeParams(t, dir, "b.hcl", `
params "dup" {
  values = { x = 2 }
}
`)

	_, err := hclparams.Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dup")
}

func TestLoad_SyntaxError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeParams(t, dir, "broken.hcl", `params "x" { values = {`)

	_, err := hclparams.Load(context.Background(), dir)
	assert.Error(t, err)
}

func TestLoad_MissingPathSkipped(t *testing.T) {
	t.Parallel()

	sets, err := hclparams.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, sets)
}
