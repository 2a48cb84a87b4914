package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/params"
)

func TestParameterSet_SetGet(t *testing.T) {
	t.Parallel()

	ps := params.New("p").Set("alpha", 1).Set("beta", "two")

	v, ok := ps.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ps.Get("gamma")
	assert.False(t, ok)
}

func TestParameterSet_FieldsSorted(t *testing.T) {
	t.Parallel()

	ps := params.New("p").Set("zeta", 1).Set("alpha", 2).Set("mid", 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ps.Fields())
}

func TestParameterSet_FromMap(t *testing.T) {
	t.Parallel()

	ps := params.FromMap("p", map[string]any{"a": 1, "b": 2})
	assert.Equal(t, []string{"a", "b"}, ps.Fields())
	v, _ := ps.Get("b")
	assert.Equal(t, 2, v)
}

func TestParameterSet_Overrides(t *testing.T) {
	t.Parallel()

	ps := params.New("p").Set("alpha", 1)

	_, registered := ps.Override("alpha")
	assert.False(t, registered)

	ps.Ignore("alpha")
	fn, registered := ps.Override("alpha")
	assert.True(t, registered)
	assert.Nil(t, fn, "an ignore registers as a nil override")

	ps.SetOverride("alpha", func(ps *params.ParameterSet, value any) (string, error) {
		return "custom", nil
	})
	fn, registered = ps.Override("alpha")
	assert.True(t, registered)
	require.NotNil(t, fn)
	rep, err := fn(ps, 1)
	require.NoError(t, err)
	assert.Equal(t, "custom", rep)

	ps.ClearOverride("alpha")
	_, registered = ps.Override("alpha")
	assert.False(t, registered)
}

func TestParameterSet_StoredHash(t *testing.T) {
	t.Parallel()

	ps := params.New("p")
	_, ok := ps.StoredHash()
	assert.False(t, ok)

	ps.SetHash("abc123")
	h, ok := ps.StoredHash()
	require.True(t, ok)
	assert.Equal(t, "abc123", h)
}
