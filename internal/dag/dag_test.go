package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/dag"
)

func id(name string) dag.ID { return dag.ID{Name: name} }

// chain builds load -> clean -> train with configurable cache state.
func chain(t *testing.T, loadCached, cleanCached, trainCached bool, forced ...dag.ID) *dag.Graph {
	t.Helper()
	g := dag.New()

	forcedSet := make(map[dag.ID]bool)
	for _, f := range forced {
		forcedSet[f] = true
	}

	raw := g.AddArtifact(dag.Artifact{Name: "raw", Producer: id("load"), Cached: loadCached})
	require.NoError(t, g.AddNode(id("load"), 0, nil, []int{raw}, forcedSet[id("load")]))

	clean := g.AddArtifact(dag.Artifact{Name: "clean", Producer: id("clean"), Cached: cleanCached})
	require.NoError(t, g.AddNode(id("clean"), 0, []int{raw}, []int{clean}, forcedSet[id("clean")]))

	model := g.AddArtifact(dag.Artifact{Name: "model", Producer: id("train"), Cached: trainCached})
	require.NoError(t, g.AddNode(id("train"), 0, []int{clean}, []int{model}, forcedSet[id("train")]))

	return g
}

func TestID_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "train[2]", dag.ID{Name: "train", Ordinal: 2}.String())
}

func TestAddNode_DuplicateIdentity(t *testing.T) {
	t.Parallel()
	g := dag.New()
	require.NoError(t, g.AddNode(id("a"), 0, nil, nil, false))
	assert.Error(t, g.AddNode(id("a"), 0, nil, nil, false))
}

func TestDependenciesAndDependents(t *testing.T) {
	t.Parallel()
	g := chain(t, false, false, false)

	assert.Empty(t, g.Dependencies(id("load")))
	assert.Equal(t, []dag.ID{id("load")}, g.Dependencies(id("clean")))
	assert.Equal(t, []dag.ID{id("clean")}, g.Dependents(id("load")))
	assert.Empty(t, g.Dependents(id("train")))
}

func TestLeaves(t *testing.T) {
	t.Parallel()
	g := chain(t, false, false, false)
	assert.Equal(t, []dag.ID{id("train")}, g.Leaves())
}

func TestLeaves_NoOutputNode(t *testing.T) {
	t.Parallel()
	g := dag.New()
	art := g.AddArtifact(dag.Artifact{Name: "x", Producer: id("producer")})
	require.NoError(t, g.AddNode(id("producer"), 0, nil, []int{art}, false))
	require.NoError(t, g.AddNode(id("report"), 0, []int{art}, nil, false))

	assert.Equal(t, []dag.ID{id("report")}, g.Leaves())
}

func TestFullyCached(t *testing.T) {
	t.Parallel()
	g := chain(t, true, false, false)
	assert.True(t, g.FullyCached(id("load")))
	assert.False(t, g.FullyCached(id("clean")))
}

func TestFullyCached_NoOutputs(t *testing.T) {
	t.Parallel()
	g := dag.New()
	require.NoError(t, g.AddNode(id("sideeffect"), 0, nil, nil, false))
	assert.False(t, g.FullyCached(id("sideeffect")), "a node with no outputs leaves no cache evidence")
}

func TestMustExecute_ColdCache(t *testing.T) {
	t.Parallel()
	g := chain(t, false, false, false)

	must, _ := g.MustExecute()
	assert.True(t, must[id("load")])
	assert.True(t, must[id("clean")])
	assert.True(t, must[id("train")])
}

func TestMustExecute_FullyCachedRunsNothing(t *testing.T) {
	t.Parallel()
	g := chain(t, true, true, true)
	must, forced := g.MustExecute()
	assert.Empty(t, must)
	assert.Empty(t, forced)
}

func TestMustExecute_CachedMidpointStopsBackwardWalk(t *testing.T) {
	t.Parallel()
	// clean's output is cached, so train executes but neither clean nor load
	// needs to.
	g := chain(t, false, true, false)

	must, _ := g.MustExecute()
	assert.True(t, must[id("train")])
	assert.False(t, must[id("clean")])
	assert.False(t, must[id("load")])
}

func TestMustExecute_OverwritePropagatesForward(t *testing.T) {
	t.Parallel()
	// Everything is cached, but clean was explicitly forced: clean and its
	// dependent train must recompute, while load stays satisfied from cache.
	g := chain(t, true, true, true, id("clean"))

	must, forced := g.MustExecute()
	assert.False(t, must[id("load")], "the forced node's cached input is still usable")
	assert.True(t, must[id("clean")])
	assert.True(t, must[id("train")], "stale downstream results must not be silently skipped")

	// The closure names both the forced node and its dependents, so the
	// execution pass knows train's cache entry is stale.
	assert.False(t, forced[id("load")])
	assert.True(t, forced[id("clean")])
	assert.True(t, forced[id("train")])
}

func TestMustExecute_ForcedRootRecomputesChain(t *testing.T) {
	t.Parallel()
	g := chain(t, true, true, true, id("load"))

	must, _ := g.MustExecute()
	assert.True(t, must[id("load")])
	assert.True(t, must[id("clean")])
	assert.True(t, must[id("train")])
}

func TestMustExecute_IndependentBranches(t *testing.T) {
	t.Parallel()
	g := dag.New()

	// Two parallel chains; only the second one's leaf is uncached.
	a0 := g.AddArtifact(dag.Artifact{Name: "a", Producer: id("prep_a"), Cached: true})
	require.NoError(t, g.AddNode(id("prep_a"), 0, nil, []int{a0}, false))
	a1 := g.AddArtifact(dag.Artifact{Name: "out_a", Producer: id("final_a"), Cached: true})
	require.NoError(t, g.AddNode(id("final_a"), 0, []int{a0}, []int{a1}, false))

	b0 := g.AddArtifact(dag.Artifact{Name: "b", Producer: id("prep_b"), Cached: false})
	require.NoError(t, g.AddNode(id("prep_b"), 1, nil, []int{b0}, false))
	b1 := g.AddArtifact(dag.Artifact{Name: "out_b", Producer: id("final_b"), Cached: false})
	require.NoError(t, g.AddNode(id("final_b"), 1, []int{b0}, []int{b1}, false))

	must, _ := g.MustExecute()
	assert.False(t, must[id("prep_a")])
	assert.False(t, must[id("final_a")])
	assert.True(t, must[id("prep_b")])
	assert.True(t, must[id("final_b")])
}

func TestMustExecute_AbsentInputsIgnored(t *testing.T) {
	t.Parallel()
	g := dag.New()
	out := g.AddArtifact(dag.Artifact{Name: "out", Producer: id("solo")})
	require.NoError(t, g.AddNode(id("solo"), 0, []int{-1}, []int{out}, false))

	must, _ := g.MustExecute()
	assert.True(t, must[id("solo")])
	assert.Len(t, must, 1)
}
