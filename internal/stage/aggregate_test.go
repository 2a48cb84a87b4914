package stage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/cache"
	"stagehand/internal/record"
	"stagehand/internal/run"
	"stagehand/internal/stage"
	"stagehand/internal/testutil"
)

// seededRecords builds n hashed records holding a "score" artifact each.
func seededRecords(t *testing.T, r *run.Run, names ...string) []*record.Record {
	t.Helper()
	recs := make([]*record.Record, 0, len(names))
	for i, name := range names {
		rec := hashedRecord(t, r, name)
		rec.State.Set("score", float64(i+1))
		recs = append(recs, rec)
	}
	return recs
}

func meanStage(execs *testutil.ExecLog) *stage.Aggregate {
	return stage.MustNewAggregate(stage.AggDef{
		Name:    "mean",
		Inputs:  []string{"score"},
		Outputs: []stage.Output{stage.Cached("mean", cache.JSON())},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			execs.Bump("mean")
			var sum float64
			for _, v := range inputs["score"] {
				sum += v.(float64)
			}
			return []any{sum / float64(len(inputs["score"]))}, nil
		},
	})
}

func TestNewAggregate_ConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := stage.NewAggregate(stage.AggDef{Name: "agg"})
	var cfgErr *stage.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, stage.KindNilFunc, cfgErr.Kind)

	_, err = stage.NewAggregate(stage.AggDef{
		Name: "agg",
		Outputs: []stage.Output{
			stage.Cached("a", cache.JSON()),
			stage.Out("b"),
		},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			return nil, nil
		},
	})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, stage.KindPartialCachers, cfgErr.Kind)
}

func TestAggregate_DefaultsToAllOtherRecords(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	r := testutil.NewRun(t, nil)
	execs := testutil.NewExecLog()

	seededRecords(t, r, "a", "b", "c")
	agg := r.NewRecord(nil)

	var seen int
	collect := stage.MustNewAggregate(stage.AggDef{
		Name:    "collect",
		Inputs:  []string{"score"},
		Outputs: []stage.Output{stage.Out("count")},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			execs.Bump("collect")
			seen = len(inputs["score"])
			return []any{seen}, nil
		},
	})

	require.NoError(t, collect.Run(ctx, r, agg, nil))
	assert.Equal(t, 3, seen, "nil contributing covers every prior record, never the aggregate's own")
	assert.True(t, agg.IsAggregate)
	assert.Len(t, agg.InputRecords, 3)
	assert.NotEmpty(t, agg.CombinedHash)
}

func TestAggregate_ExplicitContributingSubset(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	r := testutil.NewRun(t, nil)
	execs := testutil.NewExecLog()

	recs := seededRecords(t, r, "a", "b", "c")
	agg := r.NewRecord(nil)

	mean := meanStage(execs)
	require.NoError(t, mean.Run(ctx, r, agg, recs[:2]))

	v, err := agg.State.Get("mean")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
	assert.Len(t, agg.InputRecords, 2)
}

func TestAggregate_MissingArtifactOmittedWithWarning(t *testing.T) {
	t.Parallel()
	ctx, buf := testutil.Context(t)
	r := testutil.NewRun(t, nil)
	execs := testutil.NewExecLog()

	recs := seededRecords(t, r, "a", "b")
	bare := hashedRecord(t, r, "c")
	agg := r.NewRecord(nil)

	mean := meanStage(execs)
	require.NoError(t, mean.Run(ctx, r, agg, append(recs, bare)))

	v, err := agg.State.Get("mean")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v, "the record without the artifact does not contribute")
	assert.Contains(t, buf.String(), "omitting it from the aggregation")
}

func TestAggregate_CombinedHashReflectsContributors(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	r := testutil.NewRun(t, nil)
	execs := testutil.NewExecLog()

	recs := seededRecords(t, r, "a", "b")
	mean := meanStage(execs)

	first := r.NewRecord(nil)
	require.NoError(t, mean.Run(ctx, r, first, recs))

	narrow := r.NewRecord(nil)
	require.NoError(t, mean.Run(ctx, r, narrow, recs[:1]))

	assert.NotEqual(t, first.CombinedHash, narrow.CombinedHash)
	assert.NotEqual(t, first.CombinedHash, recs[0].Hash())
}

func TestAggregate_CacheShortCircuitByCombinedHash(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	execs := testutil.NewExecLog()
	cacheDir := t.TempDir()
	mutate := func(o *run.Options) { o.CacheDir = cacheDir }

	mean := meanStage(execs)

	runOnce := func(names ...string) {
		r := testutil.NewRun(t, mutate)
		recs := seededRecords(t, r, names...)
		require.NoError(t, mean.Run(ctx, r, r.NewRecord(nil), recs))
	}

	runOnce("a", "b")
	runOnce("a", "b")
	assert.Equal(t, 1, execs.Count("mean"), "same contributor set reuses the cache entry")

	runOnce("a", "b", "c")
	assert.Equal(t, 2, execs.Count("mean"), "a different contributor set is a different cache key")
}

func TestAggregate_OverwriteForcesRecompute(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	execs := testutil.NewExecLog()
	cacheDir := t.TempDir()

	mean := meanStage(execs)

	r1 := testutil.NewRun(t, func(o *run.Options) { o.CacheDir = cacheDir })
	require.NoError(t, mean.Run(ctx, r1, r1.NewRecord(nil), seededRecords(t, r1, "a", "b")))

	r2 := testutil.NewRun(t, func(o *run.Options) {
		o.CacheDir = cacheDir
		o.OverwriteStages = []string{"mean"}
	})
	require.NoError(t, mean.Run(ctx, r2, r2.NewRecord(nil), seededRecords(t, r2, "a", "b")))

	assert.Equal(t, 2, execs.Count("mean"))
}

func TestAggregate_OutputCountMismatch(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	r := testutil.NewRun(t, nil)

	bad := stage.MustNewAggregate(stage.AggDef{
		Name:    "bad",
		Inputs:  []string{"score"},
		Outputs: []stage.Output{stage.Out("x"), stage.Out("y")},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			return []any{1}, nil
		},
	})

	err := bad.Run(ctx, r, r.NewRecord(nil), seededRecords(t, r, "a"))
	var countErr *stage.OutputCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Want)
	assert.Equal(t, 1, countErr.Got)
}

func TestAggregate_FailureNamesInvocation(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	r := testutil.NewRun(t, nil)

	boom := errors.New("boom")
	explode := stage.MustNewAggregate(stage.AggDef{
		Name:   "explode",
		Inputs: []string{"score"},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			return nil, boom
		},
	})

	err := explode.Run(ctx, r, r.NewRecord(nil), seededRecords(t, r, "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "explode[0]")
}

func TestAggregate_ContinueOnErrorIsolatesRecord(t *testing.T) {
	t.Parallel()
	ctx, buf := testutil.Context(t)
	r := testutil.NewRun(t, func(o *run.Options) { o.ContinueOnError = true })
	execs := testutil.NewExecLog()

	recs := seededRecords(t, r, "a", "b")
	agg := r.NewRecord(nil)

	failing := stage.MustNewAggregate(stage.AggDef{
		Name:   "failing",
		Inputs: []string{"score"},
		Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
			return nil, errors.New("bad batch")
		},
	})

	require.NoError(t, failing.Run(ctx, r, agg, recs))
	assert.True(t, agg.Failed)
	assert.Error(t, agg.Err)
	assert.Contains(t, buf.String(), "isolating failure")

	// A later aggregate on the same record is skipped outright.
	mean := meanStage(execs)
	require.NoError(t, mean.Run(ctx, r, agg, recs))
	assert.Equal(t, 0, execs.Count("mean"))
	assert.Contains(t, buf.String(), "record already failed")
}
