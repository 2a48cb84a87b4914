package stage

import (
	"context"
	"fmt"

	"stagehand/internal/ctxlog"
	"stagehand/internal/dag"
	"stagehand/internal/record"
	"stagehand/internal/run"
	"stagehand/internal/state"
)

// Func is a stage body: it receives the record it runs against and the
// resolved declared inputs, and returns its values in declared-output order.
type Func func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error)

// Def declares a stage.
type Def struct {
	// Name identifies the stage in logs, cache filenames, and the graph.
	Name string

	// Inputs are the artifact names resolved from the record's state before
	// the body runs.
	Inputs []string

	// Outputs declare the artifacts the body returns, in order.
	Outputs []Output

	// SuppressMissing makes absent inputs fall back to Defaults (or be
	// omitted from the input map) instead of raising a missing-input error.
	SuppressMissing bool

	// Defaults supplies fallback values for suppressed inputs.
	Defaults map[string]any

	// Fn is the wrapped computation.
	Fn Func
}

// Stage is a validated, invokable stage.
type Stage struct {
	def Def
}

// New validates a declaration and returns the stage. All declaration rules
// are checked here so a bad definition fails before any run starts.
func New(def Def) (*Stage, error) {
	if def.Fn == nil {
		return nil, &ConfigError{Stage: def.Name, Kind: KindNilFunc, Detail: "stage function is nil"}
	}
	if err := validateOutputs(def.Name, def.Outputs); err != nil {
		return nil, err
	}
	return &Stage{def: def}, nil
}

// MustNew is New for statically-declared stages, panicking on a bad
// declaration.
func MustNew(def Def) *Stage {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the stage's name.
func (s *Stage) Name() string { return s.def.Name }

// Run invokes the stage against a record. Explicit overrides win over both
// state and defaults for the named inputs. During the run's mapping pass the
// body never executes; the invocation is recorded in the graph instead.
func (s *Stage) Run(ctx context.Context, r *run.Run, rec *record.Record, overrides map[string]any) error {
	id := r.NextID(s.def.Name)
	exit := r.EnterStage(ctx, id)
	defer exit()

	ctx = ctxlog.WithRecord(ctx, rec.Name())
	log := ctxlog.FromContext(ctx)

	if rec.Failed {
		log.Warn("Skipping stage, record already failed.", "stage", id.String(), "error", rec.Err)
		return nil
	}

	if rec.Params != nil {
		if _, err := r.EnsureHash(ctx, rec.Params); err != nil {
			return fmt.Errorf("stage %s: %w", id, err)
		}
	}
	call := rec.AddCall(s.def.Name, id.Ordinal)
	outs := effectiveOutputs(s.def.Outputs, r.ForceLazy(), r.StripLazy())

	if r.Mapping() {
		return s.mapInvocation(r, rec, id, call, outs, overrides)
	}

	gw := r.Gateway()
	// Downstream of an overwritten stage the cache entry is stale even though
	// no overwrite names this stage directly.
	forced := r.OverwriteFor(s.def.Name, rec, nil) || r.ForcedFor(id)
	caching := len(outs) > 0 && outs[0].Cacher != nil

	if !r.MustRun(id) {
		// Pruned out entirely: no execution and no cache-hit loading. Cached
		// outputs become lazy handles so a downstream stage that does need
		// one loads it on demand.
		log.Debug("Stage pruned from execution plan.", "stage", id.String())
		for _, out := range outs {
			if out.Cacher == nil {
				continue
			}
			key := r.Key(rec, s.def.Name, out.Name)
			rec.State.Set(out.Name, &state.Lazy{
				Name: out.Name, Resolve: true, Loader: gw.Bind(out.Cacher, key),
			})
		}
		return nil
	}

	if caching && !forced && s.allCached(r, rec, outs) {
		return s.loadCached(ctx, r, rec, id, outs)
	}

	inputs, err := s.resolveInputs(rec, overrides)
	if err != nil {
		return err
	}

	log.Info("Executing stage.", "stage", id.String())
	values, err := s.def.Fn(ctx, rec, inputs)
	if err != nil {
		err = fmt.Errorf("stage %s on record %q: %w", id, rec.Name(), err)
		if r.ContinueOnError() {
			rec.Failed = true
			rec.Err = err
			log.Error("Stage failed; isolating failure to this record.", "stage", id.String(), "error", err)
			return nil
		}
		return err
	}
	if len(values) != len(outs) {
		return &OutputCountError{Stage: s.def.Name, Want: len(outs), Got: len(values)}
	}

	if err := commitOutputs(ctx, r, rec, s.def.Name, outs, values); err != nil {
		return fmt.Errorf("stage %s: %w", id, err)
	}
	rec.Output = values
	return nil
}

// mapInvocation records the stage in the graph without running the body.
// Outputs enter state as placeholders so later mapped stages observe their
// presence.
func (s *Stage) mapInvocation(r *run.Run, rec *record.Record, id dag.ID, call *record.Call, outs []Output, overrides map[string]any) error {
	inputs := make([]int, 0, len(s.def.Inputs))
	for _, name := range s.def.Inputs {
		if _, ok := overrides[name]; ok {
			inputs = append(inputs, -1)
			continue
		}
		idx, ok := r.ArtifactIndex(rec, name)
		if !ok {
			idx = -1
		}
		inputs = append(inputs, idx)
	}

	outputs := make([]int, 0, len(outs))
	for _, out := range outs {
		cached := false
		if out.Cacher != nil {
			cached = r.Gateway().Exists(out.Cacher, r.Key(rec, s.def.Name, out.Name))
		}
		outputs = append(outputs, r.RegisterArtifact(rec, id, out.Name, cached))
		rec.State.Set(out.Name, Placeholder{Name: out.Name})
	}

	call.Inputs = inputs
	call.Outputs = outputs
	return r.MapNode(id, rec, inputs, outputs, r.OverwriteFor(s.def.Name, rec, nil))
}

// allCached reports whether every declared output already has a cache entry
// for the record's current hash.
func (s *Stage) allCached(r *run.Run, rec *record.Record, outs []Output) bool {
	for _, out := range outs {
		if !r.Gateway().Exists(out.Cacher, r.Key(rec, s.def.Name, out.Name)) {
			return false
		}
	}
	return true
}

// loadCached short-circuits execution: every output comes out of the cache,
// as a lazy handle when declared lazy, eagerly otherwise.
func (s *Stage) loadCached(ctx context.Context, r *run.Run, rec *record.Record, id dag.ID, outs []Output) error {
	log := ctxlog.FromContext(ctx)
	log.Info("Cache hit, short-circuiting stage.", "stage", id.String())

	values := make([]any, 0, len(outs))
	for _, out := range outs {
		key := r.Key(rec, s.def.Name, out.Name)
		if out.Lazy {
			handle := &state.Lazy{Name: out.Name, Resolve: true, Loader: r.Gateway().Bind(out.Cacher, key)}
			rec.State.Set(out.Name, handle)
			values = append(values, handle)
		} else {
			value, err := r.Gateway().Load(ctx, out.Cacher, key)
			if err != nil {
				return fmt.Errorf("stage %s: %w", id, err)
			}
			rec.State.Set(out.Name, value)
			values = append(values, value)
		}
		if r.Gateway().RunDir != "" && out.Cacher.Track {
			if err := r.Gateway().MirrorCached(out.Cacher, key); err != nil {
				log.Warn("Failed to copy cache hit into the run folder.", "artifact", out.Name, "error", err)
			}
		}
	}
	rec.Output = values
	return nil
}

// resolveInputs assembles the input map per the declaration: explicit
// overrides first, then record state, then suppressed defaults.
func (s *Stage) resolveInputs(rec *record.Record, overrides map[string]any) (map[string]any, error) {
	inputs := make(map[string]any, len(s.def.Inputs))
	for _, name := range s.def.Inputs {
		if v, ok := overrides[name]; ok {
			inputs[name] = v
			continue
		}
		if rec.State.Has(name) {
			v, err := rec.State.Get(name)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", s.def.Name, err)
			}
			inputs[name] = v
			continue
		}
		if s.def.SuppressMissing {
			if d, ok := s.def.Defaults[name]; ok {
				inputs[name] = d
			}
			continue
		}
		return nil, &MissingInputError{Stage: s.def.Name, Record: rec.Name(), Input: name}
	}
	return inputs, nil
}

// commitOutputs writes returned values into state and through the cache,
// swapping in lazy handles after a lazy output's save completes.
func commitOutputs(ctx context.Context, r *run.Run, rec *record.Record, stageName string, outs []Output, values []any) error {
	for i, out := range outs {
		rec.State.Set(out.Name, values[i])
		if out.Cacher == nil {
			continue
		}
		key := r.Key(rec, stageName, out.Name)
		meta := r.MetadataFor(ctx, rec, stageName, out.Name, fmt.Sprintf("%T", out.Cacher.Store))
		if _, err := r.Gateway().Save(ctx, out.Cacher, key, values[i], meta); err != nil {
			return fmt.Errorf("saving output %q: %w", out.Name, err)
		}
		if out.Lazy {
			rec.State.Set(out.Name, &state.Lazy{
				Name: out.Name, Resolve: true, Loader: r.Gateway().Bind(out.Cacher, key),
			})
		}
	}
	return nil
}
