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

// AggFunc is an aggregate body: for each declared input it receives a mapping
// from contributing record to that record's artifact value. Records missing
// an artifact are absent from its mapping.
type AggFunc func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error)

// AggDef declares an aggregate.
type AggDef struct {
	Name    string
	Inputs  []string
	Outputs []Output
	Fn      AggFunc
}

// Aggregate consumes artifacts across many records at once. Its cache key is
// the combined hash of the contributing records, so a cached result is reused
// only when the same set of parameter fingerprints feeds it again.
type Aggregate struct {
	def AggDef
}

// NewAggregate validates a declaration and returns the aggregate.
func NewAggregate(def AggDef) (*Aggregate, error) {
	if def.Fn == nil {
		return nil, &ConfigError{Stage: def.Name, Kind: KindNilFunc, Detail: "aggregate function is nil"}
	}
	if err := validateOutputs(def.Name, def.Outputs); err != nil {
		return nil, err
	}
	return &Aggregate{def: def}, nil
}

// MustNewAggregate is NewAggregate for statically-declared aggregates,
// panicking on a bad declaration.
func MustNewAggregate(def AggDef) *Aggregate {
	a, err := NewAggregate(def)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the aggregate's name.
func (a *Aggregate) Name() string { return a.def.Name }

// Run invokes the aggregate against a record over the contributing records.
// A nil contributing list defaults to all prior records of the run minus the
// aggregate's own.
func (a *Aggregate) Run(ctx context.Context, r *run.Run, rec *record.Record, contributing []*record.Record) error {
	id := r.NextID(a.def.Name)
	exit := r.EnterStage(ctx, id)
	defer exit()

	ctx = ctxlog.WithRecord(ctx, rec.Name())
	log := ctxlog.FromContext(ctx)

	if contributing == nil {
		for _, c := range r.Records() {
			if c != rec {
				contributing = append(contributing, c)
			}
		}
	}
	rec.IsAggregate = true
	rec.InputRecords = contributing

	if rec.Failed {
		log.Warn("Skipping aggregate, record already failed.", "stage", id.String(), "error", rec.Err)
		return nil
	}

	if _, err := r.EnsureCombinedHash(ctx, rec, contributing); err != nil {
		return fmt.Errorf("aggregate %s: %w", id, err)
	}
	call := rec.AddCall(a.def.Name, id.Ordinal)
	outs := effectiveOutputs(a.def.Outputs, r.ForceLazy(), r.StripLazy())

	if r.Mapping() {
		return a.mapInvocation(r, rec, id, call, outs, contributing)
	}

	forced := r.OverwriteFor(a.def.Name, rec, contributing) || r.ForcedFor(id)
	caching := len(outs) > 0 && outs[0].Cacher != nil

	if !r.MustRun(id) {
		log.Debug("Aggregate pruned from execution plan.", "stage", id.String())
		for _, out := range outs {
			if out.Cacher == nil {
				continue
			}
			key := r.Key(rec, a.def.Name, out.Name)
			rec.State.Set(out.Name, &state.Lazy{
				Name: out.Name, Resolve: true, Loader: r.Gateway().Bind(out.Cacher, key),
			})
		}
		return nil
	}

	if caching && !forced && a.allCached(r, rec, outs) {
		return a.loadCached(ctx, r, rec, id, outs)
	}

	inputs := a.resolveInputs(ctx, contributing)

	log.Info("Executing aggregate.", "stage", id.String(), "records", len(contributing))
	values, err := a.def.Fn(ctx, rec, inputs)
	if err != nil {
		err = fmt.Errorf("aggregate %s on record %q: %w", id, rec.Name(), err)
		if r.ContinueOnError() {
			rec.Failed = true
			rec.Err = err
			log.Error("Aggregate failed; isolating failure to this record.", "stage", id.String(), "error", err)
			return nil
		}
		return err
	}
	if len(values) != len(outs) {
		return &OutputCountError{Stage: a.def.Name, Want: len(outs), Got: len(values)}
	}

	if err := commitOutputs(ctx, r, rec, a.def.Name, outs, values); err != nil {
		return fmt.Errorf("aggregate %s: %w", id, err)
	}
	rec.Output = values
	return nil
}

// mapInvocation records the aggregate in the graph. An aggregate with no
// declared inputs cannot be placed soundly: its real dependencies are
// invisible, so the planner flags it and disables pruning for the run.
func (a *Aggregate) mapInvocation(r *run.Run, rec *record.Record, id dag.ID, call *record.Call, outs []Output, contributing []*record.Record) error {
	if len(a.def.Inputs) == 0 {
		r.FlagUnmappable(id, "aggregate declares no inputs; its dependencies cannot be mapped")
	}

	var inputs []int
	for _, name := range a.def.Inputs {
		found := false
		for _, c := range contributing {
			if idx, ok := r.ArtifactIndex(c, name); ok {
				inputs = append(inputs, idx)
				found = true
			}
		}
		if !found {
			inputs = append(inputs, -1)
		}
	}

	outputs := make([]int, 0, len(outs))
	for _, out := range outs {
		cached := false
		if out.Cacher != nil {
			cached = r.Gateway().Exists(out.Cacher, r.Key(rec, a.def.Name, out.Name))
		}
		outputs = append(outputs, r.RegisterArtifact(rec, id, out.Name, cached))
		rec.State.Set(out.Name, Placeholder{Name: out.Name})
	}

	call.Inputs = inputs
	call.Outputs = outputs
	return r.MapNode(id, rec, inputs, outputs, r.OverwriteFor(a.def.Name, rec, contributing))
}

func (a *Aggregate) allCached(r *run.Run, rec *record.Record, outs []Output) bool {
	for _, out := range outs {
		if !r.Gateway().Exists(out.Cacher, r.Key(rec, a.def.Name, out.Name)) {
			return false
		}
	}
	return true
}

func (a *Aggregate) loadCached(ctx context.Context, r *run.Run, rec *record.Record, id dag.ID, outs []Output) error {
	log := ctxlog.FromContext(ctx)
	log.Info("Cache hit, short-circuiting aggregate.", "stage", id.String())

	values := make([]any, 0, len(outs))
	for _, out := range outs {
		key := r.Key(rec, a.def.Name, out.Name)
		if out.Lazy {
			handle := &state.Lazy{Name: out.Name, Resolve: true, Loader: r.Gateway().Bind(out.Cacher, key)}
			rec.State.Set(out.Name, handle)
			values = append(values, handle)
		} else {
			value, err := r.Gateway().Load(ctx, out.Cacher, key)
			if err != nil {
				return fmt.Errorf("aggregate %s: %w", id, err)
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

// resolveInputs builds the per-input record-to-value mappings. A contributing
// record missing an artifact is omitted from that artifact's mapping with a
// warning, not an error.
func (a *Aggregate) resolveInputs(ctx context.Context, contributing []*record.Record) map[string]map[*record.Record]any {
	log := ctxlog.FromContext(ctx)
	inputs := make(map[string]map[*record.Record]any, len(a.def.Inputs))
	for _, name := range a.def.Inputs {
		m := make(map[*record.Record]any)
		for _, c := range contributing {
			if !c.State.Has(name) {
				log.Warn("Contributing record lacks requested artifact; omitting it from the aggregation.",
					"aggregate", a.def.Name, "record", c.Name(), "artifact", name)
				continue
			}
			v, err := c.State.Get(name)
			if err != nil {
				log.Warn("Could not resolve artifact on contributing record; omitting it from the aggregation.",
					"aggregate", a.def.Name, "record", c.Name(), "artifact", name, "error", err)
				continue
			}
			m[c] = v
		}
		inputs[name] = m
	}
	return inputs
}
