package run

import (
	"context"
	"fmt"
	"time"

	"stagehand/internal/cache"
	"stagehand/internal/ctxlog"
	"stagehand/internal/dag"
	"stagehand/internal/hashing"
	"stagehand/internal/params"
	"stagehand/internal/record"
	"stagehand/internal/registry"
)

// Phase is the planner's current mode.
type Phase int

const (
	// PhaseIdle means no driver invocation is underway.
	PhaseIdle Phase = iota
	// PhaseMapping is the dry pass: wrappers record graph edges and cache
	// existence but never run their bodies.
	PhaseMapping
	// PhaseExecuting is the real pass, gated by the must-execute set.
	PhaseExecuting
)

// Driver is the external orchestration callable: given the run handle and the
// parameter sets, it issues the sequence of stage and aggregate invocations.
// It is invoked once per phase and must follow identical control flow both
// times.
type Driver func(ctx context.Context, r *Run, psets []*params.ParameterSet) error

// Run owns one experiment run: its records, its dependency graph, its cache
// gateway, and the phase state machine.
type Run struct {
	opts    Options
	gateway *cache.Gateway
	info    registry.RunInfo

	phase       Phase
	records     []*record.Record
	graph       *dag.Graph
	ordinals    map[string]int
	artIndex    map[int]map[string]int
	mustExec    map[dag.ID]bool
	forcedAhead map[dag.ID]bool
	stageStack  []dag.ID
	unmappable  []string
}

// New builds a run from options. The cache gateway is rooted immediately;
// run-store registration happens when Execute begins.
func New(opts Options) *Run {
	gw := cache.New(opts.CacheDir, opts.ExperimentName)
	gw.DryCache = opts.DryCache
	r := &Run{
		opts:    opts,
		gateway: gw,
	}
	r.resetPhase()
	return r
}

// Options returns the run's configuration.
func (r *Run) Options() Options { return r.opts }

// Gateway returns the cache gateway for this run.
func (r *Run) Gateway() *cache.Gateway { return r.gateway }

// Info returns the run's metadata block as registered so far.
func (r *Run) Info() registry.RunInfo { return r.info }

// Phase returns the current planner phase.
func (r *Run) Phase() Phase { return r.phase }

// Mapping reports whether the planner is in the dry mapping pass.
func (r *Run) Mapping() bool { return r.phase == PhaseMapping }

// resetPhase clears all per-pass state so the driver can be replayed.
func (r *Run) resetPhase() {
	r.records = nil
	r.ordinals = make(map[string]int)
	r.artIndex = make(map[int]map[string]int)
	r.stageStack = nil
}

// NewRecord creates a record for the parameter set and attaches it to the
// run.
func (r *Run) NewRecord(ps *params.ParameterSet) *record.Record {
	rec := record.New(ps)
	r.attach(rec)
	return rec
}

// Branch copies an existing record (state duplicated, provenance linked) under
// a new parameter set and attaches the copy to the run.
func (r *Run) Branch(rec *record.Record, ps *params.ParameterSet) *record.Record {
	out := rec.Copy(ps)
	r.attach(out)
	// The copy starts with the source's artifacts, so it inherits their graph
	// indices: edges from stages run on the copy point at the original
	// producers.
	for name, idx := range r.artIndex[rec.Index] {
		r.artIndex[out.Index][name] = idx
	}
	return out
}

func (r *Run) attach(rec *record.Record) {
	rec.Index = len(r.records)
	r.records = append(r.records, rec)
	r.artIndex[rec.Index] = make(map[string]int)
}

// Records returns all records attached so far, in creation order.
func (r *Run) Records() []*record.Record {
	out := make([]*record.Record, len(r.records))
	copy(out, r.records)
	return out
}

// NextID allocates the stage identity for the next invocation of the named
// stage: the per-run ordinal counter keeps repeated invocations apart.
func (r *Run) NextID(stageName string) dag.ID {
	ord := r.ordinals[stageName]
	r.ordinals[stageName]++
	return dag.ID{Name: stageName, Ordinal: ord}
}

// EnterStage pushes a stage onto the invocation stack, warning when a stage
// is invoked from inside another executing stage: nesting defeats the mapping
// phase's analysis. The returned func pops the stack.
func (r *Run) EnterStage(ctx context.Context, id dag.ID) func() {
	if len(r.stageStack) > 0 {
		ctxlog.FromContext(ctx).Warn("Stage invoked from inside another executing stage; the dependency map cannot see this call correctly.",
			"stage", id.String(), "enclosing", r.stageStack[len(r.stageStack)-1].String())
	}
	r.stageStack = append(r.stageStack, id)
	return func() {
		r.stageStack = r.stageStack[:len(r.stageStack)-1]
	}
}

// EnsureHash computes (and memoizes) the fingerprint for a parameter set,
// registering its representation in the params registry on first computation.
func (r *Run) EnsureHash(ctx context.Context, ps *params.ParameterSet) (string, error) {
	if h, ok := ps.StoredHash(); ok {
		return h, nil
	}
	h, err := hashing.Hash(ctx, ps)
	if err != nil {
		return "", err
	}
	if r.opts.ParamRegistry != nil {
		if err := r.opts.ParamRegistry.Store(h, hashing.StringRepresentations(ctx, ps)); err != nil {
			return "", fmt.Errorf("registering params for %q: %w", ps.Name, err)
		}
	}
	return h, nil
}

// EnsureCombinedHash derives and memoizes the combined hash for a record
// produced by an aggregate over the given contributing records.
func (r *Run) EnsureCombinedHash(ctx context.Context, rec *record.Record, contributing []*record.Record) (string, error) {
	if rec.CombinedHash != "" {
		return rec.CombinedHash, nil
	}
	active := record.UnsetHash
	if rec.Params != nil {
		h, err := r.EnsureHash(ctx, rec.Params)
		if err != nil {
			return "", err
		}
		active = h
	}
	hashes := make([]string, 0, len(contributing))
	for _, c := range contributing {
		if c.Params == nil {
			hashes = append(hashes, c.Hash())
			continue
		}
		h, err := r.EnsureHash(ctx, c.Params)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, h)
	}
	rec.CombinedHash = hashing.CombinedHash(active, hashes)
	if r.opts.ParamRegistry != nil {
		entry := map[string]any{"active": active, "combined_from": hashes}
		if err := r.opts.ParamRegistry.Store(rec.CombinedHash, entry); err != nil {
			return "", fmt.Errorf("registering combined hash: %w", err)
		}
	}
	return rec.CombinedHash, nil
}

// OverwriteFor reports whether recomputation was requested for the stage on
// this record: globally, for this stage name, on the record's own parameter
// set, or on any contributing record of an aggregate.
func (r *Run) OverwriteFor(stageName string, rec *record.Record, contributing []*record.Record) bool {
	if r.opts.overwriteFor(stageName) {
		return true
	}
	if rec.Params != nil && rec.Params.Overwrite {
		return true
	}
	for _, c := range contributing {
		if c.Params != nil && c.Params.Overwrite {
			return true
		}
	}
	return false
}

// Key builds the cache key for one artifact of one stage on one record.
func (r *Run) Key(rec *record.Record, stageName, artifact string) cache.Key {
	return cache.Key{Hash: rec.Hash(), Stage: stageName, Artifact: artifact}
}

// ForceLazy reports whether all outputs should be cached lazily.
func (r *Run) ForceLazy() bool { return r.opts.Lazy }

// StripLazy reports whether lazy declarations should be ignored.
func (r *Run) StripLazy() bool { return r.opts.IgnoreLazy }

// ContinueOnError reports whether a record's stage failure should be isolated
// to that record instead of aborting the run.
func (r *Run) ContinueOnError() bool { return r.opts.ContinueOnError }

// ArtifactIndex looks up the graph artifact index currently registered for an
// artifact name on a record.
func (r *Run) ArtifactIndex(rec *record.Record, name string) (int, bool) {
	idx, ok := r.artIndex[rec.Index][name]
	return idx, ok
}

// RegisterArtifact records a produced artifact in the graph and indexes it as
// the record's current producer of the name.
func (r *Run) RegisterArtifact(rec *record.Record, id dag.ID, name string, cached bool) int {
	idx := r.graph.AddArtifact(dag.Artifact{
		Name:     name,
		Record:   rec.Index,
		Producer: id,
		Cached:   cached,
	})
	r.artIndex[rec.Index][name] = idx
	return idx
}

// MapNode adds a mapped stage invocation to the graph.
func (r *Run) MapNode(id dag.ID, rec *record.Record, inputs, outputs []int, forced bool) error {
	return r.graph.AddNode(id, rec.Index, inputs, outputs, forced)
}

// MustRun reports whether a stage identity is in the must-execute set. With
// pruning disabled (sequential mode, or before any plan exists) every stage
// must run, subject to ordinary cache short-circuiting.
func (r *Run) MustRun(id dag.ID) bool {
	if r.mustExec == nil {
		return true
	}
	return r.mustExec[id]
}

// ForcedFor reports whether a stage identity sits in the forced-forward
// closure of the latest plan: it is forced itself or downstream of a forced
// node, so its cache entries are presumed stale and must not short-circuit
// execution.
func (r *Run) ForcedFor(id dag.ID) bool {
	return r.forcedAhead[id]
}

// FlagUnmappable marks a stage invocation that cannot be placed in the graph
// soundly, such as an aggregate with no declared inputs. Any flagged
// invocation disables pruning for the run.
func (r *Run) FlagUnmappable(id dag.ID, reason string) {
	r.unmappable = append(r.unmappable, fmt.Sprintf("%s: %s", id, reason))
}

// Graph returns the dependency graph built by the latest mapping pass.
func (r *Run) Graph() *dag.Graph { return r.graph }

// MetadataFor assembles the provenance sidecar written next to one artifact
// save.
func (r *Run) MetadataFor(ctx context.Context, rec *record.Record, stageName, artifact, storeType string) *cache.Metadata {
	meta := &cache.Metadata{
		ArtifactGenerated: time.Now(),
		RunReference:      r.info.Reference,
		RunUUID:           r.info.UUID,
		Hostname:          r.info.Hostname,
		ParamsHash:        rec.Hash(),
		RecordName:        rec.Name(),
		Stage:             stageName,
		Artifact:          artifact,
		StoreType:         storeType,
		PriorStages:       rec.StageLog(),
	}
	if rec.Params != nil {
		meta.ParamsName = rec.Params.Name
		meta.Params = hashing.StringRepresentations(ctx, rec.Params)
	}
	for _, in := range rec.InputRecords {
		meta.InputRecords = append(meta.InputRecords, in.Name())
	}
	return meta
}
