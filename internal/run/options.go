package run

import (
	"stagehand/internal/registry"
)

// Options configures a Run.
type Options struct {
	// ExperimentName prefixes cache filenames and run references.
	ExperimentName string

	// CacheDir is the root of the artifact cache tree.
	CacheDir string

	// RunsDir is the root folder for store-full run copies.
	RunsDir string

	// StoreFull mirrors every produced and cache-hit artifact into a
	// per-run folder under RunsDir.
	StoreFull bool

	// Overwrite ignores existing cache entries for every stage.
	Overwrite bool

	// OverwriteStages ignores existing cache entries for the named stages
	// only. The planner propagates the recomputation forward to dependents.
	OverwriteStages []string

	// DryCache runs everything normally but writes nothing to the cache.
	DryCache bool

	// Lazy forces every stage output to be cached lazily (gob strategy when
	// the stage declares no cacher), keeping artifacts out of memory.
	Lazy bool

	// IgnoreLazy strips lazy declarations from all outputs, materializing
	// everything. Useful when debugging state contents.
	IgnoreLazy bool

	// Sequential disables the mapping phase and DAG pruning entirely;
	// every stage falls back to plain cache short-circuiting in call order.
	Sequential bool

	// ContinueOnError isolates a stage failure to its record instead of
	// aborting the whole run; later stages on the failed record are skipped.
	ContinueOnError bool

	// ParamRegistry, when set, receives hash -> representation entries as
	// parameter fingerprints are computed.
	ParamRegistry *registry.ParamRegistry

	// RunStore, when set, records this run's metadata block and allocates
	// its run number.
	RunStore registry.RunStore

	// CommandLine and Notes are carried into the run's metadata block.
	CommandLine string
	Notes       string

	// ParamsFiles lists the parameter file names that fed this run, for
	// provenance.
	ParamsFiles []string
}

// overwriteFor reports whether an overwrite applies to the named stage.
func (o *Options) overwriteFor(stageName string) bool {
	if o.Overwrite {
		return true
	}
	for _, name := range o.OverwriteStages {
		if name == stageName {
			return true
		}
	}
	return false
}
