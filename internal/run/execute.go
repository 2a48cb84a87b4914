package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stagehand/internal/ctxlog"
	"stagehand/internal/dag"
	"stagehand/internal/params"
	"stagehand/internal/registry"
)

// Execute performs a full run: registers the run in the store, replays the
// driver once in mapping mode to build the dependency graph, prunes it, then
// replays the driver in execution mode. The driver must be re-invokable with
// identical control flow; everything it observes through the run handle is
// reset between passes.
func (r *Run) Execute(ctx context.Context, driver Driver, psets []*params.ParameterSet) error {
	log := ctxlog.FromContext(ctx)

	if err := r.begin(); err != nil {
		return err
	}
	log.Info("Run started",
		"reference", r.info.Reference,
		"experiment", r.opts.ExperimentName,
		"param_sets", len(psets))

	if r.opts.StoreFull {
		folder := filepath.Join(r.opts.RunsDir, r.info.Reference)
		r.gateway.RunDir = filepath.Join(folder, "artifacts")
		if err := r.writeRunInfo(folder); err != nil {
			return err
		}
	}

	var runErr error
	if r.opts.Sequential {
		log.Info("Sequential mode, skipping the mapping pass")
		r.mustExec = nil
		r.forcedAhead = nil
	} else {
		runErr = r.mapPhase(ctx, driver, psets)
	}

	if runErr == nil {
		r.phase = PhaseExecuting
		r.resetPhase()
		runErr = driver(ctx, r, psets)
		r.phase = PhaseIdle
	}

	r.finish(ctx, runErr)
	if r.opts.StoreFull {
		// Rewrite with the final status.
		if err := r.writeRunInfo(filepath.Join(r.opts.RunsDir, r.info.Reference)); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", r.info.Reference, runErr)
	}
	log.Info("Run complete", "reference", r.info.Reference)
	return nil
}

// Plan replays the driver in mapping mode only and returns the resulting
// execution plan without running anything. The mapped records stay attached
// so the report can name them.
func (r *Run) Plan(ctx context.Context, driver Driver, psets []*params.ParameterSet) (*Report, error) {
	if err := r.mapPhase(ctx, driver, psets); err != nil {
		return nil, err
	}
	return r.buildReport(), nil
}

// mapPhase runs the dry pass and computes the must-execute set. Any
// unmappable invocation disables pruning for the whole run, leaving the
// must-execute set nil so every stage falls back to cache short-circuiting.
func (r *Run) mapPhase(ctx context.Context, driver Driver, psets []*params.ParameterSet) error {
	log := ctxlog.FromContext(ctx)

	r.phase = PhaseMapping
	defer func() { r.phase = PhaseIdle }()
	r.graph = dag.New()
	r.mustExec = nil
	r.forcedAhead = nil
	r.unmappable = nil
	r.resetPhase()

	if err := driver(ctx, r, psets); err != nil {
		return fmt.Errorf("mapping pass: %w", err)
	}

	if len(r.unmappable) > 0 {
		for _, reason := range r.unmappable {
			log.Warn("Stage invocation could not be mapped, disabling DAG pruning for this run.", "detail", reason)
		}
		return nil
	}

	r.mustExec, r.forcedAhead = r.graph.MustExecute()
	log.Info("Mapping pass complete",
		"stages", len(r.graph.Nodes()),
		"artifacts", r.graph.ArtifactCount(),
		"must_execute", len(r.mustExec))
	return nil
}

// begin fills the run's metadata block and registers it as incomplete.
func (r *Run) begin() error {
	now := time.Now()
	hostname, _ := os.Hostname()
	r.info = registry.RunInfo{
		Experiment:  r.opts.ExperimentName,
		UUID:        uuid.NewString(),
		Timestamp:   now,
		Status:      registry.StatusIncomplete,
		CommandLine: r.opts.CommandLine,
		Hostname:    hostname,
		ParamsFiles: r.opts.ParamsFiles,
		StoreFull:   r.opts.StoreFull,
		Notes:       r.opts.Notes,
	}
	if r.opts.RunStore == nil {
		r.info.Reference = registry.FormatReference(r.opts.ExperimentName, 0, now)
		return nil
	}
	if err := r.opts.RunStore.Begin(&r.info); err != nil {
		return fmt.Errorf("registering run: %w", err)
	}
	return nil
}

// finish records the run's terminal status.
func (r *Run) finish(ctx context.Context, runErr error) {
	if runErr != nil {
		r.info.Status = registry.StatusError
		r.info.Error = runErr.Error()
	} else {
		r.info.Status = registry.StatusComplete
	}
	if r.opts.RunStore == nil {
		return
	}
	if err := r.opts.RunStore.Update(&r.info); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to update run status in the store.",
			"reference", r.info.Reference, "error", err)
	}
}

// writeRunInfo drops the metadata block into a store-full run folder.
func (r *Run) writeRunInfo(folder string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("creating run folder: %w", err)
	}
	data, err := json.MarshalIndent(r.info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run info: %w", err)
	}
	path := filepath.Join(folder, "run_info.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run info: %w", err)
	}
	return nil
}
