package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"stagehand/internal/ctxlog"
	"stagehand/internal/hashing"
	"stagehand/internal/hclparams"
	"stagehand/internal/params"
	"stagehand/internal/registry"
	"stagehand/internal/run"
)

// Run dispatches the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	switch a.config.Command {
	case CommandRun:
		return a.runExperiment(ctx)
	case CommandMap:
		return a.mapExperiment(ctx)
	case CommandHash:
		return a.dumpHashes(ctx)
	case CommandRuns:
		return a.listRuns(ctx)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

// runExperiment performs the full two-phase run of the named experiment.
func (a *App) runExperiment(ctx context.Context) error {
	exp, err := a.experiment(a.config.Experiment)
	if err != nil {
		return err
	}
	psets, err := a.loadParams(ctx)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := a.runOptions()
	opts.RunStore = store
	r := run.New(opts)
	return r.Execute(ctx, exp.Driver, psets)
}

// mapExperiment prints the execution plan without running anything.
func (a *App) mapExperiment(ctx context.Context) error {
	exp, err := a.experiment(a.config.Experiment)
	if err != nil {
		return err
	}
	psets, err := a.loadParams(ctx)
	if err != nil {
		return err
	}

	r := run.New(a.runOptions())
	report, err := r.Plan(ctx, exp.Driver, psets)
	if err != nil {
		return err
	}
	fmt.Fprint(a.outW, report.String())
	return nil
}

// dumpHashes computes and prints the parameter fingerprint for every loaded
// set, field by field, without touching the cache.
func (a *App) dumpHashes(ctx context.Context) error {
	psets, err := a.loadParams(ctx)
	if err != nil {
		return err
	}
	for _, ps := range psets {
		hash, err := hashing.Hash(ctx, ps)
		if err != nil {
			return fmt.Errorf("hashing %q: %w", ps.Name, err)
		}
		fmt.Fprintf(a.outW, "%s: %s\n", ps.Name, hash)
		reps := hashing.StringRepresentations(ctx, ps)
		fields := make([]string, 0, len(reps))
		for f := range reps {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(a.outW, "  %s = %v\n", f, reps[f])
		}
	}
	return nil
}

// listRuns prints the run registry, optionally filtered by experiment.
func (a *App) listRuns(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(a.config.Experiment)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REFERENCE\tSTATUS\tTIMESTAMP\tHOST\tNOTES")
	for _, info := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.Reference, info.Status,
			info.Timestamp.Format(registry.TimestampFormat),
			info.Hostname, info.Notes)
	}
	return tw.Flush()
}

// loadParams loads parameter sets from the configured path and applies the
// params-range slice.
func (a *App) loadParams(ctx context.Context) ([]*params.ParameterSet, error) {
	if a.config.ParamsPath == "" {
		return nil, fmt.Errorf("a params path is required for %q", a.config.Command)
	}
	psets, err := hclparams.Load(ctx, a.config.ParamsPath)
	if err != nil {
		return nil, err
	}
	if len(psets) == 0 {
		return nil, fmt.Errorf("no params blocks found under %s", a.config.ParamsPath)
	}
	if rg := a.config.ParamsRange; rg != nil {
		if rg.Start >= len(psets) {
			return nil, fmt.Errorf("params range start %d beyond %d loaded sets", rg.Start, len(psets))
		}
		end := rg.End
		if end > len(psets) {
			end = len(psets)
		}
		psets = psets[rg.Start:end]
	}
	return psets, nil
}

// runOptions translates the app config into planner options.
func (a *App) runOptions() run.Options {
	return run.Options{
		ExperimentName:  a.config.Experiment,
		CacheDir:        a.config.CacheDir,
		RunsDir:         a.config.RunsDir,
		StoreFull:       a.config.StoreFull,
		Overwrite:       a.config.Overwrite,
		OverwriteStages: a.config.OverwriteStages,
		DryCache:        a.config.DryCache,
		Lazy:            a.config.Lazy,
		IgnoreLazy:      a.config.IgnoreLazy,
		Sequential:      a.config.Sequential,
		ContinueOnError: a.config.ContinueOnError,
		ParamRegistry:   registry.NewParamRegistry(a.config.CacheDir),
		CommandLine:     a.config.CommandLine,
		Notes:           a.config.Notes,
		ParamsFiles:     []string{a.config.ParamsPath},
	}
}

// openStore builds the configured run store backend.
func (a *App) openStore() (registry.RunStore, error) {
	switch a.config.StoreBackend {
	case "sqlite":
		return registry.NewSQLiteRunStore(filepath.Join(a.config.RunsDir, "runs.db"))
	default:
		return registry.NewJSONRunStore(a.config.RunsDir), nil
	}
}
