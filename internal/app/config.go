package app

import (
	"errors"
	"fmt"
)

// Commands the application knows how to perform.
const (
	CommandRun  = "run"
	CommandMap  = "map"
	CommandHash = "hash"
	CommandRuns = "runs"
)

// Config holds everything an App instance needs to perform one command.
type Config struct {
	// Command selects the operation: run, map, hash, or runs.
	Command string

	// Experiment names the registered experiment to operate on. Required for
	// every command except runs, where it is an optional filter.
	Experiment string

	// ParamsPath points at a params .hcl file or a directory of them.
	ParamsPath string

	// CacheDir and RunsDir root the artifact cache and the store-full run
	// folders.
	CacheDir string
	RunsDir  string

	// StoreBackend selects the run registry implementation: json or sqlite.
	StoreBackend string

	// ParamsRange restricts the run to a half-open slice [Start, End) of the
	// loaded parameter sets, for coarse multi-process parallelism. A nil
	// range means all sets.
	ParamsRange *Range

	StoreFull       bool
	Overwrite       bool
	OverwriteStages []string
	DryCache        bool
	Lazy            bool
	IgnoreLazy      bool
	Sequential      bool
	ContinueOnError bool
	Notes           string

	LogFormat string
	LogLevel  string

	// CommandLine preserves the raw invocation for run provenance.
	CommandLine string
}

// Range is a half-open index interval.
type Range struct {
	Start int
	End   int
}

// NewConfig validates a literal Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandRun, CommandMap, CommandHash, CommandRuns:
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if cfg.Command != CommandRuns && cfg.Experiment == "" {
		return nil, errors.New("an experiment name is required")
	}
	if cfg.StoreBackend != "json" && cfg.StoreBackend != "sqlite" {
		return nil, fmt.Errorf("invalid store backend %q: must be 'json' or 'sqlite'", cfg.StoreBackend)
	}
	if cfg.ParamsRange != nil {
		if cfg.ParamsRange.Start < 0 || cfg.ParamsRange.End < cfg.ParamsRange.Start {
			return nil, fmt.Errorf("invalid params range %d..%d", cfg.ParamsRange.Start, cfg.ParamsRange.End)
		}
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "data/cache"
	}
	if cfg.RunsDir == "" {
		cfg.RunsDir = "data/runs"
	}
	return &cfg, nil
}
