package cli

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"stagehand/internal/app"
)

// ExitError carries a specific process exit code alongside its message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

const usageText = `stagehand - cached, DAG-pruned experiment runs.

Usage:
  stagehand <command> [options]

Commands:
  run    Execute an experiment (two-phase: map, prune, run).
  map    Print the execution plan without running anything.
  hash   Print parameter fingerprints field by field.
  runs   List registered runs.

Options:
`

// Parse processes command-line arguments. It returns a validated Config, a
// boolean indicating the program should exit cleanly (help requested), or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	if len(args) == 0 {
		printUsage(output, nil)
		return nil, true, nil
	}
	command := args[0]
	if command == "-h" || command == "--help" || command == "help" {
		printUsage(output, nil)
		return nil, true, nil
	}

	flagSet := flag.NewFlagSet("stagehand "+command, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() { printUsage(output, flagSet) }

	experimentFlag := flagSet.String("experiment", "", "Name of the registered experiment.")
	eFlag := flagSet.String("e", "", "Name of the registered experiment (shorthand).")
	paramsFlag := flagSet.String("params", "", "Path to a params .hcl file or a directory of them.")
	cacheFlag := flagSet.String("cache", "data/cache", "Root directory of the artifact cache.")
	runsFlag := flagSet.String("runs", "data/runs", "Root directory for run folders and the run registry.")
	storeFlag := flagSet.String("store", "json", "Run registry backend. Options: 'json' or 'sqlite'.")
	storeFullFlag := flagSet.Bool("store-full", false, "Copy every produced artifact into a per-run folder.")
	overwriteFlag := flagSet.Bool("overwrite", false, "Ignore existing cache entries for every stage.")
	overwriteStagesFlag := flagSet.String("overwrite-stages", "", "Comma-separated stage names to recompute (dependents recompute too).")
	dryCacheFlag := flagSet.Bool("dry-cache", false, "Run normally but write nothing to the cache.")
	lazyFlag := flagSet.Bool("lazy", false, "Cache every output lazily to keep artifacts out of memory.")
	ignoreLazyFlag := flagSet.Bool("ignore-lazy", false, "Strip lazy declarations; materialize everything.")
	sequentialFlag := flagSet.Bool("sequential", false, "Disable mapping and DAG pruning; rely on cache short-circuiting only.")
	continueFlag := flagSet.Bool("continue-on-error", false, "Isolate a stage failure to its record instead of aborting.")
	rangeFlag := flagSet.String("params-range", "", "Half-open slice START:END of loaded parameter sets to run.")
	notesFlag := flagSet.String("notes", "", "Free-form note stored with the run.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	experiment := *experimentFlag
	if experiment == "" {
		experiment = *eFlag
	}
	if experiment == "" && flagSet.NArg() > 0 {
		experiment = flagSet.Arg(0)
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	paramsRange, err := parseRange(*rangeFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	var overwriteStages []string
	if *overwriteStagesFlag != "" {
		for _, name := range strings.Split(*overwriteStagesFlag, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				overwriteStages = append(overwriteStages, trimmed)
			}
		}
	}

	cfg, err := app.NewConfig(app.Config{
		Command:         command,
		Experiment:      experiment,
		ParamsPath:      *paramsFlag,
		CacheDir:        *cacheFlag,
		RunsDir:         *runsFlag,
		StoreBackend:    strings.ToLower(*storeFlag),
		ParamsRange:     paramsRange,
		StoreFull:       *storeFullFlag,
		Overwrite:       *overwriteFlag,
		OverwriteStages: overwriteStages,
		DryCache:        *dryCacheFlag,
		Lazy:            *lazyFlag,
		IgnoreLazy:      *ignoreLazyFlag,
		Sequential:      *sequentialFlag,
		ContinueOnError: *continueFlag,
		Notes:           *notesFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		CommandLine:     "stagehand " + strings.Join(args, " "),
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}

// parseRange parses the START:END form of -params-range.
func parseRange(s string) (*app.Range, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid params-range %q: want START:END", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid params-range start %q", parts[0])
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid params-range end %q", parts[1])
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid params-range %d:%d", start, end)
	}
	return &app.Range{Start: start, End: end}, nil
}

func printUsage(output io.Writer, flagSet *flag.FlagSet) {
	fmt.Fprint(output, usageText)
	if flagSet != nil {
		flagSet.PrintDefaults()
	}
}
