package app

import (
	"fmt"
	"io"
	"log/slog"

	"stagehand/internal/run"
)

// Experiment pairs a registered name with its driver. The driver is replayed
// by the planner across both run phases, so it must follow identical control
// flow on every invocation.
type Experiment struct {
	Name   string
	Driver run.Driver
}

// App encapsulates the application's configuration, logger, and registered
// experiments.
type App struct {
	outW        io.Writer
	logger      *slog.Logger
	config      *Config
	experiments map[string]Experiment
}

// NewApp builds an App with its own isolated logger and the given
// experiments registered. Registering two experiments under the same name is
// a programmer error and panics.
func NewApp(outW io.Writer, cfg *Config, experiments ...Experiment) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	reg := make(map[string]Experiment, len(experiments))
	for _, exp := range experiments {
		if _, dup := reg[exp.Name]; dup {
			panic(fmt.Errorf("experiment %q registered twice", exp.Name))
		}
		reg[exp.Name] = exp
	}
	logger.Debug("Experiments registered.", "count", len(reg))

	return &App{
		outW:        outW,
		logger:      logger,
		config:      cfg,
		experiments: reg,
	}
}

// Logger returns the app's logger, primarily for tests.
func (a *App) Logger() *slog.Logger { return a.logger }

// experiment looks up a registered experiment by name.
func (a *App) experiment(name string) (Experiment, error) {
	exp, ok := a.experiments[name]
	if !ok {
		return Experiment{}, fmt.Errorf("no experiment registered under %q", name)
	}
	return exp, nil
}
