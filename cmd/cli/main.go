package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"stagehand/experiments/textstats"
	"stagehand/internal/app"
	"stagehand/internal/cli"
)

// main is the entrypoint for the stagehand application.
func main() {
	// Minimal logger until the configured one takes over.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the real application logic so tests can drive it with a buffer.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	application := app.NewApp(outW, cfg, experiments()...)
	return application.Run(context.Background())
}

// experiments lists every experiment the binary ships with.
func experiments() []app.Experiment {
	return []app.Experiment{
		textstats.Experiment(),
	}
}
