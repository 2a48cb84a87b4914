// Package testutil holds shared helpers for the test suite: a thread-safe
// log capture buffer, context/logger construction, and a run harness with
// temporary cache directories.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"stagehand/internal/ctxlog"
	"stagehand/internal/run"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements io.Writer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements fmt.Stringer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug-level text logger that writes
// into the returned buffer.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// NewRun builds a run rooted in temporary directories. The mutate callback,
// when non-nil, adjusts the options before the run is constructed.
func NewRun(t *testing.T, mutate func(*run.Options)) *run.Run {
	t.Helper()
	opts := run.Options{
		ExperimentName: "test",
		CacheDir:       t.TempDir(),
		RunsDir:        t.TempDir(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return run.New(opts)
}

// ExecLog counts how many times each stage body actually ran, for asserting
// cache short-circuits and pruning decisions.
type ExecLog struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewExecLog returns an empty execution counter.
func NewExecLog() *ExecLog {
	return &ExecLog{counts: make(map[string]int)}
}

// Bump records one execution of the named stage.
func (e *ExecLog) Bump(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[name]++
}

// Count returns how many times the named stage body ran.
func (e *ExecLog) Count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[name]
}
