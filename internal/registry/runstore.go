package registry

import (
	"fmt"
	"time"
)

// TimestampFormat renders run timestamps inside reference names. Colons are
// avoided so references stay filesystem-safe.
const TimestampFormat = "2006-01-02-T150405"

// Run statuses recorded in the store.
const (
	StatusIncomplete = "incomplete"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// RunInfo is the metadata block kept for one experiment run.
type RunInfo struct {
	Reference   string    `json:"reference"`
	Experiment  string    `json:"experiment_name"`
	RunNumber   int       `json:"run_number"`
	UUID        string    `json:"uuid"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CommandLine string    `json:"cli,omitempty"`
	Hostname    string    `json:"hostname"`
	ParamsFiles []string  `json:"params_files,omitempty"`
	StoreFull   bool      `json:"full_store"`
	Notes       string    `json:"notes,omitempty"`
}

// FormatReference builds the canonical run reference name:
// experiment_runNumber_timestamp.
func FormatReference(experiment string, runNumber int, ts time.Time) string {
	return fmt.Sprintf("%s_%d_%s", experiment, runNumber, ts.Format(TimestampFormat))
}

// RunStore is the injected database of experiment runs. Begin allocates the
// next run number for the experiment and persists the block with an
// incomplete status; Update rewrites the block (normally to mark completion
// or record the failure).
type RunStore interface {
	Begin(info *RunInfo) error
	Update(info *RunInfo) error
	List(experiment string) ([]RunInfo, error)
	Close() error
}
