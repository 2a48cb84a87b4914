package stage

import "fmt"

// ConfigError kinds raised at stage construction time.
const (
	KindPartialCachers  = "partial_cachers"
	KindDuplicateOutput = "duplicate_output"
	KindLazyNoCacher    = "lazy_without_cacher"
	KindNilFunc         = "nil_function"
)

// ConfigError reports an invalid stage declaration. These are raised when the
// stage is built, not when it runs, so a bad declaration fails fast.
type ConfigError struct {
	Stage  string
	Kind   string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stage %q misconfigured (%s): %s", e.Stage, e.Kind, e.Detail)
}

// MissingInputError reports a declared input absent from the record's state
// with no suppression or override covering it.
type MissingInputError struct {
	Stage  string
	Record string
	Input  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("stage %q on record %q: input %q not in state", e.Stage, e.Record, e.Input)
}

// OutputCountError reports a mismatch between the values a stage function
// returned and the outputs it declared. The mismatch is never silently
// truncated or padded.
type OutputCountError struct {
	Stage string
	Want  int
	Got   int
}

func (e *OutputCountError) Error() string {
	return fmt.Sprintf("stage %q returned %d values for %d declared outputs", e.Stage, e.Got, e.Want)
}
