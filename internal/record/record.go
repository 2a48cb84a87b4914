// Package record holds the working memory for one (parameter set, procedure)
// pairing: the artifact state a record accumulates as stages run over it,
// plus the provenance of which stages touched it.
package record

import (
	"stagehand/internal/params"
	"stagehand/internal/state"
)

// UnsetHash is the hash placeholder for records with no parameter set and no
// combined hash yet, and for contributing records without parameters when a
// combined hash is derived.
const UnsetHash = "None"

// Call logs one stage invocation against a record: the stage identity plus
// the artifact indices (into the run's artifact table) it consumed and
// produced. An input index of -1 marks an input that was not present in state
// at mapping time.
type Call struct {
	Stage   string
	Ordinal int
	Inputs  []int
	Outputs []int
}

// Record is a single persistent state passed between stages in one
// experiment line.
type Record struct {
	// Params is the parameter set stages see while running this record. Nil
	// for aggregate-owned records without parameters of their own.
	Params *params.ParameterSet

	// State holds the record's artifacts.
	State *state.State

	// InputRecords lists records this one draws on: the contributing records
	// of an aggregate, or the origin of a branched copy.
	InputRecords []*Record

	// CombinedHash replaces the parameter fingerprint for records produced
	// by an aggregate; it derives from the contributing records' hashes.
	CombinedHash string

	// IsAggregate marks records owned by aggregate stages.
	IsAggregate bool

	// Calls is the ordered log of stage invocations on this record.
	Calls []Call

	// Index is the record's position within its run.
	Index int

	// Output carries the return values of the last stage run on the record.
	Output []any

	// Failed marks a record whose stage raised while the run was configured
	// to isolate failures per record; later stages skip it. Err holds the
	// failure.
	Failed bool
	Err    error
}

// New returns an empty record for the given parameter set.
func New(ps *params.ParameterSet) *Record {
	return &Record{Params: ps, State: state.New(), Index: -1}
}

// Hash returns the cache-addressing hash for this record: the combined hash
// for aggregate products, otherwise the memoized parameter fingerprint.
func (r *Record) Hash() string {
	if r.CombinedHash != "" {
		return r.CombinedHash
	}
	if r.Params != nil {
		if h, ok := r.Params.StoredHash(); ok {
			return h
		}
	}
	return UnsetHash
}

// Name returns the record's display name for logs and provenance.
func (r *Record) Name() string {
	if r.Params != nil {
		return r.Params.Name
	}
	if r.IsAggregate {
		return "(aggregate)"
	}
	return "(unnamed)"
}

// StageLog returns the names of the stages that have touched this record, in
// order.
func (r *Record) StageLog() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Stage
	}
	return out
}

// AddCall appends a stage invocation to the log and returns a pointer to the
// stored entry so the caller can attach artifact indices as they are mapped.
func (r *Record) AddCall(stage string, ordinal int) *Call {
	r.Calls = append(r.Calls, Call{Stage: stage, Ordinal: ordinal})
	return &r.Calls[len(r.Calls)-1]
}

// Copy branches the record: the new record gets a duplicated state, the given
// parameter set (nil keeps the current one), an empty stage log, and this
// record as provenance. The caller is responsible for attaching the copy to
// its run.
func (r *Record) Copy(ps *params.ParameterSet) *Record {
	if ps == nil {
		ps = r.Params
	}
	out := New(ps)
	out.State = r.State.Copy()
	out.InputRecords = []*Record{r}
	return out
}
