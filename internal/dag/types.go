package dag

import "fmt"

// ID is a stage identity: the stage name plus the ordinal of its invocation
// within the run. The same stage function typically runs once per record, so
// the ordinal is what keeps invocations distinguishable in the graph and in
// caching provenance.
type ID struct {
	Name    string
	Ordinal int
}

// String renders the identity in its canonical `name[ordinal]` form.
func (id ID) String() string {
	return fmt.Sprintf("%s[%d]", id.Name, id.Ordinal)
}

// Artifact is the mapping-phase representation of one produced value: who
// produced it, which record it lives in, and whether its cache entry already
// exists.
type Artifact struct {
	Name     string
	Record   int
	Producer ID
	Cached   bool
}

// node is a single mapped stage invocation. It is un-exported to enforce
// interaction through the graph API using IDs.
type node struct {
	id      ID
	record  int
	inputs  []int
	outputs []int
	forced  bool
}
