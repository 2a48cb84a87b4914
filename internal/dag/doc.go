// Package dag models the dependency graph the planner builds during the
// mapping phase: stage identities as nodes, artifact produce/consume
// relationships as edges. The graph is rebuilt fresh every run and never
// persisted.
//
// Its one non-trivial operation is MustExecute, the reachability pruning that
// walks backward from leaf stages to find the minimal set of stages that have
// to run, honoring cached outputs and forward-propagating overwrite requests
// to everything downstream of them.
package dag
