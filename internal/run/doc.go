// Package run is the planning and execution layer. A Run drives the
// two-phase protocol: the driver's orchestration code is executed once in
// mapping mode, where stage wrappers resolve identities, inputs, outputs and
// cache existence without running their bodies, building the dependency
// graph; then the must-execute set is derived by reachability pruning; then
// the same orchestration code is executed again for real, gated by that set.
//
// The driver must be re-invokable with identical control flow across both
// phases. Branching on wall-clock time, randomness, or external state that
// can change between phases violates that precondition and breaks the plan.
package run
