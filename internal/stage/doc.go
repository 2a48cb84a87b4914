// Package stage wraps user computation functions into cache-aware units of
// work. A Stage binds declared inputs and outputs to a record's state,
// decides execute-versus-cache-hit per invocation, and reports itself to the
// run's dependency graph during the mapping pass. An Aggregate is the variant
// that consumes artifacts across many records at once.
//
// A stage failure propagates immediately and is never converted into a skip.
// With failure isolation enabled on the run, the failure is pinned to the
// record instead and later stages pass the record over.
package stage
