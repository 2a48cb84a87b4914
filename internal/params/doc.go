// Package params defines the parameter set model: a named bundle of
// configuration values that controls how stages compute, together with
// per-field hash override declarations.
//
// A parameter set's fingerprint (see internal/hashing) is memoized on the set
// the first time it is computed. Callers must not mutate a parameter set after
// its fingerprint has been taken; the cache key and the content would diverge
// silently.
package params
