// Package hashing computes the order-independent fingerprint of a parameter
// set. The fingerprint prefixes every cache filename, so it is what decides
// whether an artifact has already been computed for a given configuration.
//
// Each field is reduced to a string representation through a fixed strategy
// chain (blacklist, absent, user override, nested set recursion, callable
// name, default formatting), hashed individually with md5, and the integer
// values of the digests are summed. Because integer addition commutes, the
// final hex rendering of the sum is insensitive to field ordering and robust
// to fields being added or removed between versions.
package hashing
