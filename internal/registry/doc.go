// Package registry holds the process-shared bookkeeping stores that outlive a
// single run: the append-only params registry (hash to full parameter
// representation, for audit and reports) and the run store (the mini database
// of past experiment runs and their run numbers).
//
// Both are explicit injected objects rather than ambient global state; the
// planner receives them through its options. Mutation goes through mutual
// exclusion around the read-modify-persist cycle, the one piece of locking
// the coarse multi-process execution mode requires.
package registry
