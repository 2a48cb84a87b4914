// Package cache persists artifact values under versioned keys and answers
// existence queries without deserializing payloads, which is what lets the
// planner decide execution necessity without paying load cost.
//
// A cache entry is addressed by (prefix, parameter hash, stage name, artifact
// name), rendered as prefix_hash_stage_artifact[.ext] inside the managed cache
// tree. Every save is paired with a sibling _metadata.json provenance record.
// Serialization is pluggable through the Store interface; a Cacher binds a
// Store to per-artifact addressing tweaks (path override, subdir, alternative
// prefix).
package cache
