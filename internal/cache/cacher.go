package cache

// Cacher binds a serialization strategy to per-artifact addressing options.
// A zero-valued option falls back to the gateway's defaults.
type Cacher struct {
	// Store is the serialization strategy for the artifact.
	Store Store

	// PathOverride, when set, is used verbatim as the file path. It disables
	// hash-based addressing entirely and excludes the entry from store-full
	// run copies, since the location is outside the managed cache tree.
	PathOverride string

	// Subdir nests the entry under one or more subdirectories inside the
	// cache tree, for callers who want logical subsets of the cache.
	Subdir string

	// Prefix replaces the gateway's experiment-wide prefix for this entry.
	// Cross-experiment caching weakens provenance; use sparingly.
	Prefix string

	// Track controls whether the entry participates in store-full run copies.
	Track bool
}

// JSON returns a cacher using the JSON strategy.
func JSON() *Cacher { return &Cacher{Store: JSONStore{}, Track: true} }

// Gob returns a cacher using the opaque gob strategy.
func Gob() *Cacher { return &Cacher{Store: GobStore{}, Track: true} }

// CSV returns a cacher using the tabular strategy.
func CSV() *Cacher { return &Cacher{Store: CSVStore{}, Track: true} }

// Raw returns a cacher that writes bytes untouched.
func Raw() *Cacher { return &Cacher{Store: RawStore{}, Track: true} }

// FileRef returns a reference-only cacher.
func FileRef() *Cacher { return &Cacher{Store: FileRefStore{}, Track: true} }

// At pins the cacher to an explicit path, bypassing key-based addressing.
func (c *Cacher) At(path string) *Cacher {
	c.PathOverride = path
	return c
}

// In nests the cacher's entries under a subdirectory of the cache tree.
func (c *Cacher) In(subdir string) *Cacher {
	c.Subdir = subdir
	return c
}

// WithPrefix overrides the experiment-wide prefix for this cacher.
func (c *Cacher) WithPrefix(prefix string) *Cacher {
	c.Prefix = prefix
	return c
}
