package stage

import (
	"fmt"

	"stagehand/internal/cache"
)

// Output declares one artifact a stage produces: its name, the optional
// caching strategy, and whether the committed value should live in the cache
// instead of memory.
type Output struct {
	Name   string
	Cacher *cache.Cacher
	Lazy   bool
}

// Out declares an uncached output.
func Out(name string) Output { return Output{Name: name} }

// Cached declares an output persisted through the given cacher.
func Cached(name string, c *cache.Cacher) Output { return Output{Name: name, Cacher: c} }

// LazyCached declares a cached output whose in-memory value is replaced by a
// lazy handle immediately after saving.
func LazyCached(name string, c *cache.Cacher) Output {
	return Output{Name: name, Cacher: c, Lazy: true}
}

// Placeholder stands in for an artifact value during the mapping pass, where
// stage bodies never run but state presence must still be observable.
type Placeholder struct {
	Name string
}

func (p Placeholder) String() string { return fmt.Sprintf("<unmapped %s>", p.Name) }

// validateOutputs enforces the declaration rules shared by stages and
// aggregates. Caching is all-or-nothing across a stage's outputs because the
// short-circuit decision is made once per stage, not per output.
func validateOutputs(stageName string, outputs []Output) error {
	seen := make(map[string]bool, len(outputs))
	cached := 0
	for _, out := range outputs {
		if seen[out.Name] {
			return &ConfigError{Stage: stageName, Kind: KindDuplicateOutput,
				Detail: fmt.Sprintf("output %q declared twice", out.Name)}
		}
		seen[out.Name] = true
		if out.Cacher != nil {
			cached++
		} else if out.Lazy {
			return &ConfigError{Stage: stageName, Kind: KindLazyNoCacher,
				Detail: fmt.Sprintf("lazy output %q has no caching strategy", out.Name)}
		}
	}
	if cached != 0 && cached != len(outputs) {
		return &ConfigError{Stage: stageName, Kind: KindPartialCachers,
			Detail: fmt.Sprintf("%d of %d outputs have caching strategies; caching is all-or-nothing per stage", cached, len(outputs))}
	}
	return nil
}

// effectiveOutputs applies run-level lazy settings to the declaration:
// force-lazy marks every cached output lazy (assigning the opaque gob
// strategy when the stage declared no caching at all), ignore-lazy strips
// lazy flags so everything materializes.
func effectiveOutputs(declared []Output, forceLazy, stripLazy bool) []Output {
	outs := make([]Output, len(declared))
	copy(outs, declared)
	if forceLazy {
		for i := range outs {
			if outs[i].Cacher == nil {
				outs[i].Cacher = cache.Gob()
			}
			outs[i].Lazy = true
		}
	}
	if stripLazy {
		for i := range outs {
			outs[i].Lazy = false
		}
	}
	return outs
}
