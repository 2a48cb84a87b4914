package hashing

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/big"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"stagehand/internal/ctxlog"
	"stagehand/internal/params"
)

// Strategies reported by the dry-run output, naming how each field's hash
// representation was derived.
const (
	StrategyBlacklist = "skipped: blacklisted field"
	StrategyAbsent    = "skipped: value is absent"
	StrategyIgnored   = "skipped: override set to ignore"
	StrategyOverride  = "override function"
	StrategyNested    = "nested parameter set"
	StrategyCallable  = "callable qualified name"
	StrategyDefault   = "default string conversion"
)

// blacklist holds bookkeeping field names that never contribute to the hash,
// mirrored for parameter sets whose values map carries them explicitly.
var blacklist = map[string]bool{
	"name":           true,
	"hash":           true,
	"overwrite":      true,
	"hash_overrides": true,
}

// FieldHash is the dry-run result for a single field: the strategy used and
// the representation it produced (or the reason it was skipped).
type FieldHash struct {
	Strategy       string
	Representation string
	Skipped        bool
	Nested         map[string]FieldHash
}

// Representations walks every field of the parameter set and reports the
// strategy and representation each one resolves to, without computing the
// final hash. This is the debugging/audit surface for custom overrides.
func Representations(ctx context.Context, ps *params.ParameterSet) (map[string]FieldHash, error) {
	out := make(map[string]FieldHash, len(ps.Fields()))
	for _, field := range ps.Fields() {
		value, _ := ps.Get(field)
		fh, err := fieldRepresentation(ctx, ps, field, value)
		if err != nil {
			return nil, err
		}
		out[field] = fh
	}
	return out, nil
}

// fieldRepresentation applies the strategy chain to one field.
func fieldRepresentation(ctx context.Context, ps *params.ParameterSet, field string, value any) (FieldHash, error) {
	logger := ctxlog.FromContext(ctx)

	if blacklist[field] {
		return FieldHash{Strategy: StrategyBlacklist, Skipped: true}, nil
	}

	if absent(value) {
		return FieldHash{Strategy: StrategyAbsent, Skipped: true}, nil
	}

	if fn, registered := ps.Override(field); registered {
		if fn == nil {
			return FieldHash{Strategy: StrategyIgnored, Skipped: true}, nil
		}
		rep, err := fn(ps, value)
		if err != nil {
			return FieldHash{}, fmt.Errorf("hash override for field %q: %w", field, err)
		}
		return FieldHash{Strategy: StrategyOverride, Representation: rep}, nil
	}

	if nested, ok := value.(*params.ParameterSet); ok {
		reps, err := Representations(ctx, nested)
		if err != nil {
			return FieldHash{}, err
		}
		return FieldHash{Strategy: StrategyNested, Nested: reps}, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Func {
		name := runtime.FuncForPC(rv.Pointer()).Name()
		return FieldHash{Strategy: StrategyCallable, Representation: name}, nil
	}

	rep := fmt.Sprintf("%v", value)
	if memoryIdentity(rv.Kind()) {
		logger.Warn("Field hash falls back to a memory-identity representation; register an override for reproducible hashes.",
			"field", field, "type", fmt.Sprintf("%T", value))
	}
	return FieldHash{Strategy: StrategyDefault, Representation: rep}, nil
}

// absent reports whether a value counts as unset. Typed nils inside an
// interface count as absent too.
func absent(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// memoryIdentity reports whether the default %v form of a kind embeds a
// memory address rather than content.
func memoryIdentity(kind reflect.Kind) bool {
	switch kind {
	case reflect.Ptr, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr:
		return true
	}
	return false
}

// total sums the md5 digest of every contributing field, recursing into
// nested parameter sets. The field name is concatenated with the
// representation before hashing so two fields holding each other's values in
// another set do not collide.
func total(reps map[string]FieldHash) *big.Int {
	sum := new(big.Int)
	for field, fh := range reps {
		if fh.Skipped {
			continue
		}
		if fh.Nested != nil {
			sum.Add(sum, total(fh.Nested))
			continue
		}
		digest := md5.Sum([]byte(field + fh.Representation))
		sum.Add(sum, new(big.Int).SetBytes(digest[:]))
	}
	return sum
}

// Render converts pre-computed representations into the final hex fingerprint.
func Render(reps map[string]FieldHash) string {
	return total(reps).Text(16)
}

// Hash returns the fingerprint for a parameter set, memoizing it on the set.
// Once memoized the fingerprint is never recomputed, even if fields mutate
// afterwards.
func Hash(ctx context.Context, ps *params.ParameterSet) (string, error) {
	if h, ok := ps.StoredHash(); ok {
		return h, nil
	}
	reps, err := Representations(ctx, ps)
	if err != nil {
		return "", err
	}
	h := Render(reps)
	ps.SetHash(h)
	return h, nil
}

// CombinedHash derives a single hash from the hashes of a set of contributing
// records plus the hash of the record that owns the aggregation. Contributing
// hashes are sorted first, so the result is insensitive to record ordering.
func CombinedHash(activeHash string, contributing []string) string {
	sorted := make([]string, len(contributing))
	copy(sorted, contributing)
	sort.Strings(sorted)

	key := strings.Join(append([]string{activeHash}, sorted...), ",")
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

// StringRepresentations flattens a parameter set into a json-encodable map of
// field name to hash representation, suitable for the params registry and for
// reports. Skipped fields are collected under the IGNORED_PARAMS key with
// their raw string forms so the registry still shows what was excluded.
func StringRepresentations(ctx context.Context, ps *params.ParameterSet) map[string]any {
	out := map[string]any{"name": ps.Name}
	ignored := map[string]any{}

	reps, err := Representations(ctx, ps)
	if err != nil {
		out["error"] = err.Error()
		return out
	}

	for _, field := range ps.Fields() {
		fh := reps[field]
		switch {
		case fh.Nested != nil:
			nested, _ := ps.Get(field)
			out[field] = StringRepresentations(ctx, nested.(*params.ParameterSet))
		case !fh.Skipped:
			out[field] = fh.Representation
		case fh.Strategy == StrategyBlacklist:
			// bookkeeping fields carry no information worth registering
		default:
			raw, _ := ps.Get(field)
			ignored[field] = fmt.Sprintf("%v", raw)
		}
	}

	if len(ignored) > 0 {
		out["IGNORED_PARAMS"] = ignored
	}
	return out
}
