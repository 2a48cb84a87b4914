// Package textstats is a small self-contained experiment: it synthesizes a
// text corpus per parameter set, computes word statistics over it, and
// aggregates a comparison across all parameter sets. It doubles as a working
// reference for declaring stages, lazy outputs, and aggregates.
package textstats

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"stagehand/internal/app"
	"stagehand/internal/cache"
	"stagehand/internal/params"
	"stagehand/internal/record"
	"stagehand/internal/run"
	"stagehand/internal/stage"
)

func init() {
	// The corpus travels through the gob strategy.
	cache.Register([]string(nil))
}

var vocabulary = []string{
	"river", "stone", "lantern", "orbit", "meadow", "signal", "harbor", "ember",
}

var generateCorpus = stage.MustNew(stage.Def{
	Name:    "generate_corpus",
	Outputs: []stage.Output{stage.LazyCached("corpus", cache.Gob())},
	Fn: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
		lines := paramInt(rec.Params, "lines", 100)
		seed := paramInt(rec.Params, "seed", 1)

		rng := rand.New(rand.NewSource(int64(seed)))
		corpus := make([]string, lines)
		for i := range corpus {
			n := 3 + rng.Intn(8)
			words := make([]string, n)
			for j := range words {
				words[j] = vocabulary[rng.Intn(len(vocabulary))]
			}
			corpus[i] = strings.Join(words, " ")
		}
		return []any{corpus}, nil
	},
})

var countWords = stage.MustNew(stage.Def{
	Name:    "count_words",
	Inputs:  []string{"corpus"},
	Outputs: []stage.Output{stage.Cached("word_counts", cache.JSON())},
	Fn: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
		corpus, ok := inputs["corpus"].([]string)
		if !ok {
			return nil, fmt.Errorf("corpus has unexpected type %T", inputs["corpus"])
		}
		counts := make(map[string]any)
		for _, line := range corpus {
			for _, word := range strings.Fields(line) {
				n, _ := counts[word].(float64)
				counts[word] = n + 1
			}
		}
		return []any{counts}, nil
	},
})

var summarize = stage.MustNew(stage.Def{
	Name:    "summarize",
	Inputs:  []string{"word_counts"},
	Outputs: []stage.Output{stage.Cached("summary", cache.JSON())},
	Fn: func(ctx context.Context, rec *record.Record, inputs map[string]any) ([]any, error) {
		counts, ok := inputs["word_counts"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("word_counts has unexpected type %T", inputs["word_counts"])
		}
		var total float64
		top := ""
		var topCount float64
		words := make([]string, 0, len(counts))
		for w := range counts {
			words = append(words, w)
		}
		sort.Strings(words)
		for _, w := range words {
			n, _ := counts[w].(float64)
			total += n
			if n > topCount {
				top, topCount = w, n
			}
		}
		summary := map[string]any{
			"total_words": total,
			"unique":      float64(len(counts)),
			"top_word":    top,
			"top_count":   topCount,
		}
		return []any{summary}, nil
	},
})

var compare = stage.MustNewAggregate(stage.AggDef{
	Name:    "compare",
	Inputs:  []string{"summary"},
	Outputs: []stage.Output{stage.Cached("comparison", cache.JSON())},
	Fn: func(ctx context.Context, rec *record.Record, inputs map[string]map[*record.Record]any) ([]any, error) {
		comparison := make(map[string]any)
		for contributor, value := range inputs["summary"] {
			comparison[contributor.Name()] = value
		}
		return []any{comparison}, nil
	},
})

// Experiment returns the registrable textstats experiment.
func Experiment() app.Experiment {
	return app.Experiment{Name: "textstats", Driver: driver}
}

func driver(ctx context.Context, r *run.Run, psets []*params.ParameterSet) error {
	for _, ps := range psets {
		rec := r.NewRecord(ps)
		if err := generateCorpus.Run(ctx, r, rec, nil); err != nil {
			return err
		}
		if err := countWords.Run(ctx, r, rec, nil); err != nil {
			return err
		}
		if err := summarize.Run(ctx, r, rec, nil); err != nil {
			return err
		}
	}
	agg := r.NewRecord(nil)
	return compare.Run(ctx, r, agg, nil)
}

// paramInt reads an integer-valued parameter, tolerating the float64 form
// HCL numbers decode to.
func paramInt(ps *params.ParameterSet, field string, fallback int) int {
	if ps == nil {
		return fallback
	}
	v, ok := ps.Get(field)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}
