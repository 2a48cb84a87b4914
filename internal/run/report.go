package run

import (
	"fmt"
	"strings"

	"stagehand/internal/dag"
)

// Report is the human-readable outcome of a mapping-only pass: every mapped
// stage invocation grouped by record, with its cache and pruning verdicts.
type Report struct {
	Records []RecordPlan
}

// RecordPlan describes the planned stages for one record.
type RecordPlan struct {
	Name   string
	Hash   string
	Stages []StagePlan
}

// StagePlan is the verdict for one stage invocation.
type StagePlan struct {
	ID          dag.ID
	Cached      bool
	Forced      bool
	WillExecute bool
	Outputs     []string
}

// buildReport assembles the plan from the mapped graph and records. A nil
// must-execute set means pruning was disabled; every stage is then reported
// as executing (subject to runtime cache short-circuiting).
func (r *Run) buildReport() *Report {
	rep := &Report{}
	byRecord := make(map[int][]StagePlan)
	for _, id := range r.graph.Nodes() {
		recIdx, _ := r.graph.NodeRecord(id)
		var outputs []string
		for _, artIdx := range r.graph.Outputs(id) {
			outputs = append(outputs, r.graph.Artifact(artIdx).Name)
		}
		byRecord[recIdx] = append(byRecord[recIdx], StagePlan{
			ID:          id,
			Cached:      r.graph.FullyCached(id),
			Forced:      r.graph.Forced(id),
			WillExecute: r.MustRun(id),
			Outputs:     outputs,
		})
	}
	for idx, rec := range r.records {
		rep.Records = append(rep.Records, RecordPlan{
			Name:   rec.Name(),
			Hash:   rec.Hash(),
			Stages: byRecord[idx],
		})
	}
	return rep
}

// String renders the plan as an indented tree, one record per block.
func (p *Report) String() string {
	var b strings.Builder
	for _, rec := range p.Records {
		fmt.Fprintf(&b, "%s (%s)\n", rec.Name, rec.Hash)
		for _, st := range rec.Stages {
			verdict := "execute"
			if !st.WillExecute {
				verdict = "skip"
			}
			marks := ""
			if st.Cached {
				marks += " cached"
			}
			if st.Forced {
				marks += " overwrite"
			}
			fmt.Fprintf(&b, "  %s -> %s%s", st.ID, verdict, marks)
			if len(st.Outputs) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(st.Outputs, ", "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
