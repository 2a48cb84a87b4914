package dag

import "fmt"

// Graph is the dependency graph built during the mapping phase. It is
// populated by the planner and queried for the must-execute set before the
// execution phase begins. Building happens on a single goroutine; the graph
// is not safe for concurrent mutation.
type Graph struct {
	nodes     map[ID]*node
	order     []ID
	artifacts []Artifact
}

// New creates an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[ID]*node)}
}

// AddArtifact records a produced artifact and returns its index, the handle
// nodes use to reference it as input or output.
func (g *Graph) AddArtifact(a Artifact) int {
	g.artifacts = append(g.artifacts, a)
	return len(g.artifacts) - 1
}

// Artifact returns the artifact at the given index.
func (g *Graph) Artifact(index int) Artifact {
	return g.artifacts[index]
}

// ArtifactCount returns the number of mapped artifacts.
func (g *Graph) ArtifactCount() int { return len(g.artifacts) }

// AddNode adds a mapped stage invocation. Input indices may include -1 for
// inputs that were absent from state at mapping time; those are kept for the
// record but produce no edges. Adding the same identity twice is an error:
// ordinals exist precisely to keep invocations unique.
func (g *Graph) AddNode(id ID, recordIndex int, inputs, outputs []int, forced bool) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("duplicate stage identity %s in graph", id)
	}
	g.nodes[id] = &node{
		id:      id,
		record:  recordIndex,
		inputs:  inputs,
		outputs: outputs,
		forced:  forced,
	}
	g.order = append(g.order, id)
	return nil
}

// Nodes returns all stage identities in mapping order.
func (g *Graph) Nodes() []ID {
	out := make([]ID, len(g.order))
	copy(out, g.order)
	return out
}

// NodeRecord returns the record index a stage identity ran against.
func (g *Graph) NodeRecord(id ID) (int, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.record, true
}

// Outputs returns the artifact indices a stage identity produced.
func (g *Graph) Outputs(id ID) []int {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.outputs
}

// Inputs returns the artifact indices a stage identity consumed, -1 entries
// included.
func (g *Graph) Inputs(id ID) []int {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.inputs
}

// Dependencies returns the identities that produced the node's inputs.
func (g *Graph) Dependencies(id ID) []ID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	seen := make(map[ID]bool)
	var out []ID
	for _, idx := range n.inputs {
		if idx < 0 {
			continue
		}
		producer := g.artifacts[idx].Producer
		if producer == id || seen[producer] {
			continue
		}
		seen[producer] = true
		out = append(out, producer)
	}
	return out
}

// Dependents returns the identities that consume any of the node's outputs.
func (g *Graph) Dependents(id ID) []ID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	produced := make(map[int]bool, len(n.outputs))
	for _, idx := range n.outputs {
		produced[idx] = true
	}
	var out []ID
	for _, otherID := range g.order {
		if otherID == id {
			continue
		}
		for _, idx := range g.nodes[otherID].inputs {
			if idx >= 0 && produced[idx] {
				out = append(out, otherID)
				break
			}
		}
	}
	return out
}

// FullyCached reports whether every output of a stage identity already has a
// cache entry. A node with no outputs is never considered cached: it leaves
// no evidence of having run.
func (g *Graph) FullyCached(id ID) bool {
	n, ok := g.nodes[id]
	if !ok || len(n.outputs) == 0 {
		return false
	}
	for _, idx := range n.outputs {
		if !g.artifacts[idx].Cached {
			return false
		}
	}
	return true
}

// Forced reports whether an overwrite was requested for the node.
func (g *Graph) Forced(id ID) bool {
	n, ok := g.nodes[id]
	return ok && n.forced
}
