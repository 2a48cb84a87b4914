package dag

// Leaves returns the stage identities whose outputs are never consumed by any
// other mapped stage. These are the final requested results the run exists to
// produce; a node with no outputs at all is a leaf too.
func (g *Graph) Leaves() []ID {
	consumed := make(map[int]bool)
	for _, id := range g.order {
		for _, idx := range g.nodes[id].inputs {
			if idx >= 0 {
				consumed[idx] = true
			}
		}
	}

	var leaves []ID
	for _, id := range g.order {
		n := g.nodes[id]
		used := false
		for _, idx := range n.outputs {
			if consumed[idx] {
				used = true
				break
			}
		}
		if !used {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// MustExecute computes the set of stage identities that cannot be satisfied
// from cache. The walk starts from leaves whose outputs are not fully cached
// and from every forced (overwrite-requested) node, propagates forward from
// forced nodes so stale downstream results are recomputed even when their own
// outputs are cached, and walks backward through uncached inputs to pull in
// the producers an executing stage will actually need.
//
// The second return value is the forced-forward closure: every forced node
// plus everything downstream of one. Members must not be satisfied from
// cache at execution time; their existing entries are presumed stale.
func (g *Graph) MustExecute() (map[ID]bool, map[ID]bool) {
	include := make(map[ID]bool)
	var queue []ID

	add := func(id ID) {
		if !include[id] {
			include[id] = true
			queue = append(queue, id)
		}
	}

	// Forced nodes and everything downstream of them execute regardless of
	// cache state.
	forward := make(map[ID]bool)
	var forwardQueue []ID
	for _, id := range g.order {
		if g.nodes[id].forced {
			forward[id] = true
			forwardQueue = append(forwardQueue, id)
		}
	}
	for len(forwardQueue) > 0 {
		id := forwardQueue[0]
		forwardQueue = forwardQueue[1:]
		add(id)
		for _, dep := range g.Dependents(id) {
			if !forward[dep] {
				forward[dep] = true
				forwardQueue = append(forwardQueue, dep)
			}
		}
	}

	for _, leaf := range g.Leaves() {
		if !g.FullyCached(leaf) {
			add(leaf)
		}
	}

	// Backward closure: an executing node needs every input that is not
	// already sitting in the cache, so those producers execute too. Cached
	// inputs stop the walk; they will be loaded lazily on demand.
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := g.nodes[id]
		for _, idx := range n.inputs {
			if idx < 0 {
				continue
			}
			art := g.artifacts[idx]
			if !art.Cached {
				add(art.Producer)
			}
		}
	}

	return include, forward
}
