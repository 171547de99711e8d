package ir

// ComputeDominators fills in every block's Dominator and
// ImmediateDominees fields using the iterative Cooper/Harvey/Kennedy
// algorithm, which converges to the same tree as Lengauer-Tarjan on the
// block counts a JIT compiles (a handful to a few hundred blocks) at far
// less implementation complexity.
func (g *Graph) ComputeDominators() {
	order := g.reversePostorder()
	if len(order) == 0 {
		return
	}
	index := make(map[*BasicBlock]int, len(order))
	for i, b := range order {
		index[b] = i
	}

	doms := make([]*BasicBlock, len(order))
	doms[0] = order[0]

	changed := true
	for changed {
		changed = false
		for i := 1; i < len(order); i++ {
			b := order[i]
			var newIdom *BasicBlock
			for _, pred := range b.Predecessors {
				pi, ok := index[pred]
				if !ok || doms[pi] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = pred
					continue
				}
				newIdom = intersect(doms, index, newIdom, pred)
			}
			if newIdom != nil && doms[i] != newIdom {
				doms[i] = newIdom
				changed = true
			}
		}
	}

	for _, b := range g.Blocks {
		b.Dominator = nil
		b.ImmediateDominees = nil
	}
	for i, b := range order {
		if i == 0 {
			continue
		}
		idom := doms[i]
		b.Dominator = idom
		idom.ImmediateDominees = append(idom.ImmediateDominees, b)
	}
}

// intersect finds the nearest common ancestor of a and b in the
// dominator tree being built, walking the in-progress doms array (indexed
// by reverse-postorder position) rather than BasicBlock.Dominator, which
// is not populated until the fixpoint loop finishes.
func intersect(doms []*BasicBlock, index map[*BasicBlock]int, a, b *BasicBlock) *BasicBlock {
	ai, bi := index[a], index[b]
	for ai != bi {
		for ai > bi {
			a = doms[ai]
			if a == nil {
				return b
			}
			ai = index[a]
		}
		for bi > ai {
			b = doms[bi]
			if b == nil {
				return a
			}
			bi = index[b]
		}
	}
	return a
}

// reversePostorder walks the CFG from Entry and returns blocks in
// reverse-postorder, the traversal order the iterative dominator
// algorithm requires to converge quickly. Blocks unreachable from Entry
// are omitted and left for the caller to mark Unreachable.
func (g *Graph) reversePostorder() []*BasicBlock {
	visited := make(map[*BasicBlock]bool)
	var postorder []*BasicBlock

	var visit func(b *BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Successors {
			visit(s)
		}
		postorder = append(postorder, b)
	}
	visit(g.Entry)

	order := make([]*BasicBlock, len(postorder))
	for i, b := range postorder {
		order[len(postorder)-1-i] = b
	}
	return order
}

// ComputeDominanceFrontier returns, for every block with at least two
// predecessors contributing to it, the set of blocks at the frontier of
// its dominance — the standard input to SSA phi placement.
func (g *Graph) ComputeDominanceFrontier() map[*BasicBlock][]*BasicBlock {
	frontier := make(map[*BasicBlock][]*BasicBlock)
	for _, b := range g.Blocks {
		if len(b.Predecessors) < 2 {
			continue
		}
		for _, pred := range b.Predecessors {
			runner := pred
			for runner != nil && runner != b.Dominator {
				frontier[runner] = appendUnique(frontier[runner], b)
				runner = runner.Dominator
			}
		}
	}
	return frontier
}

func appendUnique(list []*BasicBlock, b *BasicBlock) []*BasicBlock {
	for _, existing := range list {
		if existing == b {
			return list
		}
	}
	return append(list, b)
}

// DetectBackEdges returns every edge (tail -> head) in the CFG where head
// dominates tail, the definition of a back edge used to find natural
// loops. Requires ComputeDominators to have run first.
func (g *Graph) DetectBackEdges() []Edge {
	var edges []Edge
	for _, b := range g.Blocks {
		for _, succ := range b.Successors {
			if succ.Dominates(b) {
				edges = append(edges, Edge{Tail: b, Head: succ})
			}
		}
	}
	return edges
}

// Edge is a directed control-flow edge between two blocks.
type Edge struct {
	Tail *BasicBlock
	Head *BasicBlock
}
