package ir

// LivenessInfo holds the live-in and live-out variable sets computed per
// block by PerformLivenessAnalysis.
type LivenessInfo struct {
	LiveIn  map[*BasicBlock]map[*Node]bool
	LiveOut map[*BasicBlock]map[*Node]bool
}

// IsLiveAt reports whether n is live at the start of b.
func (li *LivenessInfo) IsLiveAt(n *Node, b *BasicBlock) bool {
	return li.LiveIn[b][n]
}

// PerformLivenessAnalysis computes classic backward-flow liveness over
// the graph's variable and parameter values: a value is live into a
// block if used there before redefinition, or live out of any
// predecessor whose successor needs it.
func (g *Graph) PerformLivenessAnalysis() *LivenessInfo {
	li := &LivenessInfo{
		LiveIn:  make(map[*BasicBlock]map[*Node]bool),
		LiveOut: make(map[*BasicBlock]map[*Node]bool),
	}
	for _, b := range g.Blocks {
		li.LiveIn[b] = make(map[*Node]bool)
		li.LiveOut[b] = make(map[*Node]bool)
	}

	changed := true
	for changed {
		changed = false
		for _, b := range g.Blocks {
			out := make(map[*Node]bool)
			for _, succ := range b.Successors {
				for n := range li.LiveIn[succ] {
					out[n] = true
				}
			}

			in := make(map[*Node]bool)
			for n := range out {
				in[n] = true
			}
			defined := make(map[*Node]bool)
			for i := len(b.Instructions) - 1; i >= 0; i-- {
				instr := b.Instructions[i]
				defined[instr] = true
				delete(in, instr)
				for _, use := range instr.Inputs {
					if use.IsVariable() || use.IsParameter() {
						in[use] = true
					}
				}
			}

			if !sameNodeSet(li.LiveOut[b], out) {
				li.LiveOut[b] = out
				changed = true
			}
			if !sameNodeSet(li.LiveIn[b], in) {
				li.LiveIn[b] = in
				changed = true
			}
		}
	}
	return li
}

func sameNodeSet(a, b map[*Node]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if !b[n] {
			return false
		}
	}
	return true
}

// HasEscapingValues reports whether the graph contains any value that
// can outlive the current activation record: passed to a call as other
// than a known-non-capturing argument, stored into an object/array
// property, or returned. Only object, array and closure creations fed
// directly into one of those instructions are detected.
func (g *Graph) HasEscapingValues() bool {
	for _, n := range g.AllNodes() {
		switch n.Op {
		case OpReturn, OpStoreProperty, OpStoreElement, OpStoreGlobal, OpCall, OpNew, OpApply, OpCallMethod:
			for _, in := range n.Inputs {
				if in.Op == OpCreateObject || in.Op == OpCreateArray || in.Op == OpCreateClosure {
					return true
				}
			}
		}
	}
	return false
}
