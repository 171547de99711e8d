package ir

// BasicBlock is a maximal single-entry, single-exit sequence of
// non-control-flow nodes plus one terminator.
type BasicBlock struct {
	ID    uint64
	Label string

	Instructions []*Node

	Predecessors []*BasicBlock
	Successors   []*BasicBlock

	Dominator         *BasicBlock
	ImmediateDominees []*BasicBlock

	LoopDepth  uint32
	LoopHeader bool

	Visited     bool
	Unreachable bool
}

// AddInstruction appends an instruction and sets its back-pointer to this
// block.
func (b *BasicBlock) AddInstruction(n *Node) {
	n.Block = b
	b.Instructions = append(b.Instructions, n)
}

// InsertBefore inserts newInstr immediately before position in the
// instruction list.
func (b *BasicBlock) InsertBefore(newInstr, position *Node) {
	for i, instr := range b.Instructions {
		if instr == position {
			b.Instructions = append(b.Instructions[:i:i], append([]*Node{newInstr}, b.Instructions[i:]...)...)
			newInstr.Block = b
			return
		}
	}
}

// InsertAfter inserts newInstr immediately after position.
func (b *BasicBlock) InsertAfter(newInstr, position *Node) {
	for i, instr := range b.Instructions {
		if instr == position {
			idx := i + 1
			b.Instructions = append(b.Instructions[:idx:idx], append([]*Node{newInstr}, b.Instructions[idx:]...)...)
			newInstr.Block = b
			return
		}
	}
}

// RemoveInstruction removes an instruction from the block's list. A no-op
// if the instruction is not present.
func (b *BasicBlock) RemoveInstruction(n *Node) {
	for i, instr := range b.Instructions {
		if instr == n {
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			return
		}
	}
}

// AddSuccessor records target as a successor of b and b as a predecessor
// of target (bidirectional, spec §3.4). Duplicate adds are a no-op.
func (b *BasicBlock) AddSuccessor(target *BasicBlock) {
	for _, s := range b.Successors {
		if s == target {
			return
		}
	}
	b.Successors = append(b.Successors, target)
	target.addPredecessor(b)
}

func (b *BasicBlock) addPredecessor(pred *BasicBlock) {
	for _, p := range b.Predecessors {
		if p == pred {
			return
		}
	}
	b.Predecessors = append(b.Predecessors, pred)
}

// RemoveSuccessor removes target from b's successors and b from target's
// predecessors. A no-op if not present.
func (b *BasicBlock) RemoveSuccessor(target *BasicBlock) {
	for i, s := range b.Successors {
		if s == target {
			b.Successors = append(b.Successors[:i], b.Successors[i+1:]...)
			break
		}
	}
	for i, p := range target.Predecessors {
		if p == b {
			target.Predecessors = append(target.Predecessors[:i], target.Predecessors[i+1:]...)
			break
		}
	}
}

// Terminator returns the block's control-flow instruction, if its last
// instruction is one (spec §3.4: "the last instruction, if control-flow,
// is the terminator").
func (b *BasicBlock) Terminator() *Node {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if last.Op.IsControlFlow() {
		return last
	}
	return nil
}

// Phis returns the block's phi nodes, which by construction sit at the
// front of the instruction list.
func (b *BasicBlock) Phis() []*Node {
	var phis []*Node
	for _, n := range b.Instructions {
		if n.IsPhi() {
			phis = append(phis, n)
		}
	}
	return phis
}

// Dominates reports whether b dominates other by walking other's
// dominator chain. Requires ComputeDominators to have run.
func (b *BasicBlock) Dominates(other *BasicBlock) bool {
	for cur := other; cur != nil; cur = cur.Dominator {
		if cur == b {
			return true
		}
	}
	return false
}
