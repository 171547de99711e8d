package optimize

import "sentrajit/internal/ir"

// LICM hoists loop-invariant instructions to the loop's preheader, a
// block that runs once before the loop header instead of once per
// iteration: the single outside predecessor when it ends in a jump,
// otherwise a newly synthesized block.
type LICM struct{}

// NewLICM constructs the pass.
func NewLICM() *LICM { return &LICM{} }

// Name implements Pass.
func (*LICM) Name() string { return "loop-invariant-code-motion" }

// Run implements Pass.
func (l *LICM) Run(g *ir.Graph) bool {
	g.ComputeDominators()
	loops := g.DetectNaturalLoops()
	changed := false

	for _, loop := range loops {
		invariants := loop.FindLoopInvariants()
		if len(invariants) == 0 {
			continue
		}
		preheader := preheaderFor(g, loop)
		for _, n := range invariants {
			hoist(preheader, n)
			changed = true
		}
	}
	return changed
}

// preheaderFor finds or creates the single block through which every
// entry into loop.Header from outside the loop must pass.
func preheaderFor(g *ir.Graph, loop *ir.Loop) *ir.BasicBlock {
	var outside []*ir.BasicBlock
	for _, pred := range loop.Header.Predecessors {
		if !loop.Contains(pred) {
			outside = append(outside, pred)
		}
	}
	if len(outside) == 1 {
		if term := outside[0].Terminator(); term != nil && term.Op == ir.OpJump {
			return outside[0]
		}
	}

	preheader := g.CreateBasicBlock(loop.Header.Label + ".preheader")
	for _, pred := range outside {
		redirectTerminator(pred, loop.Header, preheader)
		pred.RemoveSuccessor(loop.Header)
		pred.AddSuccessor(preheader)
	}
	g.CreateJump(preheader, loop.Header)
	return preheader
}

// redirectTerminator rewrites a block's terminator so any edge pointing
// at from now points at to instead.
func redirectTerminator(b *ir.BasicBlock, from, to *ir.BasicBlock) {
	term := b.Terminator()
	if term == nil {
		return
	}
	if term.TrueBlock == from {
		term.TrueBlock = to
	}
	if term.FalseBlock == from {
		term.FalseBlock = to
	}
	if term.Target == from {
		term.Target = to
	}
}

// hoist moves n out of its current block and appends it to the
// preheader, just before the preheader's terminator.
func hoist(preheader *ir.BasicBlock, n *ir.Node) {
	if n.Block == preheader {
		return
	}
	if n.Block != nil {
		n.Block.RemoveInstruction(n)
	}
	term := preheader.Terminator()
	if term == nil {
		preheader.AddInstruction(n)
		return
	}
	preheader.InsertBefore(n, term)
}
