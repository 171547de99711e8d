package optimize

import (
	"sentrajit/internal/ir"
	"sentrajit/internal/types"
)

// TypeHintSource narrows a variable slot's declared type for
// specialization, the interface TypeSpecialization consults instead of
// depending on package profiler directly (keeping optimize decoupled
// from how the hint was produced).
type TypeHintSource interface {
	VarTypeHint(functionID, varIndex uint32) (tag types.ValueType, confidence float64, ok bool)
}

// specializationConfidenceThreshold is how confident the profiler must
// be before the pass speculates: below this, the cost of a deopt storm
// from a wrong guess outweighs the win.
const specializationConfidenceThreshold = 0.9

// TypeSpecialization narrows a variable node's declared type using
// profiler hints and inserts a TypeGuard at the point of use, so the
// optimized path runs unboxed arithmetic and the guard protects it.
type TypeSpecialization struct {
	Hints TypeHintSource
}

// NewTypeSpecialization constructs the pass. Hints may be attached later
// via the exported field; with no source attached the pass is a no-op,
// matching the profiler's own "disabled means neutral" contract.
func NewTypeSpecialization() *TypeSpecialization { return &TypeSpecialization{} }

// Name implements Pass.
func (*TypeSpecialization) Name() string { return "type-specialization" }

// Run implements Pass.
func (t *TypeSpecialization) Run(g *ir.Graph) bool {
	if t.Hints == nil {
		return false
	}
	changed := false
	for _, n := range g.AllNodes() {
		if !n.IsVariable() && n.Op != ir.OpLoadLocal {
			continue
		}
		tag, confidence, ok := t.Hints.VarTypeHint(g.FunctionID, n.VarIndex)
		if !ok || confidence < specializationConfidenceThreshold {
			continue
		}
		if n.Type == tag {
			continue
		}
		insertGuardsForUses(g, n, tag)
		n.Type = tag
		changed = true
	}
	return changed
}

// insertGuardsForUses inserts one TypeGuard instruction per block that
// uses n, immediately before the first such use, so specialization never
// runs unboxed arithmetic on an un-reverified value.
func insertGuardsForUses(g *ir.Graph, n *ir.Node, tag types.ValueType) {
	guarded := make(map[*ir.BasicBlock]*ir.Node)
	for _, user := range append([]*ir.Node(nil), n.Users...) {
		block := user.Block
		if block == nil {
			continue
		}
		guard, ok := guarded[block]
		if !ok {
			guard = g.CreateNode(block, ir.OpTypeGuard, tag)
			g.AddInput(guard, n)
			block.RemoveInstruction(guard)
			block.InsertBefore(guard, firstUseIn(block, n))
			guarded[block] = guard
		}
		for i, in := range user.Inputs {
			if in == n {
				g.ReplaceInput(user, i, guard)
			}
		}
	}
}

func firstUseIn(block *ir.BasicBlock, n *ir.Node) *ir.Node {
	for _, instr := range block.Instructions {
		for _, in := range instr.Inputs {
			if in == n {
				return instr
			}
		}
	}
	if len(block.Instructions) > 0 {
		return block.Instructions[0]
	}
	return nil
}
