package optimize

import "sentrajit/internal/ir"

// ConstantFolding replaces a pure instruction whose operands are all
// constants with a single Constant node carrying the computed value.
type ConstantFolding struct{}

// NewConstantFolding constructs the pass.
func NewConstantFolding() *ConstantFolding { return &ConstantFolding{} }

// Name implements Pass.
func (*ConstantFolding) Name() string { return "constant-folding" }

// Run implements Pass.
func (c *ConstantFolding) Run(g *ir.Graph) bool {
	changed := false
	for _, n := range g.AllNodes() {
		if !n.IsPure() || n.IsConstant() {
			continue
		}
		if !allInputsAreConstant(n) {
			continue
		}
		value, ok := foldConstant(n)
		if !ok {
			continue
		}
		folded := g.CreateConstant(value, n.Type)
		g.ReplaceAllUsesWith(n, folded)
		if len(n.Users) == 0 {
			g.RemoveNode(n)
		}
		changed = true
	}
	return changed
}

func allInputsAreConstant(n *ir.Node) bool {
	if len(n.Inputs) == 0 {
		return false
	}
	for _, in := range n.Inputs {
		if !in.IsConstant() {
			return false
		}
	}
	return true
}

// foldConstant evaluates a binary op over constant operands. Only the
// arithmetic and comparison ops with well-defined int32/float64
// semantics are folded; anything else is left for the interpreter.
func foldConstant(n *ir.Node) (interface{}, bool) {
	if !n.Op.IsBinary() || len(n.Inputs) != 2 {
		return nil, false
	}
	lhs, lok := asFloat(n.Inputs[0].ConstValue)
	rhs, rok := asFloat(n.Inputs[1].ConstValue)
	if !lok || !rok {
		return nil, false
	}

	switch n.Op {
	case ir.OpAdd:
		return reboxLike(n.Inputs[0].ConstValue, lhs+rhs), true
	case ir.OpSub:
		return reboxLike(n.Inputs[0].ConstValue, lhs-rhs), true
	case ir.OpMul:
		return reboxLike(n.Inputs[0].ConstValue, lhs*rhs), true
	case ir.OpDiv:
		if rhs == 0 {
			return nil, false
		}
		return reboxLike(n.Inputs[0].ConstValue, lhs/rhs), true
	case ir.OpEqual, ir.OpStrictEqual:
		return lhs == rhs, true
	case ir.OpNotEqual, ir.OpStrictNotEqual:
		return lhs != rhs, true
	case ir.OpLessThan:
		return lhs < rhs, true
	case ir.OpLessEqual:
		return lhs <= rhs, true
	case ir.OpGreaterThan:
		return lhs > rhs, true
	case ir.OpGreaterEqual:
		return lhs >= rhs, true
	default:
		return nil, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// reboxLike returns result typed like sample: int32 stays int32, else
// float64, so folding an all-int32 expression doesn't silently widen it.
func reboxLike(sample interface{}, result float64) interface{} {
	if _, ok := sample.(int32); ok {
		return int32(result)
	}
	return result
}
