// Package interp is the default code emitter: it does not lower the
// optimized graph to machine code at all, it wraps the graph itself in a
// closure a tiny tree-walking evaluator can run. This keeps the
// orchestrator's "native-code pointer is opaque to the core" contract
// testable end to end without a real backend.
package interp

import (
	"fmt"

	"sentrajit/internal/ir"
)

// CodeObject is the opaque artifact this emitter hands back to the
// orchestrator: a reference to the optimized graph plus a cached
// evaluator closure.
type CodeObject struct {
	Graph *ir.Graph
	Run   func(args []interface{}) (interface{}, error)
}

// Emitter implements orchestrator.CodeEmitter.
type Emitter struct{}

// New constructs the interpreter emitter.
func New() *Emitter { return &Emitter{} }

// Emit wraps g in a CodeObject whose Run closure walks the graph with a
// fresh Evaluator per call, and reports the node count as the code size
// (there is no machine code to measure).
func (e *Emitter) Emit(g *ir.Graph) (interface{}, int, error) {
	obj := &CodeObject{Graph: g}
	obj.Run = func(args []interface{}) (interface{}, error) {
		ev := NewEvaluator(g)
		return ev.Run(args)
	}
	return obj, len(g.AllNodes()), nil
}

// Evaluator tree-walks one call of an optimized graph. It is not reused
// across calls: each invocation gets fresh node values, matching the
// interpreter's own per-call-frame discipline.
type Evaluator struct {
	graph  *ir.Graph
	values map[*ir.Node]interface{}
}

// NewEvaluator creates an evaluator bound to graph.
func NewEvaluator(graph *ir.Graph) *Evaluator {
	return &Evaluator{graph: graph, values: make(map[*ir.Node]interface{})}
}

// Run executes the graph from its entry block with args bound to the
// graph's parameters in order, returning the value of the first Return
// instruction reached.
func (ev *Evaluator) Run(args []interface{}) (interface{}, error) {
	for i, p := range ev.graph.Params {
		if i < len(args) {
			ev.values[p] = args[i]
		}
	}

	block := ev.graph.Entry
	var prevBlock *ir.BasicBlock
	for block != nil {
		transferred := false
		for _, n := range block.Instructions {
			if n.IsPhi() {
				ev.values[n] = ev.phiValue(n, prevBlock)
				continue
			}
			result, next, returning, err := ev.step(n, block)
			if err != nil {
				return nil, err
			}
			ev.values[n] = result
			if returning {
				return result, nil
			}
			if next != nil {
				prevBlock = block
				block = next
				transferred = true
				break
			}
		}
		if !transferred {
			break
		}
	}
	return nil, fmt.Errorf("interp: graph %q fell off the end without a return", ev.graph.Name)
}

func (ev *Evaluator) phiValue(phi *ir.Node, incoming *ir.BasicBlock) interface{} {
	for i, pb := range phi.PhiBlocks {
		if pb == incoming {
			return ev.val(phi.Inputs[i])
		}
	}
	if len(phi.Inputs) > 0 {
		return ev.val(phi.Inputs[0])
	}
	return nil
}

func (ev *Evaluator) val(n *ir.Node) interface{} {
	if n.IsConstant() {
		return n.ConstValue
	}
	return ev.values[n]
}

// step evaluates one instruction, returning its value (if any), the
// successor block to continue from for a control-flow instruction
// (nil for straight-line instructions, which just fall through to the
// block's next instruction), and whether execution is returning.
func (ev *Evaluator) step(n *ir.Node, block *ir.BasicBlock) (value interface{}, next *ir.BasicBlock, returning bool, err error) {
	switch n.Op {
	case ir.OpBranch:
		cond, ok := ev.val(n.Inputs[0]).(bool)
		if !ok {
			return nil, nil, false, fmt.Errorf("interp: branch condition at node %d is not boolean", n.ID)
		}
		if cond {
			return nil, n.TrueBlock, false, nil
		}
		return nil, n.FalseBlock, false, nil
	case ir.OpJump:
		return nil, n.Target, false, nil
	case ir.OpReturn:
		if len(n.Inputs) == 0 {
			return nil, nil, true, nil
		}
		return ev.val(n.Inputs[0]), nil, true, nil
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEqual, ir.OpNotEqual, ir.OpLessThan, ir.OpLessEqual,
		ir.OpGreaterThan, ir.OpGreaterEqual, ir.OpStrictEqual, ir.OpStrictNotEqual:
		v, err := evalBinary(n.Op, ev.val(n.Inputs[0]), ev.val(n.Inputs[1]))
		return v, nil, false, err
	case ir.OpTypeGuard:
		return ev.val(n.Inputs[0]), nil, false, nil
	default:
		return nil, nil, false, fmt.Errorf("interp: node %s has no interpreter-evaluable semantics", n)
	}
}

func evalBinary(op ir.Op, lhs, rhs interface{}) (interface{}, error) {
	l, lok := asFloat(lhs)
	r, rok := asFloat(rhs)
	if !lok || !rok {
		return nil, fmt.Errorf("interp: non-numeric operand to %s", op)
	}
	switch op {
	case ir.OpAdd:
		return rebox(lhs, l+r), nil
	case ir.OpSub:
		return rebox(lhs, l-r), nil
	case ir.OpMul:
		return rebox(lhs, l*r), nil
	case ir.OpDiv:
		if r == 0 {
			return nil, fmt.Errorf("interp: division by zero")
		}
		return rebox(lhs, l/r), nil
	case ir.OpEqual, ir.OpStrictEqual:
		return l == r, nil
	case ir.OpNotEqual, ir.OpStrictNotEqual:
		return l != r, nil
	case ir.OpLessThan:
		return l < r, nil
	case ir.OpLessEqual:
		return l <= r, nil
	case ir.OpGreaterThan:
		return l > r, nil
	case ir.OpGreaterEqual:
		return l >= r, nil
	default:
		return nil, fmt.Errorf("interp: unsupported binary op %s", op)
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

func rebox(sample interface{}, result float64) interface{} {
	if _, ok := sample.(int32); ok {
		return int32(result)
	}
	return result
}
