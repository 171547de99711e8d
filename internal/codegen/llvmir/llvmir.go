// Package llvmir is an optional code emitter that lowers an optimized
// IR graph to LLVM textual IR using github.com/llir/llvm's builder
// package. It never invokes an LLVM toolchain: emission stops at the
// textual .ll module, which is handed back as the opaque CodeObject the
// orchestrator stores. This gives the pack's llir/llvm dependency a real
// graph-to-graph lowering home instead of a hand-rolled instruction
// encoder.
package llvmir

import (
	"fmt"

	llvmconstant "github.com/llir/llvm/ir/constant"
	llvmenum "github.com/llir/llvm/ir/enum"
	llvmtypes "github.com/llir/llvm/ir/types"
	llvm "github.com/llir/llvm/ir"
	llvmvalue "github.com/llir/llvm/ir/value"

	"sentrajit/internal/ir"
	"sentrajit/internal/types"
)

// CodeObject is the opaque artifact handed back to the orchestrator: the
// rendered textual module plus the function it lowered.
type CodeObject struct {
	Module       *llvm.Module
	FunctionName string
	Text         string
}

// Emitter implements orchestrator.CodeEmitter by lowering to LLVM IR.
type Emitter struct{}

// New constructs the LLVM-IR emitter.
func New() *Emitter { return &Emitter{} }

// Emit lowers g into a single-function LLVM module and renders it to
// text. Unsupported opcodes abort the lowering with an error rather than
// emitting a silently wrong module.
func (e *Emitter) Emit(g *ir.Graph) (interface{}, int, error) {
	l := newLowering(g)
	if err := l.lower(); err != nil {
		return nil, 0, err
	}
	text := l.module.String()
	return &CodeObject{Module: l.module, FunctionName: l.fn.Name(), Text: text}, len(text), nil
}

type lowering struct {
	graph  *ir.Graph
	module *llvm.Module
	fn     *llvm.Func

	blocks map[*ir.BasicBlock]*llvm.Block
	values map[*ir.Node]llvmvalue.Value
}

func newLowering(g *ir.Graph) *lowering {
	return &lowering{
		graph:  g,
		module: llvm.NewModule(),
		blocks: make(map[*ir.BasicBlock]*llvm.Block),
		values: make(map[*ir.Node]llvmvalue.Value),
	}
}

func (l *lowering) lower() error {
	params := make([]*llvm.Param, len(l.graph.Params))
	for i, p := range l.graph.Params {
		params[i] = llvm.NewParam(paramName(p, i), llvmType(p.Type))
	}
	l.fn = l.module.NewFunc(sanitizeName(l.graph.Name), llvmtypes.Double, params...)
	for i, p := range l.graph.Params {
		l.values[p] = params[i]
	}

	for _, b := range l.graph.Blocks {
		l.blocks[b] = l.fn.NewBlock(b.Label)
	}

	for _, b := range l.graph.Blocks {
		if err := l.lowerBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowering) lowerBlock(b *ir.BasicBlock) error {
	block := l.blocks[b]
	for _, n := range b.Instructions {
		if err := l.lowerInstruction(block, n); err != nil {
			return fmt.Errorf("llvmir: lowering %s: %w", n, err)
		}
	}
	if block.Term == nil {
		block.NewRet(llvmconstant.NewFloat(llvmtypes.Double, 0))
	}
	return nil
}

func (l *lowering) lowerInstruction(block *llvm.Block, n *ir.Node) error {
	switch {
	case n.IsConstant():
		l.values[n] = constantFor(n)
		return nil
	case n.Op.IsBinary():
		lhs, rhs := l.operand(n.Inputs[0]), l.operand(n.Inputs[1])
		v, err := lowerBinary(block, n.Op, lhs, rhs)
		if err != nil {
			return err
		}
		l.values[n] = v
		return nil
	case n.Op == ir.OpBranch:
		cond := l.operand(n.Inputs[0])
		block.NewCondBr(cond, l.blocks[n.TrueBlock], l.blocks[n.FalseBlock])
		return nil
	case n.Op == ir.OpJump:
		block.NewBr(l.blocks[n.Target])
		return nil
	case n.Op == ir.OpReturn:
		if len(n.Inputs) == 0 {
			block.NewRet(nil)
			return nil
		}
		block.NewRet(l.operand(n.Inputs[0]))
		return nil
	case n.IsPhi():
		return l.lowerPhi(block, n)
	default:
		return fmt.Errorf("opcode %s has no LLVM lowering", n.Op)
	}
}

func (l *lowering) lowerPhi(block *llvm.Block, n *ir.Node) error {
	phi := block.NewPhi()
	for i, pred := range n.PhiBlocks {
		incoming, ok := l.values[n.Inputs[i]]
		if !ok {
			return fmt.Errorf("phi incoming value not yet lowered")
		}
		phi.Incs = append(phi.Incs, llvm.NewIncoming(incoming, l.blocks[pred]))
	}
	l.values[n] = phi
	return nil
}

func (l *lowering) operand(n *ir.Node) llvmvalue.Value {
	if v, ok := l.values[n]; ok {
		return v
	}
	if n.IsConstant() {
		v := constantFor(n)
		l.values[n] = v
		return v
	}
	return llvmconstant.NewFloat(llvmtypes.Double, 0)
}

func lowerBinary(block *llvm.Block, op ir.Op, lhs, rhs llvmvalue.Value) (llvmvalue.Value, error) {
	switch op {
	case ir.OpAdd:
		return block.NewFAdd(lhs, rhs), nil
	case ir.OpSub:
		return block.NewFSub(lhs, rhs), nil
	case ir.OpMul:
		return block.NewFMul(lhs, rhs), nil
	case ir.OpDiv:
		return block.NewFDiv(lhs, rhs), nil
	case ir.OpEqual, ir.OpStrictEqual:
		return block.NewFCmp(llvmenum.FPredOEQ, lhs, rhs), nil
	case ir.OpNotEqual, ir.OpStrictNotEqual:
		return block.NewFCmp(llvmenum.FPredONE, lhs, rhs), nil
	case ir.OpLessThan:
		return block.NewFCmp(llvmenum.FPredOLT, lhs, rhs), nil
	case ir.OpLessEqual:
		return block.NewFCmp(llvmenum.FPredOLE, lhs, rhs), nil
	case ir.OpGreaterThan:
		return block.NewFCmp(llvmenum.FPredOGT, lhs, rhs), nil
	case ir.OpGreaterEqual:
		return block.NewFCmp(llvmenum.FPredOGE, lhs, rhs), nil
	default:
		return nil, fmt.Errorf("binary opcode %s has no LLVM lowering", op)
	}
}

func constantFor(n *ir.Node) llvmvalue.Value {
	switch v := n.ConstValue.(type) {
	case int32:
		return llvmconstant.NewFloat(llvmtypes.Double, float64(v))
	case int64:
		return llvmconstant.NewFloat(llvmtypes.Double, float64(v))
	case float64:
		return llvmconstant.NewFloat(llvmtypes.Double, v)
	case bool:
		if v {
			return llvmconstant.NewFloat(llvmtypes.Double, 1)
		}
		return llvmconstant.NewFloat(llvmtypes.Double, 0)
	default:
		return llvmconstant.NewFloat(llvmtypes.Double, 0)
	}
}

func llvmType(types.ValueType) *llvmtypes.FloatType {
	return llvmtypes.Double
}

func paramName(p *ir.Node, i int) string {
	if p.ParamName != "" {
		return p.ParamName
	}
	return fmt.Sprintf("arg%d", i)
}

func sanitizeName(name string) string {
	if name == "" {
		return "fn"
	}
	return name
}
