package optimize

import (
	"testing"

	"sentrajit/internal/ir"
	"sentrajit/internal/types"
)

func TestConstantFoldingReducesWholeSubtree(t *testing.T) {
	g := ir.NewGraph(1, "f")
	a := g.CreateConstant(int32(2), types.Int32)
	b := g.CreateConstant(int32(3), types.Int32)
	sum := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	c := g.CreateConstant(int32(4), types.Int32)
	product := g.CreateBinaryOp(g.Entry, ir.OpMul, sum, c, types.Int32)
	g.CreateReturn(g.Entry, product, types.Int32)

	pass := NewConstantFolding()
	for changed := true; changed; {
		changed = pass.Run(g)
	}

	ret := g.Entry.Terminator()
	if ret.Op != ir.OpReturn || len(ret.Inputs) == 0 {
		t.Fatalf("expected a return with a folded value")
	}
	folded := ret.Inputs[0]
	if !folded.IsConstant() {
		t.Fatalf("expected the whole (2+3)*4 subtree to fold to a constant, got %s", folded)
	}
	if folded.ConstValue.(int32) != 20 {
		t.Fatalf("expected folded value 20, got %v", folded.ConstValue)
	}
}

func TestCSEEliminatesIdenticalPureExpression(t *testing.T) {
	g := ir.NewGraph(1, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	b := g.CreateConstant(int32(2), types.Int32)
	first := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	second := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	g.CreateReturn(g.Entry, first, types.Int32)
	extra := g.CreateReturn(g.Entry, nil, types.Undefined)
	g.AddInput(extra, second)

	pass := NewCSE()
	if !pass.Run(g) {
		t.Fatalf("expected CSE to find the duplicate Add")
	}

	found := false
	for _, n := range g.AllNodes() {
		if n == second {
			found = true
		}
	}
	if found {
		t.Fatalf("the duplicate node must be removed once its only remaining use is rewired")
	}
}

func TestDCERemovesDeadChain(t *testing.T) {
	g := ir.NewGraph(1, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	b := g.CreateConstant(int32(2), types.Int32)
	dead := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	_ = g.CreateBinaryOp(g.Entry, ir.OpMul, dead, a, types.Int32) // also dead, uses dead
	g.CreateReturn(g.Entry, nil, types.Undefined)

	pass := NewDCE()
	if !pass.Run(g) {
		t.Fatalf("expected DCE to remove the dead chain")
	}
	if len(g.Entry.Instructions) != 1 {
		t.Fatalf("expected only the return instruction to remain, got %d instructions", len(g.Entry.Instructions))
	}
}

func TestLICMHoistsInvariantToPreheader(t *testing.T) {
	g := ir.NewGraph(1, "loop")
	header := g.CreateBasicBlock("header")
	body := g.CreateBasicBlock("body")
	exit := g.CreateBasicBlock("exit")
	g.CreateJump(g.Entry, header)

	x := g.CreateConstant(int32(10), types.Int32)
	y := g.CreateConstant(int32(20), types.Int32)

	phi := g.CreatePhi(header, types.Int32)
	zero := g.CreateConstant(int32(0), types.Int32)
	g.AddPhiIncoming(phi, zero, g.Entry)
	cond := g.CreateConstant(true, types.Boolean)
	g.CreateBranch(header, cond, body, exit)

	invariant := g.CreateBinaryOp(body, ir.OpAdd, x, y, types.Int32)
	next := g.CreateBinaryOp(body, ir.OpAdd, phi, invariant, types.Int32)
	g.CreateJump(body, header)
	g.AddPhiIncoming(phi, next, body)
	g.CreateReturn(exit, nil, types.Undefined)

	pass := NewLICM()
	if !pass.Run(g) {
		t.Fatalf("expected LICM to hoist the invariant add")
	}
	if invariant.Block == body {
		t.Fatalf("invariant add must no longer live in the loop body")
	}
	if invariant.Block == nil || invariant.Block == header {
		t.Fatalf("invariant add must live in the loop's preheader block, got %v", invariant.Block)
	}
}

func TestPipelineRespectsOptLevelGating(t *testing.T) {
	g := ir.NewGraph(1, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	b := g.CreateConstant(int32(2), types.Int32)
	sum := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	g.CreateReturn(g.Entry, sum, types.Int32)

	pipeline := NewPipeline()
	pipeline.Run(g, O0)

	ret := g.Entry.Terminator()
	if !ret.Inputs[0].IsConstant() {
		t.Fatalf("O0 enables constant folding per spec §4.4, expected the return value to be folded")
	}

	g2 := ir.NewGraph(1, "f")
	p0 := g2.CreateParameter(0, "x", types.Int32)
	p1 := g2.CreateParameter(1, "y", types.Int32)
	first2 := g2.CreateBinaryOp(g2.Entry, ir.OpAdd, p0, p1, types.Int32)
	second2 := g2.CreateBinaryOp(g2.Entry, ir.OpAdd, p0, p1, types.Int32)
	ret2 := g2.CreateReturn(g2.Entry, first2, types.Int32)
	g2.AddInput(ret2, second2)

	pipeline.Run(g2, O0)
	duplicatesAtO0 := countAddNodes(g2)

	g3 := ir.NewGraph(1, "f")
	q0 := g3.CreateParameter(0, "x", types.Int32)
	q1 := g3.CreateParameter(1, "y", types.Int32)
	fst3 := g3.CreateBinaryOp(g3.Entry, ir.OpAdd, q0, q1, types.Int32)
	snd3 := g3.CreateBinaryOp(g3.Entry, ir.OpAdd, q0, q1, types.Int32)
	ret3 := g3.CreateReturn(g3.Entry, fst3, types.Int32)
	g3.AddInput(ret3, snd3)

	pipeline.Run(g3, O1)
	duplicatesAtO1 := countAddNodes(g3)

	if duplicatesAtO0 != 2 {
		t.Fatalf("CSE requires O1; expected both Add nodes to survive at O0, got %d", duplicatesAtO0)
	}
	if duplicatesAtO1 != 1 {
		t.Fatalf("expected CSE at O1 to collapse the duplicate Add to 1, got %d", duplicatesAtO1)
	}
}

func countAddNodes(g *ir.Graph) int {
	n := 0
	for _, node := range g.AllNodes() {
		if node.Op == ir.OpAdd {
			n++
		}
	}
	return n
}
