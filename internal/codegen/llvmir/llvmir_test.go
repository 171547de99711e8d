package llvmir

import (
	"strings"
	"testing"

	"sentrajit/internal/ir"
	"sentrajit/internal/types"
)

func simpleGraph() *ir.Graph {
	g := ir.NewGraph(1, "addOne")
	n := g.CreateParameter(0, "n", types.Int32)
	one := g.CreateConstant(int32(1), types.Int32)
	sum := g.CreateBinaryOp(g.Entry, ir.OpAdd, n, one, types.Int32)
	g.CreateReturn(g.Entry, sum, types.Int32)
	return g
}

func TestEmitLowersArithmeticToLLVMFunction(t *testing.T) {
	e := New()
	code, size, err := e.Emit(simpleGraph())
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if size == 0 {
		t.Fatalf("expected non-zero rendered size")
	}

	obj, ok := code.(*CodeObject)
	if !ok {
		t.Fatalf("expected *CodeObject, got %T", code)
	}
	if obj.FunctionName != "addOne" {
		t.Fatalf("expected function name addOne, got %q", obj.FunctionName)
	}
	if !strings.Contains(obj.Text, "fadd") {
		t.Fatalf("expected rendered module to contain fadd, got:\n%s", obj.Text)
	}
	if !strings.Contains(obj.Text, "ret double") {
		t.Fatalf("expected rendered module to contain a double return, got:\n%s", obj.Text)
	}
}

func TestEmitRejectsUnsupportedOpcode(t *testing.T) {
	g := ir.NewGraph(2, "hasProp")
	obj := g.CreateConstant(int32(1), types.Int32)
	key := g.CreateConstant(int32(2), types.Int32)
	g.Entry.Instructions = append(g.Entry.Instructions, &ir.Node{
		Op:     ir.OpHasProperty,
		Type:   types.Boolean,
		Inputs: []*ir.Node{obj, key},
	})
	g.CreateReturn(g.Entry, obj, types.Int32)

	e := New()
	if _, _, err := e.Emit(g); err == nil {
		t.Fatalf("expected an error lowering an unsupported opcode")
	}
}

func TestEmitDefaultsMissingTerminatorToZeroReturn(t *testing.T) {
	g := ir.NewGraph(3, "empty")
	e := New()
	code, _, err := e.Emit(g)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	obj := code.(*CodeObject)
	if !strings.Contains(obj.Text, "ret double 0") {
		t.Fatalf("expected a default zero return, got:\n%s", obj.Text)
	}
}
