package ir

import (
	"fmt"

	"sentrajit/internal/types"
)

// Graph owns every node and block of one compiled function's IR (spec
// component C3). Mutation always goes through the Graph's factory and
// rewrite methods so Inputs/Users stay consistent.
type Graph struct {
	FunctionID uint32
	Name       string

	Entry  *BasicBlock
	Blocks []*BasicBlock

	Params    []*Node
	Variables []*Node

	nextNodeID  uint64
	nextBlockID uint64

	// AppliedOptimizations records the names of passes that have run over
	// this graph, for inspection.
	AppliedOptimizations []string
}

// NewGraph creates an empty graph with a single entry block.
func NewGraph(functionID uint32, name string) *Graph {
	g := &Graph{FunctionID: functionID, Name: name}
	g.Entry = g.CreateBasicBlock("entry")
	return g
}

// CreateBasicBlock allocates a new block owned by the graph.
func (g *Graph) CreateBasicBlock(label string) *BasicBlock {
	b := &BasicBlock{ID: g.nextBlockID, Label: label}
	g.nextBlockID++
	g.Blocks = append(g.Blocks, b)
	return b
}

func (g *Graph) newNode(op Op, typ types.ValueType) *Node {
	n := &Node{ID: g.nextNodeID, Op: op, Type: typ, graph: g}
	g.nextNodeID++
	return n
}

// CreateConstant creates a value-producing constant node, untethered to
// any block until the caller appends it via BasicBlock.AddInstruction or
// treats it as a graph-level value referenced from instructions.
func (g *Graph) CreateConstant(value interface{}, typ types.ValueType) *Node {
	n := g.newNode(OpConstant, typ)
	n.ConstValue = value
	return n
}

// CreateVariable creates a variable-slot value node.
func (g *Graph) CreateVariable(index uint32, name string, typ types.ValueType) *Node {
	n := g.newNode(OpVariable, typ)
	n.VarIndex = index
	n.VarName = name
	g.Variables = append(g.Variables, n)
	return n
}

// CreateParameter creates a parameter value node and appends it to the
// graph's ordered parameter list.
func (g *Graph) CreateParameter(index uint32, name string, typ types.ValueType) *Node {
	n := g.newNode(OpParameter, typ)
	n.ParamIndex = index
	n.ParamName = name
	g.Params = append(g.Params, n)
	return n
}

// CreatePhi creates a phi node in block with no incoming edges yet; wire
// them up with AddInput plus an entry in PhiBlocks per predecessor.
func (g *Graph) CreatePhi(block *BasicBlock, typ types.ValueType) *Node {
	n := g.newNode(OpPhi, typ)
	block.AddInstruction(n)
	return n
}

// AddPhiIncoming adds one incoming (value, predecessor) pair to a phi.
func (g *Graph) AddPhiIncoming(phi, value *Node, pred *BasicBlock) {
	g.AddInput(phi, value)
	phi.PhiBlocks = append(phi.PhiBlocks, pred)
}

// CreateBranch creates and appends a conditional branch terminator.
func (g *Graph) CreateBranch(block *BasicBlock, cond *Node, trueBlock, falseBlock *BasicBlock) *Node {
	n := g.newNode(OpBranch, types.ValueType(0))
	n.TrueBlock = trueBlock
	n.FalseBlock = falseBlock
	block.AddSuccessor(trueBlock)
	block.AddSuccessor(falseBlock)
	block.AddInstruction(n)
	g.AddInput(n, cond)
	return n
}

// CreateJump creates and appends an unconditional jump terminator.
func (g *Graph) CreateJump(block, target *BasicBlock) *Node {
	n := g.newNode(OpJump, types.ValueType(0))
	n.Target = target
	block.AddSuccessor(target)
	block.AddInstruction(n)
	return n
}

// CreateReturn creates and appends a return terminator. value may be nil
// for a bare return.
func (g *Graph) CreateReturn(block *BasicBlock, value *Node, typ types.ValueType) *Node {
	n := g.newNode(OpReturn, typ)
	block.AddInstruction(n)
	if value != nil {
		g.AddInput(n, value)
	}
	return n
}

// CreateBinaryOp creates and appends a two-operand arithmetic/bitwise/
// logical/comparison instruction.
func (g *Graph) CreateBinaryOp(block *BasicBlock, op Op, lhs, rhs *Node, typ types.ValueType) *Node {
	if !op.IsBinary() {
		panic(fmt.Sprintf("ir: CreateBinaryOp called with non-binary op %s", op))
	}
	n := g.newNode(op, typ)
	block.AddInstruction(n)
	g.AddInput(n, lhs)
	g.AddInput(n, rhs)
	return n
}

// CreateNode is the general escape hatch for opcodes without a dedicated
// factory (object/memory/call/type/metadata instructions): it allocates
// the node and appends it to block, leaving payload fields and inputs for
// the caller to populate via the exported fields and AddInput.
func (g *Graph) CreateNode(block *BasicBlock, op Op, typ types.ValueType) *Node {
	n := g.newNode(op, typ)
	block.AddInstruction(n)
	return n
}

// AddInput appends value to n's input list and records n as a user of
// value, maintaining the use-def/def-use duality.
func (g *Graph) AddInput(n, value *Node) {
	n.Inputs = append(n.Inputs, value)
	value.addUser(n)
}

// ReplaceInput replaces the input at index idx with newValue, fixing up
// both nodes' user lists.
func (g *Graph) ReplaceInput(n *Node, idx int, newValue *Node) {
	old := n.Inputs[idx]
	old.removeUser(n)
	n.Inputs[idx] = newValue
	newValue.addUser(n)
}

// ReplaceAllUsesWith rewires every user of old to consume replacement
// instead, then clears old's user list. Used by CSE and constant folding.
func (g *Graph) ReplaceAllUsesWith(old, replacement *Node) {
	if old == replacement {
		return
	}
	users := append([]*Node(nil), old.Users...)
	for _, user := range users {
		for i, in := range user.Inputs {
			if in == old {
				user.Inputs[i] = replacement
				replacement.addUser(user)
			}
		}
		old.removeUser(user)
	}
	old.Users = nil
}

// RemoveNode detaches n from its block and clears its inputs' user
// back-references. Panics if n still has users, since removing a
// value-producing node out from under its consumers would corrupt the
// graph — callers must ReplaceAllUsesWith or prove n is dead first.
func (g *Graph) RemoveNode(n *Node) {
	if len(n.Users) != 0 {
		panic(fmt.Sprintf("ir: RemoveNode(%s) called with %d remaining users", n, len(n.Users)))
	}
	for _, in := range n.Inputs {
		in.removeUser(n)
	}
	if n.Block != nil {
		n.Block.RemoveInstruction(n)
	}
}

// AllNodes returns every instruction and phi node reachable through the
// block list, in block then instruction order. Bare constants/variables/
// parameters not wired into any block are not included.
func (g *Graph) AllNodes() []*Node {
	var nodes []*Node
	for _, b := range g.Blocks {
		nodes = append(nodes, b.Instructions...)
	}
	return nodes
}

// Verify checks the structural invariants spec §3.4 requires of a
// well-formed graph: every input/user edge is reciprocal, every
// instruction belongs to exactly the block that lists it, and every
// non-entry block is reachable from Entry.
func (g *Graph) Verify() error {
	for _, b := range g.Blocks {
		for _, n := range b.Instructions {
			if n.Block != b {
				return fmt.Errorf("ir: %s is listed in block %q but its Block pointer differs", n, b.Label)
			}
		}
	}
	for _, n := range g.AllNodes() {
		for _, in := range n.Inputs {
			if !containsNode(in.Users, n) {
				return fmt.Errorf("ir: %s is an input of %s but not in its users list", in, n)
			}
		}
		for _, u := range n.Users {
			if !containsNode(u.Inputs, n) {
				return fmt.Errorf("ir: %s is a user of %s but does not reference it in Inputs", u, n)
			}
		}
	}

	reachable := map[*BasicBlock]bool{g.Entry: true}
	queue := []*BasicBlock{g.Entry}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, succ := range b.Successors {
			if !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	for _, b := range g.Blocks {
		if !reachable[b] && !b.Unreachable {
			return fmt.Errorf("ir: block %q is unreachable from entry but not marked Unreachable", b.Label)
		}
	}
	return nil
}

func containsNode(list []*Node, target *Node) bool {
	for _, n := range list {
		if n == target {
			return true
		}
	}
	return false
}

// Clone produces a structurally independent copy of the graph: new Node
// and BasicBlock values with edges remapped to the copies. Used by the
// orchestrator to speculatively optimize a function without disturbing a
// version still executing on another goroutine.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		FunctionID:           g.FunctionID,
		Name:                 g.Name,
		AppliedOptimizations: append([]string(nil), g.AppliedOptimizations...),
	}

	blockCopy := make(map[*BasicBlock]*BasicBlock, len(g.Blocks))
	for _, b := range g.Blocks {
		nb := &BasicBlock{
			ID: out.nextBlockID, Label: b.Label, LoopDepth: b.LoopDepth,
			LoopHeader: b.LoopHeader, Unreachable: b.Unreachable,
		}
		out.nextBlockID++
		blockCopy[b] = nb
		out.Blocks = append(out.Blocks, nb)
	}
	out.Entry = blockCopy[g.Entry]
	for _, b := range g.Blocks {
		nb := blockCopy[b]
		for _, s := range b.Successors {
			nb.Successors = append(nb.Successors, blockCopy[s])
		}
		for _, p := range b.Predecessors {
			nb.Predecessors = append(nb.Predecessors, blockCopy[p])
		}
		if b.Dominator != nil {
			nb.Dominator = blockCopy[b.Dominator]
		}
		for _, d := range b.ImmediateDominees {
			nb.ImmediateDominees = append(nb.ImmediateDominees, blockCopy[d])
		}
	}

	nodeCopy := make(map[*Node]*Node)
	var cloneNode func(n *Node) *Node
	cloneNode = func(n *Node) *Node {
		if cn, ok := nodeCopy[n]; ok {
			return cn
		}
		cn := &Node{
			ID: out.nextNodeID, Op: n.Op, Type: n.Type, graph: out,
			ConstValue: n.ConstValue, VarIndex: n.VarIndex, VarName: n.VarName,
			ParamIndex: n.ParamIndex, ParamName: n.ParamName,
			ShapeID: n.ShapeID, PropertyKey: n.PropertyKey,
		}
		out.nextNodeID++
		nodeCopy[n] = cn
		if n.Block != nil {
			cn.Block = blockCopy[n.Block]
		}
		if n.TrueBlock != nil {
			cn.TrueBlock = blockCopy[n.TrueBlock]
		}
		if n.FalseBlock != nil {
			cn.FalseBlock = blockCopy[n.FalseBlock]
		}
		if n.Target != nil {
			cn.Target = blockCopy[n.Target]
		}
		for _, pb := range n.PhiBlocks {
			cn.PhiBlocks = append(cn.PhiBlocks, blockCopy[pb])
		}
		return cn
	}

	for _, b := range g.Blocks {
		nb := blockCopy[b]
		for _, instr := range b.Instructions {
			nb.Instructions = append(nb.Instructions, cloneNode(instr))
		}
	}
	for _, n := range g.AllNodes() {
		cn := cloneNode(n)
		for _, in := range n.Inputs {
			cin := cloneNode(in)
			cn.Inputs = append(cn.Inputs, cin)
			cin.addUser(cn)
		}
	}
	for _, p := range g.Params {
		out.Params = append(out.Params, cloneNode(p))
	}
	for _, v := range g.Variables {
		out.Variables = append(out.Variables, cloneNode(v))
	}
	return out
}
