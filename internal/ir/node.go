package ir

import (
	"fmt"

	"sentrajit/internal/types"
)

// Node is the sea-of-nodes unit of the IR graph: a single concrete type
// shared by every opcode family, distinguished by Op and the payload
// fields relevant to it. This mirrors the shape of a typed SSA value
// (one node kind, opcode-dependent payload) rather than a class hierarchy
// per opcode — idiomatic for a Go compiler IR.
type Node struct {
	ID    uint64
	Op    Op
	Type  types.ValueType
	graph *Graph

	Inputs []*Node
	Users  []*Node // dual of Inputs, maintained at every mutation site

	// Payload, populated depending on Op.
	ConstValue  interface{}
	VarIndex    uint32
	VarName     string
	ParamIndex  uint32
	ParamName   string
	ShapeID     types.ShapeID
	PropertyKey string

	Block *BasicBlock // owning block, set for instruction nodes

	// Phi-specific: incoming block for Inputs[i].
	PhiBlocks []*BasicBlock

	// Branch/Jump targets.
	TrueBlock  *BasicBlock
	FalseBlock *BasicBlock
	Target     *BasicBlock
}

// IsConstant reports whether the node is a Constant value node.
func (n *Node) IsConstant() bool { return n.Op == OpConstant }

// IsVariable reports whether the node is a Variable value node.
func (n *Node) IsVariable() bool { return n.Op == OpVariable }

// IsParameter reports whether the node is a Parameter value node.
func (n *Node) IsParameter() bool { return n.Op == OpParameter }

// IsPhi reports whether the node is a Phi merge node.
func (n *Node) IsPhi() bool { return n.Op == OpPhi }

// IsInstruction reports whether the node is an instruction (i.e. not a
// bare constant/variable/parameter/phi value node).
func (n *Node) IsInstruction() bool {
	switch n.Op {
	case OpConstant, OpVariable, OpParameter, OpPhi:
		return false
	default:
		return true
	}
}

// IsPure reports whether the node has no side effect and is not control
// flow (spec §3.4: "A node is pure iff it has no side effect and is not
// control flow").
func (n *Node) IsPure() bool {
	return !n.Op.HasSideEffects() && !n.Op.IsControlFlow()
}

// String renders a short debug form, used in error messages and debug
// output.
func (n *Node) String() string {
	switch n.Op {
	case OpConstant:
		return fmt.Sprintf("%%%d = Constant<%v>", n.ID, n.ConstValue)
	case OpVariable:
		return fmt.Sprintf("%%%d = Variable[%d:%s]", n.ID, n.VarIndex, n.VarName)
	case OpParameter:
		return fmt.Sprintf("%%%d = Parameter[%d:%s]", n.ID, n.ParamIndex, n.ParamName)
	default:
		ids := make([]interface{}, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			ids = append(ids, in.ID)
		}
		return fmt.Sprintf("%%%d = %s%v", n.ID, n.Op, ids)
	}
}

// addUser records that user consumes n as an operand, avoiding duplicates:
// if user already appears as an input of n more than once (e.g. Add(a, a)),
// n.Users still records user only once.
func (n *Node) addUser(user *Node) {
	for _, u := range n.Users {
		if u == user {
			return
		}
	}
	n.Users = append(n.Users, user)
}

// removeUser drops user from n's user list. A no-op if user is not
// present, e.g. because an earlier call already removed it.
func (n *Node) removeUser(user *Node) {
	for i, u := range n.Users {
		if u == user {
			n.Users = append(n.Users[:i], n.Users[i+1:]...)
			return
		}
	}
}
