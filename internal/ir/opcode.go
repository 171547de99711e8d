package ir

// Op is the opcode of an IR node (spec component C3). The enumeration is
// partitioned into value-producing constants/variables/parameters/phi and
// instructions grouped by concern (arithmetic, bitwise, logical,
// comparison, memory, object, call, type, control-flow, loop, SIMD,
// metadata).
type Op uint16

const (
	OpInvalid Op = iota

	// Value-producing, non-instruction nodes.
	OpConstant
	OpVariable
	OpParameter
	OpPhi

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Bitwise.
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShiftLeft
	OpShiftRight
	OpShiftRightUnsigned

	// Logical.
	OpLogicalAnd
	OpLogicalOr
	OpLogicalNot

	// Comparison.
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessEqual
	OpGreaterThan
	OpGreaterEqual
	OpStrictEqual
	OpStrictNotEqual

	// Memory.
	OpLoad
	OpStore
	OpLoadProperty
	OpStoreProperty
	OpLoadElement
	OpStoreElement
	OpLoadGlobal
	OpStoreGlobal
	OpLoadLocal
	OpStoreLocal

	// Object.
	OpCreateObject
	OpCreateArray
	OpCreateFunction
	OpCreateClosure
	OpHasProperty
	OpDeleteProperty

	// Call.
	OpCall
	OpNew
	OpApply
	OpCallMethod

	// Type.
	OpTypeOf
	OpInstanceOf
	OpTypeGuard
	OpTypeConversion

	// Control flow.
	OpBranch
	OpJump
	OpReturn
	OpThrow
	OpDeoptimize

	// Loop.
	OpLoopBegin
	OpLoopEnd
	OpLoopExit

	// SIMD — reserved, no consumer lowers these (spec §9 open question).
	OpVectorLoad
	OpVectorStore
	OpVectorAdd
	OpVectorSub
	OpVectorMul
	OpVectorDiv

	// Metadata.
	OpFrameState
	OpMetadata
)

var opNames = map[Op]string{
	OpInvalid: "invalid", OpConstant: "Constant", OpVariable: "Variable",
	OpParameter: "Parameter", OpPhi: "Phi",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod", OpNeg: "Neg",
	OpBitAnd: "BitAnd", OpBitOr: "BitOr", OpBitXor: "BitXor", OpBitNot: "BitNot",
	OpShiftLeft: "ShiftLeft", OpShiftRight: "ShiftRight", OpShiftRightUnsigned: "ShiftRightUnsigned",
	OpLogicalAnd: "LogicalAnd", OpLogicalOr: "LogicalOr", OpLogicalNot: "LogicalNot",
	OpEqual: "Equal", OpNotEqual: "NotEqual", OpLessThan: "LessThan", OpLessEqual: "LessEqual",
	OpGreaterThan: "GreaterThan", OpGreaterEqual: "GreaterEqual",
	OpStrictEqual: "StrictEqual", OpStrictNotEqual: "StrictNotEqual",
	OpLoad: "Load", OpStore: "Store", OpLoadProperty: "LoadProperty", OpStoreProperty: "StoreProperty",
	OpLoadElement: "LoadElement", OpStoreElement: "StoreElement",
	OpLoadGlobal: "LoadGlobal", OpStoreGlobal: "StoreGlobal", OpLoadLocal: "LoadLocal", OpStoreLocal: "StoreLocal",
	OpCreateObject: "CreateObject", OpCreateArray: "CreateArray", OpCreateFunction: "CreateFunction",
	OpCreateClosure: "CreateClosure", OpHasProperty: "HasProperty", OpDeleteProperty: "DeleteProperty",
	OpCall: "Call", OpNew: "New", OpApply: "Apply", OpCallMethod: "CallMethod",
	OpTypeOf: "TypeOf", OpInstanceOf: "InstanceOf", OpTypeGuard: "TypeGuard", OpTypeConversion: "TypeConversion",
	OpBranch: "Branch", OpJump: "Jump", OpReturn: "Return", OpThrow: "Throw", OpDeoptimize: "Deoptimize",
	OpLoopBegin: "LoopBegin", OpLoopEnd: "LoopEnd", OpLoopExit: "LoopExit",
	OpVectorLoad: "VectorLoad", OpVectorStore: "VectorStore", OpVectorAdd: "VectorAdd",
	OpVectorSub: "VectorSub", OpVectorMul: "VectorMul", OpVectorDiv: "VectorDiv",
	OpFrameState: "FrameState", OpMetadata: "Metadata",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "Op(?)"
}

// sideEffectOps is exactly the set spec.md §3.4 names: hasSideEffects is
// true for these opcodes and no others.
var sideEffectOps = map[Op]bool{
	OpCall: true, OpNew: true, OpStoreProperty: true, OpStoreElement: true,
	OpStoreGlobal: true, OpStoreLocal: true, OpDeoptimize: true, OpReturn: true, OpThrow: true,
}

// HasSideEffects reports whether op is one of the side-effecting opcodes.
func (op Op) HasSideEffects() bool { return sideEffectOps[op] }

var controlFlowOps = map[Op]bool{
	OpBranch: true, OpJump: true, OpReturn: true, OpThrow: true, OpDeoptimize: true,
}

// IsControlFlow reports whether op terminates a basic block.
func (op Op) IsControlFlow() bool { return controlFlowOps[op] }

var binaryOps = map[Op]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true,
	OpBitAnd: true, OpBitOr: true, OpBitXor: true, OpShiftLeft: true, OpShiftRight: true, OpShiftRightUnsigned: true,
	OpLogicalAnd: true, OpLogicalOr: true,
	OpEqual: true, OpNotEqual: true, OpLessThan: true, OpLessEqual: true, OpGreaterThan: true, OpGreaterEqual: true,
	OpStrictEqual: true, OpStrictNotEqual: true,
}

// IsBinary reports whether op takes exactly two value operands.
func (op Op) IsBinary() bool { return binaryOps[op] }
