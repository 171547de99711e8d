// Package trace implements the meta-tracing recorder (spec component
// C5): it captures a linear, guarded sequence of bytecode execution as
// one hot path runs, so the optimizer can compile that path directly
// instead of reconstructing it from static analysis.
package trace

import "sentrajit/internal/types"

// TraceOp is the opcode of one recorded trace instruction.
type TraceOp uint8

const (
	TraceStart TraceOp = iota
	ExecuteBytecode
	Guard
	GuardFailure
	SideExitOp
	OptimizationHint
	TraceEnd
)

func (op TraceOp) String() string {
	switch op {
	case TraceStart:
		return "TraceStart"
	case ExecuteBytecode:
		return "ExecuteBytecode"
	case Guard:
		return "Guard"
	case GuardFailure:
		return "GuardFailure"
	case SideExitOp:
		return "SideExit"
	case OptimizationHint:
		return "OptimizationHint"
	case TraceEnd:
		return "TraceEnd"
	default:
		return "TraceOp(?)"
	}
}

// AbortReason is why a trace in progress was discarded, or ExitNone for
// a trace that ran to natural completion.
type AbortReason uint8

const (
	ExitNone AbortReason = iota
	TraceTooLong
	TraceTooComplex
	UnrecordableOp
	Blacklisted
	Nested
	Divergent
	OutOfMemory
	Timeout
	SpeculationFailure
	TooManyGuardFailures
	TooManySideExits
	LoopIterationLimit
	CallStackLimitReached
)

func (r AbortReason) String() string {
	names := [...]string{
		"None", "TraceTooLong", "TraceTooComplex", "UnrecordableOp", "Blacklisted",
		"Nested", "Divergent", "OutOfMemory", "Timeout", "SpeculationFailure",
		"TooManyGuardFailures", "TooManySideExits", "LoopIterationLimit", "CallStackLimitReached",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "AbortReason(?)"
}

// GuardKind selects which predicate recordGuardCondition evaluates.
type GuardKind uint8

const (
	TypeCheck GuardKind = iota
	NonNull
	IntegerInRange
	StringLength
	ArrayLength
	ObjectShape
)

// GuardPayload is the sum type for the data a guard condition needs
// beyond its kind, keyed by GuardKind so each variant's fields are typed
// instead of packed into one overloaded "expected type" slot.
type GuardPayload struct {
	Kind GuardKind

	ExpectedType types.ValueType // TypeCheck

	Min, Max int64 // IntegerInRange

	ExpectedLength uint32 // StringLength, ArrayLength

	ExpectedShape types.ShapeID // ObjectShape
}

// StackSnapshot is an ordered copy of the interpreter stack plus frame
// bookkeeping, captured at trace start, every side exit, every guard
// failure, and every Nth instruction thereafter.
type StackSnapshot struct {
	Values       []interface{}
	StackPointer uint32
	FramePointer uint32
	BytecodeAddr uint32
}

// TraceInstruction is one entry in a trace's linear instruction log.
type TraceInstruction struct {
	Op           TraceOp
	BytecodeAddr uint32
	BytecodeOp   *byte // original bytecode opcode, nil when not applicable
	Operands     []interface{}
	TimestampNs  int64

	GuardPayload *GuardPayload
	ActualType   types.ValueType
	ActualValue  interface{}

	SideExitTag string

	HintName string
	HintData interface{}

	Snapshot *StackSnapshot
}

// SideExitRecord is the contract with the deoptimization machinery: when
// compiled code takes this exit, Snapshot is the state the interpreter
// resumes from.
type SideExitRecord struct {
	BytecodeAddr uint32
	Kind         string
	InstrIndex   int
	Snapshot     StackSnapshot

	FailedGuard  *GuardPayload
	ActualType   types.ValueType
	ActualValue  interface{}
}

// Trace is a completed or aborted recording.
type Trace struct {
	EntryPoint uint32
	ExitPoint  uint32

	StartTimestampNs int64
	ExecutedBytecode uint32

	ExitReason   AbortReason
	Instructions []TraceInstruction
	SideExits    []SideExitRecord

	InitialSnapshot StackSnapshot
}

// Len returns the number of recorded instructions.
func (t *Trace) Len() int { return len(t.Instructions) }
