package trace

import (
	"sentrajit/internal/errors"
	"sentrajit/internal/types"
)

// RecordingState is the recorder's lifecycle state: Idle -> Recording ->
// {Completed, Aborted}.
type RecordingState uint8

const (
	Idle RecordingState = iota
	Recording
	Completed
	Aborted
)

func (s RecordingState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return "RecordingState(?)"
	}
}

// Limits bounds how large a single recording is allowed to grow before
// it is force-aborted; the zero value is never used directly, callers
// get DefaultLimits().
type Limits struct {
	MaxTraceLength     int
	MaxGuardFailures   int
	MaxSideExits       int
	MaxLoopIterations  int
	MaxInlineCallDepth int
	MaxNestedDepth     int
	SnapshotEveryNth   int
}

// DefaultLimits matches the bounds the interpreter's hot-loop detector
// is tuned against.
func DefaultLimits() Limits {
	return Limits{
		MaxTraceLength:     10000,
		MaxGuardFailures:   10,
		MaxSideExits:       20,
		MaxLoopIterations:  100,
		MaxInlineCallDepth: 3,
		MaxNestedDepth:     5,
		SnapshotEveryNth:   10,
	}
}

// Clock returns the current time in nanoseconds. Recorder holds one in
// an unexported field, which NewRecorderWithLimits sets to a strictly
// increasing counter instead of wall-clock time; the package exports no
// way to replace it.
type Clock func() int64

// Recorder captures one trace at a time. It is not safe for concurrent
// use by more than one recording thread: the interpreter's single
// tracing thread owns it, matching the single-writer discipline the
// rest of the core relies on.
type Recorder struct {
	limits Limits
	now    Clock

	state       RecordingState
	nestedDepth int

	trace           *Trace
	lastBytecodeOff map[uint32]uint32 // functionID -> last seen offset, for backward-jump loop detection
	loopIterations  int
	instrSinceSnap  int
	tick            int64
}

// NewRecorder creates an idle recorder using the default limits and a
// monotonically increasing synthetic clock.
func NewRecorder() *Recorder {
	return NewRecorderWithLimits(DefaultLimits())
}

// NewRecorderWithLimits creates an idle recorder with custom bounds.
func NewRecorderWithLimits(limits Limits) *Recorder {
	r := &Recorder{limits: limits, lastBytecodeOff: make(map[uint32]uint32)}
	r.now = r.tickClock
	return r
}

// tickClock is the default Clock: a strictly increasing counter rather
// than wall-clock time, so recorded timestamps are deterministic and
// ordering-only.
func (r *Recorder) tickClock() int64 {
	r.tick++
	return r.tick
}

// State reports the recorder's current lifecycle state.
func (r *Recorder) State() RecordingState { return r.state }

// StartRecording begins a new trace at entry, or — if already Recording
// — increments the nesting depth, aborting with Nested if the depth
// bound is exceeded.
func (r *Recorder) StartRecording(entry uint32, snapshot StackSnapshot) error {
	if r.state == Recording {
		r.nestedDepth++
		if r.nestedDepth > r.limits.MaxNestedDepth {
			return r.forceAbort(Nested)
		}
		return nil
	}

	r.state = Recording
	r.nestedDepth = 0
	r.loopIterations = 0
	r.instrSinceSnap = 0
	r.lastBytecodeOff = make(map[uint32]uint32)
	r.trace = &Trace{
		EntryPoint:       entry,
		StartTimestampNs: r.now(),
		InitialSnapshot:  snapshot,
	}
	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: TraceStart, BytecodeAddr: entry, TimestampNs: r.now(), Snapshot: &snapshot,
	})
	return nil
}

// RecordBytecodeExecution appends one ExecuteBytecode instruction,
// attaching a stack snapshot every SnapshotEveryNth instructions and
// detecting backward jumps within the same function as loop iterations.
func (r *Recorder) RecordBytecodeExecution(functionID, address uint32, op byte, operands []interface{}, snapshot StackSnapshot) error {
	if r.state != Recording {
		return errors.New(errors.RecordingAborted, "recordBytecodeExecution called while not recording")
	}
	if r.trace.ExecutedBytecode >= r.limits.MaxTraceLength {
		return r.forceAbort(TraceTooLong)
	}

	if last, ok := r.lastBytecodeOff[functionID]; ok && address < last {
		r.loopIterations++
		if r.loopIterations > r.limits.MaxLoopIterations {
			return r.forceAbort(LoopIterationLimit)
		}
	}
	r.lastBytecodeOff[functionID] = address

	instr := TraceInstruction{
		Op: ExecuteBytecode, BytecodeAddr: address, BytecodeOp: &op,
		Operands: operands, TimestampNs: r.now(),
	}
	r.instrSinceSnap++
	if r.instrSinceSnap >= r.limits.SnapshotEveryNth {
		instr.Snapshot = &snapshot
		r.instrSinceSnap = 0
	}
	r.trace.Instructions = append(r.trace.Instructions, instr)
	r.trace.ExecutedBytecode++
	return nil
}

// RecordGuardCondition appends a Guard instruction and evaluates it
// synchronously against actualType/actualValue. On failure it also
// appends a GuardFailure instruction with a snapshot and registers a
// side-exit record, aborting if the failure or side-exit budget is
// exhausted. It returns whether the guard held.
func (r *Recorder) RecordGuardCondition(address uint32, payload GuardPayload, actualType types.ValueType, actualValue interface{}, snapshot StackSnapshot) (bool, error) {
	if r.state != Recording {
		return false, errors.New(errors.RecordingAborted, "recordGuardCondition called while not recording")
	}

	held := EvaluateGuard(payload, actualType, actualValue)

	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: Guard, BytecodeAddr: address, GuardPayload: &payload,
		ActualType: actualType, ActualValue: actualValue, TimestampNs: r.now(),
	})

	if held {
		return true, nil
	}

	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: GuardFailure, BytecodeAddr: address, GuardPayload: &payload,
		ActualType: actualType, ActualValue: actualValue, TimestampNs: r.now(), Snapshot: &snapshot,
	})
	r.trace.SideExits = append(r.trace.SideExits, SideExitRecord{
		BytecodeAddr: address, Kind: "guard-failure", InstrIndex: len(r.trace.Instructions) - 1,
		Snapshot: snapshot, FailedGuard: &payload, ActualType: actualType, ActualValue: actualValue,
	})

	if r.countOp(GuardFailure) > r.limits.MaxGuardFailures {
		return false, r.forceAbort(TooManyGuardFailures)
	}
	if len(r.trace.SideExits) > r.limits.MaxSideExits {
		return false, r.forceAbort(TooManySideExits)
	}
	return false, nil
}

// RecordSideExit appends a SideExit instruction and registers a side-exit
// record, aborting if the side-exit budget is exhausted.
func (r *Recorder) RecordSideExit(address uint32, kind string, snapshot StackSnapshot) error {
	if r.state != Recording {
		return errors.New(errors.RecordingAborted, "recordSideExit called while not recording")
	}
	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: SideExitOp, BytecodeAddr: address, SideExitTag: kind, TimestampNs: r.now(), Snapshot: &snapshot,
	})
	r.trace.SideExits = append(r.trace.SideExits, SideExitRecord{
		BytecodeAddr: address, Kind: kind, InstrIndex: len(r.trace.Instructions) - 1, Snapshot: snapshot,
	})
	if len(r.trace.SideExits) > r.limits.MaxSideExits {
		return r.forceAbort(TooManySideExits)
	}
	return nil
}

// RecordOptimizationHint appends a metadata-only, advisory instruction.
func (r *Recorder) RecordOptimizationHint(address uint32, hint string, data interface{}) error {
	if r.state != Recording {
		return errors.New(errors.RecordingAborted, "recordOptimizationHint called while not recording")
	}
	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: OptimizationHint, BytecodeAddr: address, HintName: hint, HintData: data, TimestampNs: r.now(),
	})
	return nil
}

// AbortRecording discards the in-progress trace, or — if nested —
// decrements the nesting depth instead of discarding. This is the
// caller-driven op: a deliberate "give up on the innermost nested
// attempt" signal, distinct from the limit-triggered forceAbort below.
func (r *Recorder) AbortRecording(reason AbortReason) error {
	if r.nestedDepth > 0 {
		r.nestedDepth--
		return nil
	}
	return r.forceAbort(reason)
}

// forceAbort unconditionally discards the entire in-progress trace,
// regardless of nesting depth. Every bound in §4.3 (length, guard
// failures, side exits, loop iterations, nesting depth) applies to the
// recording as a whole, so exceeding one aborts everything rather than
// just popping one nested level.
func (r *Recorder) forceAbort(reason AbortReason) error {
	r.state = Aborted
	r.nestedDepth = 0
	if r.trace != nil {
		r.trace.ExitReason = reason
	}
	return errors.New(errors.RecordingAborted, "trace recording aborted: "+reason.String())
}

// FinishRecording appends TraceEnd, stamps the trace complete, and
// returns the owned trace, resetting the recorder to Idle.
func (r *Recorder) FinishRecording(exitPoint uint32) (*Trace, error) {
	if r.state != Recording {
		return nil, errors.New(errors.RecordingAborted, "finishRecording called while not recording")
	}
	r.trace.ExitPoint = exitPoint
	r.trace.ExitReason = ExitNone
	r.trace.Instructions = append(r.trace.Instructions, TraceInstruction{
		Op: TraceEnd, BytecodeAddr: exitPoint, TimestampNs: r.now(),
	})
	r.state = Completed
	finished := r.trace
	r.trace = nil
	return finished, nil
}

func (r *Recorder) countOp(op TraceOp) int {
	n := 0
	for _, instr := range r.trace.Instructions {
		if instr.Op == op {
			n++
		}
	}
	return n
}

// EvaluateGuard is the pure guard-condition predicate spec §4.3
// describes: it never mutates recorder state, which lets the optimizer
// re-check a guard speculatively without a live Recorder.
func EvaluateGuard(payload GuardPayload, actualType types.ValueType, actualValue interface{}) bool {
	switch payload.Kind {
	case TypeCheck:
		return actualType == payload.ExpectedType
	case NonNull:
		return actualType != types.Null && actualType != types.Undefined
	case IntegerInRange:
		if actualType != types.Int32 {
			return false
		}
		v, ok := asInt64(actualValue)
		return ok && v >= payload.Min && v <= payload.Max
	case StringLength:
		if actualType != types.String {
			return false
		}
		s, ok := actualValue.(string)
		return ok && uint32(len(s)) == payload.ExpectedLength
	case ArrayLength:
		if actualType != types.Array {
			return false
		}
		return lengthOf(actualValue) == payload.ExpectedLength
	case ObjectShape:
		if actualType != types.Object {
			return false
		}
		sid, ok := actualValue.(types.ShapeID)
		return ok && sid == payload.ExpectedShape
	default:
		return false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func lengthOf(v interface{}) uint32 {
	switch s := v.(type) {
	case []interface{}:
		return uint32(len(s))
	default:
		return 0
	}
}
