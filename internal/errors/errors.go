// Package errors defines the error kinds the JIT core distinguishes
// internally. None of these are ever surfaced to guest code as exceptions;
// they are control-flow outcomes consumed by the orchestrator and the
// trace recorder (see spec §7 of the design documents).
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds the core distinguishes.
type Kind string

const (
	RecordingAborted    Kind = "RecordingAborted"
	GuardFailure        Kind = "GuardFailure"
	CompilationFailure  Kind = "CompilationFailure"
	DeoptimizationStorm Kind = "DeoptimizationStorm"
	ProfileDisabled     Kind = "ProfileDisabled"
	VerifyFailure       Kind = "VerifyFailure"
)

// CoreError is the error type every fallible JIT-core operation returns.
// It carries enough context (function, bytecode address) for a
// compilation-failure diagnostic dump without forcing callers to parse a
// message string.
type CoreError struct {
	Kind            Kind
	Message         string
	FunctionID      uint32
	BytecodeAddress uint32
	cause           error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.FunctionID != 0 {
		return fmt.Sprintf("%s: %s (function=%d, addr=%d)", e.Kind, e.Message, e.FunctionID, e.BytecodeAddress)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/As keep working through
// github.com/pkg/errors' stack-trace wrapping.
func (e *CoreError) Unwrap() error { return e.cause }

// New creates a CoreError with a stack trace attached to the cause.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message, cause: errors.New(message)}
}

// Wrap attaches a kind and stack trace to an existing error.
func Wrap(kind Kind, err error, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message, cause: errors.Wrap(err, message)}
}

// WithFunction annotates the error with the function it occurred in.
func (e *CoreError) WithFunction(functionID uint32) *CoreError {
	e.FunctionID = functionID
	return e
}

// WithAddress annotates the error with the bytecode address it occurred at.
func (e *CoreError) WithAddress(addr uint32) *CoreError {
	e.BytecodeAddress = addr
	return e
}

// StackTrace renders the wrapped cause's stack trace, when present, for
// compilation-failure diagnostics.
func (e *CoreError) StackTrace() string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

// IsKind reports whether err is a *CoreError of the given kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == kind
}
