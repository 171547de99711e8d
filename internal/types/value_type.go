// Package types enumerates the value-type tags the JIT core discriminates
// and defines object-shape identity (spec component C1). It knows nothing
// about the interpreter's actual value representation beyond the tags
// needed for speculative specialization.
package types

import "fmt"

// ValueType is one of the tags the type profiler and IR graph use to
// classify a runtime value.
type ValueType uint8

const (
	Undefined ValueType = iota
	Null
	Boolean
	Int32
	Float64
	String
	Symbol
	BigInt
	Object
	Array
	Function
)

var valueTypeNames = [...]string{
	Undefined: "undefined",
	Null:      "null",
	Boolean:   "boolean",
	Int32:     "int32",
	Float64:   "float64",
	String:    "string",
	Symbol:    "symbol",
	BigInt:    "bigint",
	Object:    "object",
	Array:     "array",
	Function:  "function",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// IsNumber reports whether t is one of the numeric tags.
func (t ValueType) IsNumber() bool { return t == Int32 || t == Float64 }

// IsPrimitive reports whether t is not Object/Array/Function.
func (t ValueType) IsPrimitive() bool {
	switch t {
	case Object, Array, Function:
		return false
	default:
		return true
	}
}
