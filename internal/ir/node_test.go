package ir

import (
	"testing"

	"sentrajit/internal/types"
)

func TestAddInputDedupesRepeatedUser(t *testing.T) {
	g := NewGraph(1, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	add := g.CreateBinaryOp(g.Entry, OpAdd, a, a, types.Int32)

	if len(a.Users) != 1 {
		t.Fatalf("a is used twice by the same node but must appear once in Users, got %d", len(a.Users))
	}
	if a.Users[0] != add {
		t.Fatalf("expected add to be recorded as a's user")
	}
}

func TestRemoveUserIsNoOpOnceAbsent(t *testing.T) {
	g := NewGraph(1, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	b := g.CreateConstant(int32(2), types.Int32)
	add := g.CreateBinaryOp(g.Entry, OpAdd, a, b, types.Int32)

	a.removeUser(add)
	if len(a.Users) != 0 {
		t.Fatalf("expected a to have no users after removal, got %d", len(a.Users))
	}
	a.removeUser(add) // already gone; must not panic or corrupt state
	if len(a.Users) != 0 {
		t.Fatalf("removing an absent user must be a no-op, got %d users", len(a.Users))
	}
}
