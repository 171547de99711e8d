package types

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// ShapeID is an opaque identifier. Two objects share a shape iff they
// expose the same ordered list of own properties with identical
// (name, type, is-constant) triples and identical flags.
type ShapeID uint32

// Flags bundles the structural boolean facts a shape records alongside
// its property list.
type Flags uint16

const (
	FlagIsArray Flags = 1 << iota
	FlagIsFunction
	FlagIsFrozen
	FlagIsSealed
	FlagExtensible
	FlagHasIndexed
	FlagHasNamed
)

// Property is one own-property entry of a shape.
type Property struct {
	Name       string
	Type       ValueType
	IsConstant bool
}

// Shape is the structural fingerprint of an object.
type Shape struct {
	ID             ShapeID
	Properties     []Property
	Flags          Flags
	ParentShapeID  ShapeID // shape before the last property addition, 0 if none
	PrototypeShape ShapeID // 0 if none
}

// HasProperty reports whether the shape declares a property of that name.
func (s *Shape) HasProperty(name string) bool {
	for _, p := range s.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Property returns the property record for name, if present.
func (s *Shape) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// CompatibleWith reports whether every property of s appears in other with
// an identical type. Compatibility is reflexive and transitive but not
// symmetric: a shape with fewer properties can be compatible with a wider
// one, not vice versa.
func (s *Shape) CompatibleWith(other *Shape) bool {
	for _, p := range s.Properties {
		op, ok := other.Property(p.Name)
		if !ok || op.Type != p.Type {
			return false
		}
	}
	return true
}

// structuralHash computes a digest over the property list and flags so
// structurally identical shapes canonicalize to the same ID regardless of
// discovery order.
func structuralHash(properties []Property, flags Flags) [32]byte {
	h, _ := blake2b.New256(nil)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(flags))
	h.Write(buf[:])
	for _, p := range properties {
		h.Write([]byte(p.Name))
		h.Write([]byte{0})
		h.Write([]byte{byte(p.Type)})
		if p.IsConstant {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Table canonicalizes shapes by structural hash: structurally identical
// shapes intern to the same ShapeID, which makes shape-id equality a valid
// proxy for structural equality for the profiler's monomorphism checks.
type Table struct {
	mu     sync.RWMutex
	byHash map[[32]byte]ShapeID
	shapes map[ShapeID]*Shape
	nextID ShapeID
}

// NewTable creates an empty shape table. ID 0 is reserved as "no shape".
func NewTable() *Table {
	return &Table{
		byHash: make(map[[32]byte]ShapeID),
		shapes: make(map[ShapeID]*Shape),
		nextID: 1,
	}
}

// Intern returns the canonical ShapeID for the given structure, minting a
// fresh one on first sight.
func (t *Table) Intern(properties []Property, flags Flags, parent, proto ShapeID) ShapeID {
	key := structuralHash(properties, flags)

	t.mu.RLock()
	if id, ok := t.byHash[key]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byHash[key]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	propsCopy := make([]Property, len(properties))
	copy(propsCopy, properties)
	t.shapes[id] = &Shape{
		ID:             id,
		Properties:     propsCopy,
		Flags:          flags,
		ParentShapeID:  parent,
		PrototypeShape: proto,
	}
	t.byHash[key] = id
	return id
}

// Lookup returns the shape for id, if interned.
func (t *Table) Lookup(id ShapeID) (*Shape, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.shapes[id]
	return s, ok
}

// Count returns the number of distinct interned shapes.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.shapes)
}
