package optimize

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"

	"sentrajit/internal/ir"
)

// cseHashKey is fixed so every run of the pass (and every process)
// produces the same structural hash for the same node shape; it is
// never persisted, so it carries no compatibility requirement.
var cseHashKey = [32]byte{
	0x43, 0x53, 0x45, 0x2d, 0x68, 0x61, 0x73, 0x68,
	0x2d, 0x6b, 0x65, 0x79, 0x2d, 0x73, 0x65, 0x6e,
	0x74, 0x72, 0x61, 0x6a, 0x69, 0x74, 0x2d, 0x76,
	0x31, 0x2d, 0x64, 0x6f, 0x2d, 0x6e, 0x6f, 0x74,
}

// CSE is common-subexpression elimination: it hashes each pure node by
// opcode, type and input identities, and when two nodes collide and are
// structurally equal, rewires the later one's users onto the earlier one.
type CSE struct{}

// NewCSE constructs the pass.
func NewCSE() *CSE { return &CSE{} }

// Name implements Pass.
func (*CSE) Name() string { return "common-subexpression-elimination" }

// Run implements Pass.
func (c *CSE) Run(g *ir.Graph) bool {
	changed := false
	seen := make(map[uint64][]*ir.Node)

	for _, n := range g.AllNodes() {
		if !n.IsPure() {
			continue
		}
		h := structuralHash(n)
		bucket := seen[h]
		replaced := false
		for _, candidate := range bucket {
			if structurallyEqual(n, candidate) {
				g.ReplaceAllUsesWith(n, candidate)
				if len(n.Users) == 0 {
					g.RemoveNode(n)
				}
				changed = true
				replaced = true
				break
			}
		}
		if !replaced {
			seen[h] = append(bucket, n)
		}
	}
	return changed
}

// structuralHash hashes opcode, type and operand identities with
// HighwayHash, following the value-numbering keying spec §4.7 describes.
func structuralHash(n *ir.Node) uint64 {
	buf := make([]byte, 0, 16+8*len(n.Inputs))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(n.Op))
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], uint64(n.Type))
	buf = append(buf, tmp[:]...)
	for _, in := range n.Inputs {
		binary.LittleEndian.PutUint64(tmp[:], in.ID)
		buf = append(buf, tmp[:]...)
	}
	if n.IsConstant() {
		buf = append(buf, []byte(fmt.Sprintf("%v", n.ConstValue))...)
	}
	return highwayhash.Sum64(buf, cseHashKey[:])
}

// structurallyEqual compares two nodes the way constant-node equality is
// defined in §4.2: by opcode, type and operand identity (or payload
// value for constants), never by node id.
func structurallyEqual(a, b *ir.Node) bool {
	if a.Op != b.Op || a.Type != b.Type {
		return false
	}
	if a.IsConstant() {
		return fmt.Sprintf("%v", a.ConstValue) == fmt.Sprintf("%v", b.ConstValue)
	}
	if len(a.Inputs) != len(b.Inputs) {
		return false
	}
	for i := range a.Inputs {
		if a.Inputs[i] != b.Inputs[i] {
			return false
		}
	}
	switch a.Op {
	case ir.OpLoadProperty, ir.OpStoreProperty, ir.OpHasProperty, ir.OpDeleteProperty:
		return a.PropertyKey == b.PropertyKey
	case ir.OpLoadGlobal, ir.OpStoreGlobal, ir.OpLoadLocal, ir.OpStoreLocal:
		return a.VarIndex == b.VarIndex
	}
	return true
}
