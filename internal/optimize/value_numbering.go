package optimize

import "sentrajit/internal/ir"

// ValueNumbering is global value numbering: unlike CSE's single forward
// pass, it iterates to a fixed point so a redundancy exposed by an
// earlier replacement (e.g. two now-identical loads after a store was
// proven dead) is caught too. Gated to Omax since the extra rounds only
// pay off on graphs already through every cheaper pass.
type ValueNumbering struct {
	cse *CSE
}

// NewValueNumbering constructs the pass.
func NewValueNumbering() *ValueNumbering { return &ValueNumbering{cse: NewCSE()} }

// Name implements Pass.
func (*ValueNumbering) Name() string { return "value-numbering" }

// Run implements Pass.
func (v *ValueNumbering) Run(g *ir.Graph) bool {
	changed := false
	for {
		roundChanged := v.cse.Run(g)
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}
