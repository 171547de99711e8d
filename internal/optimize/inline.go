package optimize

import "sentrajit/internal/ir"

// CallSiteHints lets the inlining pass ask whether a call site is worth
// inlining without depending on package profiler directly.
type CallSiteHints interface {
	IsHotMonomorphicCallSite(functionID, offset uint32) bool
	CalleeGraph(functionID uint32) (*ir.Graph, bool)
}

// Inlining replaces a Call instruction at a hot, monomorphic call site
// with the callee's graph spliced in directly, provided the callee is
// under sizeThreshold nodes and the current inline depth is under
// maxDepth.
type Inlining struct {
	Hints         CallSiteHints
	sizeThreshold int
	maxDepth      int
}

// NewInlining constructs the pass with the given node-count ceiling and
// recursion-depth ceiling.
func NewInlining(sizeThreshold, maxDepth int) *Inlining {
	return &Inlining{sizeThreshold: sizeThreshold, maxDepth: maxDepth}
}

// Name implements Pass.
func (*Inlining) Name() string { return "inlining" }

// Run implements Pass.
func (in *Inlining) Run(g *ir.Graph) bool {
	if in.Hints == nil {
		return false
	}
	return in.run(g, 0)
}

func (in *Inlining) run(g *ir.Graph, depth int) bool {
	if depth >= in.maxDepth {
		return false
	}
	changed := false
	for _, n := range g.AllNodes() {
		if n.Op != ir.OpCall {
			continue
		}
		calleeID, offset, ok := callTarget(n)
		if !ok || !in.Hints.IsHotMonomorphicCallSite(calleeID, offset) {
			continue
		}
		callee, ok := in.Hints.CalleeGraph(calleeID)
		if !ok || len(callee.AllNodes()) > in.sizeThreshold {
			continue
		}
		if inlineCall(g, n, callee) {
			changed = true
		}
	}
	return changed
}

// callTarget extracts the callee function id a Call node carries in its
// ParamIndex payload slot (a Call with neither ParamIndex nor ParamName
// set has no target) and uses the node's own ID as the call-site offset —
// the general Call encoding reuses these rather than adding
// call-specific fields to Node, since only this pass needs them.
func callTarget(n *ir.Node) (functionID, offset uint32, ok bool) {
	if n.ParamIndex == 0 && n.ParamName == "" {
		return 0, 0, false
	}
	return n.ParamIndex, uint32(n.ID), true
}

// inlineCall substitutes callee's cloned entry-to-return path for the
// Call node: callee's parameters are replaced by the call's argument
// inputs, and the Return's value flows to the call's users. Only
// single-block callees are inlined.
func inlineCall(g *ir.Graph, call *ir.Node, callee *ir.Graph) bool {
	clone := callee.Clone()
	if len(clone.Blocks) != 1 {
		return false
	}
	for i, param := range clone.Params {
		if i >= len(call.Inputs) {
			break
		}
		g.ReplaceAllUsesWith(param, call.Inputs[i])
	}

	block := call.Block
	if block == nil {
		return false
	}
	var returnValue *ir.Node
	for _, n := range clone.AllNodes() {
		if n.Op != ir.OpReturn {
			continue
		}
		if len(n.Inputs) > 0 {
			returnValue = n.Inputs[0]
		}
	}

	for _, entryInstr := range append([]*ir.Node(nil), clone.Entry.Instructions...) {
		if entryInstr.Op == ir.OpReturn {
			continue
		}
		block.InsertBefore(entryInstr, call)
	}

	if returnValue != nil {
		g.ReplaceAllUsesWith(call, returnValue)
	}
	if len(call.Users) == 0 {
		g.RemoveNode(call)
	}
	return true
}
