// Package optimize implements the middle-end optimization pipeline
// (spec component C6): a sequence of graph-to-graph passes grouped into
// phases and gated by optimization level.
package optimize

import "sentrajit/internal/ir"

// OptLevel selects which passes run, strictly additive from O0 upward.
type OptLevel uint8

const (
	O0 OptLevel = iota
	O1
	O2
	O3
	Omax
)

func (l OptLevel) String() string {
	names := [...]string{"O0", "O1", "O2", "O3", "Omax"}
	if int(l) < len(names) {
		return names[l]
	}
	return "OptLevel(?)"
}

// Phase groups passes by where they sit in the pipeline.
type Phase string

const (
	Frontend  Phase = "Frontend"
	MiddleEnd Phase = "MiddleEnd"
	Backend   Phase = "Backend"
	CodeGen   Phase = "CodeGen"
)

// ProgressFunc receives (phase, stage, progress) updates as the pipeline
// runs, once attached with WithProgress.
type ProgressFunc func(phase Phase, stage string, progress float64)

// Pass is one middle-end transformation. Passes never remove a node a
// later pass in the same run still expects — ordering within a Pipeline
// encodes that dependency.
type Pass interface {
	Name() string
	Run(g *ir.Graph) (changed bool)
}

// passSpec pairs a pass with the minimum level that enables it, so
// Pipeline construction stays declarative instead of a hand-written
// if-ladder per level.
type passSpec struct {
	pass     Pass
	minLevel OptLevel
}

// Pipeline runs a level-gated, ordered sequence of passes over a graph.
type Pipeline struct {
	specs    []passSpec
	progress ProgressFunc
}

// NewPipeline builds the standard middle-end pipeline in the order spec
// §4.4 lists them: folding and CSE first to shrink the graph before the
// more expensive analyses, then DCE to sweep the result, then LICM and
// type specialization, then inlining and bounds-check elimination last
// since both benefit from the graph already being shrunk and typed.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	p.specs = []passSpec{
		{NewConstantFolding(), O0},
		{NewCSE(), O1},
		{NewDCE(), O0},
		{NewLICM(), O2},
		{NewTypeSpecialization(), O2},
		{NewInlining(8, 2), O3},
		{NewBoundsCheckElimination(), O3},
		{NewValueNumbering(), Omax},
	}
	return p
}

// WithProgress attaches a progress callback.
func (p *Pipeline) WithProgress(fn ProgressFunc) *Pipeline {
	p.progress = fn
	return p
}

// WithHints attaches the profiler-backed hint sources to whichever
// passes in the pipeline consult them (TypeSpecialization, Inlining),
// letting the embedder wire profiler data in without the optimize
// package importing package profiler itself.
func (p *Pipeline) WithHints(typeHints TypeHintSource, callHints CallSiteHints) *Pipeline {
	for _, s := range p.specs {
		switch pass := s.pass.(type) {
		case *TypeSpecialization:
			pass.Hints = typeHints
		case *Inlining:
			pass.Hints = callHints
		}
	}
	return p
}

// passesFor returns the passes enabled at level, in pipeline order.
func (p *Pipeline) passesFor(level OptLevel) []Pass {
	var out []Pass
	for _, s := range p.specs {
		if level >= s.minLevel {
			out = append(out, s.pass)
		}
	}
	return out
}

// Run executes every pass enabled at level against g, repeating the
// whole list until a fixed point (no pass reports a change) or maxRounds
// is reached, since one pass's rewrite can expose work for another in
// the next round.
func (p *Pipeline) Run(g *ir.Graph, level OptLevel) {
	const maxRounds = 10
	passes := p.passesFor(level)
	if len(passes) == 0 {
		return
	}

	for round := 0; round < maxRounds; round++ {
		anyChanged := false
		for i, pass := range passes {
			changed := pass.Run(g)
			anyChanged = anyChanged || changed
			if p.progress != nil {
				p.progress(MiddleEnd, pass.Name(), float64(i+1)/float64(len(passes)))
			}
		}
		if !anyChanged {
			break
		}
	}
}
