// Package engine wires the type profiler, optimization pipeline, compile
// orchestrator, code emitter, artifact cache and inspector together into
// the single object an embedder (interpreter, CLI, test harness) talks
// to. It is the concrete adapter layer the core's package boundaries
// were designed to need: optimize.TypeHintSource and
// optimize.CallSiteHints backed by internal/profiler, so the optimizer
// itself never imports the profiler package directly.
package engine

import (
	"fmt"

	"sentrajit/internal/cache"
	"sentrajit/internal/codegen/interp"
	"sentrajit/internal/config"
	"sentrajit/internal/inspector"
	"sentrajit/internal/ir"
	"sentrajit/internal/optimize"
	"sentrajit/internal/orchestrator"
	"sentrajit/internal/profiler"
	"sentrajit/internal/types"
)

// Engine is the process-wide handle an embedder keeps for the lifetime
// of the interpreter it is accelerating.
type Engine struct {
	Config       config.Config
	Profiler     *profiler.Profiler
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Cache
	Inspector    *inspector.Server

	calleeGraphs map[uint32]*ir.Graph
}

// Options configures New. CachePath and InspectorAddr are both optional;
// an empty string disables the corresponding subsystem.
type Options struct {
	Config         config.Config
	CachePath      string
	InspectorAddr  string
	Background     bool
	BackgroundSize int
}

// New wires a complete Engine. The returned Engine owns its cache and
// inspector (if enabled); call Close to release them.
func New(opts Options) (*Engine, error) {
	p := profiler.New()
	if !opts.Config.EnableJIT {
		p.Disable()
	}

	e := &Engine{
		Config:       opts.Config,
		Profiler:     p,
		calleeGraphs: make(map[uint32]*ir.Graph),
	}

	hints := &typeHints{profiler: p}
	callHints := &callSiteHints{profiler: p, engine: e}

	pipeline := optimize.NewPipeline()
	pipeline = pipeline.WithHints(hints, callHints)

	emitter := interp.New()

	workers := opts.BackgroundSize
	if workers <= 0 {
		workers = 2
	}
	e.Orchestrator = orchestrator.New(orchestrator.Config{
		Profiler:   p,
		Pipeline:   pipeline,
		Emitter:    emitter,
		Background: opts.Background,
		QueueDepth: workers * 4,
		Workers:    workers,
	})

	if opts.CachePath != "" {
		c, err := cache.Open(opts.CachePath)
		if err != nil {
			return nil, fmt.Errorf("engine: opening cache: %w", err)
		}
		e.Cache = c
	}

	if opts.InspectorAddr != "" {
		e.Inspector = inspector.New(opts.InspectorAddr, e.Orchestrator.Events())
		if err := e.Inspector.Start(); err != nil {
			return nil, fmt.Errorf("engine: starting inspector: %w", err)
		}
	}

	return e, nil
}

// RegisterCallee makes g available to the inlining pass as the callee
// graph for functionID, the way a real embedder would register every
// compiled function's graph as it becomes known.
func (e *Engine) RegisterCallee(functionID uint32, g *ir.Graph) {
	e.calleeGraphs[functionID] = g
	e.Orchestrator.RegisterGraph(functionID, g)
}

// Close tears down the cache and inspector, then the orchestrator's
// background workers.
func (e *Engine) Close() error {
	if e.Inspector != nil {
		_ = e.Inspector.Stop()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	return e.Orchestrator.Shutdown()
}

// typeHints adapts internal/profiler to optimize.TypeHintSource.
type typeHints struct {
	profiler *profiler.Profiler
}

func (h *typeHints) VarTypeHint(functionID, varIndex uint32) (tag types.ValueType, confidence float64, ok bool) {
	info := h.profiler.GetOrCreateVarTypeInfo(functionID, varIndex)
	t, found := info.MostCommonType()
	if !found {
		return 0, 0, false
	}
	return t, info.Confidence(), true
}

// callSiteHints adapts internal/profiler (and the engine's registered
// callee graphs) to optimize.CallSiteHints.
type callSiteHints struct {
	profiler *profiler.Profiler
	engine   *Engine
}

func (h *callSiteHints) IsHotMonomorphicCallSite(functionID, offset uint32) bool {
	cs := h.profiler.GetOrCreateCallSiteTypeInfo(functionID, offset)
	return cs.Hot() && cs.IsMonomorphic()
}

func (h *callSiteHints) CalleeGraph(functionID uint32) (*ir.Graph, bool) {
	g, ok := h.engine.calleeGraphs[functionID]
	return g, ok
}
