package orchestrator

import (
	"testing"
	"time"

	"sentrajit/internal/ir"
	"sentrajit/internal/optimize"
	"sentrajit/internal/profiler"
	"sentrajit/internal/types"
)

type fakeEmitter struct {
	calls int
}

func (f *fakeEmitter) Emit(g *ir.Graph) (interface{}, int, error) {
	f.calls++
	return "native-code", len(g.AllNodes()), nil
}

func simpleGraph(functionID uint32) *ir.Graph {
	g := ir.NewGraph(functionID, "f")
	a := g.CreateConstant(int32(1), types.Int32)
	b := g.CreateConstant(int32(2), types.Int32)
	sum := g.CreateBinaryOp(g.Entry, ir.OpAdd, a, b, types.Int32)
	g.CreateReturn(g.Entry, sum, types.Int32)
	return g
}

func TestSynchronousOptimizeFunctionPublishesReadyRecord(t *testing.T) {
	emitter := &fakeEmitter{}
	o := New(Config{
		Profiler: profiler.New(),
		Pipeline: optimize.NewPipeline(),
		Emitter:  emitter,
	})
	o.RegisterGraph(1, simpleGraph(1))

	f, err := o.OptimizeFunction(1, optimize.O1)
	if err != nil {
		t.Fatalf("OptimizeFunction: %v", err)
	}
	if f.State != Ready {
		t.Fatalf("expected state Ready, got %s", f.State)
	}
	if emitter.calls != 1 {
		t.Fatalf("expected exactly one emit call, got %d", emitter.calls)
	}
}

func TestDecideTierPicksO2ForHighConfidenceMonomorphicFunction(t *testing.T) {
	p := profiler.New()
	cs := p.GetOrCreateCallSiteTypeInfo(7, 0)
	for i := 0; i < 95; i++ {
		cs.RecordCall([]types.ValueType{types.Int32}, nil, profiler.CallSucceeded, types.Int32, 0)
	}

	o := New(Config{Profiler: p, Pipeline: optimize.NewPipeline()})
	if got := o.DecideTier(7); got != optimize.O2 {
		t.Fatalf("expected O2 for a high-confidence monomorphic function, got %s", got)
	}
}

func TestDecideTierStaysO1WhenConfidenceBelowThreshold(t *testing.T) {
	p := profiler.New()
	cs := p.GetOrCreateCallSiteTypeInfo(7, 0)
	for i := 0; i < 5; i++ {
		cs.RecordCall([]types.ValueType{types.Int32}, nil, profiler.CallSucceeded, types.Int32, 0)
	}

	o := New(Config{Profiler: p, Pipeline: optimize.NewPipeline()})
	if got := o.DecideTier(7); got != optimize.O1 {
		t.Fatalf("a monomorphic function observed only 5 times must not be confident enough for O2, got %s", got)
	}
}

func TestDecideTierPicksO2ForMostlyInt32NonMonomorphicFunction(t *testing.T) {
	p := profiler.New()
	cs := p.GetOrCreateCallSiteTypeInfo(7, 0)
	for i := 0; i < 94; i++ {
		cs.RecordCall([]types.ValueType{types.Int32}, nil, profiler.CallSucceeded, types.Int32, 0)
	}
	// One stray String call keeps the site polymorphic (not Monomorphic)
	// while the Int32 share still clears the 0.95 MostlyInt32 bar.
	cs.RecordCall([]types.ValueType{types.String}, nil, profiler.CallSucceeded, types.Int32, 0)

	o := New(Config{Profiler: p, Pipeline: optimize.NewPipeline()})
	if got := o.DecideTier(7); got != optimize.O2 {
		t.Fatalf("expected O2 for a high-confidence MostlyInt32 function, got %s", got)
	}
}

func TestDecideTierPicksO1WhenProfilerAbsent(t *testing.T) {
	o := New(Config{Pipeline: optimize.NewPipeline()})
	if got := o.DecideTier(1); got != optimize.O1 {
		t.Fatalf("expected O1 fallback with no profiler attached, got %s", got)
	}
}

func TestDecideTierPicksO1WhenFunctionNeverObserved(t *testing.T) {
	o := New(Config{Profiler: profiler.New(), Pipeline: optimize.NewPipeline()})
	if got := o.DecideTier(42); got != optimize.O1 {
		t.Fatalf("expected O1 for a function with no recorded call sites, got %s", got)
	}
}

func TestRecordGuardOutcomeInvalidatesAfterThreshold(t *testing.T) {
	emitter := &fakeEmitter{}
	o := New(Config{Profiler: profiler.New(), Pipeline: optimize.NewPipeline(), Emitter: emitter})
	o.RegisterGraph(1, simpleGraph(1))
	f, err := o.OptimizeFunction(1, optimize.O1)
	if err != nil {
		t.Fatalf("OptimizeFunction: %v", err)
	}
	if f.State != Ready {
		t.Fatalf("precondition: function must start Ready")
	}

	for i := 0; i < invalidationThreshold+1; i++ {
		o.RecordGuardOutcome(1, true)
	}

	got, ok := o.Lookup(1)
	if !ok {
		t.Fatalf("expected a record to exist")
	}
	if got.State != Invalidated {
		t.Fatalf("expected state Invalidated after crossing the threshold, got %s", got.State)
	}
}

func TestInvalidateAllDrainsEveryReadyEntry(t *testing.T) {
	emitter := &fakeEmitter{}
	o := New(Config{Profiler: profiler.New(), Pipeline: optimize.NewPipeline(), Emitter: emitter})
	o.RegisterGraph(1, simpleGraph(1))
	o.RegisterGraph(2, simpleGraph(2))
	if _, err := o.OptimizeFunction(1, optimize.O1); err != nil {
		t.Fatalf("OptimizeFunction(1): %v", err)
	}
	if _, err := o.OptimizeFunction(2, optimize.O1); err != nil {
		t.Fatalf("OptimizeFunction(2): %v", err)
	}

	o.InvalidateAll()

	f1, _ := o.Lookup(1)
	f2, _ := o.Lookup(2)
	if f1.State != Invalidated || f2.State != Invalidated {
		t.Fatalf("expected both records Invalidated, got %s and %s", f1.State, f2.State)
	}
}

func TestBackgroundModeCompilesViaWorkerPool(t *testing.T) {
	emitter := &fakeEmitter{}
	o := New(Config{
		Profiler:   profiler.New(),
		Pipeline:   optimize.NewPipeline(),
		Emitter:    emitter,
		Background: true,
		QueueDepth: 4,
		Workers:    2,
	})
	o.RegisterGraph(1, simpleGraph(1))

	if err := o.EnqueueForOptimization(1, "hot-function", optimize.O1); err != nil {
		t.Fatalf("EnqueueForOptimization: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		o.mu.Lock()
		f, ok := o.functions[1]
		var state State
		if ok {
			state = f.State
		}
		o.mu.Unlock()
		if ok && (state == Ready || state == Failed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("background compile did not complete in time")
		}
		time.Sleep(time.Millisecond)
	}

	if err := o.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
