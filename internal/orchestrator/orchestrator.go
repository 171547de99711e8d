// Package orchestrator implements the compile orchestrator (spec
// component C7): it decides when and at what optimization level to
// compile a function, runs compilation synchronously or on a bounded
// background worker pool, and tracks the resulting optimized-function
// records through invalidation and deoptimization.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"sentrajit/internal/ir"
	"sentrajit/internal/optimize"
	"sentrajit/internal/profiler"
)

// State is an optimized-function record's lifecycle state.
type State uint8

const (
	Queued State = iota
	Compiling
	Ready
	Invalidated
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Compiling:
		return "Compiling"
	case Ready:
		return "Ready"
	case Invalidated:
		return "Invalidated"
	case Failed:
		return "Failed"
	default:
		return "State(?)"
	}
}

// CodeEmitter lowers an optimized graph to executable form. Code is
// opaque to the orchestrator — it only stores and hands back the pointer
// the emitter returns.
type CodeEmitter interface {
	Emit(g *ir.Graph) (code interface{}, size int, err error)
}

// OptimizedFunction is the orchestrator's per-function compiled-artifact
// record.
type OptimizedFunction struct {
	FunctionID uint32
	State      State
	Level      optimize.OptLevel

	Code     interface{}
	CodeSize int

	AppliedOptimizations []string
	TypeInfoSnapshot     *profiler.TypeInfo

	CompiledAt    time.Time
	CompileTimeNs int64

	guardFailures int
	sideExits     int
	windowStart   time.Time
}

// invalidationWindow and invalidationThreshold bound how many guard
// failures/side exits a compiled function may accumulate in one sliding
// window before the orchestrator gives up on it.
const (
	invalidationWindow    = 2 * time.Second
	invalidationThreshold = 20
)

// Event is published on the orchestrator's event channel for the
// inspector to observe.
type Event struct {
	FunctionID uint32
	Kind       string // "queued", "compiled", "invalidated", "failed"
	Level      optimize.OptLevel
	Timestamp  time.Time
}

// Orchestrator ties the profiler, pipeline and emitter together.
type Orchestrator struct {
	mu        sync.Mutex
	functions map[uint32]*OptimizedFunction
	graphs    map[uint32]*ir.Graph

	profiler *profiler.Profiler
	pipeline *optimize.Pipeline
	emitter  CodeEmitter

	background bool
	queue      chan compileJob
	group      *errgroup.Group
	groupCtx   context.Context
	sf         singleflight.Group

	events chan Event
}

type compileJob struct {
	functionID uint32
	reason     string
}

// Config configures a new Orchestrator.
type Config struct {
	Profiler   *profiler.Profiler
	Pipeline   *optimize.Pipeline
	Emitter    CodeEmitter
	Background bool
	QueueDepth int
	Workers    int
}

// New builds an orchestrator. When cfg.Background is true, a worker
// pool of cfg.Workers goroutines (bounded by errgroup.SetLimit) drains
// a queue of depth cfg.QueueDepth; otherwise EnqueueForOptimization
// compiles synchronously.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		functions:  make(map[uint32]*OptimizedFunction),
		graphs:     make(map[uint32]*ir.Graph),
		profiler:   cfg.Profiler,
		pipeline:   cfg.Pipeline,
		emitter:    cfg.Emitter,
		background: cfg.Background,
		events:     make(chan Event, 64),
	}
	if o.background {
		depth := cfg.QueueDepth
		if depth <= 0 {
			depth = 128
		}
		workers := cfg.Workers
		if workers <= 0 {
			workers = 4
		}
		o.queue = make(chan compileJob, depth)
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(workers)
		o.group = g
		o.groupCtx = ctx
		for i := 0; i < workers; i++ {
			g.Go(o.workerLoop)
		}
	}
	return o
}

// Events returns the read side of the orchestrator's event feed.
func (o *Orchestrator) Events() <-chan Event { return o.events }

func (o *Orchestrator) publish(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

// RegisterGraph attaches the IR graph to compile for functionID. The
// interpreter builds this once from bytecode; the orchestrator never
// mutates the registered copy directly, it clones before optimizing.
func (o *Orchestrator) RegisterGraph(functionID uint32, g *ir.Graph) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.graphs[functionID] = g
}

// Lookup returns the current record for functionID, if any.
func (o *Orchestrator) Lookup(functionID uint32) (*OptimizedFunction, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.functions[functionID]
	return f, ok
}

// decideTierConfidenceThreshold is spec §4.5's gate: O2 only compiles a
// function whose type observations are confident enough to specialize on.
const decideTierConfidenceThreshold = 0.9

// DecideTier implements spec §4.5's tiering decision: a function compiles
// at O2 with type specialization only if its observed types are both
// confident (>= decideTierConfidenceThreshold) and stable — monomorphic,
// or mostly Int32/number even without being strictly monomorphic.
// Everything else that is merely hot compiles at O1.
func (o *Orchestrator) DecideTier(functionID uint32) optimize.OptLevel {
	if o.profiler == nil {
		return optimize.O1
	}
	confidence, monomorphic, mostlyInt32, mostlyNumber, ok := o.profiler.FunctionTypeSignal(functionID)
	if !ok || confidence < decideTierConfidenceThreshold {
		return optimize.O1
	}
	if monomorphic || mostlyInt32 || mostlyNumber {
		return optimize.O2
	}
	return optimize.O1
}

// OnHotFunctionSignal is the interpreter's entry point: it tells the
// orchestrator functionID just crossed its hotness threshold.
func (o *Orchestrator) OnHotFunctionSignal(ctx context.Context, functionID uint32) error {
	level := o.DecideTier(functionID)
	if o.background {
		return o.EnqueueForOptimization(functionID, "hot-function", level)
	}
	_, err := o.OptimizeFunction(functionID, level)
	return err
}

// EnqueueForOptimization places a compile job on the background queue.
// Requires the orchestrator to have been built with Background: true.
func (o *Orchestrator) EnqueueForOptimization(functionID uint32, reason string, level optimize.OptLevel) error {
	o.mu.Lock()
	f, ok := o.functions[functionID]
	if !ok {
		f = &OptimizedFunction{FunctionID: functionID}
		o.functions[functionID] = f
	}
	f.State = Queued
	f.Level = level
	o.mu.Unlock()

	o.publish(Event{FunctionID: functionID, Kind: "queued", Level: level, Timestamp: time.Now()})

	select {
	case o.queue <- compileJob{functionID: functionID, reason: reason}:
		return nil
	default:
		return o.forceSynchronousFallback(functionID, level)
	}
}

// forceSynchronousFallback runs compilation inline when the background
// queue is saturated, so a burst of hot-function signals degrades to
// synchronous compilation instead of dropping the request.
func (o *Orchestrator) forceSynchronousFallback(functionID uint32, level optimize.OptLevel) error {
	_, err := o.OptimizeFunction(functionID, level)
	return err
}

func (o *Orchestrator) workerLoop() error {
	for {
		select {
		case <-o.groupCtx.Done():
			return nil
		case job, ok := <-o.queue:
			if !ok {
				return nil
			}
			if _, err := o.OptimizeFunction(job.functionID, o.currentLevel(job.functionID)); err != nil {
				o.publish(Event{FunctionID: job.functionID, Kind: "failed", Timestamp: time.Now()})
			}
		}
	}
}

func (o *Orchestrator) currentLevel(functionID uint32) optimize.OptLevel {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.functions[functionID]; ok {
		return f.Level
	}
	return optimize.O1
}

// OptimizeFunction compiles functionID synchronously at level,
// publishing an event and an updated record on completion. Concurrent
// callers for the same functionID collapse onto a single compilation via
// singleflight, so a flurry of duplicate hot-function signals for one
// function costs one compile.
func (o *Orchestrator) OptimizeFunction(functionID uint32, level optimize.OptLevel) (*OptimizedFunction, error) {
	key := singleflightKey(functionID)
	v, err, _ := o.sf.Do(key, func() (interface{}, error) {
		return o.compile(functionID, level)
	})
	if err != nil {
		return nil, err
	}
	return v.(*OptimizedFunction), nil
}

func (o *Orchestrator) compile(functionID uint32, level optimize.OptLevel) (*OptimizedFunction, error) {
	o.mu.Lock()
	src, ok := o.graphs[functionID]
	o.mu.Unlock()
	if !ok {
		return nil, errNoGraph(functionID)
	}

	started := time.Now()
	o.setState(functionID, Compiling, level)

	g := src.Clone()
	o.pipeline.Run(g, level)

	var code interface{}
	var size int
	var err error
	if o.emitter != nil {
		code, size, err = o.emitter.Emit(g)
	}
	if err != nil {
		o.setState(functionID, Failed, level)
		o.publish(Event{FunctionID: functionID, Kind: "failed", Level: level, Timestamp: time.Now()})
		return nil, err
	}

	f := &OptimizedFunction{
		FunctionID:           functionID,
		State:                Ready,
		Level:                level,
		Code:                 code,
		CodeSize:             size,
		AppliedOptimizations: append([]string(nil), g.AppliedOptimizations...),
		CompiledAt:           time.Now(),
		CompileTimeNs:        time.Since(started).Nanoseconds(),
		windowStart:          time.Now(),
	}
	o.mu.Lock()
	o.functions[functionID] = f
	o.mu.Unlock()

	o.publish(Event{FunctionID: functionID, Kind: "compiled", Level: level, Timestamp: time.Now()})
	return f, nil
}

func (o *Orchestrator) setState(functionID uint32, state State, level optimize.OptLevel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.functions[functionID]
	if !ok {
		f = &OptimizedFunction{FunctionID: functionID}
		o.functions[functionID] = f
	}
	f.State = state
	f.Level = level
}

// RecordGuardOutcome records one guard outcome for a compiled function,
// restarting the accounting window once it is older than
// invalidationWindow and invalidating the function if its failures
// exceed invalidationThreshold within the window. Only guard failures
// are counted: nothing in the orchestrator increments sideExits.
func (o *Orchestrator) RecordGuardOutcome(functionID uint32, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.functions[functionID]
	if !ok || f.State != Ready {
		return
	}
	if time.Since(f.windowStart) > invalidationWindow {
		f.windowStart = time.Now()
		f.guardFailures = 0
		f.sideExits = 0
	}
	if failed {
		f.guardFailures++
	}
	if f.guardFailures+f.sideExits > invalidationThreshold {
		f.State = Invalidated
		o.publish(Event{FunctionID: functionID, Kind: "invalidated", Level: f.Level, Timestamp: time.Now()})
	}
}

// Invalidate transitions functionID's record to Invalidated so no new
// callers bind to it.
func (o *Orchestrator) Invalidate(functionID uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.functions[functionID]; ok && f.State == Ready {
		f.State = Invalidated
		o.publish(Event{FunctionID: functionID, Kind: "invalidated", Level: f.Level, Timestamp: time.Now()})
	}
}

// InvalidateAll drains every Ready entry, used on a global deoptimization
// storm or a shape/profile reset.
func (o *Orchestrator) InvalidateAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, f := range o.functions {
		if f.State == Ready {
			f.State = Invalidated
			o.publish(Event{FunctionID: id, Kind: "invalidated", Level: f.Level, Timestamp: time.Now()})
		}
	}
}

// Shutdown stops the background worker pool, if any, and waits for
// in-flight compiles to finish.
func (o *Orchestrator) Shutdown() error {
	if !o.background {
		return nil
	}
	close(o.queue)
	return o.group.Wait()
}

func singleflightKey(functionID uint32) string {
	return "fn:" + itoa(functionID)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

type noGraphError struct{ functionID uint32 }

func (e *noGraphError) Error() string {
	return "orchestrator: no graph registered for function " + itoa(e.functionID)
}

func errNoGraph(functionID uint32) error { return &noGraphError{functionID: functionID} }
