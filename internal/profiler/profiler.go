package profiler

import (
	"sort"
	"sync"

	"sentrajit/internal/types"
)

// collectionSizeHistoryLimit bounds how many recent sizes are kept per
// site for PredictCollectionSize's trimmed mean.
const collectionSizeHistoryLimit = 32

// optimisticFallbackSize is returned for PredictCollectionSize when a
// site has no history: small enough to avoid over-allocating, large
// enough to avoid immediate growth on the first append.
const optimisticFallbackSize uint32 = 4

type varKey struct {
	FunctionID uint32
	VarIndex   uint32
}

type propKey struct {
	ShapeID types.ShapeID
	Name    string
}

type callSiteKey struct {
	FunctionID uint32
	Offset     uint32
}

// Profiler aggregates per-site type observations into categories and
// predicts stable types for the optimizer to speculate on (spec
// component C2). It is touched only by the interpreter thread: the
// per-site TypeInfo and CallSiteTypeInfo records are updated without
// locking, matching the single-writer discipline of §5.
type Profiler struct {
	mu sync.Mutex // guards the maps, enabled and totalObservations; per-site records are unlocked

	enabled bool

	varTypeInfos      map[varKey]*TypeInfo
	paramTypeInfos    map[varKey]*TypeInfo
	propertyTypeInfos map[propKey]*TypeInfo
	arrayElemTypeInfo map[types.ShapeID]*TypeInfo
	callSiteTypeInfos map[callSiteKey]*CallSiteTypeInfo
	collectionSizes   map[callSiteKey][]uint32

	totalObservations uint32
}

// New creates an enabled, empty profiler.
func New() *Profiler {
	return &Profiler{
		enabled:           true,
		varTypeInfos:      make(map[varKey]*TypeInfo),
		paramTypeInfos:    make(map[varKey]*TypeInfo),
		propertyTypeInfos: make(map[propKey]*TypeInfo),
		arrayElemTypeInfo: make(map[types.ShapeID]*TypeInfo),
		callSiteTypeInfos: make(map[callSiteKey]*CallSiteTypeInfo),
		collectionSizes:   make(map[callSiteKey][]uint32),
	}
}

// Enable turns profiling on.
func (p *Profiler) Enable() { p.mu.Lock(); p.enabled = true; p.mu.Unlock() }

// Disable turns profiling off. While disabled, RecordType and
// RecordCollectionSize record nothing and PredictCollectionSize returns
// optimisticFallbackSize; the other queries are not gated and answer
// from whatever was recorded before Disable. The profiler never panics
// or returns an error for being disabled.
func (p *Profiler) Disable() { p.mu.Lock(); p.enabled = false; p.mu.Unlock() }

// Enabled reports whether profiling is currently on.
func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// GetOrCreateVarTypeInfo returns the mutable record for a variable slot,
// creating it on first touch.
func (p *Profiler) GetOrCreateVarTypeInfo(functionID, varIndex uint32) *TypeInfo {
	return p.getOrCreate(p.varTypeInfos, varKey{functionID, varIndex})
}

// GetOrCreateParamTypeInfo returns the mutable record for a parameter slot.
func (p *Profiler) GetOrCreateParamTypeInfo(functionID, paramIndex uint32) *TypeInfo {
	return p.getOrCreate(p.paramTypeInfos, varKey{functionID, paramIndex})
}

// GetOrCreatePropertyTypeInfo returns the mutable record for a property on
// a shape.
func (p *Profiler) GetOrCreatePropertyTypeInfo(shapeID types.ShapeID, name string) *TypeInfo {
	key := propKey{shapeID, name}
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.propertyTypeInfos[key]
	if !ok {
		info = &TypeInfo{}
		p.propertyTypeInfos[key] = info
	}
	return info
}

// GetOrCreateArrayElementTypeInfo returns the mutable record for an
// array's element slot.
func (p *Profiler) GetOrCreateArrayElementTypeInfo(arrayShapeID types.ShapeID) *TypeInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.arrayElemTypeInfo[arrayShapeID]
	if !ok {
		info = &TypeInfo{}
		p.arrayElemTypeInfo[arrayShapeID] = info
	}
	return info
}

// GetOrCreateCallSiteTypeInfo returns the mutable record for a call site.
func (p *Profiler) GetOrCreateCallSiteTypeInfo(functionID, offset uint32) *CallSiteTypeInfo {
	key := callSiteKey{functionID, offset}
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.callSiteTypeInfos[key]
	if !ok {
		info = NewCallSiteTypeInfo()
		p.callSiteTypeInfos[key] = info
	}
	return info
}

func (p *Profiler) getOrCreate(m map[varKey]*TypeInfo, key varKey) *TypeInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := m[key]
	if !ok {
		info = &TypeInfo{}
		m[key] = info
	}
	return info
}

// RecordType records one observation at a variable slot and bumps the
// profiler-wide observation counter. A no-op while disabled.
func (p *Profiler) RecordType(functionID, varIndex uint32, tag types.ValueType, shape types.ShapeID) {
	if !p.Enabled() {
		return
	}
	p.GetOrCreateVarTypeInfo(functionID, varIndex).RecordType(tag, shape)
	p.mu.Lock()
	p.totalObservations++
	p.mu.Unlock()
}

// RecordCollectionSize appends an observed collection size to a site's
// history, trimming to the most recent collectionSizeHistoryLimit entries.
func (p *Profiler) RecordCollectionSize(functionID, siteOffset uint32, size uint32) {
	if !p.Enabled() {
		return
	}
	key := callSiteKey{functionID, siteOffset}
	p.mu.Lock()
	defer p.mu.Unlock()
	hist := append(p.collectionSizes[key], size)
	if len(hist) > collectionSizeHistoryLimit {
		hist = hist[len(hist)-collectionSizeHistoryLimit:]
	}
	p.collectionSizes[key] = hist
}

// PredictCollectionSize returns the trimmed mean of the last N recorded
// sizes at a site, or an optimistic-but-not-wild fallback when no data
// has been recorded yet (or the profiler is disabled).
func (p *Profiler) PredictCollectionSize(functionID, siteOffset uint32) uint32 {
	if !p.Enabled() {
		return optimisticFallbackSize
	}
	key := callSiteKey{functionID, siteOffset}
	p.mu.Lock()
	hist := append([]uint32(nil), p.collectionSizes[key]...)
	p.mu.Unlock()

	if len(hist) == 0 {
		return optimisticFallbackSize
	}
	sorted := append([]uint32(nil), hist...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// Trim the top and bottom 10% before averaging so a handful of
	// outlier bursts don't skew the prediction.
	trim := len(sorted) / 10
	low, high := trim, len(sorted)-trim
	if low >= high {
		low, high = 0, len(sorted)
	}
	var sum uint64
	for _, v := range sorted[low:high] {
		sum += uint64(v)
	}
	count := uint64(high - low)
	if count == 0 {
		return optimisticFallbackSize
	}
	return uint32(sum / count)
}

// ClearAll discards every recorded observation.
func (p *Profiler) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.varTypeInfos = make(map[varKey]*TypeInfo)
	p.paramTypeInfos = make(map[varKey]*TypeInfo)
	p.propertyTypeInfos = make(map[propKey]*TypeInfo)
	p.arrayElemTypeInfo = make(map[types.ShapeID]*TypeInfo)
	p.callSiteTypeInfos = make(map[callSiteKey]*CallSiteTypeInfo)
	p.collectionSizes = make(map[callSiteKey][]uint32)
	p.totalObservations = 0
}

// ClearFunction discards every recorded observation for one function id.
func (p *Profiler) ClearFunction(functionID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.varTypeInfos {
		if k.FunctionID == functionID {
			delete(p.varTypeInfos, k)
		}
	}
	for k := range p.paramTypeInfos {
		if k.FunctionID == functionID {
			delete(p.paramTypeInfos, k)
		}
	}
	for k := range p.callSiteTypeInfos {
		if k.FunctionID == functionID {
			delete(p.callSiteTypeInfos, k)
		}
	}
	for k := range p.collectionSizes {
		if k.FunctionID == functionID {
			delete(p.collectionSizes, k)
		}
	}
}

// TotalObservations returns the profiler-wide observation counter.
func (p *Profiler) TotalObservations() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalObservations
}

// IsHotFunction reports whether any call site of functionID is hot.
func (p *Profiler) IsHotFunction(functionID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, info := range p.callSiteTypeInfos {
		if k.FunctionID == functionID && info.Hot() {
			return true
		}
	}
	return false
}

// IsMonomorphicFunction reports whether every call site of functionID
// (and its parameter/return type info) looks monomorphic.
func (p *Profiler) IsMonomorphicFunction(functionID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := false
	for k, info := range p.callSiteTypeInfos {
		if k.FunctionID != functionID {
			continue
		}
		seen = true
		if !info.IsMonomorphic() {
			return false
		}
	}
	return seen
}

// FunctionTypeSignal aggregates every call site of functionID into the
// signal spec §4.5's tiering decision needs: whether the function looks
// monomorphic, mostly Int32, or mostly numeric, and the confidence of
// that classification (the lowest Confidence across all call sites,
// since the decision is only as sound as its weakest-observed site).
// ok is false if functionID has no recorded call sites yet.
func (p *Profiler) FunctionTypeSignal(functionID uint32) (confidence float64, monomorphic, mostlyInt32, mostlyNumber, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	monomorphic, mostlyInt32, mostlyNumber = true, true, true
	confidence = 1.0
	for k, info := range p.callSiteTypeInfos {
		if k.FunctionID != functionID {
			continue
		}
		ok = true
		if !info.IsMonomorphic() {
			monomorphic = false
		}
		if !info.MostlyInt32() {
			mostlyInt32 = false
		}
		if !info.MostlyNumber() {
			mostlyNumber = false
		}
		if c := info.Confidence(); c < confidence {
			confidence = c
		}
	}
	if !ok {
		return 0, false, false, false, false
	}
	return confidence, monomorphic, mostlyInt32, mostlyNumber, true
}
