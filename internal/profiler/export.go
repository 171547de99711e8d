package profiler

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"

	"sentrajit/internal/types"
)

// snapshot is the gob-serializable form of a profiler. Its layout is a
// private implementation detail; the only external contract is that
// ImportTypeProfile(ExportTypeProfile(p)) reproduces p's predictions.
type snapshot struct {
	VarTypeInfos      map[varKey]TypeInfo
	ParamTypeInfos    map[varKey]TypeInfo
	PropertyTypeInfos map[propKey]TypeInfo
	ArrayElemTypeInfo map[types.ShapeID]TypeInfo
	CallSiteTypeInfos map[callSiteKey]callSiteSnapshot
	CollectionSizes   map[callSiteKey][]uint32
	TotalObservations uint32
}

type callSiteSnapshot struct {
	ParamTypeInfos []TypeInfo
	ReturnTypeInfo TypeInfo
	CallCount      uint32
	SuccessCount   uint32
	ExceptionCount uint32
}

func init() {
	gob.Register(varKey{})
	gob.Register(propKey{})
	gob.Register(callSiteKey{})
}

// ExportTypeProfile serializes the profiler's state to an opaque string.
// The byte format is an implementation concern; the only contract is
// round-trip fidelity via ImportTypeProfile.
func (p *Profiler) ExportTypeProfile() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := snapshot{
		VarTypeInfos:      derefTypeInfoMap(p.varTypeInfos),
		ParamTypeInfos:    derefTypeInfoMap(p.paramTypeInfos),
		PropertyTypeInfos: make(map[propKey]TypeInfo, len(p.propertyTypeInfos)),
		ArrayElemTypeInfo: make(map[types.ShapeID]TypeInfo, len(p.arrayElemTypeInfo)),
		CallSiteTypeInfos: make(map[callSiteKey]callSiteSnapshot, len(p.callSiteTypeInfos)),
		CollectionSizes:   p.collectionSizes,
		TotalObservations: p.totalObservations,
	}
	for k, v := range p.propertyTypeInfos {
		snap.PropertyTypeInfos[k] = *v
	}
	for k, v := range p.arrayElemTypeInfo {
		snap.ArrayElemTypeInfo[k] = *v
	}
	for k, v := range p.callSiteTypeInfos {
		snap.CallSiteTypeInfos[k] = callSiteSnapshot{
			ParamTypeInfos: v.paramTypeInfos,
			ReturnTypeInfo: v.returnTypeInfo,
			CallCount:      v.callCount,
			SuccessCount:   v.successCount,
			ExceptionCount: v.exceptionCount,
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ImportTypeProfile replaces the profiler's state with the snapshot
// encoded in data (as produced by ExportTypeProfile). Returns false (and
// leaves the profiler untouched) on malformed input, never panics.
func (p *Profiler) ImportTypeProfile(data string) bool {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return false
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.varTypeInfos = refTypeInfoMap(snap.VarTypeInfos)
	p.paramTypeInfos = refTypeInfoMap(snap.ParamTypeInfos)
	p.propertyTypeInfos = make(map[propKey]*TypeInfo, len(snap.PropertyTypeInfos))
	for k, v := range snap.PropertyTypeInfos {
		v := v
		p.propertyTypeInfos[k] = &v
	}
	p.arrayElemTypeInfo = make(map[types.ShapeID]*TypeInfo, len(snap.ArrayElemTypeInfo))
	for k, v := range snap.ArrayElemTypeInfo {
		v := v
		p.arrayElemTypeInfo[k] = &v
	}
	p.callSiteTypeInfos = make(map[callSiteKey]*CallSiteTypeInfo, len(snap.CallSiteTypeInfos))
	for k, v := range snap.CallSiteTypeInfos {
		p.callSiteTypeInfos[k] = &CallSiteTypeInfo{
			paramTypeInfos: v.ParamTypeInfos,
			returnTypeInfo: v.ReturnTypeInfo,
			callCount:      v.CallCount,
			successCount:   v.SuccessCount,
			exceptionCount: v.ExceptionCount,
			hotThreshold:   defaultHotCallThreshold,
		}
	}
	p.collectionSizes = snap.CollectionSizes
	if p.collectionSizes == nil {
		p.collectionSizes = make(map[callSiteKey][]uint32)
	}
	p.totalObservations = snap.TotalObservations
	return true
}

func derefTypeInfoMap(m map[varKey]*TypeInfo) map[varKey]TypeInfo {
	out := make(map[varKey]TypeInfo, len(m))
	for k, v := range m {
		out[k] = *v
	}
	return out
}

func refTypeInfoMap(m map[varKey]TypeInfo) map[varKey]*TypeInfo {
	out := make(map[varKey]*TypeInfo, len(m))
	for k, v := range m {
		v := v
		out[k] = &v
	}
	return out
}
