package profiler

import (
	"bytes"
	"encoding/gob"

	"sentrajit/internal/types"
)

// typeInfoWire is the exported mirror of TypeInfo used only for gob
// round-tripping; TypeInfo itself keeps its fields unexported so callers
// can't bypass RecordType's bookkeeping.
type typeInfoWire struct {
	Records     []Occurrence
	Total       uint32
	Transitions uint32
	LastType    uint8
	HasLastType bool
	Frozen      bool
}

// GobEncode implements gob.GobEncoder.
func (t TypeInfo) GobEncode() ([]byte, error) {
	w := typeInfoWire{
		Records:     t.records,
		Total:       t.total,
		Transitions: t.transitions,
		LastType:    uint8(t.lastType),
		HasLastType: t.hasLastType,
		Frozen:      t.frozen,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (t *TypeInfo) GobDecode(data []byte) error {
	var w typeInfoWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	t.records = w.Records
	t.total = w.Total
	t.transitions = w.Transitions
	t.lastType = types.ValueType(w.LastType)
	t.hasLastType = w.HasLastType
	t.frozen = w.Frozen
	return nil
}
