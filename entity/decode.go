package entity

import (
	"encoding/json"
	"fmt"
)

// LogicalRow remaps a physical-keyed row to logical field ids using the
// metadata field map. Columns with no logical mapping keep their storage key.
func LogicalRow(meta *Metadata, row Row) Row {
	if meta == nil || len(meta.Fields) == 0 {
		return row
	}
	reverse := make(map[string]FieldID, len(meta.Fields))
	for id, key := range meta.Fields {
		reverse[key] = id
	}
	out := make(Row, len(row))
	for key, v := range row {
		if id, ok := reverse[key]; ok {
			out[string(id)] = v
		} else {
			out[key] = v
		}
	}
	return out
}

// PhysicalRow remaps a logical-keyed row to physical storage keys using the
// metadata field map. Unmapped keys pass through unchanged.
func PhysicalRow(meta *Metadata, logical Row) Row {
	if meta == nil || len(meta.Fields) == 0 {
		return logical
	}
	out := make(Row, len(logical))
	for key, v := range logical {
		if phys, ok := meta.Fields[FieldID(key)]; ok {
			out[phys] = v
		} else {
			out[key] = v
		}
	}
	return out
}

// ModelRow encodes a model into a physical-keyed row suitable for create and
// update values. The model's JSON tags name logical fields, mirroring
// DecodeRow.
func ModelRow(meta *Metadata, model any) (Row, error) {
	data, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("encode model %T: %w", model, err)
	}
	var logical Row
	if err := json.Unmarshal(data, &logical); err != nil {
		return nil, fmt.Errorf("encode model %T: %w", model, err)
	}
	return PhysicalRow(meta, logical), nil
}

// DecodeRow decodes a physical-keyed row into dst. Keys are remapped to
// logical field ids first, then the row is round-tripped through JSON, so
// dst's struct tags name logical fields. A *Row destination receives the
// remapped row directly without re-encoding.
func DecodeRow(meta *Metadata, row Row, dst any) error {
	logical := LogicalRow(meta, row)
	if out, ok := dst.(*Row); ok {
		*out = logical
		return nil
	}
	data, err := json.Marshal(logical)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode row into %T: %w", dst, err)
	}
	return nil
}
