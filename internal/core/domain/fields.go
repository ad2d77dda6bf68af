package domain

import (
	"encoding/json"
	"fmt"
)

// FieldID is the compact integer id a field name is mapped to in
// per-document payloads.
type FieldID uint16

// FieldsIdsMap is the bidirectional table between field names and field
// ids. Ids are assigned sequentially in insertion order; that order is
// also the field order used when a document is rendered back to JSON.
//
// The map serializes as a JSON array of names where the index is the id,
// so insertion order survives storage round-trips.
type FieldsIdsMap struct {
	names []string
	ids   map[string]FieldID
}

// NewFieldsIdsMap creates an empty fields-ids map.
func NewFieldsIdsMap() *FieldsIdsMap {
	return &FieldsIdsMap{
		ids: make(map[string]FieldID),
	}
}

// Insert returns the id for name, assigning the next free id when the
// name is new. It fails once the id space is exhausted.
func (m *FieldsIdsMap) Insert(name string) (FieldID, error) {
	if id, ok := m.ids[name]; ok {
		return id, nil
	}
	if len(m.names) > int(^FieldID(0)) {
		return 0, ErrFieldLimitReached
	}
	id := FieldID(len(m.names))
	m.names = append(m.names, name)
	m.ids[name] = id
	return id, nil
}

// ID returns the id mapped to name.
func (m *FieldsIdsMap) ID(name string) (FieldID, bool) {
	id, ok := m.ids[name]
	return id, ok
}

// Name returns the name mapped to id.
func (m *FieldsIdsMap) Name(id FieldID) (string, bool) {
	if int(id) >= len(m.names) {
		return "", false
	}
	return m.names[id], true
}

// Len returns the number of known fields.
func (m *FieldsIdsMap) Len() int {
	return len(m.names)
}

// Names returns all field names in id order.
func (m *FieldsIdsMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// MarshalJSON encodes the map as an id-ordered array of names.
func (m *FieldsIdsMap) MarshalJSON() ([]byte, error) {
	if m.names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.names)
}

// UnmarshalJSON rebuilds the map from an id-ordered array of names.
func (m *FieldsIdsMap) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	ids := make(map[string]FieldID, len(names))
	for i, name := range names {
		if _, ok := ids[name]; ok {
			return fmt.Errorf("domain: duplicate field name %q", name)
		}
		ids[name] = FieldID(i)
	}
	m.names = names
	m.ids = ids
	return nil
}
