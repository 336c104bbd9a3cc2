package registry

import (
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
)

// mappingEntry pairs a stored value with the declaration location, used for
// "declared here" context in shadowing diagnostics.
type mappingEntry struct {
	value values.Value
	decl  srcloc.Range
}

// MappingTable is a single scope frame's name -> value table. Later adds
// shadow earlier ones within the same frame; lookup across frames is the
// scope stack's job (internal/scope), not this type's.
type MappingTable struct {
	entries map[string]mappingEntry
	order   []string
}

// NewMappingTable returns an empty mapping/variable table.
func NewMappingTable() *MappingTable {
	return &MappingTable{entries: make(map[string]mappingEntry)}
}

// Add stores value under name, shadowing any earlier entry of the same name
// in this frame.
func (m *MappingTable) Add(name string, value values.Value, decl srcloc.Range) {
	if _, exists := m.entries[name]; !exists {
		m.order = append(m.order, name)
	}
	m.entries[name] = mappingEntry{value: value, decl: decl}
}

// Has reports whether name is bound in this frame.
func (m *MappingTable) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// DeclLocation returns where name was declared in this frame.
func (m *MappingTable) DeclLocation(name string) srcloc.Range {
	return m.entries[name].decl
}

// Resolve returns a deep clone of the value bound to name in this frame, or
// ok=false if name is not bound here.
func (m *MappingTable) Resolve(name string) (values.Value, bool) {
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.value.Clone(), true
}

// Clone deep-clones the table (values are cloned, declaration ranges are
// copied by value).
func (m *MappingTable) Clone() *MappingTable {
	out := NewMappingTable()
	out.order = append([]string(nil), m.order...)
	for k, v := range m.entries {
		out.entries[k] = mappingEntry{value: v.value.Clone(), decl: v.decl}
	}
	return out
}

// Names returns bound names in declaration order.
func (m *MappingTable) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
