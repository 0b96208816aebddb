package vm

import "strings"

// Map is an insertion-ordered mapping of Value to Value. Keys are unique by
// structural equality (via the canonical hash key), and all non-mutating
// operations preserve insertion order.
type Map struct {
	keys    []Value
	values  []Value
	indexes map[string]int
}

func NewMap() *Map {
	return &Map{indexes: make(map[string]int)}
}

func NewMapCapacity(n int) *Map {
	return &Map{
		keys:    make([]Value, 0, n),
		values:  make([]Value, 0, n),
		indexes: make(map[string]int, n),
	}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Set inserts or replaces; replacing keeps the key's original position.
func (m *Map) Set(key, value Value) {
	hk := key.hashKey()
	if i, ok := m.indexes[hk]; ok {
		m.values[i] = value
		return
	}
	m.indexes[hk] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
}

func (m *Map) Get(key Value) (Value, bool) {
	if m == nil {
		return None(), false
	}
	if i, ok := m.indexes[key.hashKey()]; ok {
		return m.values[i], true
	}
	return None(), false
}

func (m *Map) Has(key Value) bool {
	if m == nil {
		return false
	}
	_, ok := m.indexes[key.hashKey()]
	return ok
}

// Delete removes a key, preserving the order of the remaining entries.
func (m *Map) Delete(key Value) bool {
	hk := key.hashKey()
	i, ok := m.indexes[hk]
	if !ok {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	delete(m.indexes, hk)
	for k, idx := range m.indexes {
		if idx > i {
			m.indexes[k] = idx - 1
		}
	}
	return true
}

// Each iterates in insertion order; returning false stops the walk.
func (m *Map) Each(fn func(key, value Value) bool) {
	if m == nil {
		return
	}
	for i := range m.keys {
		if !fn(m.keys[i], m.values[i]) {
			return
		}
	}
}

func (m *Map) Keys() []Value {
	if m == nil {
		return nil
	}
	out := make([]Value, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Values() []Value {
	if m == nil {
		return nil
	}
	out := make([]Value, len(m.values))
	copy(out, m.values)
	return out
}

func (m *Map) Clone() *Map {
	if m == nil {
		return NewMap()
	}
	out := NewMapCapacity(len(m.keys))
	for i := range m.keys {
		out.Set(m.keys[i], m.values[i])
	}
	return out
}

// Merge copies o's entries into m; o wins on key conflicts.
func (m *Map) Merge(o *Map) {
	if o == nil {
		return
	}
	for i := range o.keys {
		m.Set(o.keys[i], o.values[i])
	}
}

// Reversed returns a copy with the insertion order flipped.
func (m *Map) Reversed() *Map {
	out := NewMapCapacity(m.Len())
	for i := m.Len() - 1; i >= 0; i-- {
		out.Set(m.keys[i], m.values[i])
	}
	return out
}

func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i := range m.keys {
		ov, ok := o.Get(m.keys[i])
		if !ok || !m.values[i].Equal(ov) {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.keys[i].String())
		sb.WriteString(" = ")
		sb.WriteString(m.values[i].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (m *Map) hashKey() string {
	var sb strings.Builder
	sb.WriteString("m:{")
	for i := range m.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(m.keys[i].hashKey())
		sb.WriteByte('=')
		sb.WriteString(m.values[i].hashKey())
	}
	sb.WriteByte('}')
	return sb.String()
}
