// Package omap implements a generic insertion-ordered map.
//
// The session extension's changeset builder tracks tables and rows in
// first-touch order, but also needs to re-seat an entry at its original
// position after it has been removed and reinserted (the INSERT+DELETE
// collapse case in the operation consolidation table deletes an entry
// outright, while most other combinations update it in place without
// moving it in iteration order). No ordered-map library appears among
// this corpus's dependencies, so this is a small hand-rolled structure
// rather than an import; see DESIGN.md for the survey that led to that
// call.
package omap

// Map is an insertion-ordered map from K to V. The zero value is ready
// to use.
type Map[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]int)}
}

// Get returns the value stored for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if m.index == nil {
		var zero V
		return zero, false
	}
	i, ok := m.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	if m.index == nil {
		return false
	}
	_, ok := m.index[key]
	return ok
}

// Set stores value for key. If key is new, it is appended at the end of
// the iteration order; if key already exists, its value is replaced and
// its position is left unchanged.
func (m *Map[K, V]) Set(key K, value V) {
	if m.index == nil {
		m.index = make(map[K]int)
	}
	if i, ok := m.index[key]; ok {
		m.vals[i] = value
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, value)
}

// Delete removes key, shifting every entry after it back one position so
// iteration order among the survivors is preserved. It reports whether
// key was present.
func (m *Map[K, V]) Delete(key K) bool {
	if m.index == nil {
		return false
	}
	i, ok := m.index[key]
	if !ok {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	delete(m.index, key)
	for k, idx := range m.index {
		if idx > i {
			m.index[k] = idx - 1
		}
	}
	return true
}

// IndexOf returns key's iteration position, or (-1, false) if absent.
func (m *Map[K, V]) IndexOf(key K) (int, bool) {
	if m.index == nil {
		return -1, false
	}
	i, ok := m.index[key]
	return i, ok
}

// InsertAt inserts a new key/value pair at iteration position i, shifting
// every entry previously at or after i one position later. key must not
// already be present.
func (m *Map[K, V]) InsertAt(i int, key K, value V) {
	if m.index == nil {
		m.index = make(map[K]int)
	}
	if i > len(m.keys) {
		i = len(m.keys)
	}
	m.keys = append(m.keys, key)
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key

	m.vals = append(m.vals, value)
	copy(m.vals[i+1:], m.vals[i:])
	m.vals[i] = value

	for k, idx := range m.index {
		if idx >= i {
			m.index[k] = idx + 1
		}
	}
	m.index[key] = i
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The returned slice must not
// be mutated.
func (m *Map[K, V]) Keys() []K { return m.keys }

// Values returns the values in the same order as Keys. The returned
// slice must not be mutated.
func (m *Map[K, V]) Values() []V { return m.vals }

// At returns the key/value pair at iteration position i.
func (m *Map[K, V]) At(i int) (K, V) { return m.keys[i], m.vals[i] }

// Each calls fn for every entry in insertion order. fn must not mutate m.
func (m *Map[K, V]) Each(fn func(key K, value V)) {
	for i, k := range m.keys {
		fn(k, m.vals[i])
	}
}
