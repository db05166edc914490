package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cloner is implemented by entities kept in a Map
type Cloner[V any] interface {
	Clone() V
}

// Map is an id -> entity mapping that remembers insertion order.
// The zero value is ready to use.
type Map[V Cloner[V]] struct {
	keys  []string
	items map[string]V
}

// Len returns the number of entries
func (m Map[V]) Len() int { return len(m.keys) }

// Get returns the entity stored under id
func (m Map[V]) Get(id string) (V, bool) {
	v, ok := m.items[id]
	return v, ok
}

// Has reports whether id is present
func (m Map[V]) Has(id string) bool {
	_, ok := m.items[id]
	return ok
}

// Keys returns the ids in insertion order
func (m Map[V]) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Each calls fn in insertion order until it returns false
func (m Map[V]) Each(fn func(id string, v V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.items[k]) {
			return
		}
	}
}

// Set stores v under id. New ids are appended to the order; existing ids
// keep their position.
func (m *Map[V]) Set(id string, v V) {
	if m.items == nil {
		m.items = make(map[string]V)
	}
	if _, ok := m.items[id]; !ok {
		m.keys = append(m.keys, id)
	}
	m.items[id] = v
}

// Update applies fn to the entity stored under id and stores the result
func (m *Map[V]) Update(id string, fn func(v *V)) bool {
	v, ok := m.items[id]
	if !ok {
		return false
	}
	fn(&v)
	m.items[id] = v
	return true
}

// Delete removes id and reports whether it was present
func (m *Map[V]) Delete(id string) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	keys := make([]string, 0, len(m.keys)-1)
	for _, k := range m.keys {
		if k != id {
			keys = append(keys, k)
		}
	}
	m.keys = keys
	return true
}

// Clone returns a deep copy sharing nothing with m
func (m Map[V]) Clone() Map[V] {
	if m.items == nil {
		return Map[V]{}
	}
	out := Map[V]{
		keys:  cloneStrings(m.keys),
		items: make(map[string]V, len(m.items)),
	}
	for k, v := range m.items {
		out.items[k] = v.Clone()
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order
func (m Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.items[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	*m = Map[V]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		m.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
