package codec

import "fmt"

// Pair is one key/value slot of an OrderedMap.
type Pair struct {
	Key   any
	Value any
}

// OrderedMap is a keyed collection that remembers insertion order, the way
// an associative array in most dynamic languages does. Go's native map has
// no such guarantee, so a caller or a Transformer that wants to preserve a
// source language's associative-array ordering can use OrderedMap instead
// of map[string]any.
//
// On the wire an OrderedMap is not a distinct MessagePack type: the encoder
// walks it like any other struct, so it travels as a map whose "Pairs"
// entry is an array of {"Key", "Value"} maps in insertion order.
// Unserialize hands it back in that generic shape; it does not rebuild an
// OrderedMap.
type OrderedMap struct {
	Pairs []Pair
}

// NewOrderedMap returns an empty OrderedMap ready for Set calls.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{}
}

// Get returns the value stored under key and whether it was found. Lookup is
// O(n); OrderedMap favors predictable iteration order over lookup speed,
// same tradeoff as a small associative array.
func (m *OrderedMap) Get(key any) (any, bool) {
	for _, p := range m.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Set appends key/value if key is new, or overwrites the existing value in
// place (preserving its original position) if key already exists.
func (m *OrderedMap) Set(key, value any) {
	for i, p := range m.Pairs {
		if p.Key == key {
			m.Pairs[i].Value = value
			return
		}
	}
	m.Pairs = append(m.Pairs, Pair{Key: key, Value: value})
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []any {
	keys := make([]any, len(m.Pairs))
	for i, p := range m.Pairs {
		keys[i] = p.Key
	}
	return keys
}

// Len reports the number of pairs.
func (m *OrderedMap) Len() int {
	return len(m.Pairs)
}

func (m *OrderedMap) String() string {
	return fmt.Sprintf("OrderedMap(%d pairs)", len(m.Pairs))
}

// toWireArray converts the OrderedMap into the [][2]any-ish shape that
// survives a plain MessagePack array: a slice of two-element slices, with
// fn applied to each value so the caller (linearize) gets a chance to
// substitute shared references before the final encode.
func (m *OrderedMap) toWireArray(fn func(any) any) []any {
	out := make([]any, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = []any{p.Key, fn(p.Value)}
	}
	return out
}

// orderedMapFromWireArray reverses toWireArray, applying fn to each decoded
// value so a caller can substitute resolved references back in. Neither
// delinearizeEnvelope nor the resolve walk calls it.
func orderedMapFromWireArray(raw []any, fn func(any) any) *OrderedMap {
	m := &OrderedMap{Pairs: make([]Pair, 0, len(raw))}
	for _, item := range raw {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		m.Pairs = append(m.Pairs, Pair{Key: pair[0], Value: fn(pair[1])})
	}
	return m
}
