package codec

import "fmt"

// Envelope pairs the root value produced by the encoder's transform walk
// with every Placeholder reachable from it, in the order collectPlaceholders
// first meets them. Maps are walked in Go's map iteration order, so that
// order is not necessarily the order the placeholders were created in. It only
// ever exists in memory — the pointer sharing between Envelope.Value and
// Envelope.Shortcuts is what lets a placeholder appear once on the wire no
// matter how many places in the graph reference it, including itself.
//
// MessagePack has no back-reference notation of its own, so this in-memory
// graph of *Placeholder pointers is linearized into plain, ref-indexed
// MessagePack values before Marshal (linearizeEnvelope) and rebuilt after
// Unmarshal, before decode.go's resolve walk ever sees a *Placeholder
// (delinearizeEnvelope).
type Envelope struct {
	Value     any
	Shortcuts []*Placeholder
}

// wireRefKey is the single map key that marks a linearized value as a
// reference into the shortcuts array rather than literal data. A real
// MessagePack map that happens to have exactly this one key is, in
// principle, indistinguishable from a ref marker — an accepted limitation,
// recorded in DESIGN.md, of using a plain value rather than a dedicated
// MessagePack extension type for refs.
const wireRefKey = "$ref"

func wireRef(id int) map[string]any {
	return map[string]any{wireRefKey: id}
}

func asWireRef(v any) (int, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return 0, false
	}
	raw, ok := m[wireRefKey]
	if !ok {
		return 0, false
	}
	return toInt(raw), true
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// linearizeEnvelope flattens env into a plain, MessagePack-ready value:
//
//	[ value', [ [classTag, payload'], ... ] ]
//
// Every *Placeholder encountered — whether it's env.Value itself, nested
// inside another placeholder's payload, or reachable more than once — is
// replaced by a wireRef pointing at its position in the shortcuts array,
// and its body is written to that position exactly once, the first time it
// is reached. That single-write rule is what makes a self-referencing
// placeholder linearize at all: the ref marker for a cycle is emitted
// immediately, before we recurse into the payload that completes the cycle.
func linearizeEnvelope(env *Envelope) any {
	ids := make(map[*Placeholder]int, len(env.Shortcuts))
	shortcuts := make([]any, 0, len(env.Shortcuts))

	var walk func(v any) any
	walk = func(v any) any {
		switch t := v.(type) {
		case *Placeholder:
			if id, ok := ids[t]; ok {
				return wireRef(id)
			}
			id := len(shortcuts)
			ids[t] = id
			shortcuts = append(shortcuts, nil)
			payload := walk(t.Payload)
			shortcuts[id] = []any{t.ClassTag, payload}
			return wireRef(id)
		case map[string]any:
			out := make(map[string]any, len(t))
			for k, vv := range t {
				out[k] = walk(vv)
			}
			return out
		case []any:
			out := make([]any, len(t))
			for i, vv := range t {
				out[i] = walk(vv)
			}
			return out
		case *OrderedMap:
			return t.toWireArray(walk)
		default:
			return v
		}
	}

	wireValue := walk(env.Value)
	return []any{wireValue, shortcuts}
}

// delinearizeEnvelope reverses linearizeEnvelope after a MessagePack decode
// into a generic any (so maps arrive as map[string]any and arrays as
// []any). It allocates every Placeholder up front so a forward or
// self-referencing wireRef always resolves to a real pointer, then fills in
// each one's ClassTag and Payload.
func delinearizeEnvelope(wire any) (*Envelope, error) {
	top, ok := wire.([]any)
	if !ok || len(top) != 2 {
		return nil, nativeCodecErrf("decode", fmt.Errorf("malformed envelope: expected 2-element array, got %T", wire))
	}
	rawShortcuts, ok := top[1].([]any)
	if !ok {
		return nil, nativeCodecErrf("decode", fmt.Errorf("malformed envelope: expected shortcuts array, got %T", top[1]))
	}

	placeholders := make([]*Placeholder, len(rawShortcuts))
	for i := range placeholders {
		placeholders[i] = &Placeholder{}
	}

	var resolveRefs func(v any) any
	resolveRefs = func(v any) any {
		if id, ok := asWireRef(v); ok {
			if id < 0 || id >= len(placeholders) {
				return v
			}
			return placeholders[id]
		}
		switch t := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(t))
			for k, vv := range t {
				out[k] = resolveRefs(vv)
			}
			return out
		case []any:
			out := make([]any, len(t))
			for i, vv := range t {
				out[i] = resolveRefs(vv)
			}
			return out
		default:
			return v
		}
	}

	for i, raw := range rawShortcuts {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, nativeCodecErrf("decode", fmt.Errorf("malformed shortcut %d: %T", i, raw))
		}
		classTag, _ := pair[0].(string)
		placeholders[i].ClassTag = classTag
		placeholders[i].Payload = resolveRefs(pair[1])
	}

	value := resolveRefs(top[0])
	return &Envelope{Value: value, Shortcuts: placeholders}, nil
}
