package codec

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeState is the per-call bookkeeping for one transform walk: which
// identities have already been turned into a Placeholder (so a second
// visit reuses the same *Placeholder pointer instead of duplicating work),
// and the cheap snapshot used to notice if the caller mutates the graph out
// from under us mid-encode.
type encodeState struct {
	registry *Registry
	logger   *slog.Logger

	refCounts map[refID]int          // how many times each identity is reachable, from the pre-count pass
	sources   map[refID]*Placeholder // identity -> placeholder already created for it
	counts    map[refID]int          // elementCount() taken at first visit, for mutation detection

	placeholdersCreated int64
}

func newEncodeState(registry *Registry) *encodeState {
	return &encodeState{
		registry: registry,
		logger:   slog.Default(),
		sources:  make(map[refID]*Placeholder),
		counts:   make(map[refID]int),
	}
}

// transform walks root and returns the Envelope the slow path encodes: a
// value tree with every MessagePack-unencodable node, and every node whose
// identity is reachable more than once, replaced by a Placeholder.
//
// It runs two passes. The first (countRefs) only counts how many times each
// aliasable identity is reached, recursing into a given identity's contents
// just once so a cycle terminates instead of looping forever; a value on a
// cycle is, by construction, reached at least twice, so it always ends up
// with count >= 2. The second (walk) is the real transform: a pointer, map,
// or slice only pays for a Placeholder wrapper when the first pass saw it
// more than once, so an ordinary acyclic value — the overwhelming common
// case — comes back with no Placeholders at all and Serialize takes the
// fast path. The one gap this leaves, documented in DESIGN.md, is sharing
// that only exists inside an opaque Transformer payload: Transform hasn't
// run yet during the count pass, so that payload's internal structure is
// invisible to it.
func (st *encodeState) transform(root any) (*Envelope, error) {
	st.refCounts = make(map[refID]int)
	st.countRefs(reflect.ValueOf(root), make(map[refID]bool))

	value, err := st.walk(reflect.ValueOf(root))
	if err != nil {
		return nil, err
	}
	shortcuts := getPlaceholderSlice()
	seen := make(map[*Placeholder]bool, len(st.sources))
	collectPlaceholders(value, seen, &shortcuts)
	return &Envelope{Value: value, Shortcuts: shortcuts}, nil
}

// countRefs is the read-only pre-pass transform relies on to know which
// identities need a Placeholder. visiting guards against infinite descent
// around a true cycle: once an identity is already on the call stack, a
// second arrival just bumps its count and returns.
func (st *encodeState) countRefs(rv reflect.Value, visiting map[refID]bool) {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return
	}

	if id, ok := refIDOf(rv); ok {
		st.refCounts[id]++
		if visiting[id] || st.refCounts[id] > 1 {
			return
		}
		visiting[id] = true
		defer delete(visiting, id)
	}

	if st.registry.findForValue(rv) != nil {
		return
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if !rv.IsNil() {
			st.countRefs(rv.Elem(), visiting)
		}
	case reflect.Map:
		if !rv.IsNil() {
			iter := rv.MapRange()
			for iter.Next() {
				st.countRefs(iter.Value(), visiting)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			st.countRefs(rv.Index(i), visiting)
		}
	case reflect.Struct:
		info := reflectStructType(rv.Type())
		for _, f := range info.fields {
			st.countRefs(rv.FieldByIndex(f.Index), visiting)
		}
	}
}

// shared reports whether rv's identity was reached more than once during
// the pre-count pass, and so needs a Placeholder to preserve that sharing
// across the wire.
func (st *encodeState) shared(rv reflect.Value) bool {
	id, ok := refIDOf(rv)
	return ok && st.refCounts[id] >= 2
}

// collectPlaceholders walks the already-transformed tree to list every
// Placeholder reachable from it, in first-encounter order, skipping back
// into a payload we've already visited so a cycle terminates.
func collectPlaceholders(v any, seen map[*Placeholder]bool, out *[]*Placeholder) {
	switch t := v.(type) {
	case *Placeholder:
		if seen[t] {
			return
		}
		seen[t] = true
		*out = append(*out, t)
		collectPlaceholders(t.Payload, seen, out)
	case map[string]any:
		for _, vv := range t {
			collectPlaceholders(vv, seen, out)
		}
	case []any:
		for _, vv := range t {
			collectPlaceholders(vv, seen, out)
		}
	case *OrderedMap:
		for _, p := range t.Pairs {
			collectPlaceholders(p.Value, seen, out)
		}
	}
}

// walk is the heart of the slow path. It recurses through rv, substituting
// a Placeholder for:
//
//   - any value a registered Transformer claims,
//   - any value of a kind MessagePack cannot represent at all (chan, func,
//     unsafe pointer),
//   - any pointer, map or slice the pre-count pass (countRefs) found
//     reachable more than once — MessagePack has no back-reference
//     notation of its own, so a value's sharing or cyclic self-reference
//     can only survive the wire by going through a Placeholder's shortcut
//     slot.
//
// Everything else — an acyclic value with no shared identities anywhere in
// it — comes back as plain maps, slices and scalars with zero Placeholders,
// which is exactly the condition Serialize checks to take the fast path.
func (st *encodeState) walk(rv reflect.Value) (any, error) {
	return st.walkValue(rv, true)
}

// walkValue is walk with the Transformer lookup for rv itself made optional:
// transformWith passes false for a Transformer's payload, so the payload is
// not handed straight back to the registry (a Transformer that matches its
// own output would otherwise recurse forever), while everything nested
// inside it still is.
func (st *encodeState) walkValue(rv reflect.Value, consultRegistry bool) (any, error) {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, nil
	}

	if id, ok := refIDOf(rv); ok {
		if ph, ok := st.sources[id]; ok {
			if cnt, ok := elementCount(rv); ok {
				if want, ok := st.counts[id]; ok && want != cnt {
					return nil, sourceMutatedErrf(rv.Kind().String(), "element count changed %d -> %d while encoding", want, cnt)
				}
			}
			st.logger.LogAttrs(context.Background(), slog.LevelDebug, "cycle or shared reference resolved",
				slog.String("classTag", ph.ClassTag), slog.Uint64("refID", uint64(id)))
			return ph, nil
		}
	}

	if consultRegistry {
		if t := st.registry.findForValue(rv); t != nil {
			return st.transformWith(rv, t)
		}
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		if st.shared(rv) {
			return st.walkIdentity(rv, sharedClassTag, func() (any, error) { return st.walk(rv.Elem()) })
		}
		return st.walk(rv.Elem())
	case reflect.Map:
		if st.shared(rv) {
			return st.walkIdentity(rv, sharedClassTag, func() (any, error) { return st.walkMap(rv) })
		}
		return st.walkMap(rv)
	case reflect.Slice:
		if st.shared(rv) {
			return st.walkIdentity(rv, sharedClassTag, func() (any, error) { return st.walkSlice(rv) })
		}
		return st.walkSlice(rv)
	case reflect.Array:
		return st.walkSlice(rv)
	case reflect.Struct:
		return st.walkStruct(rv)
	case reflect.Chan:
		return st.walkIdentity(rv, "go:chan", func() (any, error) {
			return map[string]any{"cap": rv.Cap(), "len": rv.Len()}, nil
		})
	case reflect.Func:
		return st.defaultPlaceholder("go:func", map[string]any{"type": rv.Type().String()}), nil
	case reflect.UnsafePointer:
		return st.defaultPlaceholder("go:unsafeptr", nil), nil
	default:
		return rv.Interface(), nil
	}
}

// walkIdentity registers a Placeholder for rv's identity before calling
// build, so a cycle that loops back through rv sees the (still-empty)
// Placeholder instead of recursing forever.
func (st *encodeState) walkIdentity(rv reflect.Value, classTag string, build func() (any, error)) (any, error) {
	id, ok := refIDOf(rv)
	if !ok {
		return build()
	}
	ph := &Placeholder{ClassTag: classTag, refID: id}
	st.sources[id] = ph
	if cnt, ok := elementCount(rv); ok {
		st.counts[id] = cnt
	}
	st.placeholdersCreated++
	st.logger.LogAttrs(context.Background(), slog.LevelDebug, "placeholder created",
		slog.String("classTag", classTag), slog.Uint64("refID", uint64(id)))

	payload, err := build()
	if err != nil {
		return nil, err
	}
	ph.Payload = payload
	return ph, nil
}

func (st *encodeState) defaultPlaceholder(classTag string, payload any) *Placeholder {
	st.placeholdersCreated++
	st.logger.LogAttrs(context.Background(), slog.LevelDebug, "placeholder created", slog.String("classTag", classTag))
	return &Placeholder{ClassTag: classTag, Payload: payload}
}

func (st *encodeState) transformWith(rv reflect.Value, t Transformer) (any, error) {
	id, hasID := refIDOf(rv)

	var ph *Placeholder
	if hasID {
		ph = &Placeholder{refID: id}
		st.sources[id] = ph
	}
	st.placeholdersCreated++

	classTag, payload, err := t.Transform(rv)
	if err != nil {
		return nil, transformerErrf("transform", err)
	}
	st.logger.LogAttrs(context.Background(), slog.LevelDebug, "placeholder created", slog.String("classTag", classTag))
	walked, err := st.walkValue(reflect.ValueOf(payload), false)
	if err != nil {
		return nil, err
	}

	if hasID {
		ph.ClassTag = classTag
		ph.Payload = walked
		return ph, nil
	}
	return &Placeholder{ClassTag: classTag, Payload: walked}, nil
}

func (st *encodeState) walkMap(rv reflect.Value) (any, error) {
	if rv.IsNil() {
		return nil, nil
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		kv, err := st.walk(k)
		if err != nil {
			return nil, err
		}
		keyStr, ok := kv.(string)
		if !ok {
			keyStr = formatMapKey(k)
		}
		vv, err := st.walk(iter.Value())
		if err != nil {
			return nil, err
		}
		out[keyStr] = vv
	}
	return out, nil
}

// formatMapKey stringifies a non-string map key (int, etc.) for use as a
// MessagePack map key: the wire format only has string-keyed maps, so a
// Go map[int]T loses its key type on the wire the same way it would
// through encoding/json.
func formatMapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func (st *encodeState) walkSlice(rv reflect.Value) (any, error) {
	n := rv.Len()
	if n == 0 {
		return []any{}, nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, n)
		reflect.Copy(reflect.ValueOf(b), rv)
		return b, nil
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := st.walk(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (st *encodeState) walkStruct(rv reflect.Value) (any, error) {
	info := reflectStructType(rv.Type())
	if len(info.fields) == 0 {
		// Nothing our own reflection can see — either a genuinely opaque
		// struct, or one like time.Time whose data lives in unexported
		// fields but that MessagePack still knows how to encode through
		// its own extension support. Since msgpack's struct encoder also
		// skips unexported fields, probing it here can't chase a cycle we
		// wouldn't otherwise have decomposed: try it before giving up and
		// snapshotting an empty placeholder.
		if canNativelyEncode(rv) {
			return rv.Interface(), nil
		}
		return st.defaultPlaceholder("go:struct:"+rv.Type().String(), map[string]any{}), nil
	}
	out := make(map[string]any, len(info.fields))
	for _, f := range info.fields {
		v, err := st.walk(rv.FieldByIndex(f.Index))
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// canNativelyEncode reports whether rv round-trips through MessagePack
// directly, via a trial Marshal. Used only for object values whose exported
// fields our own reflection walk has nothing to say about; deliberately not
// extended to structs with exported fields (which could hold a pointer back
// into a cycle we're still walking, and MessagePack's own encoder has no
// identity tracking of its own to break it) or to maps/slices (spec.md's
// array case decomposes those unconditionally so nested shared identities
// are still found).
func canNativelyEncode(rv reflect.Value) bool {
	if !rv.CanInterface() {
		return false
	}
	_, err := msgpack.Marshal(rv.Interface())
	return err == nil
}
