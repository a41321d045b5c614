package codec

import "reflect"

// refID identifies one aliasable Go value for the lifetime of a single
// Serialize call, so two fields that point at the same map/slice/pointer
// are folded into one shortcut entry instead of being duplicated on the
// wire.
type refID uint64

// refIDOf returns the identity of v and whether v's kind even has one.
// Only reflect.Ptr, Map, Slice, Chan and UnsafePointer carry an address
// reflect.Value.Pointer() can read; a struct passed by value, a scalar, or
// a func (closure) has no such address, so two occurrences of "the same"
// struct value are — correctly — treated as unrelated copies, and a
// closure's identity is approximated by the Transformer that captures it
// (see encode.go's "go:func" default placeholder for funcs no Transformer
// claims).
func refIDOf(v reflect.Value) (refID, bool) {
	if !v.IsValid() {
		return 0, false
	}
	kind := v.Kind()
	if !identityKind(kind) {
		return 0, false
	}
	if kind == reflect.Slice || kind == reflect.Map || kind == reflect.Chan {
		if v.IsNil() {
			return 0, false
		}
	} else if kind == reflect.Ptr || kind == reflect.UnsafePointer {
		if v.IsNil() {
			return 0, false
		}
	}
	return refID(v.Pointer()), true
}

// elementCount is the cheap "did this mutate under us" snapshot we take the
// first time a refID is visited during one Serialize call: just the element
// count for collection kinds, not a deep comparison. A caller who mutates a
// shared map or slice while we're still walking it can slip through this
// check; see SourceMutatedError's doc comment and the decision recorded in
// DESIGN.md.
func elementCount(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan:
		return v.Len(), true
	default:
		return 0, false
	}
}
