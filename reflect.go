package codec

import (
	"fmt"
	"reflect"
	"sync"
)

// structInfo caches the exported fields of a struct type, in declaration
// order, so the encoder's struct walk (walkStruct, countRefs) can visit
// "whatever MessagePack could plausibly carry" without re-running
// reflection on every visit.
var typeInfoCache sync.Map

type structInfo struct {
	typ    reflect.Type
	fields []reflect.StructField
}

func reflectStructType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectStructTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectStructTypeWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v is not a struct", typ))
	}
	info := &structInfo{typ: typ}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.IsExported() {
			info.fields = append(info.fields, f)
		}
	}
	return info
}

// snapshot copies every exported field of structVal into a plain
// map[string]any keyed by field name, suitable as a Placeholder payload for
// a struct type with no registered Transformer.
func (si *structInfo) snapshot(structVal reflect.Value) map[string]any {
	out := make(map[string]any, len(si.fields))
	for _, f := range si.fields {
		out[f.Name] = structVal.FieldByIndex(f.Index).Interface()
	}
	return out
}

// identityKind reports whether typ carries a stable, pointer-based identity
// that reflect.Value.Pointer() can read — the only Go kinds our refID scheme
// can track. Everything else (structs by value, funcs, scalars) has no
// address stable enough to key a shared-reference table on.
func identityKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
