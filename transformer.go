package codec

import "reflect"

// Transformer lets a caller teach the codec how to fold one kind of
// otherwise-unserializable value — a closure, a coroutine handle, a
// resource handle, an anonymous type — into a natively-serializable
// Placeholder payload, and how to rebuild it on the way back.
//
// Transforms is consulted for every value the encoder walks, before any
// built-in handling, so a Transformer can claim a value MessagePack could
// have encoded on its own (an int, a plain struct) as well as one it
// cannot. Resolve is only ever asked about a classTag this same Transformer
// claimed via Resolves.
type Transformer interface {
	// Transforms reports whether this Transformer handles v. Checked in
	// registration order; the first match wins, so a Transformer intended
	// to override a more general one must be registered ahead of it (see
	// Registry.Prepend).
	Transforms(v reflect.Value) bool

	// Transform converts v into a classTag identifying this Transformer's
	// output, plus a natively-serializable payload. The payload may itself
	// contain values that still need transforming or identity-tracking;
	// the encoder walks it like any other part of the graph, except that
	// the payload value itself is not offered back to the registry.
	Transform(v reflect.Value) (classTag string, payload any, err error)

	// Resolves reports whether this Transformer can rebuild a value from
	// the given classTag.
	Resolves(classTag string) bool

	// Resolve rebuilds a live value from payload (the same shape Transform
	// produced, after the codec has delinearized shared references back
	// into Go pointers). rc lets Resolve recursively resolve nested parts
	// of payload on demand, and lets it register a partially-built
	// instance early to break a cycle that runs back through this same
	// placeholder — see ResolveContext.
	Resolve(classTag string, payload any, rc *ResolveContext) (any, error)
}

// Registry is an ordered, first-match-wins list of Transformers.
type Registry struct {
	entries []Transformer
}

// Append adds t with the lowest priority: it's tried only after every
// previously registered Transformer has declined.
func (r *Registry) Append(t Transformer) {
	r.entries = append(r.entries, t)
}

// Prepend adds t with the highest priority: it's tried before every
// previously registered Transformer.
func (r *Registry) Prepend(t Transformer) {
	r.entries = append([]Transformer{t}, r.entries...)
}

func (r *Registry) findForValue(v reflect.Value) Transformer {
	for _, t := range r.entries {
		if t.Transforms(v) {
			return t
		}
	}
	return nil
}

func (r *Registry) findForClassTag(classTag string) Transformer {
	for _, t := range r.entries {
		if t.Resolves(classTag) {
			return t
		}
	}
	return nil
}

// TransformerFunc pairs let a caller register a Transformer from two plain
// functions instead of a full interface implementation, the common case
// when there's exactly one classTag involved.
type TransformerFunc struct {
	ClassTag    string
	Match       func(v reflect.Value) bool
	TransformFn func(v reflect.Value) (payload any, err error)
	ResolveFn   func(payload any, rc *ResolveContext) (any, error)
}

var _ Transformer = (*TransformerFunc)(nil)

func (f *TransformerFunc) Transforms(v reflect.Value) bool {
	return f.Match(v)
}

func (f *TransformerFunc) Transform(v reflect.Value) (string, any, error) {
	payload, err := f.TransformFn(v)
	return f.ClassTag, payload, err
}

func (f *TransformerFunc) Resolves(classTag string) bool {
	return classTag == f.ClassTag
}

func (f *TransformerFunc) Resolve(classTag string, payload any, rc *ResolveContext) (any, error) {
	return f.ResolveFn(payload, rc)
}
