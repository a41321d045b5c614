package codec

import (
	"context"
	"log/slog"
	"strings"
)

// decodeState is the per-call bookkeeping for one resolve walk: nothing
// beyond a registry reference and a counter, because the real memo table
// lives on each *Placeholder itself (instance/hasInstance) — a placeholder
// is only ever resolved once per Unserialize call by construction, since
// delinearizeEnvelope handed out one shared pointer per shortcut.
type decodeState struct {
	registry *Registry
	logger   *slog.Logger

	placeholdersResolved int64
}

func newDecodeState(registry *Registry) *decodeState {
	return &decodeState{registry: registry, logger: slog.Default()}
}

// resolve walks v — the delinearized Envelope.Value or a Placeholder's
// Payload — replacing every *Placeholder with its live instance.
func (st *decodeState) resolve(v any) (any, error) {
	switch t := v.(type) {
	case *Placeholder:
		return st.resolvePlaceholder(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			rv, err := st.resolve(vv)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			rv, err := st.resolve(vv)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (st *decodeState) resolvePlaceholder(ph *Placeholder) (any, error) {
	if ph.hasInstance {
		st.logger.LogAttrs(context.Background(), slog.LevelDebug, "cycle detected during resolve", slog.String("classTag", ph.ClassTag))
		return ph.instance, nil
	}
	if ph.IsShared() {
		return st.resolveShared(ph)
	}
	return st.resolveTransformed(ph)
}

// resolveShared rebuilds a plain map, slice, or passthrough scalar that was
// wrapped purely to preserve its identity across the wire. The instance is
// registered on the Placeholder before its contents are filled in, so a
// cycle that loops back through this same pointer gets a live reference to
// the (still filling in) map or slice rather than recursing forever — maps
// and slices are Go reference types, so every holder of that reference
// sees the final contents once resolution completes.
func (st *decodeState) resolveShared(ph *Placeholder) (any, error) {
	switch p := ph.Payload.(type) {
	case map[string]any:
		instance := make(map[string]any, len(p))
		ph.instance, ph.hasInstance = instance, true
		for k, v := range p {
			rv, err := st.resolve(v)
			if err != nil {
				return nil, err
			}
			instance[k] = rv
		}
		return instance, nil
	case []any:
		instance := make([]any, len(p))
		ph.instance, ph.hasInstance = instance, true
		for i, v := range p {
			rv, err := st.resolve(v)
			if err != nil {
				return nil, err
			}
			instance[i] = rv
		}
		return instance, nil
	case nil:
		ph.instance, ph.hasInstance = nil, true
		return nil, nil
	default:
		rv, err := st.resolve(p)
		if err != nil {
			return nil, err
		}
		ph.instance, ph.hasInstance = rv, true
		return rv, nil
	}
}

// resolveTransformed hands a Transformer-produced (or built-in default)
// placeholder back to whatever can rebuild it.
func (st *decodeState) resolveTransformed(ph *Placeholder) (any, error) {
	if t := st.registry.findForClassTag(ph.ClassTag); t != nil {
		rc := &ResolveContext{state: st, ph: ph}
		instance, err := t.Resolve(ph.ClassTag, ph.Payload, rc)
		if err != nil {
			return nil, transformerErrf("resolve", err)
		}
		ph.instance, ph.hasInstance = instance, true
		st.placeholdersResolved++
		return instance, nil
	}

	instance, ok, err := st.resolveBuiltinClassTag(ph)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnresolvablePlaceholderError{ClassTag: ph.ClassTag}
	}
	ph.instance, ph.hasInstance = instance, true
	st.placeholdersResolved++
	return instance, nil
}

// resolveBuiltinClassTag handles the classTags the encoder itself issues
// for values no Transformer claimed — a bare channel, func, unsafe
// pointer, or a struct with nothing to say beyond its exported fields.
// Without a registered Transformer there is no way to recover the original
// Go type, so these fall back to the closest generic shape: nil for
// handles that can't be reconstructed at all, a plain map for a struct
// snapshot.
func (st *decodeState) resolveBuiltinClassTag(ph *Placeholder) (any, bool, error) {
	switch {
	case ph.ClassTag == "go:func", ph.ClassTag == "go:unsafeptr":
		return nil, true, nil
	case ph.ClassTag == "go:chan":
		return st.resolveBuiltinChan(ph.Payload)
	case strings.HasPrefix(ph.ClassTag, "go:struct:"):
		rv, err := st.resolve(ph.Payload)
		return rv, true, err
	default:
		return nil, false, nil
	}
}

func (st *decodeState) resolveBuiltinChan(payload any) (any, bool, error) {
	capacity := 0
	if p, ok := payload.(map[string]any); ok {
		capacity = toInt(p["cap"])
	}
	return make(chan any, capacity), true, nil
}

// ResolveContext is handed to a Transformer's Resolve method. It lets
// Resolve recursively resolve parts of its own payload on demand, and lets
// it register a partially-built instance early so a cycle that runs back
// through this same placeholder (decoded.b === decoded.b.d in the spec's
// terms) picks up a live reference instead of looping forever.
//
// A Transformer whose instances can participate in a cycle MUST call
// Register before resolving any part of the payload that might reference
// this placeholder again; one that never produces cycles can ignore
// Register entirely and just return its built instance.
type ResolveContext struct {
	state *decodeState
	ph    *Placeholder
}

// Register declares instance as this placeholder's live value before
// Resolve has necessarily finished populating it.
func (rc *ResolveContext) Register(instance any) {
	rc.ph.instance, rc.ph.hasInstance = instance, true
}

// Resolve recursively resolves v, which may be (or contain) a nested
// Placeholder — including, for a genuine cycle, this same placeholder, in
// which case it returns whatever was last passed to Register.
func (rc *ResolveContext) Resolve(v any) (any, error) {
	return rc.state.resolve(v)
}
