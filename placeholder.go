package codec

// sharedClassTag is the reserved, never-issued-by-a-real-Transformer class
// tag marking a Placeholder as a pure identity passthrough: a plain map,
// slice, or pointer-to-struct that MessagePack could encode happily on its
// own, but that appears more than once in the graph (or inside a cycle) and
// so still needs a shortcut slot to preserve sharing across the wire.
// MessagePack has no back-reference notation of its own — see doc.go.
const sharedClassTag = ""

// Placeholder is the natively-serializable stand-in the encoder substitutes
// for anything MessagePack can't carry as-is — a closure, a channel, a
// struct with nothing exported — plus, via sharedClassTag, for any plain
// value that needs its sharing preserved across the wire boundary.
//
// A Placeholder only ever exists in memory, keyed by pointer identity in an
// Envelope's shortcuts list; see envelope.go for how that in-memory graph of
// *Placeholder pointers is linearized into wire bytes and back.
type Placeholder struct {
	ClassTag string
	Payload  any

	// refID is the identity (see refid.go) of the source value this
	// Placeholder stands in for, used only during encoding to fold repeat
	// visits of the same value into one shortcut. Zero for placeholders
	// that never had a trackable identity (e.g. a closure).
	refID refID

	// decode-time bookkeeping; unused and zero during encoding.
	instance    any
	hasInstance bool
}

// IsShared reports whether this placeholder is a plain identity passthrough
// rather than a Transformer-produced substitute.
func (p *Placeholder) IsShared() bool {
	return p.ClassTag == sharedClassTag
}
