/*
Package codec implements a general-purpose value codec: it folds arbitrary
Go value graphs into a self-describing byte string and reconstructs them
on the other side, even when the graph contains values MessagePack (our
native serializer, via github.com/vmihailenco/msgpack/v5) cannot encode on
its own — closures, channels, unsafe pointers, and structs with no
exported fields worth keeping.

We implement:

1. An Encoder that always walks the value graph, substituting a
natively-serializable Placeholder for any value a caller-supplied
Transformer claims, for anything MessagePack refuses (falling back to a
built-in default placeholder), and for every shared or cyclic pointer, map
or slice. Shared references and cycles are preserved via a per-call
identity table.

2. A fast path and a slow path: when the walk created no Placeholder, the
walked value is encoded as it is; otherwise it is wrapped in an Envelope
together with its placeholders.

3. A Decoder that reverses the process: it restores Go pointer sharing
across the wire boundary (MessagePack has no back-reference notation of
its own), then re-expands every placeholder into a live value. Cycles are
wired by recording each placeholder's live instance before its contents
are resolved (automatically for shared values, through
ResolveContext.Register for a Transformer). There is no pending-callback
table, and a Transformer's Resolve receives its payload with nested
placeholders still unresolved; it resolves them through its
ResolveContext.

4. An optional authentication tag: when a secret is configured, output is
prefixed with the lowercase hex HMAC-SHA-256 of the payload under that
secret, separated by "|".

# Technical Details

**Reference identity.**
Go's only aliasable storage is the pointer, so identity tracking only
applies to reflect.Ptr, reflect.Map, reflect.Slice, and reflect.Chan
values, keyed by reflect.Value.Pointer(). Struct values copied by value
are never deduplicated, which is correct: two copies are two distinct
slots. Closures have no recoverable per-instance identity through
reflect — see refid.go.

**Wire format.**

	HEX64 "|" PAYLOAD   (secret configured)
	PAYLOAD             (no secret)

PAYLOAD is the MessagePack encoding of a two-element array [tag, body]:
tag 0 with the walked root value as body (fast path), or tag 1 with the
linearized Envelope (slow path). It is never the bare encoding of the root
value. See envelope.go for how the envelope's
shortcut list and its value share storage despite MessagePack having no
native back-references.
*/
package codec
