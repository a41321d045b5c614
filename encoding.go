package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeMsgPack appends v's MessagePack encoding to buf using a pooled
// encoder, mirroring edb/encoding.go's reuse of msgpack.GetEncoder across
// calls instead of allocating one per Serialize. Map keys are sorted so two
// encodes of an equal value always produce identical bytes, which matters
// once an HMAC tag is riding on the output.
func encodeMsgPack(buf []byte, v any) ([]byte, error) {
	bb := bytesBuilder{Buf: buf}
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, nativeCodecErrf("encode", err)
	}
	return bb.Buf, nil
}

// decodeMsgPack decodes buf into *out using a pooled decoder.
func decodeMsgPack(buf []byte, out any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err := dec.Decode(out)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nativeCodecErrf("decode", err)
	}
	return nil
}
