package codec

import "sync"

// byteBufPool recycles the growable buffers bytesBuilder wraps, avoiding an
// allocation per Serialize call the way edb/pools.go recycles
// its row and index buffers.
var byteBufPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func getByteBuf() []byte {
	return byteBufPool.Get().([]byte)[:0]
}

func putByteBuf(b []byte) {
	if cap(b) > 1<<20 {
		return // don't let one oversized payload bloat the pool forever
	}
	byteBufPool.Put(b) //nolint:staticcheck // capacity is what we're pooling
}

// placeholderSlicePool recycles the backing array behind an Envelope's
// shortcuts list, which is rebuilt fresh on every Serialize call.
var placeholderSlicePool = &sync.Pool{
	New: func() any {
		return make([]*Placeholder, 0, 16)
	},
}

func getPlaceholderSlice() []*Placeholder {
	return placeholderSlicePool.Get().([]*Placeholder)[:0]
}

func putPlaceholderSlice(s []*Placeholder) {
	if cap(s) > 4096 {
		return
	}
	for i := range s {
		s[i] = nil
	}
	placeholderSlicePool.Put(s) //nolint:staticcheck
}
