package codec

import "sync/atomic"

// Stats holds cumulative counters for a Codec instance, incremented on every
// Serialize/Unserialize call. The fields are exported for easy inspection in
// tests and dashboards, mirroring edb's TableStats shape (a plain struct of
// int counters returned by value).
type Stats struct {
	Serializes   int64
	Unserializes int64
	FastPathHits int64 // Serialize calls that round-tripped through MessagePack directly
	SlowPathHits int64 // Serialize calls that needed the transform/envelope machinery

	PlaceholdersCreated  int64
	PlaceholdersResolved int64

	BytesOut int64
	BytesIn  int64
}

// codecCounters is the mutable, atomic-field counterpart to Stats kept on
// each Codec; Stats() takes an atomic snapshot of it.
type codecCounters struct {
	serializes   atomic.Int64
	unserializes atomic.Int64
	fastPathHits atomic.Int64
	slowPathHits atomic.Int64

	placeholdersCreated  atomic.Int64
	placeholdersResolved atomic.Int64

	bytesOut atomic.Int64
	bytesIn  atomic.Int64
}

func (c *codecCounters) snapshot() Stats {
	return Stats{
		Serializes:           c.serializes.Load(),
		Unserializes:         c.unserializes.Load(),
		FastPathHits:         c.fastPathHits.Load(),
		SlowPathHits:         c.slowPathHits.Load(),
		PlaceholdersCreated:  c.placeholdersCreated.Load(),
		PlaceholdersResolved: c.placeholdersResolved.Load(),
		BytesOut:             c.bytesOut.Load(),
		BytesIn:              c.bytesIn.Load(),
	}
}

// TotalCalls is a convenience total across both directions.
func (s Stats) TotalCalls() int64 {
	return s.Serializes + s.Unserializes
}
