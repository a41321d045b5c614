package codec

import (
	"fmt"
	"strings"
)

// DescribeFlags selects which sections Codec.Describe includes in its
// human-readable dump, mirroring edb/debug.go's DumpFlags bitset.
type DescribeFlags uint64

const (
	DescribeStats = DescribeFlags(1 << iota)
	DescribeTransformers
	DescribeOpenCalls

	DescribeAll = DescribeFlags(0xFFFFFFFFFFFFFFFF)

	describeSep = "----------------------------------------------------------------------"
)

func (f DescribeFlags) Contains(v DescribeFlags) bool {
	return (f & v) == v
}

// Describe renders a diagnostic snapshot of the Codec: cumulative stats,
// the Go types of the registered transformers in priority order, and (best-effort)
// whether a call is currently in flight. Intended for logging and tests, not
// for parsing.
func (c *Codec) Describe(f DescribeFlags) string {
	var w strings.Builder

	if f.Contains(DescribeStats) {
		s := c.Stats()
		fmt.Fprintln(&w, describeSep)
		fmt.Fprintf(&w, "codec %s: serializes=%d unserializes=%d fast=%d slow=%d placeholders(created=%d resolved=%d) bytes(out=%d in=%d)\n",
			c.id, s.Serializes, s.Unserializes, s.FastPathHits, s.SlowPathHits,
			s.PlaceholdersCreated, s.PlaceholdersResolved, s.BytesOut, s.BytesIn)
	}

	if f.Contains(DescribeTransformers) {
		fmt.Fprintln(&w, describeSep)
		fmt.Fprintf(&w, "codec %s: %d transformer(s)\n", c.id, len(c.registry.entries))
		for i, t := range c.registry.entries {
			fmt.Fprintf(&w, "  [%d] %T\n", i, t)
		}
	}

	if f.Contains(DescribeOpenCalls) {
		fmt.Fprintln(&w, describeSep)
		busy := "idle"
		if c.busy.Load() {
			busy = "busy"
		}
		fmt.Fprintf(&w, "codec %s: %s\n", c.id, busy)
	}

	return w.String()
}

func rpadf(pad rune, format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	return rpad(s, 80, pad)
}
