package codec

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// Options configures a Codec. The zero value is a usable, unauthenticated
// codec with no registered Transformers.
type Options struct {
	// Secret, when non-empty, turns on HMAC-SHA-256 authentication: every
	// Serialize output is prefixed with a signature tag, and Unserialize
	// rejects any input whose tag doesn't verify under this secret.
	Secret []byte

	// Transformers are registered in order, highest priority first — the
	// same effect as calling AddTransformer for each in turn. Use
	// PrependTransformer after New to give a Transformer priority over
	// these.
	Transformers []Transformer

	// Logger receives debug-level structured trace lines for slow-path
	// engagement, placeholder creation, and cycle/shared-reference
	// detection, in the same LogAttrs-with-a-fixed-message style edb's
	// scan.go uses for its own cursor tracing. Defaults to slog.Default().
	Logger *slog.Logger
}

// Codec folds arbitrary Go value graphs into a self-describing byte string
// and reconstructs them, consulting its Transformer registry for anything
// MessagePack can't carry on its own. See doc.go for the overall design.
//
// A single Codec instance is not safe for concurrent Serialize/Unserialize
// calls: a call already in flight causes a concurrent one to fail fast with
// ErrCodecBusy rather than race the per-call bookkeeping tables. Create one
// Codec per goroutine, or guard a shared one with your own lock, if you need
// concurrent access.
type Codec struct {
	id       string
	opts     Options
	logger   *slog.Logger
	registry Registry
	counters codecCounters
	busy     atomic.Bool
}

// New returns a ready-to-use Codec.
func New(opts Options) *Codec {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Codec{
		id:     uuid.NewString(),
		opts:   opts,
		logger: logger,
	}
	for _, t := range opts.Transformers {
		c.registry.Append(t)
	}
	return c
}

// AddTransformer registers t with the lowest priority.
func (c *Codec) AddTransformer(t Transformer) {
	c.registry.Append(t)
}

// PrependTransformer registers t with the highest priority, ahead of every
// Transformer registered so far.
func (c *Codec) PrependTransformer(t Transformer) {
	c.registry.Prepend(t)
}

// Stats returns a snapshot of this Codec's cumulative counters.
func (c *Codec) Stats() Stats {
	return c.counters.snapshot()
}

// ID returns the Codec instance's random identifier, useful for
// correlating log lines from Describe with a specific instance.
func (c *Codec) ID() string {
	return c.id
}

const (
	wireTagFast = 0
	wireTagSlow = 1
)

// Serialize folds v into the wire format described in doc.go. v is always
// walked first; the MessagePack payload is the two-element array
// [wireTagFast, walked value] when the walk created no Placeholder, or
// [wireTagSlow, linearized Envelope] otherwise, optionally prefixed with an
// HMAC-SHA-256 tag.
func (c *Codec) Serialize(v any) (string, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrCodecBusy
	}
	defer c.busy.Store(false)
	c.counters.serializes.Add(1)

	st := newEncodeState(&c.registry)
	st.logger = c.logger
	env, err := st.transform(v)
	if err != nil {
		return "", err
	}
	c.counters.placeholdersCreated.Add(st.placeholdersCreated)
	defer putPlaceholderSlice(env.Shortcuts)

	buf := getByteBuf()
	var payload []byte
	if len(env.Shortcuts) == 0 {
		c.counters.fastPathHits.Add(1)
		payload, err = encodeMsgPack(buf, []any{wireTagFast, env.Value})
	} else {
		c.counters.slowPathHits.Add(1)
		c.logger.LogAttrs(context.Background(), slog.LevelDebug, "slow path engaged", slog.Int("shortcuts", len(env.Shortcuts)))
		wire := linearizeEnvelope(env)
		payload, err = encodeMsgPack(buf, []any{wireTagSlow, wire})
	}
	if err != nil {
		putByteBuf(buf)
		return "", err
	}

	out := c.finish(payload)
	putByteBuf(payload)
	c.counters.bytesOut.Add(int64(len(out)))
	return out, nil
}

func (c *Codec) finish(payload []byte) string {
	if len(c.opts.Secret) == 0 {
		return string(payload)
	}
	return wrapAuthenticated(c.opts.Secret, payload)
}

// Unserialize reverses Serialize, returning the reconstructed value as an
// any. Callers who know the expected shape typically assert or walk the
// result themselves; Transformers that want to hand back a concrete Go type
// do so from their Resolve method.
func (c *Codec) Unserialize(s string) (any, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrCodecBusy
	}
	defer c.busy.Store(false)
	c.counters.unserializes.Add(1)
	c.counters.bytesIn.Add(int64(len(s)))

	var payload []byte
	if len(c.opts.Secret) != 0 {
		p, err := unwrapAuthenticated(c.opts.Secret, s)
		if err != nil {
			return nil, err
		}
		payload = p
	} else {
		payload = []byte(s)
	}

	var top []any
	if err := decodeMsgPack(payload, &top); err != nil {
		return nil, err
	}
	if len(top) != 2 {
		return nil, nativeCodecErrf("decode", fmt.Errorf("malformed payload: expected [tag, body], got %d elements", len(top)))
	}

	switch toInt(top[0]) {
	case wireTagFast:
		return top[1], nil
	case wireTagSlow:
		env, err := delinearizeEnvelope(top[1])
		if err != nil {
			return nil, err
		}
		st := newDecodeState(&c.registry)
		st.logger = c.logger
		resolved, err := st.resolve(env.Value)
		if err != nil {
			return nil, err
		}
		c.counters.placeholdersResolved.Add(st.placeholdersResolved)
		return resolved, nil
	default:
		return nil, nativeCodecErrf("decode", fmt.Errorf("unrecognized wire tag %d", toInt(top[0])))
	}
}
