package codec

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCodec_RoundTripsPlainValue(t *testing.T) {
	c := New(Options{})
	out, err := c.Serialize("VALUE")
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := c.Unserialize(out)
	if err != nil {
		t.Fatalf("Unserialize: %v", err)
	}
	if got != "VALUE" {
		t.Fatalf("got = %v, wanted VALUE", got)
	}
	if c.Stats().FastPathHits != 1 {
		t.Fatalf("FastPathHits = %d, wanted 1 for a plain string", c.Stats().FastPathHits)
	}
}

func TestCodec_AuthenticatedRoundTrip(t *testing.T) {
	c := New(Options{Secret: []byte("top-secret")})
	out, err := c.Serialize("VALUE")
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(out, "|") {
		t.Fatalf("out = %q, wanted an HMAC tag separated by |", out)
	}
	tag := strings.SplitN(out, "|", 2)[0]
	if len(tag) != 64 {
		t.Fatalf("len(tag) = %d, wanted 64", len(tag))
	}

	got, err := c.Unserialize(out)
	if err != nil {
		t.Fatalf("Unserialize: %v", err)
	}
	if got != "VALUE" {
		t.Fatalf("got = %v, wanted VALUE", got)
	}
}

func TestCodec_TamperedAuthenticatedPayloadRejected(t *testing.T) {
	c := New(Options{Secret: []byte("top-secret")})
	out, err := c.Serialize("VALUE")
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	tampered := out[:len(out)-1] + "0"

	_, err = c.Unserialize(tampered)
	var want *SignatureMismatchError
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, wanted *SignatureMismatchError", err)
	}
}

func TestCodec_BogusSignatureRejected(t *testing.T) {
	c := New(Options{Secret: []byte("top-secret")})
	_, err := c.Unserialize("notahexsignature|somepayload")
	if err == nil {
		t.Fatalf("expected an error for a bogus signature")
	}
}

type fakeClosure struct {
	captured int
	calls    int
}

func (f *fakeClosure) Call() int {
	f.calls++
	return f.captured
}

type closureTransformer struct {
	transformCalls int
}

func (ct *closureTransformer) Transforms(v reflect.Value) bool {
	_, ok := v.Interface().(*fakeClosure)
	return ok
}

func (ct *closureTransformer) Transform(v reflect.Value) (string, any, error) {
	ct.transformCalls++
	fc := v.Interface().(*fakeClosure)
	return "test:closure", map[string]any{"captured": fc.captured}, nil
}

func (ct *closureTransformer) Resolves(classTag string) bool {
	return classTag == "test:closure"
}

func (ct *closureTransformer) Resolve(classTag string, payload any, rc *ResolveContext) (any, error) {
	p := payload.(map[string]any)
	return &fakeClosure{captured: toInt(p["captured"])}, nil
}

func TestCodec_TransformerInvokedOnceForClosure(t *testing.T) {
	ct := &closureTransformer{}
	c := New(Options{Transformers: []Transformer{ct}})

	fc := &fakeClosure{captured: 99}
	out, err := c.Serialize(fc)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if ct.transformCalls != 1 {
		t.Fatalf("transformCalls = %d, wanted exactly 1", ct.transformCalls)
	}

	c2 := New(Options{Transformers: []Transformer{&closureTransformer{}}})
	got, err := c2.Unserialize(out)
	if err != nil {
		t.Fatalf("Unserialize: %v", err)
	}
	back, ok := got.(*fakeClosure)
	if !ok || back.captured != 99 {
		t.Fatalf("got = %#v, wanted a *fakeClosure with captured=99", got)
	}
}

func TestCodec_ChannelEscalatesToSlowPath(t *testing.T) {
	c := New(Options{})
	ch := make(chan int, 2)

	_, err := c.Serialize(ch)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if c.Stats().SlowPathHits != 1 {
		t.Fatalf("SlowPathHits = %d, wanted 1 for a channel", c.Stats().SlowPathHits)
	}
	if c.Stats().PlaceholdersCreated == 0 {
		t.Fatalf("PlaceholdersCreated = 0, wanted at least 1")
	}
}

type selfRefB struct {
	D *selfRefA
}
type selfRefA struct {
	B *selfRefB
}

func TestCodec_SelfCycleRoundTripsWithPointerEquality(t *testing.T) {
	a := &selfRefA{}
	b := &selfRefB{D: a}
	a.B = b

	c := New(Options{})
	out, err := c.Serialize(a)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	decoded, err := c.Unserialize(out)
	if err != nil {
		t.Fatalf("Unserialize: %v", err)
	}

	// Without a Transformer registered for selfRefA/selfRefB, the codec
	// reconstructs their exported-field snapshots as plain maps — but the
	// shared pointer between a and b.D must still survive as one identity.
	decodedMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded = %#v, wanted map[string]any", decoded)
	}
	bMap, ok := decodedMap["B"].(map[string]any)
	if !ok {
		t.Fatalf("decoded.B = %#v, wanted map[string]any", decodedMap["B"])
	}
	dMap, ok := bMap["D"].(map[string]any)
	if !ok {
		t.Fatalf("decoded.B.D = %#v, wanted map[string]any", bMap["D"])
	}
	if reflect.ValueOf(decodedMap).Pointer() != reflect.ValueOf(dMap).Pointer() {
		t.Fatalf("decoded.B.D should be the very same map as decoded, wanted pointer equality")
	}
}

func TestCodec_ConcurrentCallOnSameInstanceFailsFast(t *testing.T) {
	c := New(Options{})
	c.busy.Store(true)
	defer c.busy.Store(false)

	_, err := c.Serialize("x")
	if !errors.Is(err, ErrCodecBusy) {
		t.Fatalf("err = %v, wanted ErrCodecBusy", err)
	}
	_, err = c.Unserialize("x")
	if !errors.Is(err, ErrCodecBusy) {
		t.Fatalf("err = %v, wanted ErrCodecBusy", err)
	}
}

func TestCodec_StatsAndDescribe(t *testing.T) {
	c := New(Options{})
	_, _ = c.Serialize("a")
	_, _ = c.Serialize(make(chan int))

	s := c.Stats()
	if s.Serializes != 2 || s.FastPathHits != 1 || s.SlowPathHits != 1 {
		t.Fatalf("Stats() = %+v, wanted Serializes=2 FastPathHits=1 SlowPathHits=1", s)
	}

	desc := c.Describe(DescribeAll)
	if !strings.Contains(desc, c.ID()) {
		t.Fatalf("Describe output missing codec id %q:\n%s", c.ID(), desc)
	}
}
