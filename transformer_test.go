package codec

import (
	"reflect"
	"testing"
)

type intTransformer struct {
	tag string
}

func (t *intTransformer) Transforms(v reflect.Value) bool {
	return v.Kind() == reflect.Int
}

func (t *intTransformer) Transform(v reflect.Value) (string, any, error) {
	return t.tag, v.Interface(), nil
}

func (t *intTransformer) Resolves(classTag string) bool {
	return classTag == t.tag
}

func (t *intTransformer) Resolve(classTag string, payload any, rc *ResolveContext) (any, error) {
	return payload, nil
}

func TestRegistry_AppendIsLowestPriority(t *testing.T) {
	var r Registry
	first := &intTransformer{tag: "first"}
	second := &intTransformer{tag: "second"}
	r.Append(first)
	r.Append(second)

	got := r.findForValue(reflect.ValueOf(1))
	if got != first {
		t.Fatalf("findForValue picked %v, wanted the first-appended transformer", got)
	}
}

func TestRegistry_PrependTakesPriority(t *testing.T) {
	var r Registry
	low := &intTransformer{tag: "low"}
	high := &intTransformer{tag: "high"}
	r.Append(low)
	r.Prepend(high)

	got := r.findForValue(reflect.ValueOf(1))
	if got != high {
		t.Fatalf("findForValue picked %v, wanted the prepended transformer", got)
	}
}

func TestRegistry_FindForClassTag(t *testing.T) {
	var r Registry
	t1 := &intTransformer{tag: "a"}
	t2 := &intTransformer{tag: "b"}
	r.Append(t1)
	r.Append(t2)

	if r.findForClassTag("b") != t2 {
		t.Fatalf("findForClassTag(b) did not find t2")
	}
	if r.findForClassTag("missing") != nil {
		t.Fatalf("findForClassTag(missing) should return nil")
	}
}

func TestTransformerFunc(t *testing.T) {
	tf := &TransformerFunc{
		ClassTag: "double",
		Match:    func(v reflect.Value) bool { return v.Kind() == reflect.Int },
		TransformFn: func(v reflect.Value) (any, error) {
			return v.Interface().(int) * 2, nil
		},
		ResolveFn: func(payload any, rc *ResolveContext) (any, error) {
			return payload, nil
		},
	}

	if !tf.Transforms(reflect.ValueOf(5)) {
		t.Fatalf("Transforms(5) = false, wanted true")
	}
	classTag, payload, err := tf.Transform(reflect.ValueOf(5))
	if err != nil || classTag != "double" || payload != 10 {
		t.Fatalf("Transform(5) = (%q, %v, %v), wanted (double, 10, nil)", classTag, payload, err)
	}
	if !tf.Resolves("double") || tf.Resolves("other") {
		t.Fatalf("Resolves behaved unexpectedly")
	}
}
