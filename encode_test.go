package codec

import (
	"reflect"
	"testing"
)

func TestTransform_AcyclicValueHasNoShortcuts(t *testing.T) {
	type leaf struct {
		Name string
		Tags []string
	}
	root := map[string]any{
		"a": leaf{Name: "x", Tags: []string{"1", "2"}},
		"b": 42,
	}

	st := newEncodeState(&Registry{})
	env, err := st.transform(root)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(env.Shortcuts) != 0 {
		t.Fatalf("Shortcuts = %d, wanted 0 for an acyclic, unshared value", len(env.Shortcuts))
	}
}

func TestTransform_SharedPointerGetsOneShortcut(t *testing.T) {
	type node struct{ N int }
	shared := &node{N: 1}
	root := map[string]any{"a": shared, "b": shared}

	st := newEncodeState(&Registry{})
	env, err := st.transform(root)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(env.Shortcuts) != 1 {
		t.Fatalf("Shortcuts = %d, wanted 1 for a pointer shared twice", len(env.Shortcuts))
	}

	value := env.Value.(map[string]any)
	if value["a"].(*Placeholder) != value["b"].(*Placeholder) {
		t.Fatalf("both references should transform to the same *Placeholder")
	}
}

func TestTransform_SelfCycleTerminates(t *testing.T) {
	type node struct {
		Name string
		Next *node
	}
	n := &node{Name: "x"}
	n.Next = n

	st := newEncodeState(&Registry{})
	env, err := st.transform(n)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(env.Shortcuts) != 1 {
		t.Fatalf("Shortcuts = %d, wanted 1 for a self-referencing pointer", len(env.Shortcuts))
	}
	ph := env.Value.(*Placeholder)
	payload := ph.Payload.(map[string]any)
	if payload["Next"].(*Placeholder) != ph {
		t.Fatalf("Next should point back at the same Placeholder as the root")
	}
}

func TestTransform_ChannelAlwaysGetsPlaceholder(t *testing.T) {
	ch := make(chan int, 3)

	st := newEncodeState(&Registry{})
	env, err := st.transform(ch)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	ph, ok := env.Value.(*Placeholder)
	if !ok || ph.ClassTag != "go:chan" {
		t.Fatalf("Value = %#v, wanted a go:chan Placeholder", env.Value)
	}
	payload := ph.Payload.(map[string]any)
	if payload["cap"] != 3 {
		t.Fatalf("payload.cap = %v, wanted 3", payload["cap"])
	}
}

func TestTransform_TransformerClaimsValue(t *testing.T) {
	reg := &Registry{}
	reg.Append(&TransformerFunc{
		ClassTag: "myapp:funky-int",
		Match:    func(v reflect.Value) bool { return v.Kind() == reflect.Int },
		TransformFn: func(v reflect.Value) (any, error) {
			return v.Interface().(int) * 10, nil
		},
	})

	st := newEncodeState(reg)
	env, err := st.transform(7)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	ph, ok := env.Value.(*Placeholder)
	if !ok || ph.ClassTag != "myapp:funky-int" || ph.Payload != 70 {
		t.Fatalf("Value = %#v, wanted a myapp:funky-int Placeholder with payload 70", env.Value)
	}
}
