package value

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewInt(42), "42"},
		{NewFloat(2.5), "2.5"},
		{NewString("hi"), "hi"},
		{NewBool(true), "true"},
		{Unit, "()"},
		{NewList([]Value{NewInt(1), NewInt(2)}), "[1, 2]"},
		{NewList([]Value{NewString("a")}), `["a"]`},
		{NewTuple([]Value{NewInt(1), NewString("one")}), `(1, "one")`},
		{NewVariant("None", 1, nil), "None"},
		{NewVariant("Some", 0, []Value{NewInt(3)}), "Some(3)"},
		{NewVariant("Err", 1, []Value{NewString("bad")}), `Err("bad")`},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func TestEq(t *testing.T) {
	if !Eq(NewInt(1), NewInt(1)) {
		t.Error("equal ints")
	}
	if Eq(NewInt(1), NewString("1")) {
		t.Error("kinds differ")
	}
	if !Eq(
		NewList([]Value{NewInt(1), NewInt(2)}),
		NewList([]Value{NewInt(1), NewInt(2)}),
	) {
		t.Error("equal lists")
	}
	if Eq(
		NewList([]Value{NewInt(1)}),
		NewList([]Value{NewInt(1), NewInt(2)}),
	) {
		t.Error("lists of different length")
	}
	if !Eq(
		NewVariant("Some", 0, []Value{NewInt(1)}),
		NewVariant("Some", 0, []Value{NewInt(1)}),
	) {
		t.Error("equal variants")
	}
	if Eq(
		NewVariant("Some", 0, []Value{NewInt(1)}),
		NewVariant("None", 1, nil),
	) {
		t.Error("different variants")
	}
}

func TestEnvChain(t *testing.T) {
	parent := NewEnv(nil)
	parent.Set("x", NewInt(1))
	child := NewEnv(parent)
	child.Set("y", NewInt(2))

	if v, ok := child.Get("x"); !ok || v.Int != 1 {
		t.Error("child should see parent bindings")
	}
	if _, ok := parent.Get("y"); ok {
		t.Error("parent should not see child bindings")
	}

	// shadowing
	child.Set("x", NewInt(9))
	if v, _ := child.Get("x"); v.Int != 9 {
		t.Error("child shadow")
	}
	if v, _ := parent.Get("x"); v.Int != 1 {
		t.Error("parent unchanged")
	}
}
