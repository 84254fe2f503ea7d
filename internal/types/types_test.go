package types_test

import (
	"strings"
	"testing"

	"github.com/NijanthanR/fern/internal/types"
)

func TestUnifyBasics(t *testing.T) {
	if err := types.Unify(types.Int, types.Int); err != nil {
		t.Fatalf("Int ~ Int: %v", err)
	}
	err := types.Unify(types.Int, types.String)
	if err == nil {
		t.Fatal("Int ~ String should fail")
	}
	if !strings.Contains(err.Error(), "type mismatch") {
		t.Errorf("error: %v", err)
	}
}

func TestUnifyVarBindsToConcrete(t *testing.T) {
	v := types.NewVar()
	if err := types.Unify(v, types.Float); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got := types.Resolve(v); got != types.Float {
		t.Errorf("resolved to %s", got)
	}
	// rebinding to the same type is a no-op
	if err := types.Unify(v, types.Float); err != nil {
		t.Errorf("idempotent unify: %v", err)
	}
	if err := types.Unify(v, types.Int); err == nil {
		t.Error("bound var should not rebind to a different type")
	}
}

func TestUnifyVarVar(t *testing.T) {
	older := types.NewVar()
	younger := types.NewVar()
	if err := types.Unify(younger, older); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got := types.Resolve(younger); got != types.Type(older) {
		t.Errorf("younger should resolve to the older var, got %s", got)
	}
	// binding either one now binds both
	if err := types.Unify(older, types.Bool); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := types.Resolve(younger); got != types.Bool {
		t.Errorf("younger resolved to %s", got)
	}
}

func TestUnifyCon(t *testing.T) {
	v := types.NewVar()
	a := &types.Con{Name: "List", Args: []types.Type{v}}
	b := &types.Con{Name: "List", Args: []types.Type{types.Int}}
	if err := types.Unify(a, b); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got := types.Resolve(v); got != types.Int {
		t.Errorf("element var resolved to %s", got)
	}

	c := &types.Con{Name: "Option", Args: []types.Type{types.Int}}
	if err := types.Unify(b, c); err == nil {
		t.Error("List(Int) ~ Option(Int) should fail")
	}
}

func TestUnifyFunc(t *testing.T) {
	v := types.NewVar()
	a := &types.Func{Params: []types.Type{v}, Return: v}
	b := &types.Func{Params: []types.Type{types.Int}, Return: types.Int}
	if err := types.Unify(a, b); err != nil {
		t.Fatalf("unify: %v", err)
	}

	short := &types.Func{Params: nil, Return: types.Int}
	if err := types.Unify(a, short); err == nil {
		t.Error("arity mismatch should fail")
	}
}

func TestOccursCheck(t *testing.T) {
	v := types.NewVar()
	list := &types.Con{Name: "List", Args: []types.Type{v}}
	err := types.Unify(v, list)
	if err == nil {
		t.Fatal("occurs check should reject t ~ List(t)")
	}
	if !strings.Contains(err.Error(), "cannot construct infinite type") {
		t.Errorf("error: %v", err)
	}
}

func TestInstantiateFreshPerCall(t *testing.T) {
	sig := &types.Func{
		Params: []types.Type{&types.TypeParam{Name: "a"}},
		Return: &types.TypeParam{Name: "a"},
	}

	first := types.Instantiate(sig, []string{"a"}).(*types.Func)
	second := types.Instantiate(sig, []string{"a"}).(*types.Func)

	if err := types.Unify(first.Params[0], types.Int); err != nil {
		t.Fatalf("bind first: %v", err)
	}
	if err := types.Unify(second.Params[0], types.String); err != nil {
		t.Fatalf("instantiations must be independent: %v", err)
	}
	if got := types.Resolve(first.Return); got != types.Int {
		t.Errorf("first return: %s", got)
	}
	if got := types.Resolve(second.Return); got != types.String {
		t.Errorf("second return: %s", got)
	}
}

func TestInstantiateSharesParamWithinOneCall(t *testing.T) {
	sig := &types.Func{
		Params: []types.Type{
			&types.TypeParam{Name: "a"},
			&types.TypeParam{Name: "a"},
		},
		Return: types.Unit,
	}
	inst := types.Instantiate(sig, []string{"a"}).(*types.Func)
	if err := types.Unify(inst.Params[0], types.Int); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := types.Unify(inst.Params[1], types.String); err == nil {
		t.Error("both occurrences of a parameter must share one var")
	}
}

func TestResultParts(t *testing.T) {
	r := &types.Con{Name: "Result", Args: []types.Type{types.Int, types.String}}
	okT, errT, ok := types.ResultParts(r)
	if !ok {
		t.Fatal("expected a Result")
	}
	if types.Resolve(okT) != types.Int || types.Resolve(errT) != types.String {
		t.Errorf("parts: %s, %s", okT, errT)
	}

	if _, _, ok := types.ResultParts(types.Int); ok {
		t.Error("Int is not a Result")
	}
}

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		typ  types.Type
		want string
	}{
		{types.Int, "Int"},
		{&types.Con{Name: "Option", Args: []types.Type{types.Int}}, "Option(Int)"},
		{&types.Con{Name: "Result", Args: []types.Type{types.Int, types.String}}, "Result(Int, String)"},
		{&types.Func{Params: []types.Type{types.Int, types.Bool}, Return: types.Unit}, "fn(Int, Bool) -> Unit"},
		{&types.Tuple{Elems: []types.Type{types.Int, types.String}}, "(Int, String)"},
		{&types.TypeParam{Name: "a"}, "a"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func TestTuplesUnifyElementwise(t *testing.T) {
	v := types.NewVar()
	a := &types.Tuple{Elems: []types.Type{types.Int, v}}
	b := &types.Tuple{Elems: []types.Type{types.Int, types.Bool}}
	if err := types.Unify(a, b); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got := types.Resolve(v); got != types.Bool {
		t.Errorf("resolved to %s", got)
	}

	c := &types.Tuple{Elems: []types.Type{types.Int}}
	if err := types.Unify(a, c); err == nil {
		t.Error("tuple width mismatch should fail")
	}
}
