package types

import (
	"fmt"
	"strings"
	"sync/atomic"
)

type Type interface {
	String() string
	typeNode()
}

// Basic types

type BasicKind int

const (
	BasicInvalid BasicKind = iota
	BasicInt
	BasicFloat
	BasicString
	BasicBool
	BasicUnit
)

type Basic struct {
	Kind BasicKind
	Name string
}

func (b *Basic) String() string { return b.Name }
func (b *Basic) typeNode()      {}

var (
	Invalid = &Basic{Kind: BasicInvalid, Name: "invalid"}
	Int     = &Basic{Kind: BasicInt, Name: "Int"}
	Float   = &Basic{Kind: BasicFloat, Name: "Float"}
	String  = &Basic{Kind: BasicString, Name: "String"}
	Bool    = &Basic{Kind: BasicBool, Name: "Bool"}
	Unit    = &Basic{Kind: BasicUnit, Name: "Unit"}
)

func IsInvalid(t Type) bool {
	if b, ok := Resolve(t).(*Basic); ok {
		return b.Kind == BasicInvalid
	}
	return false
}

func IsUnit(t Type) bool {
	if b, ok := Resolve(t).(*Basic); ok {
		return b.Kind == BasicUnit
	}
	return false
}

func IsNumeric(t Type) bool {
	if b, ok := Resolve(t).(*Basic); ok {
		return b.Kind == BasicInt || b.Kind == BasicFloat
	}
	return false
}

// Var is an inference type variable. Its binding is monotonic: once ref
// is set the variable is never rebound to a different type within the
// same inference pass.
type Var struct {
	ID  int
	ref Type
}

func (v *Var) String() string {
	if v.ref != nil {
		return v.ref.String()
	}
	return fmt.Sprintf("t%d", v.ID)
}
func (v *Var) typeNode() {}

// nextVarID is shared by every checker session, so it must be safe to
// advance from concurrently running sessions.
var nextVarID atomic.Int64

// NewVar allocates a fresh unbound type variable.
func NewVar() *Var {
	return &Var{ID: int(nextVarID.Add(1))}
}

// Con is a constructed type: a name applied to zero or more type
// arguments. It covers List, Option, Result and user-declared types.
type Con struct {
	Name string
	Args []Type
}

func (c *Con) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}
func (c *Con) typeNode() {}

type Func struct {
	Params []Type
	Return Type
}

func (f *Func) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	return "fn(" + strings.Join(parts, ", ") + ") -> " + f.Return.String()
}
func (f *Func) typeNode() {}

type Tuple struct {
	Elems []Type
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *Tuple) typeNode() {}

// TypeParam is a placeholder inside a declared generic signature. It is
// never unified directly; Instantiate replaces it with a fresh Var at
// each use site.
type TypeParam struct {
	Name string
}

func (p *TypeParam) String() string { return p.Name }
func (p *TypeParam) typeNode()      {}

// Resolve follows bound type variables to the underlying type.
func Resolve(t Type) Type {
	for {
		v, ok := t.(*Var)
		if !ok || v.ref == nil {
			return t
		}
		t = v.ref
	}
}

// Unify equates two types, binding free type variables as needed.
// Unification is idempotent: unifying already-equal types succeeds
// without rebinding anything.
func Unify(a, b Type) error {
	a = Resolve(a)
	b = Resolve(b)

	if a == b {
		return nil
	}

	av, aIsVar := a.(*Var)
	bv, bIsVar := b.(*Var)

	switch {
	case aIsVar && bIsVar:
		// bind the more recently introduced variable to the other
		if av.ID > bv.ID {
			av.ref = bv
		} else {
			bv.ref = av
		}
		return nil
	case aIsVar:
		if Occurs(av, b) {
			return fmt.Errorf("cannot construct infinite type: t%d occurs in %s", av.ID, b)
		}
		av.ref = b
		return nil
	case bIsVar:
		if Occurs(bv, a) {
			return fmt.Errorf("cannot construct infinite type: t%d occurs in %s", bv.ID, a)
		}
		bv.ref = a
		return nil
	}

	switch a := a.(type) {
	case *Basic:
		if b, ok := b.(*Basic); ok && a.Kind == b.Kind {
			return nil
		}
	case *Con:
		b, ok := b.(*Con)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			break
		}
		for i := range a.Args {
			if err := Unify(a.Args[i], b.Args[i]); err != nil {
				return err
			}
		}
		return nil
	case *Func:
		b, ok := b.(*Func)
		if !ok || len(a.Params) != len(b.Params) {
			break
		}
		for i := range a.Params {
			if err := Unify(a.Params[i], b.Params[i]); err != nil {
				return err
			}
		}
		return Unify(a.Return, b.Return)
	case *Tuple:
		b, ok := b.(*Tuple)
		if !ok || len(a.Elems) != len(b.Elems) {
			break
		}
		for i := range a.Elems {
			if err := Unify(a.Elems[i], b.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("type mismatch: expected %s, got %s", a, b)
}

// Occurs reports whether the variable v appears anywhere inside t.
// Binding a variable to a type containing itself would build an
// infinite type, so Unify rejects it.
func Occurs(v *Var, t Type) bool {
	switch t := Resolve(t).(type) {
	case *Var:
		return t == v
	case *Con:
		for _, a := range t.Args {
			if Occurs(v, a) {
				return true
			}
		}
	case *Func:
		for _, p := range t.Params {
			if Occurs(v, p) {
				return true
			}
		}
		return Occurs(v, t.Return)
	case *Tuple:
		for _, e := range t.Elems {
			if Occurs(v, e) {
				return true
			}
		}
	}
	return false
}

// Substitute replaces TypeParam placeholders by the mapped types,
// copying only the parts of the structure that change.
func Substitute(t Type, subst map[string]Type) Type {
	switch t := t.(type) {
	case *TypeParam:
		if r, ok := subst[t.Name]; ok {
			return r
		}
		return t
	case *Var:
		if t.ref != nil {
			return Substitute(t.ref, subst)
		}
		return t
	case *Con:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, subst)
		}
		return &Con{Name: t.Name, Args: args}
	case *Func:
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = Substitute(p, subst)
		}
		return &Func{Params: params, Return: Substitute(t.Return, subst)}
	case *Tuple:
		elems := make([]Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = Substitute(e, subst)
		}
		return &Tuple{Elems: elems}
	default:
		return t
	}
}

// Instantiate replaces each declared type parameter with a fresh type
// variable so separate call sites of a generic function do not
// interfere with each other.
func Instantiate(t Type, params []string) Type {
	if len(params) == 0 {
		return t
	}
	subst := make(map[string]Type, len(params))
	for _, p := range params {
		subst[p] = NewVar()
	}
	return Substitute(t, subst)
}

// ResultParts unpacks a Result(T, E), returning ok=false for anything
// else. Unbound variables do not count as Result.
func ResultParts(t Type) (okType, errType Type, ok bool) {
	c, isCon := Resolve(t).(*Con)
	if !isCon || c.Name != "Result" || len(c.Args) != 2 {
		return nil, nil, false
	}
	return c.Args[0], c.Args[1], true
}
