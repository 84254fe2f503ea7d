package value

import (
	"fmt"
	"strings"

	"github.com/NijanthanR/fern/internal/ast"
)

// Kind is the type of a value at runtime.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindUnit
	KindList
	KindTuple
	KindVariant
	KindClosure
	KindBuiltin
)

// Variant is a sum-type value: a constructor name with its payload.
type Variant struct {
	Ctor   string
	Tag    int
	Fields []Value
}

// Closure is a function value. Multi-clause functions carry their
// clauses; single-clause and lambda forms carry params and a body.
type Closure struct {
	Name    string
	Params  []string
	Body    ast.Expr
	Clauses []*ast.FnClause
	Env     *Env
}

// Builtin is a native function exposed to evaluated code.
type Builtin struct {
	Name  string
	Arity int
	Fn    func(args []Value) (Value, error)
}

// Value is a runtime value. Exactly one payload field is meaningful
// for a given Kind.
type Value struct {
	Kind    Kind
	Int     int64
	Float   float64
	Str     string
	Bool    bool
	List    []Value
	Tuple   []Value
	Variant *Variant
	Closure *Closure
	Builtin *Builtin
}

var Unit = Value{Kind: KindUnit}

func NewInt(n int64) Value      { return Value{Kind: KindInt, Int: n} }
func NewFloat(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func NewString(s string) Value  { return Value{Kind: KindString, Str: s} }
func NewBool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NewList(vs []Value) Value  { return Value{Kind: KindList, List: vs} }
func NewTuple(vs []Value) Value { return Value{Kind: KindTuple, Tuple: vs} }

func NewVariant(ctor string, tag int, fields []Value) Value {
	return Value{Kind: KindVariant, Variant: &Variant{Ctor: ctor, Tag: tag, Fields: fields}}
}

// Truthy reports the Bool payload; only Bool values are conditions.
func (v Value) Truthy() bool { return v.Kind == KindBool && v.Bool }

// Eq compares two values structurally.
func Eq(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	case KindUnit:
		return true
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Eq(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindTuple:
		if len(a.Tuple) != len(b.Tuple) {
			return false
		}
		for i := range a.Tuple {
			if !Eq(a.Tuple[i], b.Tuple[i]) {
				return false
			}
		}
		return true
	case KindVariant:
		if a.Variant.Ctor != b.Variant.Ctor || len(a.Variant.Fields) != len(b.Variant.Fields) {
			return false
		}
		for i := range a.Variant.Fields {
			if !Eq(a.Variant.Fields[i], b.Variant.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a value the way the REPL prints results.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindUnit:
		return "()"
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.quoted()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindTuple:
		parts := make([]string, len(v.Tuple))
		for i, e := range v.Tuple {
			parts[i] = e.quoted()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindVariant:
		if len(v.Variant.Fields) == 0 {
			return v.Variant.Ctor
		}
		parts := make([]string, len(v.Variant.Fields))
		for i, f := range v.Variant.Fields {
			parts[i] = f.quoted()
		}
		return v.Variant.Ctor + "(" + strings.Join(parts, ", ") + ")"
	case KindClosure:
		if v.Closure.Name != "" {
			return "<fn " + v.Closure.Name + ">"
		}
		return "<fn>"
	case KindBuiltin:
		return "<builtin " + v.Builtin.Name + ">"
	}
	return "<invalid>"
}

// quoted is String, except strings render with quotes when nested in a
// container.
func (v Value) quoted() string {
	if v.Kind == KindString {
		return fmt.Sprintf("%q", v.Str)
	}
	return v.String()
}

// Env is a lexical environment chained to its parent.
type Env struct {
	parent *Env
	vars   map[string]Value
}

func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: make(map[string]Value)}
}

func (e *Env) Set(name string, v Value) { e.vars[name] = v }

func (e *Env) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}
