package repl

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/token"
	"github.com/NijanthanR/fern/internal/types"
	"github.com/NijanthanR/fern/internal/value"
)

// returnSignal unwinds to the enclosing function call.
type returnSignal struct{ v value.Value }

func (returnSignal) Error() string { return "return outside function" }

// propagateSignal carries an Err result out of '?' or a with chain.
type propagateSignal struct{ v value.Value }

func (propagateSignal) Error() string { return "? outside a Result function" }

// Evaluator interprets checked statements directly off the tree. The
// REPL uses it; compiled binaries go through codegen instead.
type Evaluator struct {
	checker *types.Checker
	global  *value.Env
}

func NewEvaluator(checker *types.Checker) *Evaluator {
	ev := &Evaluator{checker: checker, global: value.NewEnv(nil)}
	ev.installBuiltins()
	return ev
}

func errAt(pos token.Position, format string, args ...interface{}) error {
	return fmt.Errorf("%d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

// EvalStmt runs one top-level statement, returning the value of an
// expression statement and Unit otherwise.
func (ev *Evaluator) EvalStmt(s ast.Stmt) (value.Value, error) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		return ev.eval(s.X, ev.global)
	default:
		if err := ev.execStmt(s, ev.global); err != nil {
			return value.Unit, err
		}
		return value.Unit, nil
	}
}

func (ev *Evaluator) execStmt(s ast.Stmt, env *value.Env) error {
	switch s := s.(type) {
	case *ast.LetStmt:
		v, err := ev.eval(s.Value, env)
		if err != nil {
			return err
		}
		if !ev.matchPattern(s.Pattern, v, env) {
			return errAt(s.LetPos, "let pattern did not match %s", v)
		}
		return nil
	case *ast.ExprStmt:
		_, err := ev.eval(s.X, env)
		return err
	case *ast.ReturnStmt:
		v := value.Unit
		if s.Result != nil {
			var err error
			v, err = ev.eval(s.Result, env)
			if err != nil {
				return err
			}
		}
		return returnSignal{v}
	case *ast.FnDecl:
		env.Set(s.Name, value.Value{Kind: value.KindClosure, Closure: ev.closureOf(s, env)})
		return nil
	case *ast.TypeDecl, *ast.ImportStmt:
		return nil
	case *ast.DeferStmt:
		// defers run at function exit; execBlock collects them
		return errAt(s.DeferPos, "defer outside of a function body")
	}
	return errAt(s.Pos(), "cannot evaluate this statement")
}

func (ev *Evaluator) closureOf(fd *ast.FnDecl, env *value.Env) *value.Closure {
	if fd.IsMultiClause() {
		return &value.Closure{Name: fd.Name, Clauses: fd.Clauses, Env: env}
	}
	params := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = p.Name
	}
	return &value.Closure{Name: fd.Name, Params: params, Body: fd.Body, Env: env}
}

func (ev *Evaluator) eval(e ast.Expr, env *value.Env) (value.Value, error) {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return value.NewInt(e.Value), nil
	case *ast.FloatLiteral:
		return value.NewFloat(e.Value), nil
	case *ast.StringLiteral:
		return value.NewString(e.Value), nil
	case *ast.BoolLiteral:
		return value.NewBool(e.Value), nil
	case *ast.IdentExpr:
		return ev.evalIdent(e, env)
	case *ast.ListLiteral:
		vs := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := ev.eval(el, env)
			if err != nil {
				return value.Unit, err
			}
			vs[i] = v
		}
		return value.NewList(vs), nil
	case *ast.TupleLiteral:
		if len(e.Elements) == 0 {
			return value.Unit, nil
		}
		vs := make([]value.Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := ev.eval(el, env)
			if err != nil {
				return value.Unit, err
			}
			vs[i] = v
		}
		return value.NewTuple(vs), nil
	case *ast.BinaryExpr:
		return ev.evalBinary(e, env)
	case *ast.UnaryExpr:
		return ev.evalUnary(e, env)
	case *ast.CallExpr:
		return ev.evalCall(e, env)
	case *ast.IndexExpr:
		return ev.evalIndex(e, env)
	case *ast.MemberExpr:
		return ev.evalMember(e, env)
	case *ast.TryExpr:
		return ev.evalTry(e, env)
	case *ast.IfExpr:
		return ev.evalIf(e, env)
	case *ast.MatchExpr:
		return ev.evalMatch(e, env)
	case *ast.BlockExpr:
		return ev.evalBlock(e, env)
	case *ast.LambdaExpr:
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = p.Name
		}
		return value.Value{Kind: value.KindClosure,
			Closure: &value.Closure{Params: params, Body: e.Body, Env: env}}, nil
	case *ast.WithExpr:
		return ev.evalWith(e, env)
	}
	return value.Unit, errAt(e.Pos(), "cannot evaluate this expression")
}

func (ev *Evaluator) evalIdent(e *ast.IdentExpr, env *value.Env) (value.Value, error) {
	if v, ok := env.Get(e.Name); ok {
		return v, nil
	}
	if ctor := ev.checker.CtorOf(e.Name); ctor != nil && len(ctor.Payload) == 0 {
		return value.NewVariant(e.Name, ctor.Tag, nil), nil
	}
	if v, ok := ev.global.Get(e.Name); ok {
		return v, nil
	}
	return value.Unit, errAt(e.NamePos, "undefined: %s", e.Name)
}

func (ev *Evaluator) evalBinary(e *ast.BinaryExpr, env *value.Env) (value.Value, error) {
	switch e.Op {
	case token.And:
		l, err := ev.eval(e.Left, env)
		if err != nil || !l.Truthy() {
			return value.NewBool(false), err
		}
		r, err := ev.eval(e.Right, env)
		return value.NewBool(r.Truthy()), err
	case token.Or:
		l, err := ev.eval(e.Left, env)
		if err != nil {
			return value.Unit, err
		}
		if l.Truthy() {
			return value.NewBool(true), nil
		}
		r, err := ev.eval(e.Right, env)
		return value.NewBool(r.Truthy()), err
	case token.PipeOp:
		if call, ok := e.Right.(*ast.CallExpr); ok {
			piped := &ast.CallExpr{Callee: call.Callee, LParen: call.LParen,
				Args: append([]ast.Expr{e.Left}, call.Args...), RParen: call.RParen}
			return ev.evalCall(piped, env)
		}
		piped := &ast.CallExpr{Callee: e.Right, Args: []ast.Expr{e.Left}}
		return ev.evalCall(piped, env)
	}

	l, err := ev.eval(e.Left, env)
	if err != nil {
		return value.Unit, err
	}
	r, err := ev.eval(e.Right, env)
	if err != nil {
		return value.Unit, err
	}

	switch e.Op {
	case token.Eq:
		return value.NewBool(value.Eq(l, r)), nil
	case token.NotEq:
		return value.NewBool(!value.Eq(l, r)), nil
	}

	if l.Kind == value.KindInt && r.Kind == value.KindInt {
		return evalIntOp(e, l.Int, r.Int)
	}
	if l.Kind == value.KindFloat && r.Kind == value.KindFloat {
		return evalFloatOp(e, l.Float, r.Float)
	}
	if l.Kind == value.KindString && r.Kind == value.KindString {
		return evalStringOp(e, l.Str, r.Str)
	}
	return value.Unit, errAt(e.OpPos, "operator %s is not defined for %s", e.Op, l)
}

func evalIntOp(e *ast.BinaryExpr, a, b int64) (value.Value, error) {
	switch e.Op {
	case token.Plus:
		return value.NewInt(a + b), nil
	case token.Minus:
		return value.NewInt(a - b), nil
	case token.Star:
		return value.NewInt(a * b), nil
	case token.Slash:
		if b == 0 {
			return value.Unit, errAt(e.OpPos, "division by zero")
		}
		return value.NewInt(a / b), nil
	case token.Percent:
		if b == 0 {
			return value.Unit, errAt(e.OpPos, "division by zero")
		}
		return value.NewInt(a % b), nil
	case token.Power:
		result := int64(1)
		for i := int64(0); i < b; i++ {
			result *= a
		}
		return value.NewInt(result), nil
	case token.Lt:
		return value.NewBool(a < b), nil
	case token.LtEq:
		return value.NewBool(a <= b), nil
	case token.Gt:
		return value.NewBool(a > b), nil
	case token.GtEq:
		return value.NewBool(a >= b), nil
	}
	return value.Unit, errAt(e.OpPos, "operator %s is not defined for Int", e.Op)
}

func evalFloatOp(e *ast.BinaryExpr, a, b float64) (value.Value, error) {
	switch e.Op {
	case token.Plus:
		return value.NewFloat(a + b), nil
	case token.Minus:
		return value.NewFloat(a - b), nil
	case token.Star:
		return value.NewFloat(a * b), nil
	case token.Slash:
		return value.NewFloat(a / b), nil
	case token.Power:
		result := 1.0
		n := int64(b)
		for i := int64(0); i < n; i++ {
			result *= a
		}
		return value.NewFloat(result), nil
	case token.Lt:
		return value.NewBool(a < b), nil
	case token.LtEq:
		return value.NewBool(a <= b), nil
	case token.Gt:
		return value.NewBool(a > b), nil
	case token.GtEq:
		return value.NewBool(a >= b), nil
	}
	return value.Unit, errAt(e.OpPos, "operator %s is not defined for Float", e.Op)
}

func evalStringOp(e *ast.BinaryExpr, a, b string) (value.Value, error) {
	switch e.Op {
	case token.Plus:
		return value.NewString(a + b), nil
	case token.Lt:
		return value.NewBool(a < b), nil
	case token.LtEq:
		return value.NewBool(a <= b), nil
	case token.Gt:
		return value.NewBool(a > b), nil
	case token.GtEq:
		return value.NewBool(a >= b), nil
	}
	return value.Unit, errAt(e.OpPos, "operator %s is not defined for String", e.Op)
}

func (ev *Evaluator) evalUnary(e *ast.UnaryExpr, env *value.Env) (value.Value, error) {
	v, err := ev.eval(e.X, env)
	if err != nil {
		return value.Unit, err
	}
	switch e.Op {
	case token.Not:
		return value.NewBool(!v.Truthy()), nil
	case token.Minus:
		switch v.Kind {
		case value.KindInt:
			return value.NewInt(-v.Int), nil
		case value.KindFloat:
			return value.NewFloat(-v.Float), nil
		}
	}
	return value.Unit, errAt(e.OpPos, "cannot apply %s to %s", e.Op, v)
}

func (ev *Evaluator) evalCall(e *ast.CallExpr, env *value.Env) (value.Value, error) {
	// constructor application
	if id, ok := e.Callee.(*ast.IdentExpr); ok {
		if _, bound := env.Get(id.Name); !bound {
			if ctor := ev.checker.CtorOf(id.Name); ctor != nil {
				fields := make([]value.Value, len(e.Args))
				for i, a := range e.Args {
					v, err := ev.eval(a, env)
					if err != nil {
						return value.Unit, err
					}
					fields[i] = v
				}
				return value.NewVariant(id.Name, ctor.Tag, fields), nil
			}
		}
	}

	callee, err := ev.eval(e.Callee, env)
	if err != nil {
		return value.Unit, err
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.eval(a, env)
		if err != nil {
			return value.Unit, err
		}
		args[i] = v
	}
	return ev.apply(e.Pos(), callee, args)
}

func (ev *Evaluator) apply(pos token.Position, callee value.Value, args []value.Value) (value.Value, error) {
	switch callee.Kind {
	case value.KindBuiltin:
		if callee.Builtin.Arity >= 0 && len(args) != callee.Builtin.Arity {
			return value.Unit, errAt(pos, "%s expects %d arguments, got %d",
				callee.Builtin.Name, callee.Builtin.Arity, len(args))
		}
		return callee.Builtin.Fn(args)
	case value.KindClosure:
		return ev.applyClosure(pos, callee.Closure, args)
	}
	return value.Unit, errAt(pos, "%s is not callable", callee)
}

func (ev *Evaluator) applyClosure(pos token.Position, c *value.Closure, args []value.Value) (value.Value, error) {
	if len(c.Clauses) > 0 {
		for _, cl := range c.Clauses {
			if len(cl.Patterns) != len(args) {
				continue
			}
			inner := value.NewEnv(c.Env)
			matched := true
			for i, p := range cl.Patterns {
				if !ev.matchPattern(p, args[i], inner) {
					matched = false
					break
				}
			}
			if matched {
				return ev.runBody(cl.Body, inner)
			}
		}
		return value.Unit, errAt(pos, "no clause of %s matches", c.Name)
	}

	if len(args) != len(c.Params) {
		return value.Unit, errAt(pos, "wrong number of arguments: expected %d, got %d",
			len(c.Params), len(args))
	}
	inner := value.NewEnv(c.Env)
	for i, p := range c.Params {
		inner.Set(p, args[i])
	}
	return ev.runBody(c.Body, inner)
}

// runBody evaluates a function body, translating return and error
// propagation signals into ordinary values.
func (ev *Evaluator) runBody(body ast.Expr, env *value.Env) (value.Value, error) {
	v, err := ev.eval(body, env)
	if err != nil {
		if rs, ok := err.(returnSignal); ok {
			return rs.v, nil
		}
		if ps, ok := err.(propagateSignal); ok {
			return ps.v, nil
		}
		return value.Unit, err
	}
	return v, nil
}

func (ev *Evaluator) evalIndex(e *ast.IndexExpr, env *value.Env) (value.Value, error) {
	x, err := ev.eval(e.X, env)
	if err != nil {
		return value.Unit, err
	}
	idx, err := ev.eval(e.Index, env)
	if err != nil {
		return value.Unit, err
	}
	i := idx.Int
	switch x.Kind {
	case value.KindList:
		if i < 0 || int(i) >= len(x.List) {
			return value.Unit, errAt(e.LBracket, "index %d out of range (len %d)", i, len(x.List))
		}
		return x.List[i], nil
	case value.KindString:
		runes := []rune(x.Str)
		if i < 0 || int(i) >= len(runes) {
			return value.Unit, errAt(e.LBracket, "index %d out of range (len %d)", i, len(runes))
		}
		return value.NewString(string(runes[i])), nil
	}
	return value.Unit, errAt(e.LBracket, "cannot index %s", x)
}

func (ev *Evaluator) evalMember(e *ast.MemberExpr, env *value.Env) (value.Value, error) {
	x, err := ev.eval(e.X, env)
	if err != nil {
		return value.Unit, err
	}
	if x.Kind == value.KindVariant {
		def := ev.checker.TypeDefOf(x.Variant.Ctor)
		if def != nil {
			for i, f := range def.Fields {
				if f.Name == e.Name {
					return x.Variant.Fields[i], nil
				}
			}
		}
	}
	return value.Unit, errAt(e.NamePos, "%s has no field %q", x, e.Name)
}

func (ev *Evaluator) evalTry(e *ast.TryExpr, env *value.Env) (value.Value, error) {
	v, err := ev.eval(e.X, env)
	if err != nil {
		return value.Unit, err
	}
	if v.Kind != value.KindVariant {
		return value.Unit, errAt(e.QPos, "? requires a Result value")
	}
	switch v.Variant.Ctor {
	case "Ok":
		return v.Variant.Fields[0], nil
	case "Err":
		return value.Unit, propagateSignal{v}
	}
	return value.Unit, errAt(e.QPos, "? requires a Result value")
}

func (ev *Evaluator) evalIf(e *ast.IfExpr, env *value.Env) (value.Value, error) {
	cond, err := ev.eval(e.Cond, env)
	if err != nil {
		return value.Unit, err
	}
	if cond.Truthy() {
		return ev.eval(e.Then, env)
	}
	if e.Else != nil {
		return ev.eval(e.Else, env)
	}
	return value.Unit, nil
}

func (ev *Evaluator) evalMatch(e *ast.MatchExpr, env *value.Env) (value.Value, error) {
	subj, err := ev.eval(e.Scrutinee, env)
	if err != nil {
		return value.Unit, err
	}
	for _, arm := range e.Arms {
		inner := value.NewEnv(env)
		if ev.matchPattern(arm.Pattern, subj, inner) {
			return ev.eval(arm.Body, inner)
		}
	}
	return value.Unit, errAt(e.MatchPos, "no pattern matched %s", subj)
}

func (ev *Evaluator) evalBlock(e *ast.BlockExpr, env *value.Env) (value.Value, error) {
	inner := value.NewEnv(env)
	var deferred []*ast.CallExpr
	runDeferred := func() {
		for i := len(deferred) - 1; i >= 0; i-- {
			ev.evalCall(deferred[i], inner)
		}
	}
	for _, s := range e.Stmts {
		if d, ok := s.(*ast.DeferStmt); ok {
			deferred = append(deferred, d.X.(*ast.CallExpr))
			continue
		}
		if err := ev.execStmt(s, inner); err != nil {
			runDeferred()
			return value.Unit, err
		}
	}
	var out = value.Unit
	var err error
	if e.Tail != nil {
		out, err = ev.eval(e.Tail, inner)
	}
	runDeferred()
	if err != nil {
		return value.Unit, err
	}
	return out, nil
}

func (ev *Evaluator) evalWith(e *ast.WithExpr, env *value.Env) (value.Value, error) {
	inner := value.NewEnv(env)
	for _, b := range e.Binds {
		v, err := ev.eval(b.Value, inner)
		if err != nil {
			return value.Unit, err
		}
		if v.Kind != value.KindVariant {
			return value.Unit, errAt(b.NamePos, "<- requires a Result value")
		}
		switch v.Variant.Ctor {
		case "Ok":
			inner.Set(b.Name, v.Variant.Fields[0])
		case "Err":
			if len(e.ElseArms) == 0 {
				return value.Unit, propagateSignal{v}
			}
			for _, arm := range e.ElseArms {
				armEnv := value.NewEnv(env)
				if ev.matchPattern(arm.Pattern, v, armEnv) {
					return ev.eval(arm.Body, armEnv)
				}
			}
			return value.Unit, errAt(e.WithPos, "no pattern matched %s", v)
		default:
			return value.Unit, errAt(b.NamePos, "<- requires a Result value")
		}
	}
	return ev.eval(e.Body, inner)
}

// matchPattern tests a pattern against a value, binding names into env
// on success. Bindings made before a failing sub-pattern are discarded
// with the whole env by the caller.
func (ev *Evaluator) matchPattern(p ast.Pattern, v value.Value, env *value.Env) bool {
	switch p := p.(type) {
	case *ast.WildcardPattern:
		return true
	case *ast.IdentPattern:
		env.Set(p.Name, v)
		return true
	case *ast.LiteralPattern:
		lit, err := ev.eval(p.Value, env)
		if err != nil {
			return false
		}
		return value.Eq(lit, v)
	case *ast.ListPattern:
		if v.Kind != value.KindList || len(v.List) != len(p.Elements) {
			return false
		}
		for i, el := range p.Elements {
			if !ev.matchPattern(el, v.List[i], env) {
				return false
			}
		}
		return true
	case *ast.TuplePattern:
		if v.Kind != value.KindTuple || len(v.Tuple) != len(p.Elements) {
			return false
		}
		for i, el := range p.Elements {
			if !ev.matchPattern(el, v.Tuple[i], env) {
				return false
			}
		}
		return true
	case *ast.ConstructorPattern:
		if v.Kind != value.KindVariant || v.Variant.Ctor != p.Name {
			return false
		}
		if len(p.Args) != len(v.Variant.Fields) {
			return false
		}
		for i, el := range p.Args {
			if !ev.matchPattern(el, v.Variant.Fields[i], env) {
				return false
			}
		}
		return true
	}
	return false
}

// ----- builtins -----

func (ev *Evaluator) installBuiltins() {
	def := func(name string, arity int, fn func(args []value.Value) (value.Value, error)) {
		ev.global.Set(name, value.Value{Kind: value.KindBuiltin,
			Builtin: &value.Builtin{Name: name, Arity: arity, Fn: fn}})
	}
	ok := func(v value.Value) value.Value { return value.NewVariant("Ok", 0, []value.Value{v}) }
	errv := func(msg string) value.Value {
		return value.NewVariant("Err", 1, []value.Value{value.NewString(msg)})
	}
	some := func(v value.Value) value.Value { return value.NewVariant("Some", 0, []value.Value{v}) }
	none := value.NewVariant("None", 1, nil)

	def("print", 1, func(args []value.Value) (value.Value, error) {
		fmt.Print(args[0])
		return value.Unit, nil
	})
	def("println", 1, func(args []value.Value) (value.Value, error) {
		fmt.Println(args[0])
		return value.Unit, nil
	})
	def("panic", 1, func(args []value.Value) (value.Value, error) {
		return value.Unit, fmt.Errorf("panic: %s", args[0].Str)
	})

	def("str_len", 1, func(args []value.Value) (value.Value, error) {
		return value.NewInt(int64(len([]rune(args[0].Str)))), nil
	})
	def("str_concat", 2, func(args []value.Value) (value.Value, error) {
		return value.NewString(args[0].Str + args[1].Str), nil
	})
	def("str_slice", 3, func(args []value.Value) (value.Value, error) {
		runes := []rune(args[0].Str)
		from, to := args[1].Int, args[2].Int
		if from < 0 || to > int64(len(runes)) || from > to {
			return value.Unit, fmt.Errorf("str_slice: range %d..%d out of bounds", from, to)
		}
		return value.NewString(string(runes[from:to])), nil
	})
	def("str_contains", 2, func(args []value.Value) (value.Value, error) {
		return value.NewBool(strings.Contains(args[0].Str, args[1].Str)), nil
	})
	def("str_split", 2, func(args []value.Value) (value.Value, error) {
		parts := strings.Split(args[0].Str, args[1].Str)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.NewString(p)
		}
		return value.NewList(out), nil
	})
	def("str_to_int", 1, func(args []value.Value) (value.Value, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(args[0].Str), 10, 64)
		if err != nil {
			return errv("not a number: " + args[0].Str), nil
		}
		return ok(value.NewInt(n)), nil
	})
	def("int_to_str", 1, func(args []value.Value) (value.Value, error) {
		return value.NewString(strconv.FormatInt(args[0].Int, 10)), nil
	})
	def("float_to_str", 1, func(args []value.Value) (value.Value, error) {
		return value.NewString(strconv.FormatFloat(args[0].Float, 'g', -1, 64)), nil
	})
	def("int_to_float", 1, func(args []value.Value) (value.Value, error) {
		return value.NewFloat(float64(args[0].Int)), nil
	})
	def("float_to_int", 1, func(args []value.Value) (value.Value, error) {
		return value.NewInt(int64(args[0].Float)), nil
	})

	def("list_len", 1, func(args []value.Value) (value.Value, error) {
		return value.NewInt(int64(len(args[0].List))), nil
	})
	def("list_push", 2, func(args []value.Value) (value.Value, error) {
		out := append(append([]value.Value{}, args[0].List...), args[1])
		return value.NewList(out), nil
	})
	def("list_get", 2, func(args []value.Value) (value.Value, error) {
		i := args[1].Int
		if i < 0 || int(i) >= len(args[0].List) {
			return none, nil
		}
		return some(args[0].List[i]), nil
	})
	def("list_head", 1, func(args []value.Value) (value.Value, error) {
		if len(args[0].List) == 0 {
			return none, nil
		}
		return some(args[0].List[0]), nil
	})
	def("list_tail", 1, func(args []value.Value) (value.Value, error) {
		if len(args[0].List) == 0 {
			return value.NewList(nil), nil
		}
		return value.NewList(append([]value.Value{}, args[0].List[1:]...)), nil
	})
	def("list_concat", 2, func(args []value.Value) (value.Value, error) {
		out := append(append([]value.Value{}, args[0].List...), args[1].List...)
		return value.NewList(out), nil
	})
	def("list_reverse", 1, func(args []value.Value) (value.Value, error) {
		n := len(args[0].List)
		out := make([]value.Value, n)
		for i, v := range args[0].List {
			out[n-1-i] = v
		}
		return value.NewList(out), nil
	})
	def("list_map", 2, func(args []value.Value) (value.Value, error) {
		out := make([]value.Value, len(args[0].List))
		for i, v := range args[0].List {
			r, err := ev.apply(token.Position{}, args[1], []value.Value{v})
			if err != nil {
				return value.Unit, err
			}
			out[i] = r
		}
		return value.NewList(out), nil
	})
	def("list_filter", 2, func(args []value.Value) (value.Value, error) {
		var out []value.Value
		for _, v := range args[0].List {
			r, err := ev.apply(token.Position{}, args[1], []value.Value{v})
			if err != nil {
				return value.Unit, err
			}
			if r.Truthy() {
				out = append(out, v)
			}
		}
		return value.NewList(out), nil
	})
	def("list_fold", 3, func(args []value.Value) (value.Value, error) {
		acc := args[1]
		for _, v := range args[0].List {
			r, err := ev.apply(token.Position{}, args[2], []value.Value{acc, v})
			if err != nil {
				return value.Unit, err
			}
			acc = r
		}
		return acc, nil
	})
	def("range", 2, func(args []value.Value) (value.Value, error) {
		var out []value.Value
		for i := args[0].Int; i < args[1].Int; i++ {
			out = append(out, value.NewInt(i))
		}
		return value.NewList(out), nil
	})

	def("read_file", 1, func(args []value.Value) (value.Value, error) {
		data, err := os.ReadFile(args[0].Str)
		if err != nil {
			return errv(err.Error()), nil
		}
		return ok(value.NewString(string(data))), nil
	})
	def("write_file", 2, func(args []value.Value) (value.Value, error) {
		if err := os.WriteFile(args[0].Str, []byte(args[1].Str), 0o644); err != nil {
			return errv(err.Error()), nil
		}
		return ok(value.Unit), nil
	})
	def("read_line", 0, func(args []value.Value) (value.Value, error) {
		var line string
		if _, err := fmt.Scanln(&line); err != nil {
			return errv(err.Error()), nil
		}
		return ok(value.NewString(line)), nil
	})
}
