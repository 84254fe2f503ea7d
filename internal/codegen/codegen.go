// Package codegen lowers a checked program to QBE intermediate text.
// The output is fed to the external qbe tool, which produces assembly
// for cc to link against the runtime.
package codegen

import (
	"fmt"
	"strings"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/token"
	"github.com/NijanthanR/fern/internal/types"
)

type genError struct {
	Pos token.Position
	Msg string
}

func (e genError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

func failf(pos token.Position, format string, args ...interface{}) {
	panic(genError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

type dataItem struct {
	label string
	text  string
}

// Generator emits QBE text for one program.
type Generator struct {
	checker *types.Checker

	fns     []string // finished function bodies
	cur     *strings.Builder
	tmpN    int
	lblN    int
	lambdaN int

	strs   []dataItem
	strIdx map[string]string

	env      map[string]string // local name -> operand
	locals   map[string]int    // named temps in use, for shadow uniquing
	deferred []*ast.CallExpr
	retCls   byte
	isMain   bool
}

// Generate lowers a checked program. The checker must have reported no
// errors; inferred types drive instruction class selection.
func Generate(prog *ast.Program, checker *types.Checker) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ge, ok := r.(genError); ok {
				err = ge
				return
			}
			panic(r)
		}
	}()

	g := &Generator{
		checker: checker,
		strIdx:  make(map[string]string),
	}

	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *ast.FnDecl:
			g.genFn(s)
		case *ast.TypeDecl, *ast.ImportStmt:
			// no code
		default:
			failf(s.Pos(), "only declarations can appear at the top level of a compiled file")
		}
	}

	var b strings.Builder
	for _, fn := range g.fns {
		b.WriteString(fn)
		b.WriteString("\n")
	}
	for _, d := range g.strs {
		fmt.Fprintf(&b, "data %s = { b \"%s\", b 0 }\n", d.label, escapeData(d.text))
	}
	return b.String(), nil
}

func escapeData(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ----- emission helpers -----

func (g *Generator) emitf(format string, args ...interface{}) {
	fmt.Fprintf(g.cur, "\t"+format+"\n", args...)
}

func (g *Generator) label(l string) {
	fmt.Fprintf(g.cur, "%s\n", l)
}

func (g *Generator) tmp() string {
	g.tmpN++
	return fmt.Sprintf("%%t%d", g.tmpN)
}

func (g *Generator) newLabel(stem string) string {
	g.lblN++
	return fmt.Sprintf("@%s%d", stem, g.lblN)
}

func (g *Generator) strLabel(text string) string {
	if l, ok := g.strIdx[text]; ok {
		return l
	}
	l := fmt.Sprintf("$str.%d", len(g.strs)+1)
	g.strIdx[text] = l
	g.strs = append(g.strs, dataItem{label: l, text: text})
	return l
}

// strValue wraps a literal's data bytes in a runtime string value.
// Every l operand the generated code passes around is a tagged runtime
// value, string literals included.
func (g *Generator) strValue(text string) string {
	r := g.tmp()
	g.emitf("%s =l call $fern_make_str(l %s)", r, g.strLabel(text))
	return r
}

// clsOf maps a type to its QBE class: w for Int, Bool and Unit, d for
// Float, l for everything heap-allocated.
func clsOf(t types.Type) byte {
	switch t := types.Resolve(t).(type) {
	case *types.Basic:
		switch t.Kind {
		case types.BasicFloat:
			return 'd'
		default:
			return 'w'
		}
	}
	return 'l'
}

// ----- boxing -----

// Generic positions carry values as l pointers. box widens a w or d
// operand to a runtime value; unbox does the reverse per the target
// type.
func (g *Generator) box(op string, t types.Type) string {
	switch clsOf(t) {
	case 'w':
		r := g.tmp()
		g.emitf("%s =l call $fern_box_int(w %s)", r, op)
		return r
	case 'd':
		r := g.tmp()
		g.emitf("%s =l call $fern_box_float(d %s)", r, op)
		return r
	}
	return op
}

func (g *Generator) unbox(op string, t types.Type) string {
	switch clsOf(t) {
	case 'w':
		r := g.tmp()
		g.emitf("%s =w call $fern_unbox_int(l %s)", r, op)
		return r
	case 'd':
		r := g.tmp()
		g.emitf("%s =d call $fern_unbox_float(l %s)", r, op)
		return r
	}
	return op
}

// ----- functions -----

func (g *Generator) genFn(fd *ast.FnDecl) {
	sym := g.checker.LookupGlobal(fd.Name)
	if sym == nil {
		failf(fd.NamePos, "missing signature for %q", fd.Name)
	}
	fn := sym.Type.(*types.Func)

	saveCur, saveEnv, saveLocals, saveDefer := g.cur, g.env, g.locals, g.deferred
	g.cur = &strings.Builder{}
	g.env = map[string]string{}
	g.locals = map[string]int{}
	g.deferred = nil

	g.isMain = fd.Name == "main"
	retCls := clsOf(fn.Return)
	if g.isMain {
		retCls = 'w'
	}
	g.retCls = retCls

	export := ""
	if fd.IsPublic || g.isMain {
		export = "export "
	}

	var params []string
	if fd.IsMultiClause() {
		for i, pt := range fn.Params {
			params = append(params, fmt.Sprintf("%c %%p%d", clsOf(pt), i))
		}
	} else {
		for i, p := range fd.Params {
			params = append(params, fmt.Sprintf("%c %%%s", clsOf(fn.Params[i]), p.Name))
			g.env[p.Name] = "%" + p.Name
			g.locals[p.Name] = 1
		}
	}

	fmt.Fprintf(g.cur, "%sfunction %c $%s(%s) {\n", export, retCls, fd.Name, strings.Join(params, ", "))
	g.label("@start")

	if fd.IsMultiClause() {
		g.genClauses(fd, fn)
	} else {
		val := g.genExpr(fd.Body)
		g.genRet(val, fn.Return)
	}

	fmt.Fprintf(g.cur, "}\n")
	g.fns = append(g.fns, g.cur.String())
	g.cur, g.env, g.locals, g.deferred = saveCur, saveEnv, saveLocals, saveDefer
}

// genRet runs pending defers and emits the return. main always returns
// an exit status word.
func (g *Generator) genRet(val string, t types.Type) {
	g.genDefers()
	if g.isMain {
		if clsOf(t) == 'w' && !types.IsUnit(t) {
			g.emitf("ret %s", val)
		} else {
			g.emitf("ret 0")
		}
		return
	}
	if g.retCls == 'l' && clsOf(t) != 'l' {
		g.emitf("ret %s", g.box(val, t))
		return
	}
	if types.IsUnit(t) {
		g.emitf("ret 0")
		return
	}
	g.emitf("ret %s", val)
}

func (g *Generator) genDefers() {
	for i := len(g.deferred) - 1; i >= 0; i-- {
		g.genCall(g.deferred[i])
	}
}

// genClauses lowers pattern-clause dispatch: each clause tests its
// patterns and falls through to the next on mismatch.
func (g *Generator) genClauses(fd *ast.FnDecl, fn *types.Func) {
	for _, cl := range fd.Clauses {
		next := g.newLabel("clause")
		saved := g.snapshotEnv()
		for i, pat := range cl.Patterns {
			g.genPatternTest(fmt.Sprintf("%%p%d", i), fn.Params[i], pat, next)
		}
		val := g.genExpr(cl.Body)
		g.genRet(val, fn.Return)
		g.restoreEnv(saved)
		g.label(next)
	}
	msg := g.strValue(fmt.Sprintf("no clause of %s matches", fd.Name))
	g.emitf("call $fern_panic(l %s)", msg)
	if g.retCls == 'd' {
		g.emitf("ret d_0")
	} else {
		g.emitf("ret 0")
	}
}

func (g *Generator) snapshotEnv() map[string]string {
	m := make(map[string]string, len(g.env))
	for k, v := range g.env {
		m[k] = v
	}
	return m
}

func (g *Generator) restoreEnv(m map[string]string) { g.env = m }

// ----- statements -----

func (g *Generator) genStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.LetStmt:
			val := g.genExpr(s.Value)
			g.bindPattern(s.Pattern, val, g.checker.ExprType(s.Value))
		case *ast.ExprStmt:
			g.genExpr(s.X)
		case *ast.ReturnStmt:
			var val = "0"
			var t types.Type = types.Unit
			if s.Result != nil {
				val = g.genExpr(s.Result)
				t = g.checker.ExprType(s.Result)
			}
			g.genRet(val, t)
			g.label(g.newLabel("dead"))
		case *ast.DeferStmt:
			g.deferred = append(g.deferred, s.X.(*ast.CallExpr))
		case *ast.FnDecl:
			failf(s.FnPos, "nested function definitions are not supported when compiling; move %q to the top level", s.Name)
		default:
			failf(s.Pos(), "statement cannot be compiled here")
		}
	}
}

// bindPattern destructures an already computed value into env names.
// Refutable parts have been proven by the checker only for irrefutable
// positions; a mismatch aborts at runtime inside the field helpers.
func (g *Generator) bindPattern(p ast.Pattern, val string, t types.Type) {
	switch p := p.(type) {
	case *ast.WildcardPattern:
	case *ast.IdentPattern:
		g.locals[p.Name]++
		r := "%" + p.Name
		if n := g.locals[p.Name]; n > 1 {
			// shadowed names get a suffix so classes never collide
			r = fmt.Sprintf("%%%s.%d", p.Name, n)
		}
		g.emitf("%s =%c copy %s", r, clsOf(t), val)
		g.env[p.Name] = r
	case *ast.TuplePattern:
		tup, ok := types.Resolve(t).(*types.Tuple)
		if !ok {
			failf(p.LParen, "cannot destructure non-tuple")
		}
		for i, el := range p.Elements {
			f := g.tmp()
			g.emitf("%s =l call $fern_tuple_field(l %s, w %d)", f, val, i)
			g.bindPattern(el, g.unbox(f, tup.Elems[i]), tup.Elems[i])
		}
	default:
		failf(p.Pos(), "pattern is refutable; use match")
	}
}

// ----- expressions -----

func (g *Generator) genExpr(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.IntLiteral:
		r := g.tmp()
		g.emitf("%s =w copy %d", r, e.Value)
		return r
	case *ast.BoolLiteral:
		n := 0
		if e.Value {
			n = 1
		}
		r := g.tmp()
		g.emitf("%s =w copy %d", r, n)
		return r
	case *ast.FloatLiteral:
		r := g.tmp()
		g.emitf("%s =d copy d_%g", r, e.Value)
		return r
	case *ast.StringLiteral:
		return g.strValue(e.Value)
	case *ast.IdentExpr:
		return g.genIdent(e)
	case *ast.ListLiteral:
		return g.genList(e)
	case *ast.TupleLiteral:
		return g.genTuple(e)
	case *ast.BinaryExpr:
		return g.genBinary(e)
	case *ast.UnaryExpr:
		return g.genUnary(e)
	case *ast.CallExpr:
		return g.genCall(e)
	case *ast.IndexExpr:
		return g.genIndex(e)
	case *ast.MemberExpr:
		return g.genMember(e)
	case *ast.TryExpr:
		return g.genTry(e)
	case *ast.IfExpr:
		return g.genIf(e)
	case *ast.MatchExpr:
		return g.genMatch(e)
	case *ast.BlockExpr:
		return g.genBlock(e)
	case *ast.WithExpr:
		return g.genWith(e)
	case *ast.LambdaExpr:
		return g.genLambda(e)
	}
	failf(e.Pos(), "expression cannot be compiled")
	return ""
}

func (g *Generator) genIdent(e *ast.IdentExpr) string {
	if op, ok := g.env[e.Name]; ok {
		return op
	}
	sym := g.checker.LookupGlobal(e.Name)
	if sym == nil {
		failf(e.NamePos, "undefined: %s", e.Name)
	}
	if ctor := g.checker.CtorOf(e.Name); ctor != nil && len(ctor.Payload) == 0 {
		// bare constructor value such as None
		r := g.tmp()
		g.emitf("%s =l call $fern_make_variant(w %d, w 0)", r, ctor.Tag)
		return r
	}
	// a named function used as a value is only sound when its native
	// signature already matches the boxed convention
	if fn, ok := sym.Type.(*types.Func); ok && !allBoxed(fn) {
		failf(e.NamePos, "%s cannot be passed as a value here; wrap it in a lambda", e.Name)
	}
	if types.IsBuiltin(e.Name) {
		return "$fern_" + e.Name
	}
	return "$" + e.Name
}

func allBoxed(fn *types.Func) bool {
	for _, p := range fn.Params {
		if clsOf(p) != 'l' {
			return false
		}
	}
	return clsOf(fn.Return) == 'l'
}

func (g *Generator) genList(e *ast.ListLiteral) string {
	r := g.tmp()
	g.emitf("%s =l call $fern_list_new(w %d)", r, len(e.Elements))
	for _, el := range e.Elements {
		boxed := g.box(g.genExpr(el), g.checker.ExprType(el))
		r2 := g.tmp()
		g.emitf("%s =l call $fern_list_push(l %s, l %s)", r2, r, boxed)
		r = r2
	}
	return r
}

func (g *Generator) genTuple(e *ast.TupleLiteral) string {
	if len(e.Elements) == 0 {
		return "0"
	}
	r := g.tmp()
	g.emitf("%s =l call $fern_tuple_new(w %d)", r, len(e.Elements))
	for i, el := range e.Elements {
		v := g.box(g.genExpr(el), g.checker.ExprType(el))
		g.emitf("call $fern_tuple_set(l %s, w %d, l %s)", r, i, v)
	}
	return r
}

var intCmp = map[token.Kind]string{
	token.Eq:    "ceqw",
	token.NotEq: "cnew",
	token.Lt:    "csltw",
	token.LtEq:  "cslew",
	token.Gt:    "csgtw",
	token.GtEq:  "csgew",
}

var floatCmp = map[token.Kind]string{
	token.Eq:    "ceqd",
	token.NotEq: "cned",
	token.Lt:    "cltd",
	token.LtEq:  "cled",
	token.Gt:    "cgtd",
	token.GtEq:  "cged",
}

var arith = map[token.Kind]string{
	token.Plus:    "add",
	token.Minus:   "sub",
	token.Star:    "mul",
	token.Slash:   "div",
	token.Percent: "rem",
}

func (g *Generator) genBinary(e *ast.BinaryExpr) string {
	switch e.Op {
	case token.PipeOp:
		return g.genPipe(e)
	case token.And, token.Or:
		return g.genShortCircuit(e)
	}

	leftT := types.Resolve(g.checker.ExprType(e.Left))
	left := g.genExpr(e.Left)
	right := g.genExpr(e.Right)
	cls := clsOf(leftT)

	if op, isCmp := intCmp[e.Op]; isCmp {
		r := g.tmp()
		switch cls {
		case 'w':
			g.emitf("%s =w %s %s, %s", r, op, left, right)
		case 'd':
			g.emitf("%s =w %s %s, %s", r, floatCmp[e.Op], left, right)
		default:
			if isStringType(leftT) && (e.Op == token.Lt || e.Op == token.LtEq || e.Op == token.Gt || e.Op == token.GtEq) {
				c := g.tmp()
				g.emitf("%s =w call $fern_str_cmp(l %s, l %s)", c, left, right)
				g.emitf("%s =w %s %s, 0", r, op, c)
			} else {
				g.emitf("%s =w call $fern_value_eq(l %s, l %s)", r, left, right)
				if e.Op == token.NotEq {
					r2 := g.tmp()
					g.emitf("%s =w ceqw %s, 0", r2, r)
					return r2
				}
			}
		}
		return r
	}

	if e.Op == token.Power {
		r := g.tmp()
		if cls == 'd' {
			g.emitf("%s =d call $fern_pow_float(d %s, d %s)", r, left, right)
		} else {
			g.emitf("%s =w call $fern_pow_int(w %s, w %s)", r, left, right)
		}
		return r
	}

	op, ok := arith[e.Op]
	if !ok {
		failf(e.OpPos, "operator %s cannot be compiled", e.Op)
	}
	r := g.tmp()
	switch {
	case cls == 'w':
		g.emitf("%s =w %s %s, %s", r, op, left, right)
	case cls == 'd':
		g.emitf("%s =d %s %s, %s", r, op, left, right)
	case isStringType(leftT) && e.Op == token.Plus:
		g.emitf("%s =l call $fern_str_concat(l %s, l %s)", r, left, right)
	default:
		failf(e.OpPos, "operator %s cannot be compiled for %s", e.Op, leftT)
	}
	return r
}

func isStringType(t types.Type) bool {
	b, ok := types.Resolve(t).(*types.Basic)
	return ok && b.Kind == types.BasicString
}

// genShortCircuit lowers and/or without evaluating the right operand
// when the left already decides the result.
func (g *Generator) genShortCircuit(e *ast.BinaryExpr) string {
	res := g.tmp()
	rhs := g.newLabel("sc.rhs")
	short := g.newLabel("sc.short")
	join := g.newLabel("sc.join")

	left := g.genExpr(e.Left)
	if e.Op == token.And {
		g.emitf("jnz %s, %s, %s", left, rhs, short)
	} else {
		g.emitf("jnz %s, %s, %s", left, short, rhs)
	}

	g.label(rhs)
	right := g.genExpr(e.Right)
	g.emitf("%s =w copy %s", res, right)
	g.emitf("jmp %s", join)

	g.label(short)
	if e.Op == token.And {
		g.emitf("%s =w copy 0", res)
	} else {
		g.emitf("%s =w copy 1", res)
	}
	g.emitf("jmp %s", join)

	g.label(join)
	return res
}

func (g *Generator) genPipe(e *ast.BinaryExpr) string {
	if call, ok := e.Right.(*ast.CallExpr); ok {
		piped := &ast.CallExpr{
			Callee: call.Callee,
			LParen: call.LParen,
			Args:   append([]ast.Expr{e.Left}, call.Args...),
			RParen: call.RParen,
		}
		return g.genCallAs(piped, e)
	}
	piped := &ast.CallExpr{Callee: e.Right, Args: []ast.Expr{e.Left}}
	return g.genCallAs(piped, e)
}

func (g *Generator) genUnary(e *ast.UnaryExpr) string {
	val := g.genExpr(e.X)
	r := g.tmp()
	switch e.Op {
	case token.Not:
		g.emitf("%s =w ceqw %s, 0", r, val)
	case token.Minus:
		if clsOf(g.checker.ExprType(e.X)) == 'd' {
			g.emitf("%s =d neg %s", r, val)
		} else {
			g.emitf("%s =w sub 0, %s", r, val)
		}
	default:
		failf(e.OpPos, "operator %s cannot be compiled", e.Op)
	}
	return r
}

func (g *Generator) genCall(e *ast.CallExpr) string {
	return g.genCallAs(e, e)
}

// genCallAs compiles call against the types recorded for orig, which
// differs from call when a pipe was desugared.
func (g *Generator) genCallAs(call *ast.CallExpr, orig ast.Expr) string {
	// constructor application
	if id, ok := call.Callee.(*ast.IdentExpr); ok {
		if _, local := g.env[id.Name]; !local {
			if ctor := g.checker.CtorOf(id.Name); ctor != nil {
				return g.genCtorCall(id.Name, ctor, call)
			}
			if id.Name == "print" || id.Name == "println" {
				return g.genPrint(id.Name, call)
			}
			if id.Name == "panic" {
				arg := g.genExpr(call.Args[0])
				g.emitf("call $fern_panic(l %s)", arg)
				return "0"
			}
		}
	}

	retT := g.checker.ExprType(orig)
	callee, declared := g.calleeOperand(call.Callee)

	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		v := g.genExpr(a)
		at := g.checker.ExprType(a)
		pcls := clsOf(at)
		if declared != nil {
			if i < len(declared.Params) {
				pcls = clsOf(declared.Params[i])
				if pcls == 'l' && clsOf(at) != 'l' {
					v = g.box(v, at)
				}
			}
		} else {
			// calls through function values use the boxed convention
			pcls = 'l'
			v = g.box(v, at)
		}
		args[i] = fmt.Sprintf("%c %s", pcls, v)
	}

	retCls := byte('l')
	if declared != nil {
		retCls = clsOf(declared.Return)
	}
	r := g.tmp()
	g.emitf("%s =%c call %s(%s)", r, retCls, callee, strings.Join(args, ", "))
	if retCls == 'l' && clsOf(retT) != 'l' {
		return g.unbox(r, retT)
	}
	return r
}

// calleeOperand picks the call target and, for known functions, the
// declared signature used for boxing decisions.
func (g *Generator) calleeOperand(callee ast.Expr) (string, *types.Func) {
	id, ok := callee.(*ast.IdentExpr)
	if !ok {
		return g.genExpr(callee), nil
	}
	if op, local := g.env[id.Name]; local {
		return op, nil
	}
	sym := g.checker.LookupGlobal(id.Name)
	if sym == nil {
		failf(id.NamePos, "undefined: %s", id.Name)
	}
	fn, _ := sym.Type.(*types.Func)
	if types.IsBuiltin(id.Name) {
		return "$fern_" + id.Name, fn
	}
	return "$" + id.Name, fn
}

func (g *Generator) genCtorCall(name string, ctor *types.Ctor, call *ast.CallExpr) string {
	r := g.tmp()
	g.emitf("%s =l call $fern_make_variant(w %d, w %d)", r, ctor.Tag, len(call.Args))
	for i, a := range call.Args {
		v := g.box(g.genExpr(a), g.checker.ExprType(a))
		g.emitf("call $fern_variant_set(l %s, w %d, l %s)", r, i, v)
	}
	return r
}

// genPrint dispatches on the argument type since the runtime exposes
// one entry per representation.
func (g *Generator) genPrint(name string, call *ast.CallExpr) string {
	arg := call.Args[0]
	val := g.genExpr(arg)
	t := types.Resolve(g.checker.ExprType(arg))
	suffix := "value"
	cls := byte('l')
	if b, ok := t.(*types.Basic); ok {
		switch b.Kind {
		case types.BasicInt:
			suffix, cls = "int", 'w'
		case types.BasicFloat:
			suffix, cls = "float", 'd'
		case types.BasicBool:
			suffix, cls = "bool", 'w'
		case types.BasicString:
			suffix, cls = "str", 'l'
		case types.BasicUnit:
			suffix, cls = "int", 'w'
		}
	}
	g.emitf("call $fern_%s_%s(%c %s)", name, suffix, cls, val)
	return "0"
}

func (g *Generator) genIndex(e *ast.IndexExpr) string {
	x := g.genExpr(e.X)
	idx := g.genExpr(e.Index)
	xt := g.checker.ExprType(e.X)
	r := g.tmp()
	if isStringType(xt) {
		g.emitf("%s =l call $fern_str_index(l %s, w %s)", r, x, idx)
		return r
	}
	g.emitf("%s =l call $fern_list_index(l %s, w %s)", r, x, idx)
	return g.unbox(r, g.checker.ExprType(e))
}

func (g *Generator) genMember(e *ast.MemberExpr) string {
	xt := types.Resolve(g.checker.ExprType(e.X))
	con, ok := xt.(*types.Con)
	if !ok {
		failf(e.NamePos, "member access on non-record")
	}
	def := g.checker.TypeDefOf(con.Name)
	idx := -1
	for i, f := range def.Fields {
		if f.Name == e.Name {
			idx = i
			break
		}
	}
	if idx < 0 {
		failf(e.NamePos, "no field %q", e.Name)
	}
	x := g.genExpr(e.X)
	r := g.tmp()
	g.emitf("%s =l call $fern_variant_field(l %s, w %d)", r, x, idx)
	return g.unbox(r, g.checker.ExprType(e))
}

// genTry lowers '?': on Err the whole Result propagates out unchanged,
// on Ok the payload unwraps.
func (g *Generator) genTry(e *ast.TryExpr) string {
	val := g.genExpr(e.X)
	tag := g.tmp()
	g.emitf("%s =w call $fern_variant_tag(l %s)", tag, val)
	ok := g.newLabel("try.ok")
	prop := g.newLabel("try.err")
	g.emitf("jnz %s, %s, %s", tag, prop, ok)

	g.label(prop)
	g.genDefers()
	g.emitf("ret %s", val)

	g.label(ok)
	payload := g.tmp()
	g.emitf("%s =l call $fern_variant_field(l %s, w 0)", payload, val)
	return g.unbox(payload, g.checker.ExprType(e))
}

func (g *Generator) genIf(e *ast.IfExpr) string {
	t := g.checker.ExprType(e)
	cls := clsOf(t)
	res := g.tmp()
	thenL := g.newLabel("if.then")
	elseL := g.newLabel("if.else")
	join := g.newLabel("if.join")

	cond := g.genExpr(e.Cond)
	g.emitf("jnz %s, %s, %s", cond, thenL, elseL)

	g.label(thenL)
	thenV := g.genExpr(e.Then)
	g.emitf("%s =%c copy %s", res, cls, thenV)
	g.emitf("jmp %s", join)

	g.label(elseL)
	if e.Else != nil {
		elseV := g.genExpr(e.Else)
		g.emitf("%s =%c copy %s", res, cls, elseV)
	} else {
		g.emitf("%s =%c copy 0", res, cls)
	}
	g.emitf("jmp %s", join)

	g.label(join)
	return res
}

func (g *Generator) genMatch(e *ast.MatchExpr) string {
	subj := g.genExpr(e.Scrutinee)
	subjT := g.checker.ExprType(e.Scrutinee)
	t := g.checker.ExprType(e)
	cls := clsOf(t)
	res := g.tmp()
	join := g.newLabel("match.join")

	for i, arm := range e.Arms {
		saved := g.snapshotEnv()
		if i == len(e.Arms)-1 && irrefutable(arm.Pattern) {
			// the last arm always matches, so no fall-through block
			g.genPatternTest(subj, subjT, arm.Pattern, "")
			v := g.genExpr(arm.Body)
			g.emitf("%s =%c copy %s", res, cls, v)
			g.emitf("jmp %s", join)
			g.restoreEnv(saved)
			g.label(join)
			return res
		}
		next := g.newLabel("match.arm")
		g.genPatternTest(subj, subjT, arm.Pattern, next)
		v := g.genExpr(arm.Body)
		g.emitf("%s =%c copy %s", res, cls, v)
		g.emitf("jmp %s", join)
		g.restoreEnv(saved)
		g.label(next)
	}
	msg := g.strValue("no pattern matched")
	g.emitf("call $fern_panic(l %s)", msg)
	g.emitf("jmp %s", join)

	g.label(join)
	return res
}

// irrefutable reports whether a pattern matches every value of its type,
// so no fail branch is needed for it.
func irrefutable(p ast.Pattern) bool {
	switch p := p.(type) {
	case *ast.WildcardPattern, *ast.IdentPattern:
		return true
	case *ast.TuplePattern:
		for _, el := range p.Elements {
			if !irrefutable(el) {
				return false
			}
		}
		return true
	}
	return false
}

// genPatternTest emits checks that jump to fail on mismatch and binds
// the pattern's names on success.
func (g *Generator) genPatternTest(val string, t types.Type, p ast.Pattern, fail string) {
	switch p := p.(type) {
	case *ast.WildcardPattern:
	case *ast.IdentPattern:
		g.env[p.Name] = val
	case *ast.LiteralPattern:
		lit := g.genExpr(p.Value)
		c := g.tmp()
		switch clsOf(t) {
		case 'w':
			g.emitf("%s =w ceqw %s, %s", c, val, lit)
		case 'd':
			g.emitf("%s =w ceqd %s, %s", c, val, lit)
		default:
			g.emitf("%s =w call $fern_value_eq(l %s, l %s)", c, val, lit)
		}
		ok := g.newLabel("pat")
		g.emitf("jnz %s, %s, %s", c, ok, fail)
		g.label(ok)
	case *ast.ConstructorPattern:
		ctor := g.checker.CtorOf(p.Name)
		tag := g.tmp()
		g.emitf("%s =w call $fern_variant_tag(l %s)", tag, val)
		c := g.tmp()
		g.emitf("%s =w ceqw %s, %d", c, tag, ctor.Tag)
		ok := g.newLabel("pat")
		g.emitf("jnz %s, %s, %s", c, ok, fail)
		g.label(ok)
		sub := g.ctorFieldTypes(ctor, t)
		for i, argPat := range p.Args {
			f := g.tmp()
			g.emitf("%s =l call $fern_variant_field(l %s, w %d)", f, val, i)
			g.genPatternTest(g.unbox(f, sub[i]), sub[i], argPat, fail)
		}
	case *ast.TuplePattern:
		tup, okT := types.Resolve(t).(*types.Tuple)
		if !okT {
			failf(p.LParen, "tuple pattern on non-tuple")
		}
		for i, el := range p.Elements {
			f := g.tmp()
			g.emitf("%s =l call $fern_tuple_field(l %s, w %d)", f, val, i)
			g.genPatternTest(g.unbox(f, tup.Elems[i]), tup.Elems[i], el, fail)
		}
	case *ast.ListPattern:
		var elemT types.Type = types.Invalid
		if con, okT := types.Resolve(t).(*types.Con); okT && len(con.Args) == 1 {
			elemT = con.Args[0]
		}
		n := g.tmp()
		g.emitf("%s =w call $fern_list_len(l %s)", n, val)
		c := g.tmp()
		g.emitf("%s =w ceqw %s, %d", c, n, len(p.Elements))
		ok := g.newLabel("pat")
		g.emitf("jnz %s, %s, %s", c, ok, fail)
		g.label(ok)
		for i, el := range p.Elements {
			f := g.tmp()
			g.emitf("%s =l call $fern_list_index(l %s, w %d)", f, val, i)
			g.genPatternTest(g.unbox(f, elemT), elemT, el, fail)
		}
	default:
		failf(p.Pos(), "pattern cannot be compiled")
	}
}

// ctorFieldTypes resolves the payload types of a constructor against
// the concrete subject type.
func (g *Generator) ctorFieldTypes(ctor *types.Ctor, subject types.Type) []types.Type {
	con, ok := types.Resolve(subject).(*types.Con)
	if !ok {
		out := make([]types.Type, len(ctor.Payload))
		for i := range out {
			out[i] = types.Invalid
		}
		return out
	}
	subst := make(map[string]types.Type, len(ctor.Owner.Params))
	for i, p := range ctor.Owner.Params {
		if i < len(con.Args) {
			subst[p] = con.Args[i]
		}
	}
	out := make([]types.Type, len(ctor.Payload))
	for i, pt := range ctor.Payload {
		out[i] = types.Substitute(pt, subst)
	}
	return out
}

func (g *Generator) genBlock(e *ast.BlockExpr) string {
	saved := g.snapshotEnv()
	g.genStmts(e.Stmts)
	var val = "0"
	if e.Tail != nil {
		val = g.genExpr(e.Tail)
	}
	g.restoreEnv(saved)
	return val
}

// genWith chains Result binds. Without else arms the first Err returns
// from the enclosing function; with them it jumps to the arm cascade.
func (g *Generator) genWith(e *ast.WithExpr) string {
	t := g.checker.ExprType(e)
	cls := clsOf(t)
	res := g.tmp()
	join := g.newLabel("with.join")
	elseL := ""
	if len(e.ElseArms) > 0 {
		elseL = g.newLabel("with.else")
	}

	saved := g.snapshotEnv()
	errVal := g.tmp()
	for _, b := range e.Binds {
		val := g.genExpr(b.Value)
		tag := g.tmp()
		g.emitf("%s =w call $fern_variant_tag(l %s)", tag, val)
		ok := g.newLabel("with.ok")
		bad := g.newLabel("with.err")
		g.emitf("jnz %s, %s, %s", tag, bad, ok)

		g.label(bad)
		if elseL != "" {
			g.emitf("%s =l copy %s", errVal, val)
			g.emitf("jmp %s", elseL)
		} else {
			g.genDefers()
			g.emitf("ret %s", val)
		}

		g.label(ok)
		payload := g.tmp()
		g.emitf("%s =l call $fern_variant_field(l %s, w 0)", payload, val)
		okT := g.bindOkType(b.Value)
		g.env[b.Name] = g.unbox(payload, okT)
	}

	body := g.genExpr(e.Body)
	g.emitf("%s =%c copy %s", res, cls, body)
	g.emitf("jmp %s", join)
	g.restoreEnv(saved)

	if elseL != "" {
		g.label(elseL)
		// arms see the whole failing Result, so Err(e) binds the payload
		resT := g.checker.ExprType(e.Binds[0].Value)
		for _, arm := range e.ElseArms {
			next := g.newLabel("with.arm")
			savedArm := g.snapshotEnv()
			g.genPatternTest(errVal, resT, arm.Pattern, next)
			v := g.genExpr(arm.Body)
			g.emitf("%s =%c copy %s", res, cls, v)
			g.emitf("jmp %s", join)
			g.restoreEnv(savedArm)
			g.label(next)
		}
		msg := g.strValue("no pattern matched")
		g.emitf("call $fern_panic(l %s)", msg)
		g.emitf("jmp %s", join)
	}

	g.label(join)
	return res
}

func (g *Generator) bindOkType(value ast.Expr) types.Type {
	if okT, _, ok := types.ResultParts(g.checker.ExprType(value)); ok {
		return okT
	}
	return types.Invalid
}

// genLambda lifts an anonymous function to a named top-level one.
// Lambdas may not capture enclosing locals; the checker has already
// typed the body, so the lifted function reuses those types.
func (g *Generator) genLambda(e *ast.LambdaExpr) string {
	g.checkNoCapture(e)

	fnT, ok := types.Resolve(g.checker.ExprType(e)).(*types.Func)
	if !ok {
		failf(e.LParen, "lambda was not typed")
	}

	g.lambdaN++
	name := fmt.Sprintf("$lambda.%d", g.lambdaN)

	saveCur, saveEnv, saveLocals, saveDefer, saveMain, saveRet := g.cur, g.env, g.locals, g.deferred, g.isMain, g.retCls
	g.cur = &strings.Builder{}
	g.env = map[string]string{}
	g.locals = map[string]int{}
	g.deferred = nil
	g.isMain = false
	g.retCls = 'l'

	// lambdas use the boxed convention so the runtime and function-typed
	// callers can invoke any of them through one pointer signature
	var params []string
	for _, p := range e.Params {
		params = append(params, fmt.Sprintf("l %%%s", p.Name))
	}
	fmt.Fprintf(g.cur, "function l %s(%s) {\n", name, strings.Join(params, ", "))
	g.label("@start")
	for i, p := range e.Params {
		g.env[p.Name] = g.unbox("%"+p.Name, fnT.Params[i])
		g.locals[p.Name] = 1
	}
	val := g.genExpr(e.Body)
	g.genDefers()
	g.emitf("ret %s", g.box(val, fnT.Return))
	fmt.Fprintf(g.cur, "}\n")
	g.fns = append(g.fns, g.cur.String())

	g.cur, g.env, g.locals, g.deferred, g.isMain, g.retCls = saveCur, saveEnv, saveLocals, saveDefer, saveMain, saveRet
	return name
}

// checkNoCapture walks the lambda body for references to enclosing
// locals, which the lifted form cannot reach.
func (g *Generator) checkNoCapture(e *ast.LambdaExpr) {
	own := make(map[string]bool, len(e.Params))
	for _, p := range e.Params {
		own[p.Name] = true
	}
	var walk func(n ast.Expr)
	walkPattern := func(p ast.Pattern) {
		var wp func(p ast.Pattern)
		wp = func(p ast.Pattern) {
			switch p := p.(type) {
			case *ast.IdentPattern:
				own[p.Name] = true
			case *ast.ListPattern:
				for _, el := range p.Elements {
					wp(el)
				}
			case *ast.TuplePattern:
				for _, el := range p.Elements {
					wp(el)
				}
			case *ast.ConstructorPattern:
				for _, el := range p.Args {
					wp(el)
				}
			}
		}
		wp(p)
	}
	var walkStmt func(s ast.Stmt)
	walk = func(n ast.Expr) {
		switch n := n.(type) {
		case *ast.IdentExpr:
			if !own[n.Name] {
				if _, captured := g.env[n.Name]; captured {
					failf(n.NamePos, "lambda captures local %q; pass it as a parameter instead", n.Name)
				}
			}
		case *ast.ListLiteral:
			for _, el := range n.Elements {
				walk(el)
			}
		case *ast.TupleLiteral:
			for _, el := range n.Elements {
				walk(el)
			}
		case *ast.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpr:
			walk(n.X)
		case *ast.CallExpr:
			walk(n.Callee)
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.IndexExpr:
			walk(n.X)
			walk(n.Index)
		case *ast.MemberExpr:
			walk(n.X)
		case *ast.TryExpr:
			walk(n.X)
		case *ast.IfExpr:
			walk(n.Cond)
			walk(n.Then)
			if n.Else != nil {
				walk(n.Else)
			}
		case *ast.MatchExpr:
			walk(n.Scrutinee)
			for _, arm := range n.Arms {
				walkPattern(arm.Pattern)
				walk(arm.Body)
			}
		case *ast.BlockExpr:
			for _, s := range n.Stmts {
				walkStmt(s)
			}
			if n.Tail != nil {
				walk(n.Tail)
			}
		case *ast.LambdaExpr:
			for _, p := range n.Params {
				own[p.Name] = true
			}
			walk(n.Body)
		case *ast.WithExpr:
			for _, b := range n.Binds {
				walk(b.Value)
				own[b.Name] = true
			}
			walk(n.Body)
			for _, arm := range n.ElseArms {
				walkPattern(arm.Pattern)
				walk(arm.Body)
			}
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.LetStmt:
			walk(s.Value)
			walkPattern(s.Pattern)
		case *ast.ReturnStmt:
			if s.Result != nil {
				walk(s.Result)
			}
		case *ast.ExprStmt:
			walk(s.X)
		case *ast.DeferStmt:
			walk(s.X)
		}
	}
	walk(e.Body)
}
