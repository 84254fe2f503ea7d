package types

import (
	"fmt"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/token"
)

// ----- Type Checking Errors -----

type Error struct {
	Pos token.Position
	Msg string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ----- Symbols and Scopes -----

type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymFunc
	SymCtor
	SymType
)

type Symbol struct {
	Name     string
	Kind     SymbolKind
	Type     Type
	Node     ast.Node
	IsPublic bool

	// TypeParams is set for generic functions and constructors; each
	// reference instantiates them with fresh variables.
	TypeParams []string
}

type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

func (s *Scope) Define(sym *Symbol) { s.symbols[sym.Name] = sym }

func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *Scope) LookupLocal(name string) *Symbol {
	sym, ok := s.symbols[name]
	if !ok {
		return nil
	}
	return sym
}

// ----- Declared types -----

// TypeDef records a declared sum or record type.
type TypeDef struct {
	Name     string
	Params   []string
	Variants []*Ctor
	Fields   []Field
}

type Field struct {
	Name string
	Type Type // may contain TypeParam placeholders
}

// Ctor is one variant constructor of a sum type (or the record
// constructor, which takes the fields in declaration order).
type Ctor struct {
	Name    string
	Owner   *TypeDef
	Tag     int
	Payload []Type // may contain TypeParam placeholders
}

// result type of the constructor, with placeholders still in place
func (c *Ctor) resultType() Type {
	args := make([]Type, len(c.Owner.Params))
	for i, p := range c.Owner.Params {
		args[i] = &TypeParam{Name: p}
	}
	return &Con{Name: c.Owner.Name, Args: args}
}

// ----- Checker -----

type Checker struct {
	global   *Scope
	typeDefs map[string]*TypeDef
	ctors    map[string]*Ctor
	errors   []Error

	exprTypes map[ast.Expr]Type

	// enclosing function context
	fnRet     Type
	fnResult  bool // declared return is Result(_, _)
	fnErrType Type // error side of the declared Result
}

func NewChecker() *Checker {
	c := &Checker{
		global:    NewScope(nil),
		typeDefs:  make(map[string]*TypeDef),
		ctors:     make(map[string]*Ctor),
		exprTypes: make(map[ast.Expr]Type),
	}
	c.declarePrelude()
	c.declareBuiltins()
	return c
}

func (c *Checker) Errors() []Error   { return c.errors }
func (c *Checker) HasErrors() bool   { return len(c.errors) > 0 }
func (c *Checker) FirstError() string {
	if len(c.errors) == 0 {
		return ""
	}
	return c.errors[0].Error()
}

// ExprType returns the inferred type of an expression, for use after a
// successful check. Codegen relies on this to pick instruction classes.
func (c *Checker) ExprType(e ast.Expr) Type {
	if t, ok := c.exprTypes[e]; ok {
		return Resolve(t)
	}
	return Invalid
}

// TypeDefOf looks up a declared (or prelude) type by name.
func (c *Checker) TypeDefOf(name string) *TypeDef { return c.typeDefs[name] }

// LookupGlobal finds a top-level symbol. Codegen uses this for function
// signatures after a successful check.
func (c *Checker) LookupGlobal(name string) *Symbol { return c.global.Lookup(name) }

// CtorOf looks up a variant constructor by name.
func (c *Checker) CtorOf(name string) *Ctor { return c.ctors[name] }

func (c *Checker) errorf(pos token.Position, format string, args ...interface{}) {
	c.errors = append(c.errors, Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// CheckProgram type-checks a whole file. Declarations are gathered
// first so functions can call each other regardless of order.
func (c *Checker) CheckProgram(prog *ast.Program) []Error {
	c.checkStmtList(prog.Stmts, c.global)
	return c.errors
}

// Infer type-checks a single expression against the global scope. The
// REPL uses this for :type and for evaluating entered expressions.
func (c *Checker) Infer(e ast.Expr) (Type, []Error) {
	start := len(c.errors)
	t := c.inferExpr(e, c.global)
	return Resolve(t), c.errors[start:]
}

// CheckStmt type-checks one top-level statement in the global scope,
// keeping its bindings for later REPL inputs.
func (c *Checker) CheckStmt(s ast.Stmt) []Error {
	start := len(c.errors)
	c.checkStmtList([]ast.Stmt{s}, c.global)
	return c.errors[start:]
}

// checkStmtList declares types and function signatures up front, then
// checks each statement in order.
func (c *Checker) checkStmtList(stmts []ast.Stmt, scope *Scope) {
	for _, s := range stmts {
		if td, ok := s.(*ast.TypeDecl); ok {
			c.declareTypeDecl(td, scope)
		}
	}
	for _, s := range stmts {
		if fd, ok := s.(*ast.FnDecl); ok {
			c.declareFn(fd, scope)
		}
	}
	for _, s := range stmts {
		c.checkStmt(s, scope)
	}
}

func (c *Checker) checkStmt(s ast.Stmt, scope *Scope) {
	switch s := s.(type) {
	case *ast.LetStmt:
		c.checkLet(s, scope)
	case *ast.ReturnStmt:
		c.checkReturn(s, scope)
	case *ast.ExprStmt:
		c.inferExpr(s.X, scope)
	case *ast.DeferStmt:
		if _, ok := s.X.(*ast.CallExpr); !ok {
			c.errorf(s.DeferPos, "defer requires a function call")
			return
		}
		c.inferExpr(s.X, scope)
	case *ast.FnDecl:
		c.checkFnBody(s, scope)
	case *ast.TypeDecl:
		// declared in the pre-pass
	case *ast.ImportStmt:
		// single-file checking; std functions are built in
	default:
		c.errorf(s.Pos(), "unexpected statement")
	}
}

func (c *Checker) checkLet(s *ast.LetStmt, scope *Scope) {
	valType := c.inferExpr(s.Value, scope)
	if s.Type != nil {
		annType := c.resolveTypeExpr(s.Type, nil)
		if err := Unify(annType, valType); err != nil {
			c.errorf(s.Value.Pos(), "%s", err)
			valType = annType
		}
		// shadowing lives in inner scopes; an annotated rebind in the
		// same scope must agree with the existing binding
		if id, ok := s.Pattern.(*ast.IdentPattern); ok {
			if prev := scope.LookupLocal(id.Name); prev != nil && prev.Kind == SymVar {
				if err := Unify(prev.Type, valType); err != nil {
					c.errorf(s.Pattern.Pos(), "cannot rebind %q at a different type: %s", id.Name, err)
				}
			}
		}
	}
	c.bindPattern(s.Pattern, valType, scope)
}

func (c *Checker) checkReturn(s *ast.ReturnStmt, scope *Scope) {
	if c.fnRet == nil {
		c.errorf(s.ReturnPos, "return outside of a function")
		return
	}
	var t Type = Unit
	if s.Result != nil {
		t = c.inferExpr(s.Result, scope)
	}
	if err := Unify(c.fnRet, t); err != nil {
		c.errorf(s.ReturnPos, "%s", err)
	}
}

// ----- Function declarations -----

// declareFn computes the signature and defines the symbol without
// touching the body.
func (c *Checker) declareFn(fd *ast.FnDecl, scope *Scope) {
	if fd.IsMultiClause() {
		// pattern clauses carry no annotations; give the function
		// fresh variable types and let the clause bodies pin them
		params := make([]Type, len(fd.Clauses[0].Patterns))
		for i := range params {
			params[i] = NewVar()
		}
		scope.Define(&Symbol{
			Name: fd.Name,
			Kind: SymFunc,
			Type: &Func{Params: params, Return: NewVar()},
			Node: fd,
		})
		return
	}

	tparams := c.collectTypeParams(fd)
	params := make([]Type, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = c.resolveTypeExpr(p.Type, tparams)
	}
	var ret Type = Unit
	if fd.Return != nil {
		ret = c.resolveTypeExpr(fd.Return, tparams)
	}
	names := make([]string, 0, len(tparams))
	for name := range tparams {
		names = append(names, name)
	}
	scope.Define(&Symbol{
		Name:       fd.Name,
		Kind:       SymFunc,
		Type:       &Func{Params: params, Return: ret},
		Node:       fd,
		IsPublic:   fd.IsPublic,
		TypeParams: names,
	})
}

// collectTypeParams scans a typed signature for lowercase type names
// that are not declared types; those act as type parameters of the
// function.
func (c *Checker) collectTypeParams(fd *ast.FnDecl) map[string]Type {
	found := make(map[string]Type)
	var walk func(te ast.TypeExpr)
	walk = func(te ast.TypeExpr) {
		switch te := te.(type) {
		case *ast.NamedType:
			if len(te.Args) == 0 && isTypeParamName(te.Name) && !c.isKnownType(te.Name) {
				if _, ok := found[te.Name]; !ok {
					found[te.Name] = &TypeParam{Name: te.Name}
				}
				return
			}
			for _, a := range te.Args {
				walk(a)
			}
		case *ast.FuncTypeExpr:
			for _, p := range te.Params {
				walk(p)
			}
			walk(te.Return)
		case *ast.TupleTypeExpr:
			for _, e := range te.Elements {
				walk(e)
			}
		}
	}
	for _, p := range fd.Params {
		if p.Type != nil {
			walk(p.Type)
		}
	}
	if fd.Return != nil {
		walk(fd.Return)
	}
	return found
}

func isTypeParamName(name string) bool {
	return len(name) > 0 && name[0] >= 'a' && name[0] <= 'z'
}

func (c *Checker) isKnownType(name string) bool {
	switch name {
	case "Int", "Float", "String", "Bool", "Unit":
		return true
	}
	_, ok := c.typeDefs[name]
	return ok
}

// checkFnBody checks the body (or clauses) against the declared symbol.
func (c *Checker) checkFnBody(fd *ast.FnDecl, scope *Scope) {
	sym := scope.Lookup(fd.Name)
	if sym == nil || sym.Kind != SymFunc {
		// a nested declaration that the pre-pass did not see
		c.declareFn(fd, scope)
		sym = scope.Lookup(fd.Name)
	}
	fn := sym.Type.(*Func)

	savedRet, savedResult, savedErr := c.fnRet, c.fnResult, c.fnErrType
	defer func() { c.fnRet, c.fnResult, c.fnErrType = savedRet, savedResult, savedErr }()

	c.fnRet = fn.Return
	if _, errT, ok := ResultParts(fn.Return); ok {
		c.fnResult = true
		c.fnErrType = errT
	} else {
		c.fnResult = false
		c.fnErrType = nil
	}

	if fd.IsMultiClause() {
		for _, cl := range fd.Clauses {
			if len(cl.Patterns) != len(fn.Params) {
				c.errorf(cl.ClausePos, "clause of %q takes %d arguments, expected %d",
					fd.Name, len(cl.Patterns), len(fn.Params))
				continue
			}
			inner := NewScope(scope)
			for i, pat := range cl.Patterns {
				c.bindPattern(pat, fn.Params[i], inner)
			}
			bodyT := c.inferExpr(cl.Body, inner)
			if err := Unify(fn.Return, bodyT); err != nil {
				c.errorf(cl.Body.Pos(), "%s", err)
			}
		}
		return
	}

	inner := NewScope(scope)
	for i, p := range fd.Params {
		inner.Define(&Symbol{Name: p.Name, Kind: SymVar, Type: fn.Params[i]})
	}
	bodyT := c.inferExpr(fd.Body, inner)
	// a Unit function may end on any expression and discard it
	if !IsUnit(fn.Return) {
		if err := Unify(fn.Return, bodyT); err != nil {
			c.errorf(fd.Body.Pos(), "function %q: %s", fd.Name, err)
		}
	}
}

// ----- Type declarations -----

func (c *Checker) declareTypeDecl(td *ast.TypeDecl, scope *Scope) {
	if _, exists := c.typeDefs[td.Name]; exists {
		c.errorf(td.NamePos, "type %q is already declared", td.Name)
		return
	}
	def := &TypeDef{Name: td.Name, Params: td.Params}
	c.typeDefs[td.Name] = def

	tparams := make(map[string]Type, len(td.Params))
	for _, p := range td.Params {
		tparams[p] = &TypeParam{Name: p}
	}

	if len(td.Fields) > 0 {
		fieldTypes := make([]Type, len(td.Fields))
		for i, f := range td.Fields {
			t := c.resolveTypeExpr(f.Type, tparams)
			def.Fields = append(def.Fields, Field{Name: f.Name, Type: t})
			fieldTypes[i] = t
		}
		ctor := &Ctor{Name: td.Name, Owner: def, Tag: 0, Payload: fieldTypes}
		c.defineCtor(ctor, td, scope)
		return
	}

	for i, v := range td.Variants {
		if _, taken := c.ctors[v.Name]; taken {
			c.errorf(v.NamePos, "constructor %q is already declared", v.Name)
			continue
		}
		payload := make([]Type, len(v.Payload))
		for j, te := range v.Payload {
			payload[j] = c.resolveTypeExpr(te, tparams)
		}
		ctor := &Ctor{Name: v.Name, Owner: def, Tag: i, Payload: payload}
		def.Variants = append(def.Variants, ctor)
		c.defineCtor(ctor, td, scope)
	}
}

func (c *Checker) defineCtor(ctor *Ctor, node ast.Node, scope *Scope) {
	c.ctors[ctor.Name] = ctor
	var t Type
	if len(ctor.Payload) == 0 {
		t = ctor.resultType()
	} else {
		t = &Func{Params: ctor.Payload, Return: ctor.resultType()}
	}
	scope.Define(&Symbol{
		Name:       ctor.Name,
		Kind:       SymCtor,
		Type:       t,
		Node:       node,
		TypeParams: ctor.Owner.Params,
	})
}

// ----- Type expression resolution -----

func (c *Checker) resolveTypeExpr(te ast.TypeExpr, tparams map[string]Type) Type {
	if te == nil {
		return NewVar()
	}
	switch te := te.(type) {
	case *ast.NamedType:
		return c.resolveNamedType(te, tparams)
	case *ast.FuncTypeExpr:
		params := make([]Type, len(te.Params))
		for i, p := range te.Params {
			params[i] = c.resolveTypeExpr(p, tparams)
		}
		return &Func{Params: params, Return: c.resolveTypeExpr(te.Return, tparams)}
	case *ast.TupleTypeExpr:
		elems := make([]Type, len(te.Elements))
		for i, e := range te.Elements {
			elems[i] = c.resolveTypeExpr(e, tparams)
		}
		return &Tuple{Elems: elems}
	}
	return Invalid
}

func (c *Checker) resolveNamedType(te *ast.NamedType, tparams map[string]Type) Type {
	if len(te.Args) == 0 {
		switch te.Name {
		case "Int":
			return Int
		case "Float":
			return Float
		case "String":
			return String
		case "Bool":
			return Bool
		case "Unit":
			return Unit
		}
		if tparams != nil {
			if t, ok := tparams[te.Name]; ok {
				return t
			}
		}
		if def, ok := c.typeDefs[te.Name]; ok {
			if len(def.Params) != 0 {
				c.errorf(te.NamePos, "type %s expects %d type arguments", te.Name, len(def.Params))
				return Invalid
			}
			return &Con{Name: te.Name}
		}
		c.errorf(te.NamePos, "unknown type %q", te.Name)
		return Invalid
	}

	args := make([]Type, len(te.Args))
	for i, a := range te.Args {
		args[i] = c.resolveTypeExpr(a, tparams)
	}
	if te.Name == "List" {
		if len(args) != 1 {
			c.errorf(te.NamePos, "List expects 1 type argument, got %d", len(args))
			return Invalid
		}
		return &Con{Name: "List", Args: args}
	}
	def, ok := c.typeDefs[te.Name]
	if !ok {
		c.errorf(te.NamePos, "unknown type %q", te.Name)
		return Invalid
	}
	if len(args) != len(def.Params) {
		c.errorf(te.NamePos, "type %s expects %d type arguments, got %d",
			te.Name, len(def.Params), len(args))
		return Invalid
	}
	return &Con{Name: te.Name, Args: args}
}

// ----- Expression inference -----

func (c *Checker) inferExpr(e ast.Expr, scope *Scope) Type {
	t := c.inferExprInner(e, scope)
	c.exprTypes[e] = t
	return t
}

func (c *Checker) inferExprInner(e ast.Expr, scope *Scope) Type {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return Int
	case *ast.FloatLiteral:
		return Float
	case *ast.StringLiteral:
		return String
	case *ast.BoolLiteral:
		return Bool
	case *ast.IdentExpr:
		return c.inferIdent(e, scope)
	case *ast.ListLiteral:
		elem := NewVar()
		for _, el := range e.Elements {
			t := c.inferExpr(el, scope)
			if err := Unify(elem, t); err != nil {
				c.errorf(el.Pos(), "list elements must share one type: %s", err)
			}
		}
		return &Con{Name: "List", Args: []Type{elem}}
	case *ast.TupleLiteral:
		elems := make([]Type, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = c.inferExpr(el, scope)
		}
		if len(elems) == 0 {
			return Unit
		}
		return &Tuple{Elems: elems}
	case *ast.BinaryExpr:
		return c.inferBinary(e, scope)
	case *ast.UnaryExpr:
		return c.inferUnary(e, scope)
	case *ast.CallExpr:
		return c.inferCall(e, scope)
	case *ast.IndexExpr:
		return c.inferIndex(e, scope)
	case *ast.MemberExpr:
		return c.inferMember(e, scope)
	case *ast.TryExpr:
		return c.inferTry(e, scope)
	case *ast.IfExpr:
		return c.inferIf(e, scope)
	case *ast.MatchExpr:
		return c.inferMatch(e, scope)
	case *ast.BlockExpr:
		return c.inferBlock(e, scope)
	case *ast.LambdaExpr:
		return c.inferLambda(e, scope)
	case *ast.WithExpr:
		return c.inferWith(e, scope)
	case *ast.ForExpr:
		c.errorf(e.ForPos, "'for' loops are not supported; use recursion or list_map")
		return Invalid
	case *ast.WhileExpr:
		c.errorf(e.WhilePos, "'while' loops are not supported; use recursion")
		return Invalid
	case *ast.LoopExpr:
		c.errorf(e.LoopPos, "'loop' is not supported; use recursion")
		return Invalid
	}
	c.errorf(e.Pos(), "cannot type this expression")
	return Invalid
}

func (c *Checker) inferIdent(e *ast.IdentExpr, scope *Scope) Type {
	sym := scope.Lookup(e.Name)
	if sym == nil {
		c.errorf(e.NamePos, "undefined: %s", e.Name)
		return Invalid
	}
	if len(sym.TypeParams) > 0 {
		return Instantiate(sym.Type, sym.TypeParams)
	}
	return sym.Type
}

func (c *Checker) inferBinary(e *ast.BinaryExpr, scope *Scope) Type {
	if e.Op == token.PipeOp {
		return c.inferPipe(e, scope)
	}

	left := c.inferExpr(e.Left, scope)
	right := c.inferExpr(e.Right, scope)

	switch e.Op {
	case token.And, token.Or:
		if err := Unify(left, Bool); err != nil {
			c.errorf(e.Left.Pos(), "%s", err)
		}
		if err := Unify(right, Bool); err != nil {
			c.errorf(e.Right.Pos(), "%s", err)
		}
		return Bool

	case token.Eq, token.NotEq:
		if err := Unify(left, right); err != nil {
			c.errorf(e.OpPos, "cannot compare %s with %s", Resolve(left), Resolve(right))
		}
		return Bool

	case token.Lt, token.LtEq, token.Gt, token.GtEq:
		if err := Unify(left, right); err != nil {
			c.errorf(e.OpPos, "cannot compare %s with %s", Resolve(left), Resolve(right))
			return Bool
		}
		c.requireOrdered(e.OpPos, left)
		return Bool

	case token.Plus, token.Minus, token.Star, token.Slash, token.Percent, token.Power:
		if err := Unify(left, right); err != nil {
			c.errorf(e.OpPos, "operands of %s must match: %s", e.Op, err)
			return Invalid
		}
		return c.arithResult(e.OpPos, e.Op, left)
	}

	c.errorf(e.OpPos, "unsupported operator %s", e.Op)
	return Invalid
}

// requireOrdered accepts Int, Float and String for ordering
// comparisons; an unconstrained operand defaults to Int.
func (c *Checker) requireOrdered(pos token.Position, t Type) {
	switch r := Resolve(t).(type) {
	case *Var:
		r.ref = Int
	case *Basic:
		switch r.Kind {
		case BasicInt, BasicFloat, BasicString:
		default:
			c.errorf(pos, "%s is not an ordered type", r)
		}
	default:
		c.errorf(pos, "%s is not an ordered type", r)
	}
}

func (c *Checker) arithResult(pos token.Position, op token.Kind, t Type) Type {
	switch r := Resolve(t).(type) {
	case *Var:
		// unconstrained arithmetic defaults to Int
		r.ref = Int
		return Int
	case *Basic:
		switch r.Kind {
		case BasicInt:
			return Int
		case BasicFloat:
			if op == token.Percent {
				c.errorf(pos, "%% is not defined for Float")
				return Invalid
			}
			return Float
		case BasicString:
			if op == token.Plus {
				return String
			}
		}
	}
	c.errorf(pos, "operator %s is not defined for %s", op, Resolve(t))
	return Invalid
}

func (c *Checker) inferUnary(e *ast.UnaryExpr, scope *Scope) Type {
	operand := c.inferExpr(e.X, scope)
	switch e.Op {
	case token.Not:
		if err := Unify(operand, Bool); err != nil {
			c.errorf(e.X.Pos(), "%s", err)
		}
		return Bool
	case token.Minus:
		switch r := Resolve(operand).(type) {
		case *Var:
			r.ref = Int
			return Int
		case *Basic:
			if r.Kind == BasicInt || r.Kind == BasicFloat {
				return r
			}
		}
		c.errorf(e.OpPos, "cannot negate %s", Resolve(operand))
		return Invalid
	}
	c.errorf(e.OpPos, "unsupported unary operator %s", e.Op)
	return Invalid
}

// inferPipe types x |> f(a) the same as f(x, a), and x |> f as f(x).
func (c *Checker) inferPipe(e *ast.BinaryExpr, scope *Scope) Type {
	if call, ok := e.Right.(*ast.CallExpr); ok {
		piped := &ast.CallExpr{
			Callee: call.Callee,
			LParen: call.LParen,
			Args:   append([]ast.Expr{e.Left}, call.Args...),
			RParen: call.RParen,
		}
		return c.inferExpr(piped, scope)
	}
	piped := &ast.CallExpr{Callee: e.Right, Args: []ast.Expr{e.Left}}
	return c.inferExpr(piped, scope)
}

func (c *Checker) inferCall(e *ast.CallExpr, scope *Scope) Type {
	calleeT := c.inferExpr(e.Callee, scope)
	argTypes := make([]Type, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = c.inferExpr(a, scope)
	}

	switch fn := Resolve(calleeT).(type) {
	case *Func:
		if len(argTypes) != len(fn.Params) {
			c.errorf(e.Pos(), "wrong number of arguments: expected %d, got %d",
				len(fn.Params), len(argTypes))
			return fn.Return
		}
		for i := range argTypes {
			if err := Unify(fn.Params[i], argTypes[i]); err != nil {
				c.errorf(e.Args[i].Pos(), "argument %d: %s", i+1, err)
			}
		}
		return fn.Return
	case *Var:
		ret := NewVar()
		if err := Unify(fn, &Func{Params: argTypes, Return: ret}); err != nil {
			c.errorf(e.Pos(), "%s", err)
			return Invalid
		}
		return ret
	}
	if !IsInvalid(calleeT) {
		c.errorf(e.Pos(), "%s is not callable", Resolve(calleeT))
	}
	return Invalid
}

func (c *Checker) inferIndex(e *ast.IndexExpr, scope *Scope) Type {
	xT := c.inferExpr(e.X, scope)
	idxT := c.inferExpr(e.Index, scope)
	if err := Unify(idxT, Int); err != nil {
		c.errorf(e.Index.Pos(), "index must be Int: %s", err)
	}
	if b, ok := Resolve(xT).(*Basic); ok && b.Kind == BasicString {
		return String
	}
	elem := NewVar()
	if err := Unify(xT, &Con{Name: "List", Args: []Type{elem}}); err != nil {
		c.errorf(e.X.Pos(), "cannot index %s", Resolve(xT))
		return Invalid
	}
	return elem
}

func (c *Checker) inferMember(e *ast.MemberExpr, scope *Scope) Type {
	xT := c.inferExpr(e.X, scope)
	con, ok := Resolve(xT).(*Con)
	if !ok {
		c.errorf(e.NamePos, "%s has no field %q", Resolve(xT), e.Name)
		return Invalid
	}
	def, ok := c.typeDefs[con.Name]
	if !ok || len(def.Fields) == 0 {
		c.errorf(e.NamePos, "%s has no field %q", con, e.Name)
		return Invalid
	}
	subst := make(map[string]Type, len(def.Params))
	for i, p := range def.Params {
		subst[p] = con.Args[i]
	}
	for _, f := range def.Fields {
		if f.Name == e.Name {
			return Substitute(f.Type, subst)
		}
	}
	c.errorf(e.NamePos, "%s has no field %q", con, e.Name)
	return Invalid
}

func (c *Checker) inferTry(e *ast.TryExpr, scope *Scope) Type {
	xT := c.inferExpr(e.X, scope)
	okT, errT := NewVar(), NewVar()
	if err := Unify(xT, &Con{Name: "Result", Args: []Type{Type(okT), Type(errT)}}); err != nil {
		c.errorf(e.QPos, "? requires a Result value, got %s", Resolve(xT))
		return Invalid
	}
	if !c.fnResult {
		c.errorf(e.QPos, "? can only be used in a function returning Result")
		return Resolve(okT)
	}
	if err := Unify(errT, c.fnErrType); err != nil {
		c.errorf(e.QPos, "error type does not match the function's: %s", err)
	}
	return Resolve(okT)
}

func (c *Checker) inferIf(e *ast.IfExpr, scope *Scope) Type {
	condT := c.inferExpr(e.Cond, scope)
	if err := Unify(condT, Bool); err != nil {
		c.errorf(e.Cond.Pos(), "if condition must be Bool, got %s", Resolve(condT))
	}
	thenT := c.inferExpr(e.Then, scope)
	if e.Else == nil {
		if err := Unify(thenT, Unit); err != nil {
			c.errorf(e.Then.Pos(), "if without else must have a Unit body, got %s", Resolve(thenT))
		}
		return Unit
	}
	elseT := c.inferExpr(e.Else, scope)
	if err := Unify(thenT, elseT); err != nil {
		c.errorf(e.Else.Pos(), "if branches disagree: %s", err)
		return Invalid
	}
	return thenT
}

func (c *Checker) inferMatch(e *ast.MatchExpr, scope *Scope) Type {
	subjT := c.inferExpr(e.Scrutinee, scope)
	result := NewVar()
	for _, arm := range e.Arms {
		inner := NewScope(scope)
		c.bindPattern(arm.Pattern, subjT, inner)
		bodyT := c.inferExpr(arm.Body, inner)
		if err := Unify(result, bodyT); err != nil {
			c.errorf(arm.Body.Pos(), "match arms disagree: %s", err)
		}
	}
	if len(e.Arms) == 0 {
		c.errorf(e.MatchPos, "match needs at least one arm")
		return Invalid
	}
	return result
}

func (c *Checker) inferBlock(e *ast.BlockExpr, scope *Scope) Type {
	inner := NewScope(scope)
	c.checkStmtList(e.Stmts, inner)
	if e.Tail == nil {
		return Unit
	}
	return c.inferExpr(e.Tail, inner)
}

func (c *Checker) inferLambda(e *ast.LambdaExpr, scope *Scope) Type {
	inner := NewScope(scope)
	params := make([]Type, len(e.Params))
	for i, p := range e.Params {
		params[i] = NewVar()
		inner.Define(&Symbol{Name: p.Name, Kind: SymVar, Type: params[i]})
	}
	bodyT := c.inferExpr(e.Body, inner)
	return &Func{Params: params, Return: bodyT}
}

// inferWith checks monadic Result binding. Every bound expression must
// be a Result sharing one error type; the error either flows to the
// else arms or propagates out of a Result-returning function.
func (c *Checker) inferWith(e *ast.WithExpr, scope *Scope) Type {
	inner := NewScope(scope)
	errT := Type(NewVar())
	for _, b := range e.Binds {
		valT := c.inferExpr(b.Value, inner)
		okT := NewVar()
		if err := Unify(valT, &Con{Name: "Result", Args: []Type{Type(okT), errT}}); err != nil {
			c.errorf(b.Value.Pos(), "<- requires a Result value, got %s", Resolve(valT))
			continue
		}
		inner.Define(&Symbol{Name: b.Name, Kind: SymVar, Type: okT})
	}

	bodyT := c.inferExpr(e.Body, inner)

	if len(e.ElseArms) > 0 {
		for _, arm := range e.ElseArms {
			armScope := NewScope(scope)
			// arms match the failing Result itself, so Err(e) binds the payload
			c.bindPattern(arm.Pattern, &Con{Name: "Result", Args: []Type{Type(NewVar()), errT}}, armScope)
			armT := c.inferExpr(arm.Body, armScope)
			if err := Unify(bodyT, armT); err != nil {
				c.errorf(arm.Body.Pos(), "with else arms disagree: %s", err)
			}
		}
		return bodyT
	}

	if !c.fnResult {
		c.errorf(e.WithPos, "with without else can only be used in a function returning Result")
		return bodyT
	}
	if err := Unify(errT, c.fnErrType); err != nil {
		c.errorf(e.WithPos, "error type does not match the function's: %s", err)
	}
	return bodyT
}

// ----- Pattern binding -----

// bindPattern unifies the pattern's shape with the subject type and
// defines any names it introduces.
func (c *Checker) bindPattern(p ast.Pattern, subject Type, scope *Scope) {
	switch p := p.(type) {
	case *ast.WildcardPattern:
		// binds nothing
	case *ast.IdentPattern:
		scope.Define(&Symbol{Name: p.Name, Kind: SymVar, Type: subject})
	case *ast.LiteralPattern:
		litT := c.inferExpr(p.Value, scope)
		if err := Unify(subject, litT); err != nil {
			c.errorf(p.Pos(), "pattern type mismatch: %s", err)
		}
	case *ast.ListPattern:
		elem := NewVar()
		if err := Unify(subject, &Con{Name: "List", Args: []Type{Type(elem)}}); err != nil {
			c.errorf(p.LBracket, "list pattern against %s", Resolve(subject))
			return
		}
		for _, el := range p.Elements {
			c.bindPattern(el, elem, scope)
		}
	case *ast.TuplePattern:
		elems := make([]Type, len(p.Elements))
		for i := range elems {
			elems[i] = NewVar()
		}
		if err := Unify(subject, &Tuple{Elems: elems}); err != nil {
			c.errorf(p.LParen, "tuple pattern against %s", Resolve(subject))
			return
		}
		for i, el := range p.Elements {
			c.bindPattern(el, elems[i], scope)
		}
	case *ast.ConstructorPattern:
		c.bindCtorPattern(p, subject, scope)
	default:
		c.errorf(p.Pos(), "unsupported pattern")
	}
}

func (c *Checker) bindCtorPattern(p *ast.ConstructorPattern, subject Type, scope *Scope) {
	ctor, ok := c.ctors[p.Name]
	if !ok {
		c.errorf(p.NamePos, "unknown constructor %q", p.Name)
		return
	}
	if len(p.Args) != len(ctor.Payload) {
		c.errorf(p.NamePos, "constructor %s takes %d arguments, got %d",
			p.Name, len(ctor.Payload), len(p.Args))
		return
	}

	subst := make(map[string]Type, len(ctor.Owner.Params))
	args := make([]Type, len(ctor.Owner.Params))
	for i, name := range ctor.Owner.Params {
		v := NewVar()
		subst[name] = v
		args[i] = v
	}
	if err := Unify(subject, &Con{Name: ctor.Owner.Name, Args: args}); err != nil {
		c.errorf(p.NamePos, "pattern %s does not match %s", p.Name, Resolve(subject))
		return
	}
	for i, argPat := range p.Args {
		c.bindPattern(argPat, Substitute(ctor.Payload[i], subst), scope)
	}
}
