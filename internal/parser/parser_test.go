package parser_test

import (
	"strings"
	"testing"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/parser"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.NewFromSource(src)
	prog := p.ParseProgram()
	if p.HadError() {
		t.Fatalf("unexpected parse errors: %v", p.Errors())
	}
	return prog
}

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	prog := parseProgram(t, src)
	if len(prog.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Stmts))
	}
	es, ok := prog.Stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected expression statement, got %T", prog.Stmts[0])
	}
	return es.X
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 + 2 - 3", "((1 + 2) - 3)"},
		{"10 % 3 * 2", "((10 % 3) * 2)"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"-2 ** 2", "((- 2) ** 2)"},
		{"a == b + 1", "(a == (b + 1))"},
		{"a < b == c < d", "((a < b) == (c < d))"},
		{"a or b and c", "(a or (b and c))"},
		{"not a and b", "((not a) and b)"},
		{"not a == b", "((not a) == b)"},
		{"a and b == c", "(a and (b == c))"},
		{"xs |> f |> g", "((xs |> f) |> g)"},
		{"a + b |> f", "((a + b) |> f)"},
		{"f(x)[0].name", "(((f(x))[0]).name)"},
		{"f(x)?", "((f(x))?)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"[1, 2 + 3]", "[1, (2 + 3)]"},
		{"(a, b + 1)", "(a, (b + 1))"},
	}

	for _, tt := range tests {
		got := ast.Paren(parseExpr(t, tt.input))
		if got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestModuleHeader(t *testing.T) {
	prog := parseProgram(t, "module geometry\n\nlet x = 1\n")
	if prog.Module == nil || prog.Module.Name != "geometry" {
		t.Fatalf("module header not parsed: %+v", prog.Module)
	}
	if len(prog.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Stmts))
	}
}

func TestLetStatement(t *testing.T) {
	prog := parseProgram(t, "let total: Int = 1 + 2\n")
	let, ok := prog.Stmts[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected LetStmt, got %T", prog.Stmts[0])
	}
	pat, ok := let.Pattern.(*ast.IdentPattern)
	if !ok || pat.Name != "total" {
		t.Fatalf("pattern: got %#v", let.Pattern)
	}
	named, ok := let.Type.(*ast.NamedType)
	if !ok || named.Name != "Int" {
		t.Fatalf("annotation: got %#v", let.Type)
	}
	if got := ast.Paren(let.Value); got != "(1 + 2)" {
		t.Errorf("value: got %s", got)
	}
}

func TestLetTuplePattern(t *testing.T) {
	prog := parseProgram(t, "let (a, b) = pair\n")
	let := prog.Stmts[0].(*ast.LetStmt)
	tp, ok := let.Pattern.(*ast.TuplePattern)
	if !ok || len(tp.Elements) != 2 {
		t.Fatalf("expected 2-element tuple pattern, got %#v", let.Pattern)
	}
}

func TestTypedFunction(t *testing.T) {
	src := "fn area(w: Int, h: Int) -> Int:\n    w * h\n"
	prog := parseProgram(t, src)
	fn, ok := prog.Stmts[0].(*ast.FnDecl)
	if !ok {
		t.Fatalf("expected FnDecl, got %T", prog.Stmts[0])
	}
	if fn.IsMultiClause() {
		t.Fatal("expected a typed single-clause function")
	}
	if fn.Name != "area" || len(fn.Params) != 2 {
		t.Fatalf("got name %q with %d params", fn.Name, len(fn.Params))
	}
	if fn.Params[0].Name != "w" || fn.Params[1].Name != "h" {
		t.Errorf("param names: %s, %s", fn.Params[0].Name, fn.Params[1].Name)
	}
	if ret, ok := fn.Return.(*ast.NamedType); !ok || ret.Name != "Int" {
		t.Errorf("return type: %#v", fn.Return)
	}
	block, ok := fn.Body.(*ast.BlockExpr)
	if !ok {
		t.Fatalf("body: got %T", fn.Body)
	}
	if block.Tail == nil || len(block.Stmts) != 0 {
		t.Fatalf("block tail missing: %d stmts, tail %v", len(block.Stmts), block.Tail)
	}
}

func TestInlineFunctionBody(t *testing.T) {
	prog := parseProgram(t, "fn double(x: Int) -> Int: x * 2\n")
	fn := prog.Stmts[0].(*ast.FnDecl)
	if got := ast.Paren(fn.Body); got != "(x * 2)" {
		t.Errorf("body: got %s", got)
	}
}

func TestUnitFunction(t *testing.T) {
	prog := parseProgram(t, "fn greet():\n    println(\"hi\")\n")
	fn := prog.Stmts[0].(*ast.FnDecl)
	if fn.IsMultiClause() {
		t.Fatal("expected a typed function with zero params")
	}
	if fn.Return != nil {
		t.Errorf("expected nil return annotation, got %#v", fn.Return)
	}
}

func TestPatternClausesMerge(t *testing.T) {
	src := "fn fact(0) -> 1\nfn fact(n) -> n * fact(n - 1)\n"
	prog := parseProgram(t, src)
	if len(prog.Stmts) != 1 {
		t.Fatalf("expected clauses to merge into 1 decl, got %d", len(prog.Stmts))
	}
	fn := prog.Stmts[0].(*ast.FnDecl)
	if !fn.IsMultiClause() || len(fn.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(fn.Clauses))
	}
	if _, ok := fn.Clauses[0].Patterns[0].(*ast.LiteralPattern); !ok {
		t.Errorf("first clause pattern: got %T", fn.Clauses[0].Patterns[0])
	}
	if _, ok := fn.Clauses[1].Patterns[0].(*ast.IdentPattern); !ok {
		t.Errorf("second clause pattern: got %T", fn.Clauses[1].Patterns[0])
	}
}

func TestNonAdjacentClausesRejected(t *testing.T) {
	src := "fn f(0) -> 1\nlet x = 2\nfn f(n) -> n\n"
	p := parser.NewFromSource(src)
	p.ParseProgram()
	if !p.HadError() {
		t.Fatal("expected an adjacency error")
	}
	found := false
	for _, msg := range p.Errors() {
		if strings.Contains(msg, "must be adjacent") {
			found = true
		}
	}
	if !found {
		t.Errorf("adjacency error not reported, got %v", p.Errors())
	}
}

func TestConstructorPatternClause(t *testing.T) {
	src := "fn unwrap(Ok(v)) -> v\nfn unwrap(Err(_)) -> panic(\"unwrap\")\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	if len(fn.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(fn.Clauses))
	}
	cp, ok := fn.Clauses[0].Patterns[0].(*ast.ConstructorPattern)
	if !ok || cp.Name != "Ok" || len(cp.Args) != 1 {
		t.Fatalf("got %#v", fn.Clauses[0].Patterns[0])
	}
}

func TestIfElse(t *testing.T) {
	src := "fn max(a: Int, b: Int) -> Int:\n    if a > b:\n        a\n    else:\n        b\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	block := fn.Body.(*ast.BlockExpr)
	ifx, ok := block.Tail.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected IfExpr tail, got %T", block.Tail)
	}
	if ifx.Else == nil {
		t.Fatal("else branch missing")
	}
}

func TestElseIfChain(t *testing.T) {
	src := "fn sign(n: Int) -> Int:\n    if n > 0:\n        1\n    else if n < 0:\n        0 - 1\n    else:\n        0\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	ifx := fn.Body.(*ast.BlockExpr).Tail.(*ast.IfExpr)
	inner, ok := ifx.Else.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected chained IfExpr, got %T", ifx.Else)
	}
	if inner.Else == nil {
		t.Fatal("final else missing")
	}
}

func TestMatchIndented(t *testing.T) {
	src := "fn describe(r: Result(Int, String)) -> String:\n    match r:\n        Ok(n) -> \"ok\"\n        Err(e) -> e\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	m, ok := fn.Body.(*ast.BlockExpr).Tail.(*ast.MatchExpr)
	if !ok {
		t.Fatalf("expected MatchExpr, got %T", fn.Body.(*ast.BlockExpr).Tail)
	}
	if len(m.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(m.Arms))
	}
}

func TestMatchInline(t *testing.T) {
	e := parseExpr(t, "match n: 0 -> \"zero\", _ -> \"other\"\n")
	m, ok := e.(*ast.MatchExpr)
	if !ok {
		t.Fatalf("expected MatchExpr, got %T", e)
	}
	if len(m.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(m.Arms))
	}
	if _, ok := m.Arms[1].Pattern.(*ast.WildcardPattern); !ok {
		t.Errorf("second arm: got %T", m.Arms[1].Pattern)
	}
}

func TestWithExpression(t *testing.T) {
	src := "fn go() -> Result(Int, String):\n    with a <- f(), b <- g(a) do:\n        Ok(a + b)\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	w, ok := fn.Body.(*ast.BlockExpr).Tail.(*ast.WithExpr)
	if !ok {
		t.Fatalf("expected WithExpr, got %T", fn.Body.(*ast.BlockExpr).Tail)
	}
	if len(w.Binds) != 2 {
		t.Fatalf("expected 2 binds, got %d", len(w.Binds))
	}
	if w.Binds[0].Name != "a" || w.Binds[1].Name != "b" {
		t.Errorf("bind names: %s, %s", w.Binds[0].Name, w.Binds[1].Name)
	}
	if len(w.ElseArms) != 0 {
		t.Errorf("unexpected else arms")
	}
}

func TestWithElse(t *testing.T) {
	src := "fn go() -> Int:\n    with a <- f() do:\n        a\n    else:\n        Err(_) -> 0\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	w := fn.Body.(*ast.BlockExpr).Tail.(*ast.WithExpr)
	if len(w.ElseArms) != 1 {
		t.Fatalf("expected 1 else arm, got %d", len(w.ElseArms))
	}
}

func TestLambda(t *testing.T) {
	e := parseExpr(t, "list_map(xs, (x) -> x * 2)\n")
	call := e.(*ast.CallExpr)
	lam, ok := call.Args[1].(*ast.LambdaExpr)
	if !ok {
		t.Fatalf("expected LambdaExpr, got %T", call.Args[1])
	}
	if len(lam.Params) != 1 || lam.Params[0].Name != "x" {
		t.Fatalf("params: %#v", lam.Params)
	}
}

func TestTypeDeclInlineVariants(t *testing.T) {
	prog := parseProgram(t, "type Color: Red | Green | Blue\n")
	td := prog.Stmts[0].(*ast.TypeDecl)
	if len(td.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(td.Variants))
	}
	if td.Variants[2].Name != "Blue" {
		t.Errorf("got %q", td.Variants[2].Name)
	}
}

func TestTypeDeclGeneric(t *testing.T) {
	src := "type Shape(a):\n    | Circle(a)\n    | Square(a)\n"
	prog := parseProgram(t, src)
	td := prog.Stmts[0].(*ast.TypeDecl)
	if len(td.Params) != 1 || td.Params[0] != "a" {
		t.Fatalf("params: %#v", td.Params)
	}
	if len(td.Variants) != 2 || len(td.Variants[0].Payload) != 1 {
		t.Fatalf("variants: %#v", td.Variants)
	}
}

func TestTypeDeclRecord(t *testing.T) {
	prog := parseProgram(t, "type Point: { x: Int, y: Int }\n")
	td := prog.Stmts[0].(*ast.TypeDecl)
	if len(td.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(td.Fields))
	}
	if td.Fields[1].Name != "y" {
		t.Errorf("got %q", td.Fields[1].Name)
	}
}

func TestImport(t *testing.T) {
	prog := parseProgram(t, "import std.io.{read_file, write_file}\nimport std.math as m\n")
	first := prog.Stmts[0].(*ast.ImportStmt)
	if len(first.Path) != 2 || first.Path[1] != "io" {
		t.Fatalf("path: %v", first.Path)
	}
	if len(first.Items) != 2 || first.Items[1] != "write_file" {
		t.Fatalf("items: %v", first.Items)
	}
	second := prog.Stmts[1].(*ast.ImportStmt)
	if second.Alias != "m" {
		t.Errorf("alias: %q", second.Alias)
	}
}

func TestReturnAndDefer(t *testing.T) {
	src := "fn f() -> Int:\n    defer cleanup()\n    return 42\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	block := fn.Body.(*ast.BlockExpr)
	if _, ok := block.Stmts[0].(*ast.DeferStmt); !ok {
		t.Errorf("first statement: got %T", block.Stmts[0])
	}
	ret, ok := block.Stmts[1].(*ast.ReturnStmt)
	if !ok || ret.Result == nil {
		t.Fatalf("second statement: got %#v", block.Stmts[1])
	}
}

func TestTryOperator(t *testing.T) {
	src := "fn f() -> Result(Int, String):\n    let n = parse(\"1\")?\n    Ok(n)\n"
	prog := parseProgram(t, src)
	fn := prog.Stmts[0].(*ast.FnDecl)
	let := fn.Body.(*ast.BlockExpr).Stmts[0].(*ast.LetStmt)
	if _, ok := let.Value.(*ast.TryExpr); !ok {
		t.Errorf("let value: got %T", let.Value)
	}
}

func TestFunctionTypeAnnotation(t *testing.T) {
	prog := parseProgram(t, "fn apply(f: fn(Int) -> Int, x: Int) -> Int: f(x)\n")
	fn := prog.Stmts[0].(*ast.FnDecl)
	ft, ok := fn.Params[0].Type.(*ast.FuncTypeExpr)
	if !ok {
		t.Fatalf("param type: got %T", fn.Params[0].Type)
	}
	if len(ft.Params) != 1 {
		t.Errorf("fn type params: %d", len(ft.Params))
	}
}

func TestLegacyLoopsStillParse(t *testing.T) {
	for _, src := range []string{
		"for x in xs:\n    print(x)\n",
		"while a < b:\n    step()\n",
		"loop:\n    tick()\n",
	} {
		p := parser.NewFromSource(src)
		p.ParseProgram()
		if p.HadError() {
			t.Errorf("%q: unexpected errors %v", src, p.Errors())
		}
	}
}

func TestParseErrorRecovery(t *testing.T) {
	p := parser.NewFromSource("let x = 1 2\nlet y = 2\n")
	prog := p.ParseProgram()
	if !p.HadError() {
		t.Fatal("expected a parse error")
	}
	// the second statement still parses after resync
	found := false
	for _, s := range prog.Stmts {
		if let, ok := s.(*ast.LetStmt); ok {
			if ip, ok := let.Pattern.(*ast.IdentPattern); ok && ip.Name == "y" {
				found = true
			}
		}
	}
	if !found {
		t.Error("parser did not recover to the next statement")
	}
}
