package types_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/parser"
	"github.com/NijanthanR/fern/internal/types"
)

func check(t *testing.T, src string) []types.Error {
	t.Helper()
	p := parser.NewFromSource(src)
	prog := p.ParseProgram()
	if p.HadError() {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	return types.NewChecker().CheckProgram(prog)
}

func checkOK(t *testing.T, src string) {
	t.Helper()
	if errs := check(t, src); len(errs) != 0 {
		t.Fatalf("unexpected type errors: %v", errs)
	}
}

func checkErr(t *testing.T, src, want string) {
	t.Helper()
	errs := check(t, src)
	if len(errs) == 0 {
		t.Fatalf("expected an error containing %q", want)
	}
	for _, e := range errs {
		if strings.Contains(e.Error(), want) {
			return
		}
	}
	t.Fatalf("no error contains %q, got %v", want, errs)
}

func inferType(t *testing.T, c *types.Checker, src string) string {
	t.Helper()
	p := parser.NewFromSource(src)
	prog := p.ParseProgram()
	if p.HadError() {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	es, ok := prog.Stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("not an expression: %T", prog.Stmts[0])
	}
	typ, errs := c.Infer(es.X)
	if len(errs) != 0 {
		t.Fatalf("inference errors: %v", errs)
	}
	return typ.String()
}

func TestSimpleFunctions(t *testing.T) {
	checkOK(t, "fn add(a: Int, b: Int) -> Int: a + b\n")
	checkOK(t, "fn shout(s: String) -> String: s + \"!\"\n")
	checkOK(t, "fn half(x: Float) -> Float: x / 2.0\n")
	checkOK(t, "fn greet():\n    println(\"hi\")\n")
}

func TestBodyMustMatchReturnType(t *testing.T) {
	checkErr(t, "fn f() -> Int: \"hi\"\n", "type mismatch")
	checkErr(t, "fn g() -> String: 1 + 2\n", "type mismatch")
}

func TestLetAnnotation(t *testing.T) {
	checkOK(t, "let n: Int = 1 + 2\n")
	checkErr(t, "let n: Int = \"hi\"\n", "type mismatch: expected Int, got String")
}

func TestUndefinedName(t *testing.T) {
	checkErr(t, "let y = x + 1\n", "undefined: x")
}

func TestComparisonErrors(t *testing.T) {
	checkErr(t, "let b = 1 == \"a\"\n", "cannot compare Int with String")
	checkErr(t, "let b = true < false\n", "Bool is not an ordered type")
	checkOK(t, "let b = \"a\" < \"b\"\n")
}

func TestArithmeticErrors(t *testing.T) {
	checkErr(t, "let x = 1.5 % 2.0\n", "% is not defined for Float")
	checkErr(t, "let x = true + false\n", "not defined for Bool")
	checkOK(t, "let s = \"a\" + \"b\"\n")
	checkErr(t, "let s = \"a\" - \"b\"\n", "not defined for String")
}

func TestGenericFunction(t *testing.T) {
	c := types.NewChecker()
	p := parser.NewFromSource("fn id(x: a) -> a: x\n")
	prog := p.ParseProgram()
	if p.HadError() {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	if errs := c.CheckProgram(prog); len(errs) != 0 {
		t.Fatalf("check: %v", errs)
	}

	// each use site instantiates independently
	if got := inferType(t, c, "id(1)\n"); got != "Int" {
		t.Errorf("id(1) : %s", got)
	}
	if got := inferType(t, c, "id(\"hi\")\n"); got != "String" {
		t.Errorf("id(\"hi\") : %s", got)
	}
}

func TestBuiltinTypes(t *testing.T) {
	c := types.NewChecker()
	if got := inferType(t, c, "str_to_int(\"1\")\n"); got != "Result(Int, String)" {
		t.Errorf("str_to_int : %s", got)
	}
	if got := inferType(t, c, "list_get([1, 2], 0)\n"); got != "Option(Int)" {
		t.Errorf("list_get : %s", got)
	}
	if got := inferType(t, c, "range(0, 3)\n"); got != "List(Int)" {
		t.Errorf("range : %s", got)
	}
	if got := inferType(t, c, "list_map([1, 2], (x) -> x * 2)\n"); got != "List(Int)" {
		t.Errorf("list_map : %s", got)
	}
}

func TestListsShareElementType(t *testing.T) {
	checkOK(t, "let xs = [1, 2, 3]\n")
	checkErr(t, "let xs = [1, \"two\"]\n", "list elements must share one type")
}

func TestMatchArms(t *testing.T) {
	checkOK(t, `fn describe(o: Option(Int)) -> Int:
    match o:
        Some(n) -> n
        None -> 0
`)
	checkErr(t, `fn bad(o: Option(Int)) -> Int:
    match o:
        Some(n) -> n
        None -> "zero"
`, "match arms disagree")
}

func TestMultiClauseFunction(t *testing.T) {
	checkOK(t, "fn fact(0) -> 1\nfn fact(n) -> n * fact(n - 1)\n")
	checkErr(t, "fn bad(0) -> 1\nfn bad(n) -> \"hi\"\n", "type mismatch")
}

func TestClauseArity(t *testing.T) {
	checkErr(t, "fn f(0) -> 1\nfn f(a, b) -> a\n", "takes 2 arguments, expected 1")
}

func TestUserSumType(t *testing.T) {
	checkOK(t, `type Shape:
    | Circle(Float)
    | Square(Float)

fn area(s: Shape) -> Float:
    match s:
        Circle(r) -> 3.14159265 * r * r
        Square(w) -> w * w
`)
}

func TestGenericSumType(t *testing.T) {
	checkOK(t, `type Tree(a):
    | Leaf
    | Node(Tree(a), a, Tree(a))

fn depth(t: Tree(a)) -> Int:
    match t:
        Leaf -> 0
        Node(l, _, r) -> 1 + imax(depth(l), depth(r))

fn imax(a: Int, b: Int) -> Int:
    if a > b:
        a
    else:
        b
`)
}

func TestRecordType(t *testing.T) {
	checkOK(t, `type Point: { x: Int, y: Int }

fn getx(p: Point) -> Int: p.x
fn origin() -> Point: Point(0, 0)
`)
	checkErr(t, `type Point: { x: Int, y: Int }

fn getz(p: Point) -> Int: p.z
`, "has no field \"z\"")
}

func TestUnknownType(t *testing.T) {
	checkErr(t, "fn f(x: Widget) -> Int: 1\n", "unknown type \"Widget\"")
}

func TestDuplicateType(t *testing.T) {
	checkErr(t, "type Color: Red | Green\ntype Color: Blue\n", "already declared")
}

func TestTryOperator(t *testing.T) {
	checkOK(t, `fn parse(s: String) -> Result(Int, String):
    let n = str_to_int(s)?
    Ok(n * 2)
`)
	checkErr(t, `fn bad(s: String) -> Int:
    str_to_int(s)?
`, "? can only be used in a function returning Result")
	checkErr(t, "fn f(n: Int) -> Result(Int, String): Ok(n?)\n", "? requires a Result value")
}

func TestWithExpression(t *testing.T) {
	checkOK(t, `fn sum(a: String, b: String) -> Result(Int, String):
    with x <- str_to_int(a), y <- str_to_int(b) do:
        Ok(x + y)
`)
	checkOK(t, `fn sum_or_zero(a: String, b: String) -> Int:
    with x <- str_to_int(a), y <- str_to_int(b) do:
        x + y
    else:
        Err(_) -> 0
`)
	// an else arm matches the failing Result, so Err(e) binds the payload
	checkOK(t, `fn len_or(a: String) -> Int:
    with x <- str_to_int(a) do:
        x
    else:
        Err(e) -> str_len(e)
`)
	checkErr(t, `fn bad(a: String) -> Int:
    with x <- str_to_int(a) do:
        x
`, "with without else can only be used in a function returning Result")
	checkErr(t, `fn bad(n: Int) -> Result(Int, String):
    with x <- n do:
        Ok(x)
`, "<- requires a Result value")
}

func TestIfExpression(t *testing.T) {
	checkErr(t, "fn f(n: Int) -> Int:\n    if n:\n        1\n    else:\n        2\n", "if condition must be Bool")
	checkErr(t, "fn f(b: Bool) -> Int:\n    if b:\n        1\n", "if without else must have a Unit body")
	checkErr(t, "fn f(b: Bool) -> Int:\n    if b:\n        1\n    else:\n        \"two\"\n", "if branches disagree")
}

func TestLegacyLoopsRejected(t *testing.T) {
	checkErr(t, "for x in [1, 2]:\n    print(x)\n", "'for' loops are not supported; use recursion or list_map")
	checkErr(t, "while true:\n    println(\"tick\")\n", "'while' loops are not supported; use recursion")
	checkErr(t, "loop:\n    println(\"tick\")\n", "'loop' is not supported; use recursion")
}

func TestReturnStatement(t *testing.T) {
	checkOK(t, "fn f(b: Bool) -> Int:\n    if b:\n        return 1\n    42\n")
	checkErr(t, "fn f() -> Int:\n    return \"hi\"\n", "type mismatch")
	checkErr(t, "return 1\n", "return outside of a function")
}

func TestDeferRequiresCall(t *testing.T) {
	checkOK(t, "fn f():\n    defer println(\"bye\")\n    println(\"hi\")\n")
	checkErr(t, "fn f():\n    defer 42\n    println(\"hi\")\n", "defer requires a function call")
}

func TestPipeDesugarsToCall(t *testing.T) {
	checkOK(t, "fn double(n: Int) -> Int: n * 2\n\nlet x = 21 |> double\n")
	c := types.NewChecker()
	if got := inferType(t, c, "[1, 2, 3] |> list_len\n"); got != "Int" {
		t.Errorf("piped list_len : %s", got)
	}
}

func TestErrorPositions(t *testing.T) {
	errs := check(t, "let y = x\n")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if got := errs[0].Error(); got != "1:9: undefined: x" {
		t.Errorf("error text: %q", got)
	}
}

func TestCheckStmtKeepsBindings(t *testing.T) {
	c := types.NewChecker()
	for _, src := range []string{
		"let n = 41\n",
		"fn inc(x: Int) -> Int: x + 1\n",
	} {
		p := parser.NewFromSource(src)
		prog := p.ParseProgram()
		if p.HadError() {
			t.Fatalf("parse: %v", p.Errors())
		}
		if errs := c.CheckStmt(prog.Stmts[0]); len(errs) != 0 {
			t.Fatalf("check %q: %v", src, errs)
		}
	}
	if got := inferType(t, c, "inc(n)\n"); got != "Int" {
		t.Errorf("inc(n) : %s", got)
	}
}

func TestTuplePatternLet(t *testing.T) {
	c := types.NewChecker()
	p := parser.NewFromSource("let (a, b) = (1, \"one\")\n")
	prog := p.ParseProgram()
	if p.HadError() {
		t.Fatalf("parse: %v", p.Errors())
	}
	if errs := c.CheckStmt(prog.Stmts[0]); len(errs) != 0 {
		t.Fatalf("check: %v", errs)
	}
	if got := inferType(t, c, "a\n"); got != "Int" {
		t.Errorf("a : %s", got)
	}
	if got := inferType(t, c, "b\n"); got != "String" {
		t.Errorf("b : %s", got)
	}
}

func TestConcurrentSessions(t *testing.T) {
	src := `fn double(n: Int) -> Int: n * 2
fn apply(f: fn(Int) -> Int, n: Int) -> Int: f(n)
let x = apply(double, 21)
`
	const sessions = 8
	counts := make([]int, sessions)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := parser.NewFromSource(src)
			prog := p.ParseProgram()
			if p.HadError() {
				counts[i] = -1
				return
			}
			counts[i] = len(types.NewChecker().CheckProgram(prog))
		}(i)
	}
	wg.Wait()
	for i, n := range counts {
		if n != 0 {
			t.Errorf("session %d: got %d errors, want none", i, n)
		}
	}
}

func TestShadowing(t *testing.T) {
	// an inner scope may rebind a name at a different type
	checkOK(t, `fn f() -> Int:
    let x: Int = 42
    if x > 0:
        let x: String = "s"
        println(x)
    x
`)
	// an unannotated rebind in one scope just rebinds
	checkOK(t, "let x = 1\nlet x = \"one\"\n")
	// an annotated rebind in the same scope must keep the type
	checkErr(t, `fn g() -> Int:
    let x: Int = 42
    let x: String = "s"
    0
`, "cannot rebind \"x\" at a different type")
}
