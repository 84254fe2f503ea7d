package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/NijanthanR/fern/internal/token"
)

// Paren returns the fully-parenthesized rendering of an expression.
// Every binary, unary, pipe and postfix application gets explicit
// parentheses, which makes operator precedence visible in tests.
func Paren(e Expr) string {
	var sb strings.Builder
	fprintParen(&sb, e)
	return sb.String()
}

func fprintParen(w io.Writer, e Expr) {
	switch e := e.(type) {
	case *IntLiteral:
		fmt.Fprintf(w, "%d", e.Value)
	case *FloatLiteral:
		fmt.Fprintf(w, "%g", e.Value)
	case *StringLiteral:
		fmt.Fprintf(w, "%q", e.Value)
	case *BoolLiteral:
		fmt.Fprintf(w, "%t", e.Value)
	case *IdentExpr:
		io.WriteString(w, e.Name)
	case *UnaryExpr:
		fmt.Fprintf(w, "(%s ", opText(e.Op))
		fprintParen(w, e.X)
		io.WriteString(w, ")")
	case *BinaryExpr:
		io.WriteString(w, "(")
		fprintParen(w, e.Left)
		fmt.Fprintf(w, " %s ", opText(e.Op))
		fprintParen(w, e.Right)
		io.WriteString(w, ")")
	case *CallExpr:
		io.WriteString(w, "(")
		fprintParen(w, e.Callee)
		io.WriteString(w, "(")
		for i, a := range e.Args {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			fprintParen(w, a)
		}
		io.WriteString(w, "))")
	case *IndexExpr:
		io.WriteString(w, "(")
		fprintParen(w, e.X)
		io.WriteString(w, "[")
		fprintParen(w, e.Index)
		io.WriteString(w, "])")
	case *MemberExpr:
		io.WriteString(w, "(")
		fprintParen(w, e.X)
		fmt.Fprintf(w, ".%s)", e.Name)
	case *TryExpr:
		io.WriteString(w, "(")
		fprintParen(w, e.X)
		io.WriteString(w, "?)")
	case *ListLiteral:
		io.WriteString(w, "[")
		for i, el := range e.Elements {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			fprintParen(w, el)
		}
		io.WriteString(w, "]")
	case *TupleLiteral:
		io.WriteString(w, "(")
		for i, el := range e.Elements {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			fprintParen(w, el)
		}
		io.WriteString(w, ")")
	default:
		fmt.Fprintf(w, "<%T>", e)
	}
}

func opText(op token.Kind) string {
	switch op {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	case token.Percent:
		return "%"
	case token.Power:
		return "**"
	case token.Eq:
		return "=="
	case token.NotEq:
		return "!="
	case token.Lt:
		return "<"
	case token.LtEq:
		return "<="
	case token.Gt:
		return ">"
	case token.GtEq:
		return ">="
	case token.And:
		return "and"
	case token.Or:
		return "or"
	case token.Not:
		return "not"
	case token.PipeOp:
		return "|>"
	default:
		return op.String()
	}
}

// Dump returns a human-readable tree representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *Program:
		fmt.Fprintf(w, "%sProgram\n", ind)
		if n.Module != nil {
			fmt.Fprintf(w, "%s  Module name=%s\n", ind, n.Module.Name)
		}
		for _, st := range n.Stmts {
			fprintNode(w, st, indent+1)
		}

	case *ImportStmt:
		pathStr := strings.Join(n.Path, ".")
		fmt.Fprintf(w, "%sImport path=%s", ind, pathStr)
		if len(n.Items) > 0 {
			fmt.Fprintf(w, " items=%s", strings.Join(n.Items, ","))
		}
		if n.Alias != "" {
			fmt.Fprintf(w, " alias=%s", n.Alias)
		}
		fmt.Fprintln(w)

	case *FnDecl:
		pubStr := ""
		if n.IsPublic {
			pubStr = " pub"
		}
		if n.IsMultiClause() {
			fmt.Fprintf(w, "%sFnDecl name=%s%s clauses=%d\n", ind, n.Name, pubStr, len(n.Clauses))
			for _, cl := range n.Clauses {
				pats := make([]string, len(cl.Patterns))
				for i, p := range cl.Patterns {
					pats[i] = patternText(p)
				}
				fmt.Fprintf(w, "%s  Clause (%s)\n", ind, strings.Join(pats, ", "))
				fprintNode(w, cl.Body, indent+2)
			}
			return
		}
		fmt.Fprintf(w, "%sFnDecl name=%s%s\n", ind, n.Name, pubStr)
		for _, p := range n.Params {
			fmt.Fprintf(w, "%s  Param name=%s type=%s\n", ind, p.Name, typeExprText(p.Type))
		}
		if n.Return != nil {
			fmt.Fprintf(w, "%s  Return type=%s\n", ind, typeExprText(n.Return))
		}
		fprintNode(w, n.Body, indent+1)

	case *TypeDecl:
		fmt.Fprintf(w, "%sTypeDecl name=%s", ind, n.Name)
		if len(n.Params) > 0 {
			fmt.Fprintf(w, " params=%s", strings.Join(n.Params, ","))
		}
		fmt.Fprintln(w)
		for _, v := range n.Variants {
			fmt.Fprintf(w, "%s  Variant %s/%d\n", ind, v.Name, len(v.Payload))
		}
		for _, f := range n.Fields {
			fmt.Fprintf(w, "%s  Field %s: %s\n", ind, f.Name, typeExprText(f.Type))
		}

	case *LetStmt:
		fmt.Fprintf(w, "%sLet pattern=%s", ind, patternText(n.Pattern))
		if n.Type != nil {
			fmt.Fprintf(w, " type=%s", typeExprText(n.Type))
		}
		fmt.Fprintln(w)
		fprintNode(w, n.Value, indent+1)

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturn\n", ind)
		fprintNode(w, n.Result, indent+1)

	case *DeferStmt:
		fmt.Fprintf(w, "%sDefer\n", ind)
		fprintNode(w, n.X, indent+1)

	case *ExprStmt:
		fprintNode(w, n.X, indent)

	case *BlockExpr:
		fmt.Fprintf(w, "%sBlock\n", ind)
		for _, st := range n.Stmts {
			fprintNode(w, st, indent+1)
		}
		if n.Tail != nil {
			fmt.Fprintf(w, "%s  Tail:\n", ind)
			fprintNode(w, n.Tail, indent+2)
		}

	case *IfExpr:
		fmt.Fprintf(w, "%sIf\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fmt.Fprintf(w, "%s  Then:\n", ind)
		fprintNode(w, n.Then, indent+2)
		if n.Else != nil {
			fmt.Fprintf(w, "%s  Else:\n", ind)
			fprintNode(w, n.Else, indent+2)
		}

	case *MatchExpr:
		fmt.Fprintf(w, "%sMatch\n", ind)
		fprintNode(w, n.Scrutinee, indent+1)
		for _, arm := range n.Arms {
			fmt.Fprintf(w, "%s  Arm %s:\n", ind, patternText(arm.Pattern))
			fprintNode(w, arm.Body, indent+2)
		}

	case *WithExpr:
		fmt.Fprintf(w, "%sWith\n", ind)
		for _, b := range n.Binds {
			fmt.Fprintf(w, "%s  Bind %s <-\n", ind, b.Name)
			fprintNode(w, b.Value, indent+2)
		}
		fmt.Fprintf(w, "%s  Do:\n", ind)
		fprintNode(w, n.Body, indent+2)
		for _, arm := range n.ElseArms {
			fmt.Fprintf(w, "%s  Else %s:\n", ind, patternText(arm.Pattern))
			fprintNode(w, arm.Body, indent+2)
		}

	case *LambdaExpr:
		names := make([]string, len(n.Params))
		for i, p := range n.Params {
			names[i] = p.Name
		}
		fmt.Fprintf(w, "%sLambda (%s)\n", ind, strings.Join(names, ", "))
		fprintNode(w, n.Body, indent+1)

	case Expr:
		fmt.Fprintf(w, "%s%s\n", ind, Paren(n))

	default:
		fmt.Fprintf(w, "%s<%T>\n", ind, n)
	}
}

func patternText(p Pattern) string {
	switch p := p.(type) {
	case *IdentPattern:
		return p.Name
	case *WildcardPattern:
		return "_"
	case *LiteralPattern:
		return Paren(p.Value)
	case *ListPattern:
		parts := make([]string, len(p.Elements))
		for i, el := range p.Elements {
			parts[i] = patternText(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *TuplePattern:
		parts := make([]string, len(p.Elements))
		for i, el := range p.Elements {
			parts[i] = patternText(el)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *ConstructorPattern:
		if len(p.Args) == 0 {
			return p.Name
		}
		parts := make([]string, len(p.Args))
		for i, a := range p.Args {
			parts[i] = patternText(a)
		}
		return p.Name + "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("<%T>", p)
	}
}

func typeExprText(t TypeExpr) string {
	switch t := t.(type) {
	case *NamedType:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = typeExprText(a)
		}
		return t.Name + "(" + strings.Join(parts, ", ") + ")"
	case *FuncTypeExpr:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = typeExprText(p)
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + typeExprText(t.Return)
	case *TupleTypeExpr:
		parts := make([]string, len(t.Elements))
		for i, el := range t.Elements {
			parts[i] = typeExprText(el)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<%T>", t)
	}
}
