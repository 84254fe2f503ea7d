package ast

import "github.com/NijanthanR/fern/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

type Pattern interface {
	Node
	patternNode()
}

type TypeExpr interface {
	Node
	typeExprNode()
}

// Program

type Program struct {
	Module *ModuleDecl // optional "module name" header
	Stmts  []Stmt
}

func (p *Program) Pos() token.Position {
	if p.Module != nil {
		return p.Module.Pos()
	}
	if len(p.Stmts) > 0 {
		return p.Stmts[0].Pos()
	}
	return token.Position{}
}

type ModuleDecl struct {
	Name    string
	NamePos token.Position
}

func (d *ModuleDecl) Pos() token.Position { return d.NamePos }

// ---------- Expressions ----------

type IdentExpr struct {
	Name    string
	NamePos token.Position
}

func (e *IdentExpr) Pos() token.Position { return e.NamePos }
func (e *IdentExpr) exprNode()           {}

type IntLiteral struct {
	Value  int64
	LitPos token.Position
	Raw    string
}

func (e *IntLiteral) Pos() token.Position { return e.LitPos }
func (e *IntLiteral) exprNode()           {}

type FloatLiteral struct {
	Value  float64
	LitPos token.Position
	Raw    string
}

func (e *FloatLiteral) Pos() token.Position { return e.LitPos }
func (e *FloatLiteral) exprNode()           {}

type StringLiteral struct {
	Value  string
	LitPos token.Position
}

func (e *StringLiteral) Pos() token.Position { return e.LitPos }
func (e *StringLiteral) exprNode()           {}

type BoolLiteral struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLiteral) Pos() token.Position { return e.LitPos }
func (e *BoolLiteral) exprNode()           {}

type ListLiteral struct {
	LBracket token.Position
	Elements []Expr
	RBracket token.Position
}

func (e *ListLiteral) Pos() token.Position { return e.LBracket }
func (e *ListLiteral) exprNode()           {}

type TupleLiteral struct {
	LParen   token.Position
	Elements []Expr
	RParen   token.Position
}

func (e *TupleLiteral) Pos() token.Position { return e.LParen }
func (e *TupleLiteral) exprNode()           {}

type BinaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.OpPos }
func (e *BinaryExpr) exprNode()           {}

type UnaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) exprNode()           {}

type CallExpr struct {
	Callee Expr
	LParen token.Position
	Args   []Expr
	RParen token.Position
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) exprNode()           {}

type IndexExpr struct {
	X        Expr
	LBracket token.Position
	Index    Expr
	RBracket token.Position
}

func (e *IndexExpr) Pos() token.Position { return e.X.Pos() }
func (e *IndexExpr) exprNode()           {}

type MemberExpr struct {
	X       Expr
	Name    string
	NamePos token.Position
}

func (e *MemberExpr) Pos() token.Position { return e.X.Pos() }
func (e *MemberExpr) exprNode()           {}

// TryExpr is the postfix '?' operator: unwrap Ok or propagate Err.
type TryExpr struct {
	X    Expr
	QPos token.Position
}

func (e *TryExpr) Pos() token.Position { return e.X.Pos() }
func (e *TryExpr) exprNode()           {}

type IfExpr struct {
	IfPos token.Position
	Cond  Expr
	Then  Expr
	Else  Expr // nil if no else branch
}

func (e *IfExpr) Pos() token.Position { return e.IfPos }
func (e *IfExpr) exprNode()           {}

type MatchArm struct {
	Pattern Pattern
	Body    Expr
}

func (a *MatchArm) Pos() token.Position { return a.Pattern.Pos() }

type MatchExpr struct {
	MatchPos  token.Position
	Scrutinee Expr
	Arms      []*MatchArm
}

func (e *MatchExpr) Pos() token.Position { return e.MatchPos }
func (e *MatchExpr) exprNode()           {}

// BlockExpr is an indented statement sequence with an optional trailing
// expression giving the block its value (Unit when absent).
type BlockExpr struct {
	StartPos token.Position
	Stmts    []Stmt
	Tail     Expr // nil for Unit-valued blocks
}

func (e *BlockExpr) Pos() token.Position { return e.StartPos }
func (e *BlockExpr) exprNode()           {}

type LambdaExpr struct {
	LParen token.Position
	Params []*Param // untyped: Type is nil
	Body   Expr
}

func (e *LambdaExpr) Pos() token.Position { return e.LParen }
func (e *LambdaExpr) exprNode()           {}

// WithBind is one "name <- expr" binding inside a with expression.
type WithBind struct {
	Name    string
	NamePos token.Position
	Value   Expr
}

func (b *WithBind) Pos() token.Position { return b.NamePos }

type WithExpr struct {
	WithPos  token.Position
	Binds    []*WithBind
	Body     Expr        // the do-block
	ElseArms []*MatchArm // optional error arms
}

func (e *WithExpr) Pos() token.Position { return e.WithPos }
func (e *WithExpr) exprNode()           {}

// Legacy looping forms. They still parse but the checker rejects them;
// the language moved to recursion.

type ForExpr struct {
	ForPos   token.Position
	Var      string
	VarPos   token.Position
	Iterable Expr
	Body     Expr
}

func (e *ForExpr) Pos() token.Position { return e.ForPos }
func (e *ForExpr) exprNode()           {}

type WhileExpr struct {
	WhilePos token.Position
	Cond     Expr
	Body     Expr
}

func (e *WhileExpr) Pos() token.Position { return e.WhilePos }
func (e *WhileExpr) exprNode()           {}

type LoopExpr struct {
	LoopPos token.Position
	Body    Expr
}

func (e *LoopExpr) Pos() token.Position { return e.LoopPos }
func (e *LoopExpr) exprNode()           {}

// ---------- Statements ----------

type LetStmt struct {
	LetPos  token.Position
	Pattern Pattern
	Type    TypeExpr // optional annotation, nil when inferred
	Value   Expr
}

func (s *LetStmt) Pos() token.Position { return s.LetPos }
func (s *LetStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Result    Expr // nil for bare return
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) Pos() token.Position { return s.X.Pos() }
func (s *ExprStmt) stmtNode()           {}

type DeferStmt struct {
	DeferPos token.Position
	X        Expr
}

func (s *DeferStmt) Pos() token.Position { return s.DeferPos }
func (s *DeferStmt) stmtNode()           {}

type Param struct {
	Name    string
	NamePos token.Position
	Type    TypeExpr // nil for lambda params
}

func (p *Param) Pos() token.Position { return p.NamePos }

// FnClause is one pattern-dispatched clause of a multi-clause function.
type FnClause struct {
	ClausePos token.Position
	Patterns  []Pattern
	Body      Expr
}

func (c *FnClause) Pos() token.Position { return c.ClausePos }

// FnDecl is a function definition. Exactly one of two shapes holds:
// a typed single clause (Params/Return/Body set) or an ordered list of
// pattern clauses sharing the name (Clauses set).
type FnDecl struct {
	FnPos    token.Position
	Name     string
	NamePos  token.Position
	IsPublic bool

	Params []*Param
	Return TypeExpr
	Body   Expr

	Clauses []*FnClause
}

func (s *FnDecl) Pos() token.Position { return s.FnPos }
func (s *FnDecl) stmtNode()           {}

// IsMultiClause reports whether this definition dispatches on patterns.
func (s *FnDecl) IsMultiClause() bool { return len(s.Clauses) > 0 }

type VariantDecl struct {
	Name    string
	NamePos token.Position
	Payload []TypeExpr // empty for bare variants
}

func (v *VariantDecl) Pos() token.Position { return v.NamePos }

type FieldDecl struct {
	Name    string
	NamePos token.Position
	Type    TypeExpr
}

func (f *FieldDecl) Pos() token.Position { return f.NamePos }

// TypeDecl declares a sum type (Variants set) or a record (Fields set),
// optionally generic over Params.
type TypeDecl struct {
	TypePos  token.Position
	Name     string
	NamePos  token.Position
	IsPublic bool
	Params   []string

	Variants []*VariantDecl
	Fields   []*FieldDecl
}

func (s *TypeDecl) Pos() token.Position { return s.TypePos }
func (s *TypeDecl) stmtNode()           {}

type ImportStmt struct {
	ImportPos token.Position
	Path      []string // e.g. ["std", "io"]
	Items     []string // selective import list, empty for whole-module
	Alias     string   // "" means "use last path segment"
}

func (s *ImportStmt) Pos() token.Position { return s.ImportPos }
func (s *ImportStmt) stmtNode()           {}

// ---------- Patterns ----------

type IdentPattern struct {
	Name    string
	NamePos token.Position
}

func (p *IdentPattern) Pos() token.Position { return p.NamePos }
func (p *IdentPattern) patternNode()        {}

type WildcardPattern struct {
	WildPos token.Position
}

func (p *WildcardPattern) Pos() token.Position { return p.WildPos }
func (p *WildcardPattern) patternNode()        {}

// LiteralPattern wraps a literal expression used as a pattern.
type LiteralPattern struct {
	Value Expr // IntLiteral, FloatLiteral, StringLiteral or BoolLiteral
}

func (p *LiteralPattern) Pos() token.Position { return p.Value.Pos() }
func (p *LiteralPattern) patternNode()        {}

type ListPattern struct {
	LBracket token.Position
	Elements []Pattern
}

func (p *ListPattern) Pos() token.Position { return p.LBracket }
func (p *ListPattern) patternNode()        {}

type TuplePattern struct {
	LParen   token.Position
	Elements []Pattern
}

func (p *TuplePattern) Pos() token.Position { return p.LParen }
func (p *TuplePattern) patternNode()        {}

// ConstructorPattern matches a sum-type variant, e.g. Ok(v) or Err(e).
type ConstructorPattern struct {
	Name    string
	NamePos token.Position
	Args    []Pattern
}

func (p *ConstructorPattern) Pos() token.Position { return p.NamePos }
func (p *ConstructorPattern) patternNode()        {}

// ---------- Type expressions ----------

// NamedType is a possibly parameterized type reference: Int, List(Int),
// Result(String, Int).
type NamedType struct {
	Name    string
	NamePos token.Position
	Args    []TypeExpr
}

func (t *NamedType) Pos() token.Position { return t.NamePos }
func (t *NamedType) typeExprNode()       {}

type FuncTypeExpr struct {
	FnPos  token.Position
	Params []TypeExpr
	Return TypeExpr
}

func (t *FuncTypeExpr) Pos() token.Position { return t.FnPos }
func (t *FuncTypeExpr) typeExprNode()       {}

type TupleTypeExpr struct {
	LParen   token.Position
	Elements []TypeExpr
}

func (t *TupleTypeExpr) Pos() token.Position { return t.LParen }
func (t *TupleTypeExpr) typeExprNode()       {}
