package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	// Layout tokens produced by the indentation-sensitive lexer.
	Newline
	Indent
	Dedent

	Ident    // Identifier
	Int      // Integer literal
	Float    // Floating-point literal
	String   // String literal
	Wildcard // _

	// Keywords
	Fn
	Let
	Return
	If
	Else
	Match
	With
	Do
	Defer
	Pub
	Import
	Type
	Trait
	Impl
	And
	Or
	Not
	As
	Module
	For
	While
	Loop
	Break
	Continue
	In
	Where
	True
	False

	// Operators
	Assign // =

	Plus    // +
	Minus   // -
	Star    // *
	Slash   // /
	Percent // %
	Power   // **

	Eq    // ==
	NotEq // !=
	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=

	Bind     // <-
	PipeOp   // |>
	Bar      // |
	Arrow    // ->
	FatArrow // =>
	Question // ?

	// Delimiters
	Comma  // ,
	Colon  // :
	Dot    // .
	DotDot // ..

	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
	LBrace   // {
	RBrace   // }
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

func (k Kind) String() string {
	switch k {
	case Illegal:
		return "Illegal"
	case EOF:
		return "EOF"
	case Newline:
		return "Newline"
	case Indent:
		return "Indent"
	case Dedent:
		return "Dedent"
	case Ident:
		return "Ident"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case Wildcard:
		return "Wildcard"
	case Fn:
		return "Fn"
	case Let:
		return "Let"
	case Return:
		return "Return"
	case If:
		return "If"
	case Else:
		return "Else"
	case Match:
		return "Match"
	case With:
		return "With"
	case Do:
		return "Do"
	case Defer:
		return "Defer"
	case Pub:
		return "Pub"
	case Import:
		return "Import"
	case Type:
		return "Type"
	case Trait:
		return "Trait"
	case Impl:
		return "Impl"
	case And:
		return "And"
	case Or:
		return "Or"
	case Not:
		return "Not"
	case As:
		return "As"
	case Module:
		return "Module"
	case For:
		return "For"
	case While:
		return "While"
	case Loop:
		return "Loop"
	case Break:
		return "Break"
	case Continue:
		return "Continue"
	case In:
		return "In"
	case Where:
		return "Where"
	case True:
		return "True"
	case False:
		return "False"
	case Assign:
		return "Assign"
	case Plus:
		return "Plus"
	case Minus:
		return "Minus"
	case Star:
		return "Star"
	case Slash:
		return "Slash"
	case Percent:
		return "Percent"
	case Power:
		return "Power"
	case Eq:
		return "Eq"
	case NotEq:
		return "NotEq"
	case Lt:
		return "Lt"
	case LtEq:
		return "LtEq"
	case Gt:
		return "Gt"
	case GtEq:
		return "GtEq"
	case Bind:
		return "Bind"
	case PipeOp:
		return "PipeOp"
	case Bar:
		return "Bar"
	case Arrow:
		return "Arrow"
	case FatArrow:
		return "FatArrow"
	case Question:
		return "Question"
	case Comma:
		return "Comma"
	case Colon:
		return "Colon"
	case Dot:
		return "Dot"
	case DotDot:
		return "DotDot"
	case LParen:
		return "LParen"
	case RParen:
		return "RParen"
	case LBracket:
		return "LBracket"
	case RBracket:
		return "RBracket"
	case LBrace:
		return "LBrace"
	case RBrace:
		return "RBrace"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var keywords = map[string]Kind{
	"fn":       Fn,
	"let":      Let,
	"return":   Return,
	"if":       If,
	"else":     Else,
	"match":    Match,
	"with":     With,
	"do":       Do,
	"defer":    Defer,
	"pub":      Pub,
	"import":   Import,
	"type":     Type,
	"trait":    Trait,
	"impl":     Impl,
	"and":      And,
	"or":       Or,
	"not":      Not,
	"as":       As,
	"module":   Module,
	"for":      For,
	"while":    While,
	"loop":     Loop,
	"break":    Break,
	"continue": Continue,
	"in":       In,
	"where":    Where,
	"true":     True,
	"false":    False,
}

// LookupIdent re-tags identifiers that exactly match a reserved word.
// A bare "_" is a wildcard, never an identifier.
func LookupIdent(lit string) Kind {
	if lit == "_" {
		return Wildcard
	}
	if kind, ok := keywords[lit]; ok {
		return kind
	}
	return Ident
}
