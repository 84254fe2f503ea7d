package lexer_test

import (
	"testing"

	"github.com/NijanthanR/fern/internal/lexer"
	"github.com/NijanthanR/fern/internal/token"
)

func collect(t *testing.T, input string) []token.Token {
	t.Helper()
	l := lexer.New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func expectKinds(t *testing.T, input string, want []token.Kind) {
	t.Helper()
	toks := collect(t, input)
	if len(toks) != len(want) {
		var kinds []token.Kind
		for _, tok := range toks {
			kinds = append(kinds, tok.Kind)
		}
		t.Fatalf("token count mismatch: got %d (%v), want %d", len(toks), kinds, len(want))
	}
	for i, tok := range toks {
		if tok.Kind != want[i] {
			t.Errorf("token %d: got %s (%q), want %s", i, tok.Kind, tok.Lexeme, want[i])
		}
	}
}

func TestNextToken_BasicProgram(t *testing.T) {
	input := `fn add(a: Int, b: Int) -> Int: a + b`

	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Fn, "fn"},
		{token.Ident, "add"},
		{token.LParen, "("},
		{token.Ident, "a"},
		{token.Colon, ":"},
		{token.Ident, "Int"},
		{token.Comma, ","},
		{token.Ident, "b"},
		{token.Colon, ":"},
		{token.Ident, "Int"},
		{token.RParen, ")"},
		{token.Arrow, "->"},
		{token.Ident, "Int"},
		{token.Colon, ":"},
		{token.Ident, "a"},
		{token.Plus, "+"},
		{token.Ident, "b"},
		{token.EOF, ""},
	}

	l := lexer.New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d]: kind wrong, got %s want %s", i, tok.Kind, tt.kind)
		}
		if tok.Lexeme != tt.lit {
			t.Fatalf("tests[%d]: lexeme wrong, got %q want %q", i, tok.Lexeme, tt.lit)
		}
	}
	if errs := l.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected lexer errors: %v", errs)
	}
}

func TestNextToken_Operators(t *testing.T) {
	input := `== != < <= > >= = <- |> | -> => ? ** * + - / % .. .`
	expectKinds(t, input, []token.Kind{
		token.Eq, token.NotEq, token.Lt, token.LtEq, token.Gt, token.GtEq,
		token.Assign, token.Bind, token.PipeOp, token.Bar, token.Arrow,
		token.FatArrow, token.Question, token.Power, token.Star,
		token.Plus, token.Minus, token.Slash, token.Percent,
		token.DotDot, token.Dot, token.EOF,
	})
}

func TestNextToken_Keywords(t *testing.T) {
	input := `fn let return if else match with do defer pub import type and or not module true false`
	expectKinds(t, input, []token.Kind{
		token.Fn, token.Let, token.Return, token.If, token.Else,
		token.Match, token.With, token.Do, token.Defer, token.Pub,
		token.Import, token.Type, token.And, token.Or, token.Not,
		token.Module, token.True, token.False, token.EOF,
	})
}

func TestNextToken_Wildcard(t *testing.T) {
	toks := collect(t, "_ _x")
	if toks[0].Kind != token.Wildcard {
		t.Errorf("bare underscore: got %s, want Wildcard", toks[0].Kind)
	}
	if toks[1].Kind != token.Ident || toks[1].Lexeme != "_x" {
		t.Errorf("_x: got %s %q, want Ident", toks[1].Kind, toks[1].Lexeme)
	}
}

func TestNextToken_Numbers(t *testing.T) {
	toks := collect(t, "42 3.14 7")
	if toks[0].Kind != token.Int || toks[0].Lexeme != "42" {
		t.Errorf("got %s %q, want Int 42", toks[0].Kind, toks[0].Lexeme)
	}
	if toks[1].Kind != token.Float || toks[1].Lexeme != "3.14" {
		t.Errorf("got %s %q, want Float 3.14", toks[1].Kind, toks[1].Lexeme)
	}
	if toks[2].Kind != token.Int || toks[2].Lexeme != "7" {
		t.Errorf("got %s %q, want Int 7", toks[2].Kind, toks[2].Lexeme)
	}
}

func TestNextToken_NoTrailingNewline(t *testing.T) {
	// REPL lines arrive without a final '\n'; the last token must keep
	// its full lexeme anyway
	toks := collect(t, "1 + 2")
	if toks[0].Kind != token.Int || toks[0].Lexeme != "1" {
		t.Errorf("got %s %q, want Int 1", toks[0].Kind, toks[0].Lexeme)
	}
	if toks[2].Kind != token.Int || toks[2].Lexeme != "2" {
		t.Errorf("got %s %q, want Int 2", toks[2].Kind, toks[2].Lexeme)
	}

	toks = collect(t, "let x = foo")
	if toks[3].Kind != token.Ident || toks[3].Lexeme != "foo" {
		t.Errorf("got %s %q, want Ident foo", toks[3].Kind, toks[3].Lexeme)
	}
}

func TestNextToken_IntDotStaysInt(t *testing.T) {
	// a '.' not followed by a digit belongs to the next token
	expectKinds(t, "1..5", []token.Kind{token.Int, token.DotDot, token.Int, token.EOF})
}

func TestNextToken_StringEscapes(t *testing.T) {
	toks := collect(t, `"a\nb\t\"c\\"`)
	if toks[0].Kind != token.String {
		t.Fatalf("got %s, want String", toks[0].Kind)
	}
	want := "a\nb\t\"c\\"
	if toks[0].Lexeme != want {
		t.Errorf("got %q, want %q", toks[0].Lexeme, want)
	}
}

func TestNextToken_UnterminatedString(t *testing.T) {
	l := lexer.New(`"oops`)
	tok := l.NextToken()
	if tok.Kind != token.Illegal {
		t.Fatalf("got %s, want Illegal", tok.Kind)
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected a lexer error for the unterminated string")
	}
}

func TestNextToken_BangIsIllegal(t *testing.T) {
	l := lexer.New("!x")
	tok := l.NextToken()
	if tok.Kind != token.Illegal {
		t.Fatalf("got %s, want Illegal", tok.Kind)
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected an error suggesting 'not'")
	}
}

func TestIndentation_Block(t *testing.T) {
	input := "fn f(x: Int) -> Int:\n    x + 1\n"
	expectKinds(t, input, []token.Kind{
		token.Fn, token.Ident, token.LParen, token.Ident, token.Colon,
		token.Ident, token.RParen, token.Arrow, token.Ident, token.Colon,
		token.Newline, token.Indent,
		token.Ident, token.Plus, token.Int,
		token.Newline, token.Dedent,
		token.EOF,
	})
}

func TestIndentation_Nested(t *testing.T) {
	input := "if a:\n  if b:\n    c\n  d\ne\n"
	expectKinds(t, input, []token.Kind{
		token.If, token.Ident, token.Colon, token.Newline, token.Indent,
		token.If, token.Ident, token.Colon, token.Newline, token.Indent,
		token.Ident, token.Newline, token.Dedent,
		token.Ident, token.Newline, token.Dedent,
		token.Ident, token.Newline,
		token.EOF,
	})
}

func TestIndentation_BlankLinesIgnored(t *testing.T) {
	input := "a:\n    b\n\n    # comment only\n\n    c\n"
	expectKinds(t, input, []token.Kind{
		token.Ident, token.Colon, token.Newline, token.Indent,
		token.Ident, token.Newline,
		token.Ident, token.Newline, token.Dedent,
		token.EOF,
	})
}

func TestIndentation_SuppressedInsideBrackets(t *testing.T) {
	input := "let xs = [1,\n    2,\n    3]\n"
	expectKinds(t, input, []token.Kind{
		token.Let, token.Ident, token.Assign,
		token.LBracket, token.Int, token.Comma, token.Int, token.Comma,
		token.Int, token.RBracket, token.Newline,
		token.EOF,
	})
}

func TestIndentation_InconsistentDedent(t *testing.T) {
	input := "a:\n        b\n   c\n"
	l := lexer.New(input)
	for {
		if tok := l.NextToken(); tok.Kind == token.EOF {
			break
		}
	}
	if len(l.Errors()) == 0 {
		t.Fatal("expected an inconsistent indentation error")
	}
}

func TestComments_SkippedEntirely(t *testing.T) {
	input := "a # trailing comment\nb\n"
	expectKinds(t, input, []token.Kind{
		token.Ident, token.Newline, token.Ident, token.Newline, token.EOF,
	})
}

func TestPositions(t *testing.T) {
	l := lexer.New("let x = 1")
	tok := l.NextToken()
	if tok.Pos.Line != 1 || tok.Pos.Column != 1 {
		t.Errorf("let: got %s, want 1:1", tok.Pos)
	}
	tok = l.NextToken()
	if tok.Pos.Line != 1 || tok.Pos.Column != 5 {
		t.Errorf("x: got %s, want 1:5", tok.Pos)
	}
}

func TestSaveRestore(t *testing.T) {
	l := lexer.New("a b c")
	a := l.NextToken()
	st := l.Save()
	b1 := l.NextToken()
	c1 := l.NextToken()
	l.Restore(st)
	b2 := l.NextToken()
	c2 := l.NextToken()
	if a.Lexeme != "a" || b1.Lexeme != "b" || c1.Lexeme != "c" {
		t.Fatalf("unexpected first pass: %q %q %q", a.Lexeme, b1.Lexeme, c1.Lexeme)
	}
	if b2.Lexeme != b1.Lexeme || c2.Lexeme != c1.Lexeme {
		t.Errorf("restore did not rewind: got %q %q", b2.Lexeme, c2.Lexeme)
	}
}
