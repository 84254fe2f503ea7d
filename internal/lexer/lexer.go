package lexer

import (
	"fmt"

	"github.com/NijanthanR/fern/internal/token"
)

// Lexer turns fern source text into a stream of tokens. Blocks are
// indentation-delimited, so alongside ordinary tokens the lexer emits
// Newline, Indent and Dedent layout tokens at bracket depth zero.
type Lexer struct {
	input []rune

	pos int // index of the rune after ch

	ch   rune
	line int
	col  int

	indents []int         // indentation stack, always starts at 0
	pending []token.Token // queued layout tokens
	depth   int           // open ( [ { nesting; layout is suppressed inside

	peeked *token.Token

	errors []string
}

// State is a snapshot of the lexer for speculative parsing.
// It is a plain value: cheap to copy, safe to hold across scans.
type State struct {
	pos     int
	ch      rune
	line    int
	col     int
	depth   int
	indents []int
	pending []token.Token
	peeked  *token.Token
}

func New(input string) *Lexer {
	l := &Lexer{
		input:   []rune(input),
		line:    1,
		col:     0,
		indents: []int{0},
	}
	l.readChar()
	return l
}

func (l *Lexer) Errors() []string {
	return l.errors
}

// NextToken returns the next token and advances.
func (l *Lexer) NextToken() token.Token {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok
	}
	return l.scan()
}

// Peek returns the next token without advancing. Repeated peeks
// return the same token.
func (l *Lexer) Peek() token.Token {
	if l.peeked == nil {
		tok := l.scan()
		l.peeked = &tok
	}
	return *l.peeked
}

// IsEOF reports whether the token stream is exhausted.
func (l *Lexer) IsEOF() bool {
	return l.Peek().Kind == token.EOF
}

// Save snapshots the cursor, position tracking and layout state.
func (l *Lexer) Save() State {
	s := State{
		pos:     l.pos,
		ch:      l.ch,
		line:    l.line,
		col:     l.col,
		depth:   l.depth,
		indents: append([]int(nil), l.indents...),
		pending: append([]token.Token(nil), l.pending...),
	}
	if l.peeked != nil {
		tok := *l.peeked
		s.peeked = &tok
	}
	return s
}

// Restore rewinds the lexer to a previously saved state.
func (l *Lexer) Restore(s State) {
	l.pos = s.pos
	l.ch = s.ch
	l.line = s.line
	l.col = s.col
	l.depth = s.depth
	l.indents = append([]int(nil), s.indents...)
	l.pending = append([]token.Token(nil), s.pending...)
	l.peeked = nil
	if s.peeked != nil {
		tok := *s.peeked
		l.peeked = &tok
	}
}

func (l *Lexer) scan() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || (l.ch == '\n' && l.depth > 0) {
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}

	if l.ch == '\n' {
		return l.scanLayout()
	}

	pos := token.Position{
		Line:   l.line,
		Column: l.col,
	}

	ch := l.ch

	// EOF: close any open indentation levels first
	if ch == 0 {
		for len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, token.Token{Kind: token.Dedent, Pos: pos})
		}
		if len(l.pending) > 0 {
			tok := l.pending[0]
			l.pending = l.pending[1:]
			return tok
		}
		return token.Token{
			Kind:   token.EOF,
			Lexeme: "",
			Pos:    pos,
		}
	}

	// Numbers
	if isDigit(ch) {
		lit, isFloat := l.readNumber()
		kind := token.Int
		if isFloat {
			kind = token.Float
		}
		return token.Token{
			Kind:   kind,
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Identifiers / keywords / wildcard
	if isLetter(ch) {
		lit := l.readIdentifier()
		return token.Token{
			Kind:   token.LookupIdent(lit),
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Strings
	if ch == '"' {
		l.readChar() // consume opening quote
		lit, ok := l.readString(pos)
		if !ok {
			return token.Token{Kind: token.Illegal, Lexeme: lit, Pos: pos}
		}
		return token.Token{
			Kind:   token.String,
			Lexeme: lit,
			Pos:    pos,
		}
	}

	// Single- and multi-character tokens
	var kind token.Kind
	var lexeme string

	switch ch {
	case ',':
		kind = token.Comma
		lexeme = ","
	case ':':
		kind = token.Colon
		lexeme = ":"
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			kind = token.DotDot
			lexeme = ".."
		} else {
			kind = token.Dot
			lexeme = "."
		}
	case '(':
		l.depth++
		kind = token.LParen
		lexeme = "("
	case ')':
		if l.depth > 0 {
			l.depth--
		}
		kind = token.RParen
		lexeme = ")"
	case '[':
		l.depth++
		kind = token.LBracket
		lexeme = "["
	case ']':
		if l.depth > 0 {
			l.depth--
		}
		kind = token.RBracket
		lexeme = "]"
	case '{':
		l.depth++
		kind = token.LBrace
		lexeme = "{"
	case '}':
		if l.depth > 0 {
			l.depth--
		}
		kind = token.RBrace
		lexeme = "}"
	case '?':
		kind = token.Question
		lexeme = "?"
	case '+':
		kind = token.Plus
		lexeme = "+"
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			kind = token.Arrow
			lexeme = "->"
		} else {
			kind = token.Minus
			lexeme = "-"
		}
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			kind = token.Power
			lexeme = "**"
		} else {
			kind = token.Star
			lexeme = "*"
		}
	case '/':
		kind = token.Slash
		lexeme = "/"
	case '%':
		kind = token.Percent
		lexeme = "%"
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			kind = token.NotEq
			lexeme = "!="
		} else {
			l.errorf(pos, "unexpected character '!' (use 'not' for boolean negation)")
			kind = token.Illegal
			lexeme = "!"
		}
	case '=':
		switch l.peekChar() {
		case '=':
			l.readChar()
			kind = token.Eq
			lexeme = "=="
		case '>':
			l.readChar()
			kind = token.FatArrow
			lexeme = "=>"
		default:
			kind = token.Assign
			lexeme = "="
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			kind = token.LtEq
			lexeme = "<="
		case '-':
			l.readChar()
			kind = token.Bind
			lexeme = "<-"
		default:
			kind = token.Lt
			lexeme = "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			kind = token.GtEq
			lexeme = ">="
		} else {
			kind = token.Gt
			lexeme = ">"
		}
	case '|':
		if l.peekChar() == '>' {
			l.readChar()
			kind = token.PipeOp
			lexeme = "|>"
		} else {
			kind = token.Bar
			lexeme = "|"
		}
	default:
		l.errorf(pos, "unrecognized character %q", string(ch))
		kind = token.Illegal
		lexeme = string(ch)
	}

	l.readChar()

	return token.Token{
		Kind:   kind,
		Lexeme: lexeme,
		Pos:    pos,
	}
}

// scanLayout consumes a newline (plus any following blank or comment-only
// lines), measures the indentation of the next code line and queues the
// resulting Indent/Dedent tokens behind a single Newline.
func (l *Lexer) scanLayout() token.Token {
	nlPos := token.Position{Line: l.line, Column: l.col}
	l.readChar() // consume '\n'

	width := 0
	for {
		width = 0
		for l.ch == ' ' || l.ch == '\t' {
			width++
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		}
		if l.ch == '\n' {
			l.readChar()
			continue
		}
		break
	}
	if l.ch == 0 {
		width = 0
	}

	linePos := token.Position{Line: l.line, Column: l.col}
	top := l.indents[len(l.indents)-1]
	switch {
	case width > top:
		l.indents = append(l.indents, width)
		l.pending = append(l.pending, token.Token{Kind: token.Indent, Pos: linePos})
	case width < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, token.Token{Kind: token.Dedent, Pos: linePos})
		}
		if l.indents[len(l.indents)-1] != width {
			l.errorf(linePos, "inconsistent indentation: %d spaces does not match any open block", width)
			l.indents[len(l.indents)-1] = width
		}
	}

	return token.Token{
		Kind:   token.Newline,
		Lexeme: "\n",
		Pos:    nlPos,
	}
}

// Helpers

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
		// keep pos one past the current rune even at end of input, so
		// lexeme slices ending at pos-1 include the final character
		if l.pos == len(l.input) {
			l.pos++
		}
		return
	}

	l.ch = l.input[l.pos]
	l.pos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) readIdentifier() string {
	start := l.pos - 1 // current rune is already in l.ch
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start : l.pos-1])
}

// readNumber reads an integer literal, extending it to a float only when
// a '.' is directly followed by another digit. The two-character lookahead
// keeps "42.method()" lexing as Int Dot Ident.
func (l *Lexer) readNumber() (string, bool) {
	start := l.pos - 1
	for isDigit(l.ch) {
		l.readChar()
	}
	isFloat := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return string(l.input[start : l.pos-1]), isFloat
}

func (l *Lexer) readString(startPos token.Position) (string, bool) {
	var sb []rune
	for {
		if l.ch == 0 || l.ch == '\n' {
			l.errorf(startPos, "unterminated string literal")
			return string(sb), false
		}
		if l.ch == '"' {
			l.readChar() // consume closing quote
			return string(sb), true
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			case 'r':
				sb = append(sb, '\r')
			case '\\':
				sb = append(sb, '\\')
			case '"':
				sb = append(sb, '"')
			case '0':
				sb = append(sb, 0)
			default:
				l.errorf(startPos, "unknown escape sequence \\%s in string", string(l.ch))
				sb = append(sb, l.ch)
			}
			l.readChar()
			continue
		}
		sb = append(sb, l.ch)
		l.readChar()
	}
}

func (l *Lexer) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	l.errors = append(l.errors, msg)
}

func isLetter(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
