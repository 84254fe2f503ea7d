package parser

import (
	"fmt"
	"strconv"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/lexer"
	"github.com/NijanthanR/fern/internal/token"
)

type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	// set when an indented block just consumed its Dedent; the layout
	// already terminated the statement, so endStatement accepts it
	blockClosed bool

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// NewFromSource is a convenience constructor for a full pipeline session.
func NewFromSource(src string) *Parser {
	return New(lexer.New(src))
}

func (p *Parser) Errors() []string {
	return append(append([]string(nil), p.l.Errors()...), p.errors...)
}

func (p *Parser) HadError() bool {
	return len(p.errors) > 0 || len(p.l.Errors()) > 0
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// ---------- Speculation ----------

// checkpoint captures the parser and lexer cursors so a speculative
// parse can be rolled back without side effects.
type checkpoint struct {
	state lexer.State
	cur   token.Token
	peek  token.Token
	nerr  int
}

func (p *Parser) save() checkpoint {
	return checkpoint{
		state: p.l.Save(),
		cur:   p.cur,
		peek:  p.peek,
		nerr:  len(p.errors),
	}
}

func (p *Parser) restore(c checkpoint) {
	p.l.Restore(c.state)
	p.cur = c.cur
	p.peek = c.peek
	p.errors = p.errors[:c.nerr]
}

// ---------- Top-level ----------

func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	p.skipNewlines()

	// module header: "module name"
	if p.cur.Kind == token.Module {
		p.nextToken()
		nameTok := p.expect(token.Ident)
		prog.Module = &ast.ModuleDecl{
			Name:    nameTok.Lexeme,
			NamePos: nameTok.Pos,
		}
		p.endStatement()
	}

	prog.Stmts = p.ParseStmts(token.EOF)
	return prog
}

// ParseStmts parses statements until the given terminator and then
// runs the clause-grouping pass: adjacent pattern-style function
// definitions sharing a name merge into one multi-clause function.
func (p *Parser) ParseStmts(end token.Kind) []ast.Stmt {
	var stmts []ast.Stmt

	for {
		p.skipNewlines()
		if p.cur.Kind == end || p.cur.Kind == token.EOF {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		} else {
			p.resync()
		}
	}

	return p.groupClauses(stmts)
}

// groupClauses merges lexically adjacent same-name pattern clauses and
// rejects a clause that reappears after an intervening statement.
func (p *Parser) groupClauses(stmts []ast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	closed := make(map[string]bool)
	var open *ast.FnDecl

	for _, st := range stmts {
		fn, ok := st.(*ast.FnDecl)
		if ok && fn.IsMultiClause() {
			if open != nil && open.Name == fn.Name {
				open.Clauses = append(open.Clauses, fn.Clauses...)
				continue
			}
			if closed[fn.Name] {
				p.errorf(fn.Pos(), "clauses of %q must be adjacent", fn.Name)
				continue
			}
			if open != nil {
				closed[open.Name] = true
			}
			open = fn
			out = append(out, fn)
			continue
		}

		if open != nil {
			closed[open.Name] = true
			open = nil
		}
		if ok {
			closed[fn.Name] = true
		}
		out = append(out, st)
	}

	return out
}

func (p *Parser) skipNewlines() {
	for p.cur.Kind == token.Newline {
		p.nextToken()
	}
}

// endStatement consumes the statement terminator. Dedent and EOF end a
// statement without being consumed; they belong to the enclosing block.
func (p *Parser) endStatement() {
	if p.blockClosed {
		p.blockClosed = false
		return
	}
	switch p.cur.Kind {
	case token.Newline:
		p.nextToken()
	case token.Dedent, token.EOF:
	default:
		p.errorf(p.cur.Pos, "expected end of statement, got %s (%q)", p.cur.Kind, p.cur.Lexeme)
		p.resync()
	}
}

// resync skips ahead to the next statement boundary after an error.
func (p *Parser) resync() {
	for p.cur.Kind != token.Newline && p.cur.Kind != token.Dedent && p.cur.Kind != token.EOF {
		p.nextToken()
	}
	if p.cur.Kind == token.Newline {
		p.nextToken()
	}
}

// ---------- Statements ----------

func (p *Parser) parseStatement() ast.Stmt {
	p.blockClosed = false

	switch p.cur.Kind {
	case token.Let:
		return p.parseLetStmt()
	case token.Return:
		return p.parseReturnStmt()
	case token.Defer:
		return p.parseDeferStmt()
	case token.Import:
		return p.parseImportStmt()
	case token.Fn:
		return p.parseFnDecl(false)
	case token.Type:
		return p.parseTypeDecl(false)
	case token.Pub:
		p.nextToken()
		switch p.cur.Kind {
		case token.Fn:
			return p.parseFnDecl(true)
		case token.Type:
			return p.parseTypeDecl(true)
		default:
			p.errorf(p.cur.Pos, "expected 'fn' or 'type' after 'pub', got %s", p.cur.Kind)
			return nil
		}
	default:
		expr := p.parseExpr()
		if expr == nil {
			return nil
		}
		stmt := &ast.ExprStmt{X: expr}
		p.endStatement()
		return stmt
	}
}

func (p *Parser) parseLetStmt() ast.Stmt {
	letTok := p.cur
	p.nextToken()

	pat := p.parsePattern()

	var typ ast.TypeExpr
	if p.cur.Kind == token.Colon {
		p.nextToken()
		typ = p.parseTypeExpr()
	}

	p.expect(token.Assign)
	value := p.parseExpr()
	p.endStatement()

	return &ast.LetStmt{
		LetPos:  letTok.Pos,
		Pattern: pat,
		Type:    typ,
		Value:   value,
	}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	retTok := p.cur
	p.nextToken()

	var result ast.Expr
	if p.cur.Kind != token.Newline && p.cur.Kind != token.Dedent && p.cur.Kind != token.EOF {
		result = p.parseExpr()
	}
	p.endStatement()

	return &ast.ReturnStmt{
		ReturnPos: retTok.Pos,
		Result:    result,
	}
}

func (p *Parser) parseDeferStmt() ast.Stmt {
	deferTok := p.cur
	p.nextToken()

	expr := p.parseExpr()
	p.endStatement()

	return &ast.DeferStmt{
		DeferPos: deferTok.Pos,
		X:        expr,
	}
}

func (p *Parser) parseImportStmt() ast.Stmt {
	impTok := p.cur
	p.nextToken()

	imp := &ast.ImportStmt{ImportPos: impTok.Pos}

	nameTok := p.expect(token.Ident)
	imp.Path = append(imp.Path, nameTok.Lexeme)

	for p.cur.Kind == token.Dot {
		p.nextToken()
		if p.cur.Kind == token.LBrace {
			// selective import: import std.io.{read_file, write_file}
			p.nextToken()
			for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
				item := p.expect(token.Ident)
				imp.Items = append(imp.Items, item.Lexeme)
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
			p.expect(token.RBrace)
			break
		}
		seg := p.expect(token.Ident)
		imp.Path = append(imp.Path, seg.Lexeme)
	}

	if p.cur.Kind == token.As {
		p.nextToken()
		alias := p.expect(token.Ident)
		imp.Alias = alias.Lexeme
	}

	p.endStatement()
	return imp
}

// ---------- Function definitions ----------

// parseFnDecl handles both shapes of a function definition. The shape is
// decided by two-token lookahead after '(': a parameter list beginning
// with "ident ':'" means typed parameters and a ':'-introduced body,
// anything else is a pattern clause with an '->'-introduced body.
func (p *Parser) parseFnDecl(isPublic bool) ast.Stmt {
	fnTok := p.cur
	p.nextToken()

	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected function name after 'fn'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	p.expect(token.LParen)

	typed := p.cur.Kind == token.RParen || (p.cur.Kind == token.Ident && p.peek.Kind == token.Colon)
	if p.cur.Kind == token.RParen {
		// Zero-parameter lists are ambiguous; "-> Type :" after the
		// close paren means a typed signature, "-> expr" a clause body.
		typed = p.zeroParamIsTyped()
	}

	if typed {
		return p.parseTypedFn(fnTok, nameTok, isPublic)
	}
	return p.parsePatternFn(fnTok, nameTok, isPublic)
}

// zeroParamIsTyped speculatively reads past "() ->" to see whether a
// type annotation followed by ':' comes next.
func (p *Parser) zeroParamIsTyped() bool {
	cp := p.save()
	defer p.restore(cp)

	p.nextToken() // consume ')'
	if p.cur.Kind == token.Colon {
		return true // "fn f():" with implicit Unit return
	}
	if p.cur.Kind != token.Arrow {
		return false
	}
	p.nextToken()
	p.parseTypeExpr()
	return p.cur.Kind == token.Colon && len(p.errors) == cp.nerr
}

func (p *Parser) parseTypedFn(fnTok, nameTok token.Token, isPublic bool) ast.Stmt {
	var params []*ast.Param
	if p.cur.Kind != token.RParen {
		for {
			pname := p.expect(token.Ident)
			p.expect(token.Colon)
			ptype := p.parseTypeExpr()
			params = append(params, &ast.Param{
				Name:    pname.Lexeme,
				NamePos: pname.Pos,
				Type:    ptype,
			})
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
	}
	p.expect(token.RParen)

	var ret ast.TypeExpr
	if p.cur.Kind == token.Arrow {
		p.nextToken()
		ret = p.parseTypeExpr()
	}

	p.expect(token.Colon)
	body := p.parseBlockOrInline()
	p.endStatement()

	return &ast.FnDecl{
		FnPos:    fnTok.Pos,
		Name:     nameTok.Lexeme,
		NamePos:  nameTok.Pos,
		IsPublic: isPublic,
		Params:   params,
		Return:   ret,
		Body:     body,
	}
}

func (p *Parser) parsePatternFn(fnTok, nameTok token.Token, isPublic bool) ast.Stmt {
	var pats []ast.Pattern
	if p.cur.Kind != token.RParen {
		for {
			pats = append(pats, p.parsePattern())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
	}
	p.expect(token.RParen)
	p.expect(token.Arrow)

	body := p.parseBlockOrInline()
	p.endStatement()

	return &ast.FnDecl{
		FnPos:    fnTok.Pos,
		Name:     nameTok.Lexeme,
		NamePos:  nameTok.Pos,
		IsPublic: isPublic,
		Clauses: []*ast.FnClause{{
			ClausePos: fnTok.Pos,
			Patterns:  pats,
			Body:      body,
		}},
	}
}

// ---------- Type definitions ----------

func (p *Parser) parseTypeDecl(isPublic bool) ast.Stmt {
	typeTok := p.cur
	p.nextToken()

	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected type name after 'type'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	decl := &ast.TypeDecl{
		TypePos:  typeTok.Pos,
		Name:     nameTok.Lexeme,
		NamePos:  nameTok.Pos,
		IsPublic: isPublic,
	}

	// generic parameters: type Option(T): ...
	if p.cur.Kind == token.LParen {
		p.nextToken()
		for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
			param := p.expect(token.Ident)
			decl.Params = append(decl.Params, param.Lexeme)
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
	}

	p.expect(token.Colon)

	if p.cur.Kind == token.LBrace {
		decl.Fields = p.parseRecordFields()
		p.endStatement()
		return decl
	}

	if p.cur.Kind == token.Newline && p.peek.Kind == token.Indent {
		p.nextToken() // newline
		p.nextToken() // indent
		for p.cur.Kind != token.Dedent && p.cur.Kind != token.EOF {
			p.skipNewlines()
			if p.cur.Kind == token.Dedent {
				break
			}
			if p.cur.Kind == token.Bar {
				p.nextToken()
			}
			decl.Variants = append(decl.Variants, p.parseVariant())
			if p.cur.Kind == token.Newline {
				p.nextToken()
			}
		}
		p.expect(token.Dedent)
		return decl
	}

	// inline variants: type Color: Red | Green | Blue
	decl.Variants = append(decl.Variants, p.parseVariant())
	for p.cur.Kind == token.Bar {
		p.nextToken()
		decl.Variants = append(decl.Variants, p.parseVariant())
	}
	p.endStatement()
	return decl
}

func (p *Parser) parseVariant() *ast.VariantDecl {
	nameTok := p.expect(token.Ident)
	v := &ast.VariantDecl{
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
	}
	if p.cur.Kind == token.LParen {
		p.nextToken()
		for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
			v.Payload = append(v.Payload, p.parseTypeExpr())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
	}
	return v
}

func (p *Parser) parseRecordFields() []*ast.FieldDecl {
	p.expect(token.LBrace)

	var fields []*ast.FieldDecl
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		nameTok := p.expect(token.Ident)
		p.expect(token.Colon)
		ftype := p.parseTypeExpr()
		fields = append(fields, &ast.FieldDecl{
			Name:    nameTok.Lexeme,
			NamePos: nameTok.Pos,
			Type:    ftype,
		})
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(token.RBrace)
	return fields
}

// ---------- Blocks ----------

// parseBlockOrInline parses what follows a ':', either a single inline
// expression on the same line or an indented statement block whose
// trailing expression gives the block its value.
func (p *Parser) parseBlockOrInline() ast.Expr {
	if p.cur.Kind == token.Newline && p.peek.Kind == token.Indent {
		return p.parseIndentedBlock()
	}
	return p.parseExpr()
}

func (p *Parser) parseIndentedBlock() ast.Expr {
	p.nextToken() // newline
	startTok := p.expect(token.Indent)

	var stmts []ast.Stmt
	for {
		p.skipNewlines()
		if p.cur.Kind == token.Dedent || p.cur.Kind == token.EOF {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		} else {
			p.resync()
		}
	}
	if p.cur.Kind == token.Dedent {
		p.nextToken()
	}
	p.blockClosed = true

	stmts = p.groupClauses(stmts)

	block := &ast.BlockExpr{
		StartPos: startTok.Pos,
		Stmts:    stmts,
	}
	// The trailing expression statement is the block's value.
	if n := len(block.Stmts); n > 0 {
		if es, ok := block.Stmts[n-1].(*ast.ExprStmt); ok {
			block.Tail = es.X
			block.Stmts = block.Stmts[:n-1]
		}
	}
	return block
}

// ---------- Expressions (with priorities) ----------

// parseExpr parses a full expression at the lowest precedence, the
// pipe operator, and recurses downward from there.
func (p *Parser) parseExpr() ast.Expr {
	return p.parsePipe()
}

func (p *Parser) parsePipe() ast.Expr {
	left := p.parseOr()
	for p.cur.Kind == token.PipeOp {
		opTok := p.cur
		p.nextToken()
		right := p.parseOr()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.cur.Kind == token.Or {
		opTok := p.cur
		p.nextToken()
		right := p.parseAnd()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.cur.Kind == token.And {
		opTok := p.cur
		p.nextToken()
		right := p.parseEquality()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.cur.Kind == token.Eq || p.cur.Kind == token.NotEq {
		opTok := p.cur
		p.nextToken()
		right := p.parseComparison()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAdditive()
	for p.cur.Kind == token.Lt || p.cur.Kind == token.LtEq ||
		p.cur.Kind == token.Gt || p.cur.Kind == token.GtEq {
		opTok := p.cur
		p.nextToken()
		right := p.parseAdditive()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		opTok := p.cur
		p.nextToken()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parsePower()
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash || p.cur.Kind == token.Percent {
		opTok := p.cur
		p.nextToken()
		right := p.parsePower()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

// parsePower is right-associative: 2 ** 3 ** 2 is 2 ** (3 ** 2).
func (p *Parser) parsePower() ast.Expr {
	left := p.parseUnary()
	if p.cur.Kind == token.Power {
		opTok := p.cur
		p.nextToken()
		right := p.parsePower()
		return &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.cur.Kind == token.Minus || p.cur.Kind == token.Not {
		opTok := p.cur
		p.nextToken()
		operand := p.parseUnary()
		return &ast.UnaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			X:     operand,
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()

	for {
		switch p.cur.Kind {
		case token.LParen:
			lparen := p.cur
			p.nextToken()
			var args []ast.Expr
			for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
				args = append(args, p.parseExpr())
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
			rparen := p.expect(token.RParen)
			expr = &ast.CallExpr{
				Callee: expr,
				LParen: lparen.Pos,
				Args:   args,
				RParen: rparen.Pos,
			}
		case token.LBracket:
			lbracket := p.cur
			p.nextToken()
			index := p.parseExpr()
			rbracket := p.expect(token.RBracket)
			expr = &ast.IndexExpr{
				X:        expr,
				LBracket: lbracket.Pos,
				Index:    index,
				RBracket: rbracket.Pos,
			}
		case token.Dot:
			p.nextToken()
			nameTok := p.expect(token.Ident)
			expr = &ast.MemberExpr{
				X:       expr,
				Name:    nameTok.Lexeme,
				NamePos: nameTok.Pos,
			}
		case token.Question:
			qTok := p.cur
			p.nextToken()
			expr = &ast.TryExpr{
				X:    expr,
				QPos: qTok.Pos,
			}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case token.Int:
		tok := p.cur
		p.nextToken()
		value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q", tok.Lexeme)
		}
		return &ast.IntLiteral{
			Value:  value,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}

	case token.Float:
		tok := p.cur
		p.nextToken()
		value, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid float literal %q", tok.Lexeme)
		}
		return &ast.FloatLiteral{
			Value:  value,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}

	case token.String:
		tok := p.cur
		p.nextToken()
		return &ast.StringLiteral{
			Value:  tok.Lexeme,
			LitPos: tok.Pos,
		}

	case token.True, token.False:
		tok := p.cur
		p.nextToken()
		return &ast.BoolLiteral{
			Value:  tok.Kind == token.True,
			LitPos: tok.Pos,
		}

	case token.Ident:
		tok := p.cur
		p.nextToken()
		return &ast.IdentExpr{
			Name:    tok.Lexeme,
			NamePos: tok.Pos,
		}

	case token.If:
		return p.parseIfExpr()

	case token.Match:
		return p.parseMatchExpr()

	case token.With:
		return p.parseWithExpr()

	case token.For:
		return p.parseForExpr()

	case token.While:
		return p.parseWhileExpr()

	case token.Loop:
		return p.parseLoopExpr()

	case token.LBracket:
		return p.parseListLiteral()

	case token.LParen:
		return p.parseParenExpr()

	default:
		p.errorf(p.cur.Pos, "unexpected token %s (%q) in expression", p.cur.Kind, p.cur.Lexeme)
		tok := p.cur
		p.nextToken()
		return &ast.IdentExpr{
			Name:    tok.Lexeme,
			NamePos: tok.Pos,
		}
	}
}

func (p *Parser) parseIfExpr() ast.Expr {
	ifTok := p.cur
	p.nextToken()

	cond := p.parseExpr()
	p.expect(token.Colon)
	then := p.parseBlockOrInline()

	var els ast.Expr
	// after an indented then-block the 'else' arrives right behind the
	// dedent; skip a stray newline when the block was inline
	if p.cur.Kind == token.Newline && p.peek.Kind == token.Else {
		p.nextToken()
	}
	if p.cur.Kind == token.Else {
		p.nextToken()
		if p.cur.Kind == token.If {
			els = p.parseIfExpr()
		} else {
			p.expect(token.Colon)
			els = p.parseBlockOrInline()
		}
	}

	return &ast.IfExpr{
		IfPos: ifTok.Pos,
		Cond:  cond,
		Then:  then,
		Else:  els,
	}
}

func (p *Parser) parseMatchExpr() ast.Expr {
	matchTok := p.cur
	p.nextToken()

	scrutinee := p.parseExpr()
	p.expect(token.Colon)

	arms := p.parseMatchArms()
	if len(arms) == 0 {
		p.errorf(matchTok.Pos, "match expression needs at least one arm")
	}

	return &ast.MatchExpr{
		MatchPos:  matchTok.Pos,
		Scrutinee: scrutinee,
		Arms:      arms,
	}
}

// parseMatchArms handles both layouts: inline comma-separated arms and
// an indented block with one arm per line.
func (p *Parser) parseMatchArms() []*ast.MatchArm {
	var arms []*ast.MatchArm

	if p.cur.Kind == token.Newline && p.peek.Kind == token.Indent {
		p.nextToken() // newline
		p.nextToken() // indent
		for {
			p.skipNewlines()
			if p.cur.Kind == token.Dedent || p.cur.Kind == token.EOF {
				break
			}
			arms = append(arms, p.parseMatchArm())
			if p.cur.Kind == token.Comma {
				p.nextToken()
			}
		}
		if p.cur.Kind == token.Dedent {
			p.nextToken()
		}
		p.blockClosed = true
		return arms
	}

	arms = append(arms, p.parseMatchArm())
	for p.cur.Kind == token.Comma {
		p.nextToken()
		arms = append(arms, p.parseMatchArm())
	}
	return arms
}

func (p *Parser) parseMatchArm() *ast.MatchArm {
	pat := p.parsePattern()
	p.expect(token.Arrow)

	var body ast.Expr
	if p.cur.Kind == token.Newline && p.peek.Kind == token.Indent {
		body = p.parseIndentedBlock()
	} else {
		body = p.parseExpr()
	}

	return &ast.MatchArm{
		Pattern: pat,
		Body:    body,
	}
}

// parseWithExpr parses:
//
//	with a <- f(), b <- g(a) do:
//	    body
//	else:
//	    Err(e) -> fallback
func (p *Parser) parseWithExpr() ast.Expr {
	withTok := p.cur
	p.nextToken()

	we := &ast.WithExpr{WithPos: withTok.Pos}

	for {
		if p.cur.Kind != token.Ident {
			p.errorf(p.cur.Pos, "expected binding name in with expression, got %s", p.cur.Kind)
			break
		}
		nameTok := p.cur
		p.nextToken()
		p.expect(token.Bind)
		value := p.parseExpr()
		we.Binds = append(we.Binds, &ast.WithBind{
			Name:    nameTok.Lexeme,
			NamePos: nameTok.Pos,
			Value:   value,
		})
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}

	p.expect(token.Do)
	p.expect(token.Colon)
	we.Body = p.parseBlockOrInline()

	if p.cur.Kind == token.Newline && p.peek.Kind == token.Else {
		p.nextToken()
	}
	if p.cur.Kind == token.Else {
		p.nextToken()
		p.expect(token.Colon)
		we.ElseArms = p.parseMatchArms()
	}

	return we
}

// Legacy looping forms: still parsed, rejected by the checker.

func (p *Parser) parseForExpr() ast.Expr {
	forTok := p.cur
	p.nextToken()

	varTok := p.expect(token.Ident)
	p.expect(token.In)
	iterable := p.parseExpr()
	p.expect(token.Colon)
	body := p.parseBlockOrInline()

	return &ast.ForExpr{
		ForPos:   forTok.Pos,
		Var:      varTok.Lexeme,
		VarPos:   varTok.Pos,
		Iterable: iterable,
		Body:     body,
	}
}

func (p *Parser) parseWhileExpr() ast.Expr {
	whileTok := p.cur
	p.nextToken()

	cond := p.parseExpr()
	p.expect(token.Colon)
	body := p.parseBlockOrInline()

	return &ast.WhileExpr{
		WhilePos: whileTok.Pos,
		Cond:     cond,
		Body:     body,
	}
}

func (p *Parser) parseLoopExpr() ast.Expr {
	loopTok := p.cur
	p.nextToken()

	p.expect(token.Colon)
	body := p.parseBlockOrInline()

	return &ast.LoopExpr{
		LoopPos: loopTok.Pos,
		Body:    body,
	}
}

func (p *Parser) parseListLiteral() ast.Expr {
	lbracket := p.cur
	p.nextToken()

	var elems []ast.Expr
	for p.cur.Kind != token.RBracket && p.cur.Kind != token.EOF {
		elems = append(elems, p.parseExpr())
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}
	rbracket := p.expect(token.RBracket)

	return &ast.ListLiteral{
		LBracket: lbracket.Pos,
		Elements: elems,
		RBracket: rbracket.Pos,
	}
}

// parseParenExpr disambiguates three forms that open with '(': a lambda
// "(x, y) -> body", a parenthesized expression "(e)" and a tuple
// "(a, b)". The lambda head is tried speculatively and rolled back.
func (p *Parser) parseParenExpr() ast.Expr {
	if lambda := p.tryParseLambda(); lambda != nil {
		return lambda
	}

	lparen := p.cur
	p.nextToken()

	if p.cur.Kind == token.RParen {
		rparen := p.cur
		p.nextToken()
		return &ast.TupleLiteral{
			LParen: lparen.Pos,
			RParen: rparen.Pos,
		}
	}

	first := p.parseExpr()
	if p.cur.Kind != token.Comma {
		p.expect(token.RParen)
		return first
	}

	elems := []ast.Expr{first}
	for p.cur.Kind == token.Comma {
		p.nextToken()
		if p.cur.Kind == token.RParen {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	rparen := p.expect(token.RParen)

	return &ast.TupleLiteral{
		LParen:   lparen.Pos,
		Elements: elems,
		RParen:   rparen.Pos,
	}
}

// tryParseLambda returns a lambda if the cursor sits on one, or nil
// after restoring the cursor.
func (p *Parser) tryParseLambda() ast.Expr {
	cp := p.save()

	lparen := p.cur
	p.nextToken()

	var params []*ast.Param
	for p.cur.Kind == token.Ident {
		params = append(params, &ast.Param{
			Name:    p.cur.Lexeme,
			NamePos: p.cur.Pos,
		})
		p.nextToken()
		if p.cur.Kind == token.Comma {
			p.nextToken()
			continue
		}
		break
	}

	if p.cur.Kind != token.RParen {
		p.restore(cp)
		return nil
	}
	p.nextToken()
	if p.cur.Kind != token.Arrow {
		p.restore(cp)
		return nil
	}
	p.nextToken()

	var body ast.Expr
	if p.cur.Kind == token.Newline && p.peek.Kind == token.Indent {
		body = p.parseIndentedBlock()
	} else {
		body = p.parseExpr()
	}

	return &ast.LambdaExpr{
		LParen: lparen.Pos,
		Params: params,
		Body:   body,
	}
}

// ---------- Patterns ----------

func (p *Parser) parsePattern() ast.Pattern {
	switch p.cur.Kind {
	case token.Wildcard:
		tok := p.cur
		p.nextToken()
		return &ast.WildcardPattern{WildPos: tok.Pos}

	case token.Int:
		tok := p.cur
		p.nextToken()
		value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q", tok.Lexeme)
		}
		return &ast.LiteralPattern{Value: &ast.IntLiteral{
			Value:  value,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}}

	case token.Minus:
		minusTok := p.cur
		p.nextToken()
		switch p.cur.Kind {
		case token.Int:
			tok := p.cur
			p.nextToken()
			value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
			if err != nil {
				p.errorf(tok.Pos, "invalid integer literal %q", tok.Lexeme)
			}
			return &ast.LiteralPattern{Value: &ast.IntLiteral{
				Value:  -value,
				LitPos: minusTok.Pos,
				Raw:    "-" + tok.Lexeme,
			}}
		case token.Float:
			tok := p.cur
			p.nextToken()
			value, err := strconv.ParseFloat(tok.Lexeme, 64)
			if err != nil {
				p.errorf(tok.Pos, "invalid float literal %q", tok.Lexeme)
			}
			return &ast.LiteralPattern{Value: &ast.FloatLiteral{
				Value:  -value,
				LitPos: minusTok.Pos,
				Raw:    "-" + tok.Lexeme,
			}}
		default:
			p.errorf(p.cur.Pos, "expected numeric literal after '-' in pattern")
			return &ast.WildcardPattern{WildPos: minusTok.Pos}
		}

	case token.Float:
		tok := p.cur
		p.nextToken()
		value, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid float literal %q", tok.Lexeme)
		}
		return &ast.LiteralPattern{Value: &ast.FloatLiteral{
			Value:  value,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}}

	case token.String:
		tok := p.cur
		p.nextToken()
		return &ast.LiteralPattern{Value: &ast.StringLiteral{
			Value:  tok.Lexeme,
			LitPos: tok.Pos,
		}}

	case token.True, token.False:
		tok := p.cur
		p.nextToken()
		return &ast.LiteralPattern{Value: &ast.BoolLiteral{
			Value:  tok.Kind == token.True,
			LitPos: tok.Pos,
		}}

	case token.Ident:
		tok := p.cur
		p.nextToken()
		// An identifier immediately followed by '(' is a constructor
		// pattern like Ok(v); a bare capitalized name is a payloadless
		// constructor; anything else binds.
		if p.cur.Kind == token.LParen {
			p.nextToken()
			var args []ast.Pattern
			for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
				args = append(args, p.parsePattern())
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
			p.expect(token.RParen)
			return &ast.ConstructorPattern{
				Name:    tok.Lexeme,
				NamePos: tok.Pos,
				Args:    args,
			}
		}
		if isCapitalized(tok.Lexeme) {
			return &ast.ConstructorPattern{
				Name:    tok.Lexeme,
				NamePos: tok.Pos,
			}
		}
		return &ast.IdentPattern{
			Name:    tok.Lexeme,
			NamePos: tok.Pos,
		}

	case token.LBracket:
		lbracket := p.cur
		p.nextToken()
		var elems []ast.Pattern
		for p.cur.Kind != token.RBracket && p.cur.Kind != token.EOF {
			elems = append(elems, p.parsePattern())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RBracket)
		return &ast.ListPattern{
			LBracket: lbracket.Pos,
			Elements: elems,
		}

	case token.LParen:
		lparen := p.cur
		p.nextToken()
		var elems []ast.Pattern
		for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
			elems = append(elems, p.parsePattern())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
		if len(elems) == 1 {
			return elems[0]
		}
		return &ast.TuplePattern{
			LParen:   lparen.Pos,
			Elements: elems,
		}

	default:
		p.errorf(p.cur.Pos, "expected pattern, got %s (%q)", p.cur.Kind, p.cur.Lexeme)
		tok := p.cur
		p.nextToken()
		return &ast.WildcardPattern{WildPos: tok.Pos}
	}
}

// ---------- Type expressions ----------

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	switch p.cur.Kind {
	case token.Ident:
		nameTok := p.cur
		p.nextToken()
		t := &ast.NamedType{
			Name:    nameTok.Lexeme,
			NamePos: nameTok.Pos,
		}
		if p.cur.Kind == token.LParen {
			p.nextToken()
			for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
				t.Args = append(t.Args, p.parseTypeExpr())
				if p.cur.Kind == token.Comma {
					p.nextToken()
					continue
				}
				break
			}
			p.expect(token.RParen)
		}
		return t

	case token.Fn:
		fnTok := p.cur
		p.nextToken()
		p.expect(token.LParen)
		var params []ast.TypeExpr
		for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
			params = append(params, p.parseTypeExpr())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
		p.expect(token.Arrow)
		ret := p.parseTypeExpr()
		return &ast.FuncTypeExpr{
			FnPos:  fnTok.Pos,
			Params: params,
			Return: ret,
		}

	case token.LParen:
		lparen := p.cur
		p.nextToken()
		var elems []ast.TypeExpr
		for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
			elems = append(elems, p.parseTypeExpr())
			if p.cur.Kind == token.Comma {
				p.nextToken()
				continue
			}
			break
		}
		p.expect(token.RParen)
		if len(elems) == 1 {
			return elems[0]
		}
		return &ast.TupleTypeExpr{
			LParen:   lparen.Pos,
			Elements: elems,
		}

	default:
		p.errorf(p.cur.Pos, "expected type, got %s (%q)", p.cur.Kind, p.cur.Lexeme)
		tok := p.cur
		p.nextToken()
		return &ast.NamedType{
			Name:    "error",
			NamePos: tok.Pos,
		}
	}
}

func isCapitalized(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}
