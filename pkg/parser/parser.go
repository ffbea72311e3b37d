package parser

import (
	"github.com/badgermind/scriptc/pkg/ast"
	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
	doc      *ast.Document
	arena    *ast.Arena
}

// bailout unwinds the parser to the enclosing top-level statement.
type bailout struct{}

// NewParser creates a parser that allocates nodes from arena. The token
// stream must end with an EOF token.
func NewParser(tokens []token.Token, arena *ast.Arena, cfg *config.Config) *Parser {
	p := &Parser{tokens: tokens, cfg: cfg, arena: arena, doc: ast.NewDocument(arena)}
	if len(tokens) == 0 {
		p.tokens = []token.Token{{Type: token.EOF}}
	}
	p.pos = -1
	p.advance()
	return p
}

// Parse builds the statement list. Errors are reported as they are found;
// the returned document has its Error flag set when any occurred.
func (p *Parser) Parse() *ast.Document {
	for !p.check(token.EOF) {
		p.parseTopLevel()
	}
	return p.doc
}

func (p *Parser) parseTopLevel() {
	start := p.pos
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize(start)
		}
	}()
	if !p.check(token.LParen) {
		p.fail(p.current, "Expected '(' to start a statement, got %s", p.current.Type)
	}
	p.advance()
	p.doc.Append(p.parseStatementBody())
}

// synchronize skips the balanced parenthesized form that starts at start.
func (p *Parser) synchronize(start int) {
	p.pos = start - 1
	p.advance()
	depth := 0
	for !p.check(token.EOF) {
		switch p.current.Type {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
		}
		p.advance()
		if depth <= 0 {
			return
		}
	}
}

func (p *Parser) fail(tok token.Token, format string, args ...any) {
	p.doc.Error = true
	util.Report(tok, format, args...)
	panic(bailout{})
}

// Parser helpers
func (p *Parser) advance() {
	p.previous = p.current
	for p.pos+1 < len(p.tokens) {
		p.pos++
		p.current = p.tokens[p.pos]
		if p.current.Type != token.Directive {
			return
		}
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if !p.check(tokType) {
		p.fail(p.current, "%s", message)
	}
	p.advance()
	return p.previous
}

// parseStatementBody parses what follows '(' in a statement form.
func (p *Parser) parseStatementBody() ast.StmtID {
	nameTok := p.expect(token.Ident, "Expected a statement name after '('.")
	s := p.arena.NewStatement(nameTok, nameTok.Value)

	seen := make(map[string]bool)
	for p.check(token.Ident) {
		paramTok := p.current
		p.advance()
		p.expect(token.Colon, "Expected ':' after parameter name '"+paramTok.Value+"'.")
		if seen[paramTok.Value] {
			util.Warn(p.cfg, config.WarnDuplicateParam, paramTok, "Parameter '%s' is given more than once in statement '%s'", paramTok.Value, nameTok.Value)
		}
		seen[paramTok.Value] = true
		value := p.parseExpression()
		p.arena.AddParam(s, paramTok, paramTok.Value, value)
	}
	p.expect(token.RParen, "Expected a parameter or ')' to close statement '"+nameTok.Value+"'.")
	return s
}

func (p *Parser) parseExpression() ast.ExprID {
	tok := p.current
	switch {
	case p.match(token.Number):
		return p.arena.NewNumeric(tok, tok.Value, tok.Scale)
	case p.match(token.Minus):
		num := p.expect(token.Number, "Expected a number after '-'; use (- x) to negate an expression.")
		return p.arena.NewNumeric(tok, "-"+num.Value, num.Scale)
	case p.match(token.String):
		return p.arena.NewString(tok, tok.Value)
	case p.match(token.Binary):
		return p.arena.NewBinary(tok, tok.Value)
	case p.match(token.Ident):
		return p.arena.NewIdentifier(tok, tok.Value)
	case p.match(token.LParen):
		return p.parseParenForm(tok)
	}
	p.fail(tok, "Expected an expression, got %s", tok.Type)
	return 0
}

// parseParenForm parses what follows '(' in expression position: a nested
// statement, an operator form, or a parenthesized expression.
func (p *Parser) parseParenForm(open token.Token) ast.ExprID {
	switch {
	case p.check(token.Ident):
		s := p.parseStatementBody()
		return p.arena.NewStatementExpr(open, s)
	case p.check(token.RParen):
		p.fail(p.current, "Empty parentheses.")
	case p.current.Type.IsOperator():
		return p.parseOperator()
	}
	inner := p.parseExpression()
	p.expect(token.RParen, "Expected ')' after parenthesized expression.")
	return p.arena.NewUnary(open, ast.Paren, inner)
}

func (p *Parser) parseOperator() ast.ExprID {
	opTok := p.current
	p.advance()

	var operands []ast.ExprID
	for !p.check(token.RParen) && !p.check(token.EOF) {
		operands = append(operands, p.parseExpression())
	}
	p.expect(token.RParen, "Expected ')' to close operator form.")

	var kind ast.Kind
	switch opTok.Type {
	case token.Pipe:
		if len(operands) != 1 {
			p.fail(opTok, "'|' takes exactly one operand, got %d", len(operands))
		}
		return p.arena.NewUnary(opTok, ast.Absolute, operands[0])
	case token.Minus:
		if len(operands) == 1 {
			return p.arena.NewUnary(opTok, ast.Negative, operands[0])
		}
		kind = ast.Subtract
	case token.Plus:
		kind = ast.Add
	case token.Star:
		kind = ast.Multiply
	case token.Slash:
		kind = ast.Divide
	}
	if len(operands) < 2 {
		p.fail(opTok, "%s takes at least two operands, got %d", opTok.Type, len(operands))
	}

	result := operands[0]
	for _, rhs := range operands[1:] {
		result = p.arena.NewBinaryOp(opTok, kind, result, rhs)
	}
	return result
}
