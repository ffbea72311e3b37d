package lexer

import (
	"strings"
	"unicode"

	"github.com/badgermind/scriptc/pkg/config"
	"github.com/badgermind/scriptc/pkg/token"
	"github.com/badgermind/scriptc/pkg/util"
)

const directivePrefix = "[script]:"

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config

	// Errors counts lexical errors found so far.
	Errors int
	// Quiet suppresses diagnostics, for passes that only look for directives.
	Quiet bool
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Tokenize returns every token of the source, terminated by EOF.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		ch := l.peek()
		if ch == ';' || (ch == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatCComments)) {
			if tok, isDirective := l.lineCommentOrDirective(startPos, startCol, startLine); isDirective {
				return tok
			}
			continue
		}
		if unicode.IsLetter(ch) || ch == '_' {
			return l.identifier(startPos, startCol, startLine)
		}
		if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekNext())) {
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '(':
			return l.makeToken(token.LParen, "", startPos, startCol, startLine)
		case ')':
			return l.makeToken(token.RParen, "", startPos, startCol, startLine)
		case ':':
			return l.makeToken(token.Colon, "", startPos, startCol, startLine)
		case '+':
			return l.makeToken(token.Plus, "", startPos, startCol, startLine)
		case '-':
			return l.makeToken(token.Minus, "", startPos, startCol, startLine)
		case '*':
			return l.makeToken(token.Star, "", startPos, startCol, startLine)
		case '/':
			return l.makeToken(token.Slash, "", startPos, startCol, startLine)
		case '|':
			return l.makeToken(token.Pipe, "", startPos, startCol, startLine)
		case '"':
			return l.stringLiteral(startPos, startCol, startLine)
		case '#':
			return l.binaryLiteral(startPos, startCol, startLine)
		}

		l.error(l.makeToken(token.EOF, "", startPos, startCol, startLine), "Unexpected character: '%c'", ch)
	}
}

func (l *Lexer) error(tok token.Token, format string, args ...any) {
	l.Errors++
	if !l.Quiet {
		util.Report(tok, format, args...)
	}
}

func (l *Lexer) warn(wt config.Warning, tok token.Token, format string, args ...any) {
	if !l.Quiet {
		util.Warn(l.cfg, wt, tok, format, args...)
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) lineCommentOrDirective(startPos, startCol, startLine int) (token.Token, bool) {
	if l.peek() == '/' {
		l.advance()
	}
	l.advance()
	commentStart := l.pos
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	content := strings.TrimSpace(strings.TrimLeft(string(l.source[commentStart:l.pos]), ";"))
	if strings.HasPrefix(content, directivePrefix) && !l.cfg.IsFeatureEnabled(config.FeatNoDirectives) {
		value := strings.TrimSpace(strings.TrimPrefix(content, directivePrefix))
		return l.makeToken(token.Directive, value, startPos, startCol, startLine), true
	}
	return token.Token{}, false
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

func (l *Lexer) identifier(startPos, startCol, startLine int) token.Token {
	for isIdentRune(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.Ident, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// numberLiteral keeps the literal text as written; conversion happens at
// emission time. A trailing unit suffix sets the token's scale.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			l.advance()
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
		if (l.peek() == 'e' || l.peek() == 'E') && (unicode.IsDigit(l.peekNext()) || l.peekNext() == '+' || l.peekNext() == '-') {
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			if !unicode.IsDigit(l.peek()) {
				l.error(l.makeToken(token.Number, "", startPos, startCol, startLine), "Malformed numeric literal: exponent has no digits")
			}
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	value := string(l.source[startPos:l.pos])
	suffixStart := l.pos
	for isIdentRune(l.peek()) {
		l.advance()
	}
	tok := l.makeToken(token.Number, value, startPos, startCol, startLine)

	switch suffix := string(l.source[suffixStart:l.pos]); suffix {
	case "":
	case "deg":
		if !l.cfg.IsFeatureEnabled(config.FeatDegrees) {
			l.error(tok, "Unit suffixes are not enabled (use -Fdegrees)")
			break
		}
		tok.Scale = config.Degrees
	default:
		l.error(tok, "Invalid suffix '%s' on numeric literal", suffix)
	}
	return tok
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) token.Token {
	var sb strings.Builder
	for !l.isAtEnd() {
		c := l.advance()
		if c == '"' {
			return l.makeToken(token.String, sb.String(), startPos, startCol, startLine)
		}
		if c != '\\' {
			sb.WriteRune(c)
			continue
		}
		if l.isAtEnd() {
			break
		}
		esc := l.advance()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '"':
			sb.WriteRune(esc)
		default:
			l.warn(config.WarnUnrecognizedEscape, l.makeToken(token.String, "", startPos, startCol, startLine),
				"Unrecognized escape sequence '\\%c'", esc)
			sb.WriteRune(esc)
		}
	}
	tok := l.makeToken(token.String, sb.String(), startPos, startCol, startLine)
	l.error(tok, "Unterminated string literal")
	return tok
}

func (l *Lexer) binaryLiteral(startPos, startCol, startLine int) token.Token {
	for isHexDigit(l.peek()) {
		l.advance()
	}
	digits := string(l.source[startPos+1 : l.pos])
	tok := l.makeToken(token.Binary, digits, startPos, startCol, startLine)
	if !l.cfg.IsFeatureEnabled(config.FeatBinaryLiterals) {
		l.error(tok, "Binary literals are not enabled (use -Fbinary-literals)")
		return tok
	}
	if isIdentRune(l.peek()) {
		l.error(tok, "Invalid character '%c' in binary literal", l.peek())
		for isIdentRune(l.peek()) {
			l.advance()
		}
		return tok
	}
	if len(digits)%2 != 0 {
		l.warn(config.WarnOddBinary, tok, "Binary literal has an odd number of hex digits; the last digit is dropped")
	}
	return tok
}
