package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes glint source code.
type Lexer struct {
	input     string
	pos       int  // offset of ch
	readPos   int  // offset after ch
	ch        rune // current character, 0 at EOF
	line      int  // line of ch (1-based)
	lineStart int  // offset of the first byte of the current line
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}
	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == ',':
		return single(TokenComma)
	case l.ch == '.':
		return single(TokenDot)
	case l.ch == ';':
		return single(TokenSemicolon)
	case l.ch == '"':
		return l.readString(pos)
	case isDigit(l.ch):
		return l.readNumber(pos)
	case isLetter(l.ch):
		return l.readIdentifier(pos)
	case isOperator(l.ch):
		return l.readOperator(pos)
	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !(l.ch == 0 && l.pos >= len(l.input)) {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readString(pos Position) Token {
	l.readChar() // opening quote
	start := l.pos
	for l.ch != '"' {
		if l.ch == 0 && l.pos >= len(l.input) {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		l.readChar()
	}
	lit := l.input[start:l.pos]
	l.readChar() // closing quote
	return Token{Type: TokenString, Literal: lit, Pos: pos}
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if t, ok := reservedWords[lit]; ok {
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

func (l *Lexer) readOperator(pos Position) Token {
	first := l.ch
	l.readChar()
	if l.ch == '=' && (first == '=' || first == '!' || first == '<' || first == '>') {
		l.readChar()
		return Token{Type: TokenOperator, Literal: string(first) + "=", Pos: pos}
	}
	return Token{Type: TokenOperator, Literal: string(first), Pos: pos}
}

// isLetter accepts any Unicode letter so that non-ASCII identifiers reach
// the resolver and are reported there with a position.
func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isOperator(ch rune) bool {
	switch ch {
	case '+', '-', '*', '/', '!', '=', '<', '>':
		return true
	}
	return false
}
