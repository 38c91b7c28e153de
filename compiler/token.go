package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.14
	TokenString     // "hello"
	TokenIdentifier // foo, Bar, _tmp

	// Delimiters and operators
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenDot       // .
	TokenSemicolon // ;
	TokenOperator  // + - * / ! = < > == != <= >=

	// Keywords
	TokenVar
	TokenFun
	TokenReturn
	TokenPrint
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenAnd
	TokenOr
	TokenNil
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenDot:        ".",
	TokenSemicolon:  ";",
	TokenOperator:   "OPERATOR",
	TokenVar:        "var",
	TokenFun:        "fun",
	TokenReturn:     "return",
	TokenPrint:      "print",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenAnd:        "and",
	TokenOr:         "or",
	TokenNil:        "nil",
	TokenTrue:       "true",
	TokenFalse:      "false",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text. Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; string tokens hold the unquoted contents
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"var":    TokenVar,
	"fun":    TokenFun,
	"return": TokenReturn,
	"print":  TokenPrint,
	"if":     TokenIf,
	"else":   TokenElse,
	"while":  TokenWhile,
	"for":    TokenFor,
	"and":    TokenAnd,
	"or":     TokenOr,
	"nil":    TokenNil,
	"true":   TokenTrue,
	"false":  TokenFalse,
}
