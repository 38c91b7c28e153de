package compiler

import "testing"

func TestLexerTokens(t *testing.T) {
	input := `var greeting = "hi"; // comment
fun add(a, b) { return a + b >= 1.5; }`

	want := []struct {
		typ TokenType
		lit string
	}{
		{TokenVar, "var"},
		{TokenIdentifier, "greeting"},
		{TokenOperator, "="},
		{TokenString, "hi"},
		{TokenSemicolon, ";"},
		{TokenFun, "fun"},
		{TokenIdentifier, "add"},
		{TokenLParen, "("},
		{TokenIdentifier, "a"},
		{TokenComma, ","},
		{TokenIdentifier, "b"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenReturn, "return"},
		{TokenIdentifier, "a"},
		{TokenOperator, "+"},
		{TokenIdentifier, "b"},
		{TokenOperator, ">="},
		{TokenNumber, "1.5"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	toks := NewLexer(input).Tokenize()
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Literal != w.lit {
			t.Errorf("token %d = %v, want %s(%q)", i, toks[i], w.typ, w.lit)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	toks := NewLexer("a\n  bb\n\tc").Tokenize()
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 2, Column: 3},
		{Offset: 8, Line: 3, Column: 2},
	}
	for i, w := range want {
		if toks[i].Pos != w {
			t.Errorf("token %d (%v) at %+v, want %+v", i, toks[i], toks[i].Pos, w)
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []string{
		`"unterminated`,
		`var x = @;`,
	}
	for _, input := range tests {
		toks := NewLexer(input).Tokenize()
		found := false
		for _, tok := range toks {
			if tok.Type == TokenError {
				found = true
			}
		}
		if !found {
			t.Errorf("no error token for %q: %v", input, toks)
		}
	}
}

func TestLexerNonASCIIIdentifier(t *testing.T) {
	toks := NewLexer("café").Tokenize()
	if toks[0].Type != TokenIdentifier || toks[0].Literal != "café" {
		t.Errorf("token = %v, want IDENTIFIER(café)", toks[0])
	}
}
