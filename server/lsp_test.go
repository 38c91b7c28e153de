package server

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/glint/compiler"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "counter + step"
	pos := protocol.Position{Line: 0, Character: 14}
	prefix := extractPrefix(text, pos)
	if prefix != "step" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "step")
	}
}

func TestExtractPrefix_AtStart(t *testing.T) {
	text := "cou"
	pos := protocol.Position{Line: 0, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "cou" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "cou")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "first line\nsecond line\ncou"
	pos := protocol.Position{Line: 2, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "cou" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "cou")
	}
}

func TestExtractPrefix_AfterSpace(t *testing.T) {
	text := "var x = counter"
	pos := protocol.Position{Line: 0, Character: 15}
	prefix := extractPrefix(text, pos)
	if prefix != "counter" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "counter")
	}
}

func TestExtractPrefix_StopsAtPunctuation(t *testing.T) {
	text := "print obj.fie"
	pos := protocol.Position{Line: 0, Character: 13}
	prefix := extractPrefix(text, pos)
	if prefix != "fie" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "fie")
	}
}

func TestExtractPrefix_StopsAtMultibyte(t *testing.T) {
	// U+00EA is C3 AA in UTF-8; as single bytes both read as Latin-1 letters.
	text := "fêt"
	pos := protocol.Position{Line: 0, Character: uint32(len(text))}
	if prefix := extractPrefix(text, pos); prefix != "t" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "t")
	}
	if word := extractWord("x µs", protocol.Position{Line: 0, Character: 4}); word != "s" {
		t.Errorf("extractWord = %q, want %q", word, "s")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

// ---------------------------------------------------------------------------
// extractWord
// ---------------------------------------------------------------------------

func TestExtractWord_SimpleWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_AtEnd(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_AtSpace(t *testing.T) {
	text := "hello world"
	// Position at the space between words
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	// Cursor at end of "hello" (char 5 is the space), so it should find "hello"
	// because start walks back from col=5, and line[4]='o' is a letter
	if word != "hello" {
		t.Errorf("extractWord at space = %q, want %q", word, "hello")
	}
}

func TestExtractWord_SecondWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 8}
	word := extractWord(text, pos)
	if word != "world" {
		t.Errorf("extractWord = %q, want %q", word, "world")
	}
}

func TestExtractWord_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord = %q, want empty string", word)
	}
}

func TestExtractWord_MultiLine(t *testing.T) {
	text := "first\ncounter"
	pos := protocol.Position{Line: 1, Character: 3}
	word := extractWord(text, pos)
	if word != "counter" {
		t.Errorf("extractWord = %q, want %q", word, "counter")
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	text := "my_var"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "my_var" {
		t.Errorf("extractWord = %q, want %q", word, "my_var")
	}
}

func TestExtractWord_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord beyond doc = %q, want empty string", word)
	}
}

// ---------------------------------------------------------------------------
// boolPtr
// ---------------------------------------------------------------------------

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics and conversions
// ---------------------------------------------------------------------------

func TestDiagnose_SyntaxError(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Open("file:///bad.gl", "var = ;"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	diags := diagnose(ws.Document("file:///bad.gl"))
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
	if d.Range.Start.Line != 0 || d.Range.Start.Character != 4 {
		t.Errorf("range start = %+v, want 0:4", d.Range.Start)
	}
}

func TestDiagnose_UndefinedName(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.Open("file:///a.gl", sample); err != nil {
		t.Fatalf("Open: %v", err)
	}

	diags := diagnose(ws.Document("file:///a.gl"))
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("severity = %v, want warning", d.Severity)
	}
	if d.Message != `undefined name "missing"` {
		t.Errorf("message = %q", d.Message)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 6, Character: 6},
		End:   protocol.Position{Line: 6, Character: 13},
	}
	if d.Range != want {
		t.Errorf("range = %+v, want %+v", d.Range, want)
	}
}

func TestDiagnoseAll_EveryDocument(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Open("file:///b.gl", "print shared;")
	ws.Open("file:///a.gl", "var shared;")

	all := diagnoseAll(ws)
	if len(all) != 2 {
		t.Fatalf("got %d entries, want 2", len(all))
	}
	if all[0].URI != "file:///a.gl" || all[1].URI != "file:///b.gl" {
		t.Errorf("URIs = %s, %s", all[0].URI, all[1].URI)
	}
	for _, p := range all {
		if len(p.Diagnostics) != 0 {
			t.Errorf("%s: unexpected diagnostics %+v", p.URI, p.Diagnostics)
		}
	}
}

func TestCompletionItems_Limit(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 150; i++ {
		cands = append(cands, Candidate{Name: "x", Kind: compiler.RefLocal})
	}
	if got := len(completionItems(cands)); got != 100 {
		t.Errorf("got %d items, want 100", got)
	}
}

func TestCompletionItems_Kinds(t *testing.T) {
	items := completionItems([]Candidate{
		{Name: "g", Kind: compiler.RefGlobal, Detail: "global slot 1"},
		{Name: "l", Kind: compiler.RefLocal},
	})
	if *items[0].Kind != protocol.CompletionItemKindField {
		t.Errorf("global kind = %v", *items[0].Kind)
	}
	if *items[1].Kind != protocol.CompletionItemKindVariable {
		t.Errorf("local kind = %v", *items[1].Kind)
	}
	if *items[0].Detail != "global slot 1" {
		t.Errorf("detail = %q", *items[0].Detail)
	}
}

func TestPositionConversion(t *testing.T) {
	line, col := fromPosition(protocol.Position{Line: 2, Character: 4})
	if line != 3 || col != 5 {
		t.Errorf("fromPosition = %d:%d, want 3:5", line, col)
	}
	p := toPosition(compiler.Position{Line: 3, Column: 5})
	if p.Line != 2 || p.Character != 4 {
		t.Errorf("toPosition = %+v, want 2:4", p)
	}
	if p := toPosition(compiler.Position{}); p.Line != 0 || p.Character != 0 {
		t.Errorf("zero position = %+v", p)
	}
}

func TestHoverGlobal_DocumentWithError(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.Open("file:///a.gl", "var shared;")
	ws.Open("file:///b.gl", "shared }")

	if ws.Document("file:///b.gl").Err == nil {
		t.Fatal("expected b.gl to fail")
	}
	h, ok := hoverGlobal(ws, "file:///b.gl", protocol.Position{Line: 0, Character: 2}).(*protocol.Hover)
	if !ok {
		t.Fatal("expected a hover")
	}
	content := h.Contents.(protocol.MarkupContent)
	if content.Value != "global `shared`, slot 1" {
		t.Errorf("hover = %q", content.Value)
	}

	if got := hoverGlobal(ws, "file:///b.gl", protocol.Position{Line: 0, Character: 7}); got != nil {
		t.Errorf("hover on brace = %v, want nil", got)
	}
}
