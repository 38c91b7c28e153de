package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/glint/compiler"
)

const lspName = "glint-lsp"

// LspServer bridges LSP editor features to a Workspace via Worker.
type LspServer struct {
	worker *Worker

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server over ws. The server owns ws from here on.
func NewLSP(ws *Workspace) *LspServer {
	s := &LspServer{
		worker:  NewWorker(ws),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.worker.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("glint LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	text := params.TextDocument.Text
	return s.update(ctx, func(ws *Workspace) error { return ws.Open(uri, text) })
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	return s.update(ctx, func(ws *Workspace) error { return ws.Change(uri, whole.Text) })
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	err := s.update(ctx, func(ws *Workspace) error { return ws.Remove(string(uri)) })

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return err
}

// update applies an edit and republishes diagnostics for every open
// document, since a global added or removed in one file changes the
// resolution of the others.
func (s *LspServer) update(ctx *glsp.Context, edit func(*Workspace) error) error {
	result, err := s.worker.Do(func(ws *Workspace) any {
		if err := edit(ws); err != nil {
			return err
		}
		return diagnoseAll(ws)
	})
	if err != nil {
		return err
	}
	if err, ok := result.(error); ok {
		return err
	}
	for _, params := range result.([]protocol.PublishDiagnosticsParams) {
		go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, params)
	}
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := string(params.TextDocument.URI)
	pos := params.Position

	result, err := s.worker.Do(func(ws *Workspace) any {
		doc := ws.Document(uri)
		if doc == nil {
			return nil
		}
		prefix := extractPrefix(doc.Text, pos)
		if prefix == "" {
			return nil
		}
		return completionItems(ws.Complete(uri, prefix))
	})
	if err != nil || result == nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := string(params.TextDocument.URI)
	line, col := fromPosition(params.Position)

	result, err := s.worker.Do(func(ws *Workspace) any {
		ref, ok := ws.RefAt(uri, line, col)
		if !ok {
			return hoverGlobal(ws, uri, params.Position)
		}
		rng := refRange(ref)
		return &protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: ws.Describe(uri, ref),
			},
			Range: &rng,
		}
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := string(params.TextDocument.URI)
	line, col := fromPosition(params.Position)

	result, err := s.worker.Do(func(ws *Workspace) any {
		ref, ok := ws.RefAt(uri, line, col)
		if !ok {
			return nil
		}
		loc, ok := ws.Definition(uri, ref)
		if !ok {
			return nil
		}
		return toLocation(loc)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := string(params.TextDocument.URI)
	line, col := fromPosition(params.Position)
	includeDecl := params.Context.IncludeDeclaration

	result, err := s.worker.Do(func(ws *Workspace) any {
		ref, ok := ws.RefAt(uri, line, col)
		if !ok {
			return nil
		}
		var out []protocol.Location
		for _, loc := range ws.References(uri, ref) {
			if loc.Ref.Decl && !includeDecl {
				continue
			}
			out = append(out, toLocation(loc))
		}
		return out
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.([]protocol.Location), nil
}

// hoverGlobal describes the word under the cursor when the document has
// no resolution, as happens while it has a syntax error.
func hoverGlobal(ws *Workspace, uri string, pos protocol.Position) any {
	doc := ws.Document(uri)
	if doc == nil {
		return nil
	}
	word := extractWord(doc.Text, pos)
	if word == "" {
		return nil
	}
	slot, ok, err := ws.VM().GlobalSlot(word)
	if err != nil || !ok {
		return nil
	}
	ref := compiler.NameRef{Name: word, Kind: compiler.RefGlobal, Slot: slot}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: ws.Describe(uri, ref),
		},
	}
}

// --- Diagnostics ---

func diagnoseAll(ws *Workspace) []protocol.PublishDiagnosticsParams {
	uris := ws.URIs()
	out := make([]protocol.PublishDiagnosticsParams, 0, len(uris))
	for _, uri := range uris {
		out = append(out, protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentUri(uri),
			Diagnostics: diagnose(ws.Document(uri)),
		})
	}
	return out
}

// diagnose reports the resolution error of doc, or a warning per
// undefined name.
func diagnose(doc *Document) []protocol.Diagnostic {
	source := lspName
	diagnostics := []protocol.Diagnostic{}

	if doc.Err != nil {
		severity := protocol.DiagnosticSeverityError
		var rng protocol.Range
		msg := doc.Err.Error()
		var cerr *compiler.Error
		if errors.As(doc.Err, &cerr) {
			start := toPosition(cerr.Pos)
			rng = protocol.Range{Start: start, End: protocol.Position{Line: start.Line, Character: start.Character + 1}}
			msg = cerr.Msg
			if cerr.Err != nil {
				msg = fmt.Sprintf("%s: %s", cerr.Msg, cerr.Err)
			}
		}
		return append(diagnostics, protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}

	for _, ref := range doc.Unit.Unresolved() {
		severity := protocol.DiagnosticSeverityWarning
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    refRange(ref),
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("undefined name %q", ref.Name),
		})
	}
	return diagnostics
}

// --- Conversions ---

func completionItems(cands []Candidate) []protocol.CompletionItem {
	const maxItems = 100
	if len(cands) > maxItems {
		cands = cands[:maxItems]
	}
	items := make([]protocol.CompletionItem, 0, len(cands))
	for _, c := range cands {
		kind := protocol.CompletionItemKindVariable
		if c.Kind == compiler.RefGlobal {
			kind = protocol.CompletionItemKindField
		}
		detail := c.Detail
		name := c.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}
	return items
}

// fromPosition converts a 0-based LSP position to a 1-based line and column.
func fromPosition(pos protocol.Position) (line, col int) {
	return int(pos.Line) + 1, int(pos.Character) + 1
}

func toPosition(pos compiler.Position) protocol.Position {
	var p protocol.Position
	if pos.Line > 0 {
		p.Line = protocol.UInteger(pos.Line - 1)
	}
	if pos.Column > 0 {
		p.Character = protocol.UInteger(pos.Column - 1)
	}
	return p
}

func refRange(ref compiler.NameRef) protocol.Range {
	start := toPosition(ref.Pos)
	return protocol.Range{
		Start: start,
		End:   protocol.Position{Line: start.Line, Character: start.Character + protocol.UInteger(len(ref.Name))},
	}
}

func toLocation(loc Location) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentUri(loc.URI),
		Range: refRange(loc.Ref),
	}
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	if start == col {
		return ""
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}
	if start == end {
		return ""
	}
	return line[start:end]
}

// isIdentByte accepts ASCII identifier bytes only; names cannot hold
// anything else, and a byte of a multibyte character is never a letter.
func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
