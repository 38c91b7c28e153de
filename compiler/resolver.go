package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/glint/trie"
	"github.com/chazu/glint/vm"
)

var log = commonlog.GetLogger("glint.compiler")

// ScriptName names the implicit top-level function.
const ScriptName = "<script>"

// DefaultLocalCapacity is the node capacity of each function's local table
// when Options leaves it unset.
const DefaultLocalCapacity = 1024

// Options configures a Resolver.
type Options struct {
	// LocalCapacity is the number of trie nodes per function scope.
	LocalCapacity int
	// GrowLocals lets local tables grow past LocalCapacity.
	GrowLocals bool
}

// ---------------------------------------------------------------------------
// Resolver: name resolution over the global and local tries
// ---------------------------------------------------------------------------

// Resolver resolves identifiers in source files against a VM's global
// namespace. Globals persist across Resolve calls; each function body gets
// its own local table, freed when the body closes.
//
// String literals and property names are materialized on the VM heap. The
// heap never deduplicates, so the resolver keeps its own content cache and
// materializes each distinct text once.
type Resolver struct {
	vm   *vm.VM
	opts Options

	pool      map[string]int
	constants []*vm.StringObject
}

// NewResolver creates a resolver bound to v.
func NewResolver(v *vm.VM, opts Options) *Resolver {
	if opts.LocalCapacity == 0 {
		opts.LocalCapacity = DefaultLocalCapacity
	}
	return &Resolver{
		vm:   v,
		opts: opts,
		pool: make(map[string]int),
	}
}

// VM returns the VM the resolver declares globals in.
func (r *Resolver) VM() *vm.VM { return r.vm }

// Constants returns every constant materialized so far, by index.
func (r *Resolver) Constants() []*vm.StringObject {
	out := make([]*vm.StringObject, len(r.constants))
	copy(out, r.constants)
	return out
}

// scope is one function body being resolved. The table assigns ordinals
// for the whole body; blocks tracks which names each open block declared,
// and live counts the open blocks declaring a name.
type scope struct {
	fn        *Function
	table     *trie.LocalTable
	bodyDepth int // brace depth of the body; 0 for the script
	blocks    []map[string]bool
	live      map[string]int
}

func (s *scope) pushBlock() {
	s.blocks = append(s.blocks, make(map[string]bool))
}

func (s *scope) popBlock() {
	for name := range s.blocks[len(s.blocks)-1] {
		s.live[name]--
	}
	s.blocks = s.blocks[:len(s.blocks)-1]
}

func (s *scope) bind(name string) {
	b := s.blocks[len(s.blocks)-1]
	if !b[name] {
		b[name] = true
		s.live[name]++
	}
}

// pass holds the state of one Resolve call.
type pass struct {
	r       *Resolver
	unit    *Unit
	toks    []Token
	i       int
	depth   int // current brace depth
	scopes  []*scope
	seen    map[int]bool // constants already listed in unit
	pending map[string]int
	hoisted []Token // new globals in slot order
	paths   map[string]int
}

// Resolve resolves every identifier in src. file is used in errors and the
// listing only. Top-level declarations are hoisted but only declared in the
// VM once the whole file resolves, so a failed Resolve leaves the global
// namespace untouched. The exception is a capacity failure while declaring,
// which can leave the earlier names of the file declared.
func (r *Resolver) Resolve(file, src string) (*Unit, error) {
	toks := NewLexer(src).Tokenize()
	for _, t := range toks {
		if t.Type == TokenError {
			return nil, &Error{File: file, Pos: t.Pos, Msg: t.Literal, Err: ErrSyntax}
		}
	}

	p := &pass{
		r:       r,
		unit:    &Unit{File: file},
		toks:    toks,
		seen:    make(map[int]bool),
		pending: make(map[string]int),
		paths:   make(map[string]int),
	}
	if err := p.hoistGlobals(); err != nil {
		return nil, err
	}
	if err := p.run(); err != nil {
		p.abandon()
		return nil, err
	}
	if err := p.commitGlobals(); err != nil {
		return nil, err
	}
	log.Debugf("resolved %s: %d refs, %d functions, %d new globals",
		file, len(p.unit.Refs), len(p.unit.Functions), len(p.unit.Globals))
	return p.unit, nil
}

// hoistGlobals assigns slots to every top-level var and fun before
// resolution so functions may refer to globals declared later in the file.
// New names get the slots the VM will hand out when they are committed.
func (p *pass) hoistGlobals() error {
	next := len(p.r.vm.GlobalNames()) + 1
	depth := 0
	for i, t := range p.toks {
		switch t.Type {
		case TokenLBrace:
			depth++
		case TokenRBrace:
			depth--
		case TokenVar, TokenFun:
			if depth != 0 || i+1 >= len(p.toks) || p.toks[i+1].Type != TokenIdentifier {
				continue
			}
			name := p.toks[i+1]
			if _, ok := p.pending[name.Literal]; ok {
				continue
			}
			_, ok, err := p.r.vm.GlobalSlot(name.Literal)
			if err != nil {
				return p.errorAt(name.Pos, fmt.Sprintf("declare global %q", name.Literal), err)
			}
			if ok {
				continue
			}
			p.pending[name.Literal] = next
			p.hoisted = append(p.hoisted, name)
			p.unit.Globals = append(p.unit.Globals, name.Literal)
			next++
		}
	}
	return nil
}

// commitGlobals declares the hoisted globals in the VM.
func (p *pass) commitGlobals() error {
	for _, name := range p.hoisted {
		slot, _, err := p.r.vm.DeclareGlobal(name.Literal)
		if err != nil {
			return p.errorAt(name.Pos, fmt.Sprintf("declare global %q", name.Literal), err)
		}
		if slot != p.pending[name.Literal] {
			return p.errorAt(name.Pos, fmt.Sprintf("global %q got slot %d, want %d",
				name.Literal, slot, p.pending[name.Literal]), nil)
		}
	}
	return nil
}

// globalSlot looks name up among this file's hoisted globals, then in the VM.
func (p *pass) globalSlot(name string) (int, bool, error) {
	if slot, ok := p.pending[name]; ok {
		return slot, true, nil
	}
	return p.r.vm.GlobalSlot(name)
}

func (p *pass) run() error {
	if err := p.open(ScriptName, Position{Line: 1, Column: 1}, 0); err != nil {
		return err
	}
	for p.i < len(p.toks) {
		t := p.toks[p.i]
		var err error
		switch t.Type {
		case TokenEOF:
			if p.depth != 0 {
				return p.syntaxAt(t.Pos, "unexpected end of input: missing '}'")
			}
			return p.close()
		case TokenVar:
			err = p.varDecl()
		case TokenFun:
			err = p.funDecl()
		case TokenLBrace:
			p.depth++
			p.top().pushBlock()
		case TokenRBrace:
			err = p.rbrace(t)
		case TokenDot:
			if p.peek(1).Type == TokenIdentifier {
				p.i++
				p.constant(p.toks[p.i].Literal)
			}
		case TokenString:
			p.constant(t.Literal)
		case TokenIdentifier:
			err = p.use(t)
		}
		if err != nil {
			return err
		}
		p.i++
	}
	return nil
}

func (p *pass) peek(n int) Token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *pass) expect(n int, tt TokenType, what string) (Token, error) {
	t := p.peek(n)
	if t.Type != tt {
		return t, p.syntaxAt(t.Pos, fmt.Sprintf("expected %s, got %s", what, t))
	}
	return t, nil
}

func (p *pass) top() *scope { return p.scopes[len(p.scopes)-1] }

// isLocalContext reports whether a declaration here creates a local.
func (p *pass) isLocalContext() bool {
	return p.depth > 0 || len(p.scopes) > 1
}

func (p *pass) varDecl() error {
	name, err := p.expect(1, TokenIdentifier, "variable name")
	if err != nil {
		return err
	}
	p.i++
	return p.declare(name)
}

func (p *pass) funDecl() error {
	name, err := p.expect(1, TokenIdentifier, "function name")
	if err != nil {
		return err
	}
	if err := p.declare(name); err != nil {
		return err
	}
	if _, err := p.expect(2, TokenLParen, "'('"); err != nil {
		return err
	}
	p.i += 3
	if err := p.open(name.Literal, name.Pos, p.depth+1); err != nil {
		return err
	}

	// Parameters
	fn := p.top().fn
	if p.peek(0).Type != TokenRParen {
		for {
			param, err := p.expect(0, TokenIdentifier, "parameter name")
			if err != nil {
				return err
			}
			if err := p.declare(param); err != nil {
				return err
			}
			fn.Params++
			p.i++
			if p.peek(0).Type != TokenComma {
				break
			}
			p.i++
		}
	}
	if _, err := p.expect(0, TokenRParen, "')'"); err != nil {
		return err
	}
	if _, err := p.expect(1, TokenLBrace, "'{'"); err != nil {
		return err
	}
	p.i++
	p.depth++
	return nil
}

func (p *pass) rbrace(t Token) error {
	if p.depth == 0 {
		return p.syntaxAt(t.Pos, "unmatched '}'")
	}
	if len(p.scopes) > 1 && p.top().bodyDepth == p.depth {
		if err := p.close(); err != nil {
			return err
		}
	} else {
		p.top().popBlock()
	}
	p.depth--
	return nil
}

// declare binds name in the current scope and records the declaration.
func (p *pass) declare(name Token) error {
	ref := NameRef{Name: name.Literal, Decl: true, Function: p.functionName(), Pos: name.Pos}
	if p.isLocalContext() {
		s := p.top()
		ord, err := s.table.Insert(name.Literal)
		if err != nil {
			return p.errorAt(name.Pos, fmt.Sprintf("declare local %q", name.Literal), err)
		}
		s.bind(name.Literal)
		ref.Kind, ref.Slot = RefLocal, ord
	} else {
		slot, ok, err := p.globalSlot(name.Literal)
		if err != nil {
			return p.errorAt(name.Pos, fmt.Sprintf("declare global %q", name.Literal), err)
		}
		if !ok {
			return p.errorAt(name.Pos, fmt.Sprintf("global %q was not hoisted", name.Literal), nil)
		}
		ref.Kind, ref.Slot = RefGlobal, slot
	}
	p.unit.Refs = append(p.unit.Refs, ref)
	return nil
}

// use resolves a reference: innermost function first, then enclosing
// functions, then globals. A local only matches while a block declaring it
// is still open.
func (p *pass) use(t Token) error {
	ref := NameRef{Name: t.Literal, Function: p.functionName(), Pos: t.Pos}
	top := len(p.scopes) - 1
	for d := top; d >= 0; d-- {
		if p.scopes[d].live[t.Literal] == 0 {
			continue
		}
		table := p.scopes[d].table
		node, err := table.Query(t.Literal)
		if err != nil {
			return p.errorAt(t.Pos, fmt.Sprintf("resolve %q", t.Literal), err)
		}
		if node.IsRoot() {
			continue
		}
		ord, err := table.Ordinal(node)
		if err != nil {
			return p.errorAt(t.Pos, fmt.Sprintf("resolve %q", t.Literal), err)
		}
		if ord == 0 {
			continue
		}
		ref.Slot = ord
		if d == top {
			ref.Kind = RefLocal
		} else {
			ref.Kind, ref.Depth = RefUpvalue, top-d
		}
		p.unit.Refs = append(p.unit.Refs, ref)
		return nil
	}

	slot, ok, err := p.globalSlot(t.Literal)
	if err != nil {
		return p.errorAt(t.Pos, fmt.Sprintf("resolve %q", t.Literal), err)
	}
	if ok {
		ref.Kind, ref.Slot = RefGlobal, slot
	}
	p.unit.Refs = append(p.unit.Refs, ref)
	return nil
}

func (p *pass) constant(text string) {
	idx, ok := p.r.pool[text]
	if !ok {
		idx = len(p.r.constants)
		p.r.constants = append(p.r.constants, p.r.vm.Heap.CopyGoString(text))
		p.r.pool[text] = idx
	}
	if !p.seen[idx] {
		p.seen[idx] = true
		p.unit.Constants = append(p.unit.Constants, Constant{Index: idx, Object: p.r.constants[idx]})
	}
}

func (p *pass) functionName() string {
	if len(p.scopes) <= 1 {
		return ""
	}
	return p.top().fn.Path
}

// open pushes a function scope with a fresh local table.
func (p *pass) open(name string, pos Position, bodyDepth int) error {
	var opts []trie.Option
	if p.r.opts.GrowLocals {
		opts = append(opts, trie.Growable())
	}
	table, err := trie.NewLocalTable(p.r.opts.LocalCapacity, opts...)
	if err != nil {
		return p.errorAt(pos, "local table", err)
	}
	fn := &Function{Name: name, Path: name, Pos: pos}
	if len(p.scopes) > 0 {
		parent := p.top().fn
		fn.Parent = parent.Path
		if len(p.scopes) > 1 {
			fn.Path = parent.Path + "." + name
		}
	}
	fn.Path = p.uniquePath(fn.Path)
	s := &scope{fn: fn, table: table, bodyDepth: bodyDepth, live: make(map[string]int)}
	s.pushBlock()
	p.scopes = append(p.scopes, s)
	return nil
}

// uniquePath suffixes path with "#n" when an earlier function of the file
// already took it, as happens when a function is redeclared.
func (p *pass) uniquePath(path string) string {
	n := p.paths[path] + 1
	p.paths[path] = n
	if n == 1 {
		return path
	}
	return fmt.Sprintf("%s#%d", path, n)
}

// close pops the innermost scope, recording its locals in ordinal order.
func (p *pass) close() error {
	s := p.top()
	s.fn.Locals = make([]string, s.table.Count())
	err := s.table.Each("", func(name string, ord int) bool {
		s.fn.Locals[ord-1] = name
		return true
	})
	if err != nil {
		return err
	}
	if err := s.table.Free(); err != nil {
		return err
	}
	p.scopes = p.scopes[:len(p.scopes)-1]
	p.unit.Functions = append(p.unit.Functions, s.fn)
	return nil
}

// abandon frees the tables of scopes left open by an error.
func (p *pass) abandon() {
	for _, s := range p.scopes {
		if err := s.table.Free(); err != nil {
			log.Warningf("freeing locals of %s: %s", s.fn.Path, err)
		}
	}
	p.scopes = nil
}

func (p *pass) syntaxAt(pos Position, msg string) error {
	return &Error{File: p.unit.File, Pos: pos, Msg: msg, Err: ErrSyntax}
}

func (p *pass) errorAt(pos Position, msg string, err error) error {
	return &Error{File: p.unit.File, Pos: pos, Msg: msg, Err: err}
}
