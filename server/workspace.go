// Package server provides a language server for glint sources. Open
// documents are resolved together against one global namespace, and the
// results back hover, completion, definition, references and diagnostics.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/glint/compiler"
	"github.com/chazu/glint/vm"
)

var log = commonlog.GetLogger("glint.server")

// ErrStopped is returned by Worker.Do after Stop.
var ErrStopped = errors.New("worker stopped")

// Document is one open source file and its latest resolution.
type Document struct {
	URI  string
	Text string
	Unit *compiler.Unit // nil when Err is set
	Err  error
}

// Candidate is one completion result.
type Candidate struct {
	Name   string
	Kind   compiler.RefKind
	Detail string
}

// Workspace holds the open documents and the VM they were resolved in.
// Every edit rebuilds the VM from scratch so globals removed from a
// document do not linger. A Workspace is not safe for concurrent use; the
// LSP server confines it to a Worker.
type Workspace struct {
	vmCfg vm.Config
	opts  compiler.Options

	docs     map[string]*Document
	vm       *vm.VM
	resolver *compiler.Resolver
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(vmCfg vm.Config, opts compiler.Options) (*Workspace, error) {
	w := &Workspace{
		vmCfg: vmCfg,
		opts:  opts,
		docs:  make(map[string]*Document),
	}
	if err := w.rebuild(); err != nil {
		return nil, err
	}
	return w, nil
}

// Open adds or replaces a document and re-resolves the workspace.
func (w *Workspace) Open(uri, text string) error {
	w.docs[uri] = &Document{URI: uri, Text: text}
	return w.rebuild()
}

// Change replaces the text of a document.
func (w *Workspace) Change(uri, text string) error {
	return w.Open(uri, text)
}

// Remove drops a document.
func (w *Workspace) Remove(uri string) error {
	if _, ok := w.docs[uri]; !ok {
		return nil
	}
	delete(w.docs, uri)
	return w.rebuild()
}

// Document returns the document for uri, or nil.
func (w *Workspace) Document(uri string) *Document {
	return w.docs[uri]
}

// URIs returns the open document URIs in resolution order.
func (w *Workspace) URIs() []string {
	uris := make([]string, 0, len(w.docs))
	for uri := range w.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// VM returns the VM of the latest rebuild.
func (w *Workspace) VM() *vm.VM { return w.vm }

// Close releases the VM.
func (w *Workspace) Close() error {
	if w.vm == nil {
		return nil
	}
	err := w.vm.Close()
	w.vm, w.resolver = nil, nil
	return err
}

// rebuild resolves every open document, in URI order, in a fresh VM.
// Resolution errors are stored on the document; only VM setup fails the
// rebuild.
func (w *Workspace) rebuild() error {
	if err := w.Close(); err != nil {
		log.Warningf("closing previous VM: %s", err)
	}
	v, err := vm.NewVM(w.vmCfg)
	if err != nil {
		return fmt.Errorf("workspace VM: %w", err)
	}
	w.vm = v
	w.resolver = compiler.NewResolver(v, w.opts)

	for _, uri := range w.URIs() {
		doc := w.docs[uri]
		doc.Unit, doc.Err = w.resolver.Resolve(uri, doc.Text)
		if doc.Err != nil {
			log.Debugf("%s: %s", uri, doc.Err)
		}
	}
	log.Debugf("rebuilt workspace: %d documents, %d globals", len(w.docs), len(v.GlobalNames()))
	return nil
}

// RefAt returns the identifier occurrence covering the 1-based line and
// column.
func (w *Workspace) RefAt(uri string, line, col int) (compiler.NameRef, bool) {
	doc := w.docs[uri]
	if doc == nil || doc.Unit == nil {
		return compiler.NameRef{}, false
	}
	for _, r := range doc.Unit.Refs {
		if r.Pos.Line == line && col >= r.Pos.Column && col < r.Pos.Column+len(r.Name) {
			return r, true
		}
	}
	return compiler.NameRef{}, false
}

// Describe renders a one-line description of a resolved occurrence.
func (w *Workspace) Describe(uri string, r compiler.NameRef) string {
	switch r.Kind {
	case compiler.RefGlobal:
		return fmt.Sprintf("global `%s`, slot %d", r.Name, r.Slot)
	case compiler.RefLocal:
		return fmt.Sprintf("local `%s`, ordinal %d in %s", r.Name, r.Slot, scopeName(r.Function))
	case compiler.RefUpvalue:
		owner := w.owner(uri, r)
		return fmt.Sprintf("upvalue `%s`, ordinal %d in %s (depth %d)", r.Name, r.Slot, owner, r.Depth)
	default:
		return fmt.Sprintf("`%s` is not defined", r.Name)
	}
}

// Complete returns names starting with prefix: globals first, in byte
// order, then locals declared in the document.
func (w *Workspace) Complete(uri, prefix string) []Candidate {
	var out []Candidate
	err := w.vm.Globals.Each(prefix, func(name string, slot int) bool {
		out = append(out, Candidate{
			Name:   name,
			Kind:   compiler.RefGlobal,
			Detail: fmt.Sprintf("global slot %d", slot),
		})
		return true
	})
	if err != nil {
		// Not a valid identifier prefix; nothing can match it.
		return nil
	}

	doc := w.docs[uri]
	if doc == nil || doc.Unit == nil {
		return out
	}
	seen := make(map[string]bool)
	for _, fn := range doc.Unit.Functions {
		for i, name := range fn.Locals {
			if !strings.HasPrefix(name, prefix) || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, Candidate{
				Name:   name,
				Kind:   compiler.RefLocal,
				Detail: fmt.Sprintf("local %d in %s", i+1, fn.Path),
			})
		}
	}
	return out
}

// Location is a document position of an occurrence.
type Location struct {
	URI string
	Ref compiler.NameRef
}

// target identifies the binding an occurrence resolves to.
type target struct {
	kind  compiler.RefKind
	uri   string // "" for globals
	owner string
	slot  int
}

func (w *Workspace) targetOf(uri string, r compiler.NameRef) (target, bool) {
	switch r.Kind {
	case compiler.RefGlobal:
		return target{kind: compiler.RefGlobal, slot: r.Slot}, true
	case compiler.RefLocal:
		return target{kind: compiler.RefLocal, uri: uri, owner: scopeName(r.Function), slot: r.Slot}, true
	case compiler.RefUpvalue:
		return target{kind: compiler.RefLocal, uri: uri, owner: w.owner(uri, r), slot: r.Slot}, true
	}
	return target{}, false
}

// owner returns the function whose local an upvalue refers to.
func (w *Workspace) owner(uri string, r compiler.NameRef) string {
	name := scopeName(r.Function)
	doc := w.docs[uri]
	if doc == nil || doc.Unit == nil {
		return name
	}
	parents := make(map[string]string, len(doc.Unit.Functions))
	for _, fn := range doc.Unit.Functions {
		parents[fn.Path] = fn.Parent
	}
	for i := 0; i < r.Depth; i++ {
		p, ok := parents[name]
		if !ok || p == "" {
			break
		}
		name = p
	}
	return name
}

// References returns every occurrence bound to the same variable as r,
// declarations included, in document order.
func (w *Workspace) References(uri string, r compiler.NameRef) []Location {
	want, ok := w.targetOf(uri, r)
	if !ok {
		return nil
	}
	var out []Location
	for _, u := range w.URIs() {
		doc := w.docs[u]
		if doc.Unit == nil {
			continue
		}
		if want.uri != "" && want.uri != u {
			continue
		}
		for _, ref := range doc.Unit.Refs {
			if got, ok := w.targetOf(u, ref); ok && got == want {
				out = append(out, Location{URI: u, Ref: ref})
			}
		}
	}
	return out
}

// Definition returns the first declaration of the variable r is bound to.
func (w *Workspace) Definition(uri string, r compiler.NameRef) (Location, bool) {
	for _, loc := range w.References(uri, r) {
		if loc.Ref.Decl {
			return loc, true
		}
	}
	return Location{}, false
}

func scopeName(fn string) string {
	if fn == "" {
		return compiler.ScriptName
	}
	return fn
}
