package compiler

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chazu/glint/vm"
)

// RefKind says how an identifier occurrence was resolved.
type RefKind int

const (
	RefUnresolved RefKind = iota
	RefGlobal
	RefLocal
	RefUpvalue // local of an enclosing function
)

func (k RefKind) String() string {
	switch k {
	case RefGlobal:
		return "global"
	case RefLocal:
		return "local"
	case RefUpvalue:
		return "upvalue"
	default:
		return "unresolved"
	}
}

// NameRef is one identifier occurrence and its resolution. Slot is the
// global slot for RefGlobal and the local ordinal for RefLocal and
// RefUpvalue. Depth counts enclosing functions crossed by an upvalue.
type NameRef struct {
	Name     string
	Kind     RefKind
	Slot     int
	Depth    int
	Decl     bool
	Function string // Path of the enclosing function, "" at top level
	Pos      Position
}

// Function records the locals of one function body, in ordinal order.
// Path is unique within a unit: nested functions are qualified by their
// parent's path ("outer.inner") and redeclarations get a "#n" suffix.
type Function struct {
	Name   string
	Path   string
	Parent string // Path of the enclosing function
	Pos    Position
	Params int
	Locals []string // Locals[i] has ordinal i+1
}

// Constant is a string literal or property name materialized on the heap.
type Constant struct {
	Index  int
	Object *vm.StringObject
}

// Unit is the result of resolving one source file.
type Unit struct {
	File      string
	Globals   []string // global names declared by this file, slot order
	Functions []*Function
	Refs      []NameRef
	Constants []Constant
}

// Unresolved returns occurrences that resolved to nothing.
func (u *Unit) Unresolved() []NameRef {
	var out []NameRef
	for _, r := range u.Refs {
		if r.Kind == RefUnresolved {
			out = append(out, r)
		}
	}
	return out
}

// Listing writes a human-readable resolution listing.
func (u *Unit) Listing(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "== %s ==\n", u.File)
	for _, r := range u.Refs {
		fn := r.Function
		if fn == "" {
			fn = "<script>"
		}
		op := "use"
		if r.Decl {
			op = "def"
		}
		switch r.Kind {
		case RefUpvalue:
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t(depth %d)\n", r.Pos, fn, op, r.Name, r.Slot, r.Depth)
		case RefUnresolved:
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\t%s\n", r.Pos, fn, op, r.Name, r.Kind)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Pos, fn, op, r.Name, r.Slot, r.Kind)
		}
	}
	for _, c := range u.Constants {
		fmt.Fprintf(tw, "const\t%d\t%q\n", c.Index, vm.Render(c.Object))
	}
	return tw.Flush()
}
