package vm

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/glint/trie"
)

var vmLog = commonlog.GetLogger("glint.vm")

// DefaultGlobalCapacity is the node capacity of the global name table when
// Config leaves it unset.
const DefaultGlobalCapacity = 4096

// Config sizes a VM.
type Config struct {
	// GlobalCapacity is the number of trie nodes available for global names.
	GlobalCapacity int
	// GrowGlobals lets the global table grow past GlobalCapacity.
	GrowGlobals bool
}

// ---------------------------------------------------------------------------
// VM: runtime shell owning the heap and the global namespace
// ---------------------------------------------------------------------------

// VM owns the object heap and the global name table. Global slots are
// numbered from 1 in declaration order; the first declaration of a name
// fixes its slot.
type VM struct {
	Heap    *Heap
	Globals *trie.GlobalTable

	names  []string // slot-1 -> name
	closed bool
}

// NewVM creates a VM with an empty heap and global table.
func NewVM(cfg Config) (*VM, error) {
	capacity := cfg.GlobalCapacity
	if capacity == 0 {
		capacity = DefaultGlobalCapacity
	}
	var opts []trie.Option
	if cfg.GrowGlobals {
		opts = append(opts, trie.Growable())
	}
	globals, err := trie.NewGlobalTable(capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("global table: %w", err)
	}
	vmLog.Debugf("vm created: global capacity %d, grow %v", capacity, cfg.GrowGlobals)
	return &VM{
		Heap:    NewHeap(),
		Globals: globals,
	}, nil
}

// DeclareGlobal returns the slot for name, assigning the next free slot if
// name is new. created reports whether this call assigned it.
func (v *VM) DeclareGlobal(name string) (slot int, created bool, err error) {
	next := len(v.names) + 1
	slot, err = v.Globals.Insert(name, next)
	if err != nil {
		return 0, false, err
	}
	if slot != next {
		return slot, false, nil
	}
	v.names = append(v.names, name)
	return slot, true, nil
}

// GlobalSlot returns the slot of a declared global.
func (v *VM) GlobalSlot(name string) (int, bool, error) {
	slot, err := v.Globals.Query(name)
	if err != nil {
		return 0, false, err
	}
	if slot <= 0 {
		return 0, false, nil
	}
	return slot, true, nil
}

// GlobalName returns the name bound to slot, or "" if slot is unused.
func (v *VM) GlobalName(slot int) string {
	if slot < 1 || slot > len(v.names) {
		return ""
	}
	return v.names[slot-1]
}

// GlobalNames returns declared globals in slot order.
func (v *VM) GlobalNames() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Close releases the global table and every heap object. Calling Close
// twice returns trie.ErrNotInitialized.
func (v *VM) Close() error {
	if v.closed {
		return trie.ErrNotInitialized
	}
	v.closed = true
	n := v.Heap.Release()
	vmLog.Debugf("vm closed: released %d objects", n)
	return v.Globals.Free()
}
