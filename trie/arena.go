// Package trie implements fixed-capacity character tries that map identifier
// text to stable integer handles.
//
// Two tables are built over one node arena: GlobalTable stores a
// caller-chosen value per key (first registration wins), and LocalTable
// assigns dense ordinals in first-seen order and exposes node identity for
// scope-membership checks. The two are distinct types so their query
// conventions cannot be mixed up.
//
// Keys are restricted to 7-bit ASCII without NUL. Tables are not safe for
// concurrent use; confine each table to one goroutine or guard it externally.
package trie

import (
	"sync/atomic"
)

// Alphabet is the number of children per node.
const Alphabet = 128

// NodeID indexes a node inside one arena. 0 is the root.
type NodeID uint32

// Root is the implicit root node.
const Root NodeID = 0

type node struct {
	next [Alphabet]NodeID
}

var arenaSerial atomic.Uint64

// ---------------------------------------------------------------------------
// Ref: typed node handle
// ---------------------------------------------------------------------------

// Ref identifies a node in a specific arena. Refs are only valid for the
// table that produced them.
type Ref struct {
	arena uint64
	id    NodeID
}

// ID returns the raw node index.
func (r Ref) ID() NodeID { return r.id }

// IsRoot reports whether r points at the root node.
func (r Ref) IsRoot() bool { return r.id == Root }

// ---------------------------------------------------------------------------
// arena: shared node store
// ---------------------------------------------------------------------------

// arena is the node store shared by both table types. endpoint[i] is the
// value attached to node i; 0 means "not an endpoint".
type arena struct {
	serial   uint64
	nodes    []node
	endpoint []int
	nodeCnt  NodeID // highest allocated node index
	grow     bool
	freed    bool
}

func newArena(capacity int, o options) (*arena, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &arena{
		serial:   arenaSerial.Add(1),
		nodes:    make([]node, capacity),
		endpoint: make([]int, capacity),
		grow:     o.grow,
	}, nil
}

// len returns the number of allocated nodes, root included.
func (a *arena) len() int { return int(a.nodeCnt) + 1 }

// cap returns the number of node slots in the backing store.
func (a *arena) cap() int { return len(a.nodes) }

func (a *arena) check() error {
	if a == nil || a.freed {
		return ErrNotInitialized
	}
	return nil
}

func (a *arena) ref(id NodeID) Ref { return Ref{arena: a.serial, id: id} }

func (a *arena) resolve(r Ref) (NodeID, error) {
	if err := a.check(); err != nil {
		return 0, err
	}
	if r.arena != a.serial || int(r.id) > int(a.nodeCnt) {
		return 0, ErrForeignRef
	}
	return r.id, nil
}

// validate rejects keys containing bytes outside 1..127.
func validate(text string) error {
	for i := 0; i < len(text); i++ {
		if c := text[i]; c == 0 || c >= Alphabet {
			return &ByteError{Pos: i, Byte: c}
		}
	}
	return nil
}

// walk follows text from the root. It returns the last node reached and the
// number of bytes consumed; consumed < len(text) means the path is absent.
func (a *arena) walk(text string) (NodeID, int) {
	u := Root
	for i := 0; i < len(text); i++ {
		v := a.nodes[u].next[text[i]]
		if v == 0 {
			return u, i
		}
		u = v
	}
	return u, len(text)
}

// extend creates any missing nodes for text and returns its terminal node.
// Nothing is allocated if the arena cannot hold every node the key needs.
func (a *arena) extend(text string) (NodeID, error) {
	u, depth := a.walk(text)
	if depth == len(text) {
		return u, nil
	}
	need := len(text) - depth
	if err := a.reserve(need); err != nil {
		return 0, err
	}
	for i := depth; i < len(text); i++ {
		a.nodeCnt++
		a.nodes[u].next[text[i]] = a.nodeCnt
		u = a.nodeCnt
	}
	return u, nil
}

// reserve makes room for need more nodes, growing the store if allowed.
func (a *arena) reserve(need int) error {
	want := a.len() + need
	if want <= len(a.nodes) {
		return nil
	}
	if !a.grow {
		return ErrCapacityExceeded
	}
	size := len(a.nodes) * 2
	for size < want {
		size *= 2
	}
	nodes := make([]node, size)
	copy(nodes, a.nodes[:a.len()])
	endpoint := make([]int, size)
	copy(endpoint, a.endpoint[:a.len()])
	a.nodes, a.endpoint = nodes, endpoint
	return nil
}

// walkKeys calls fn for every endpoint at or below prefix, in byte order.
// fn returning false stops the walk.
func (a *arena) walkKeys(prefix string, fn func(key string, id NodeID) bool) {
	start, depth := a.walk(prefix)
	if depth != len(prefix) {
		return
	}
	buf := []byte(prefix)
	var visit func(u NodeID) bool
	visit = func(u NodeID) bool {
		if a.endpoint[u] != 0 && !fn(string(buf), u) {
			return false
		}
		for c := 1; c < Alphabet; c++ {
			v := a.nodes[u].next[c]
			if v == 0 {
				continue
			}
			buf = append(buf, byte(c))
			if !visit(v) {
				return false
			}
			buf = buf[:len(buf)-1]
		}
		return true
	}
	visit(start)
}

func (a *arena) free() error {
	if err := a.check(); err != nil {
		return err
	}
	a.nodes = nil
	a.endpoint = nil
	a.freed = true
	return nil
}
