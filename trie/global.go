package trie

import "fmt"

// NotFound is returned by GlobalTable.Query when the key's path is absent.
const NotFound = -1

// ---------------------------------------------------------------------------
// GlobalTable: value-keyed, first registration wins
// ---------------------------------------------------------------------------

// GlobalTable maps top-level names to caller-chosen non-zero values. The
// first Insert of a key fixes its value; later inserts return the original.
type GlobalTable struct {
	a *arena
}

// NewGlobalTable creates a table with room for capacity nodes, root included.
func NewGlobalTable(capacity int, opts ...Option) (*GlobalTable, error) {
	a, err := newArena(capacity, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &GlobalTable{a: a}, nil
}

// Insert registers text with value and returns the value now stored for text:
// value on first registration, the original value on a duplicate.
func (t *GlobalTable) Insert(text string, value int) (int, error) {
	if err := t.a.check(); err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, ErrReservedValue
	}
	if err := validate(text); err != nil {
		return 0, err
	}
	u, err := t.a.extend(text)
	if err != nil {
		return 0, fmt.Errorf("insert %q: %w", text, err)
	}
	if t.a.endpoint[u] == 0 {
		t.a.endpoint[u] = value
	}
	return t.a.endpoint[u], nil
}

// Query returns the value stored for text, NotFound if the path is absent,
// or 0 if text is only a prefix of inserted keys.
func (t *GlobalTable) Query(text string) (int, error) {
	if err := t.a.check(); err != nil {
		return 0, err
	}
	if err := validate(text); err != nil {
		return 0, err
	}
	u, depth := t.a.walk(text)
	if depth != len(text) {
		return NotFound, nil
	}
	return t.a.endpoint[u], nil
}

// Each calls fn with every key starting with prefix and its value, in byte
// order. Returning false from fn stops the walk.
func (t *GlobalTable) Each(prefix string, fn func(key string, value int) bool) error {
	if err := t.a.check(); err != nil {
		return err
	}
	if err := validate(prefix); err != nil {
		return err
	}
	t.a.walkKeys(prefix, func(key string, id NodeID) bool {
		return fn(key, t.a.endpoint[id])
	})
	return nil
}

// Len returns the number of allocated nodes, root included.
func (t *GlobalTable) Len() int { return t.a.len() }

// Cap returns the number of node slots currently available.
func (t *GlobalTable) Cap() int { return t.a.cap() }

// Free releases the node store. The table cannot be used afterwards.
func (t *GlobalTable) Free() error { return t.a.free() }
