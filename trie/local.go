package trie

import "fmt"

// ---------------------------------------------------------------------------
// LocalTable: ordinal-assigning scope table
// ---------------------------------------------------------------------------

// LocalTable assigns dense ordinals (1, 2, 3, ...) to names in first-seen
// order. Its Query returns node identity rather than the ordinal; use
// Ordinal on the returned Ref to test scope membership.
type LocalTable struct {
	a      *arena
	endCnt int
}

// NewLocalTable creates a table with room for capacity nodes, root included.
func NewLocalTable(capacity int, opts ...Option) (*LocalTable, error) {
	a, err := newArena(capacity, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &LocalTable{a: a}, nil
}

// Insert returns the ordinal for text, assigning the next one if text has
// not been seen before.
func (t *LocalTable) Insert(text string) (int, error) {
	if err := t.a.check(); err != nil {
		return 0, err
	}
	if err := validate(text); err != nil {
		return 0, err
	}
	u, err := t.a.extend(text)
	if err != nil {
		return 0, fmt.Errorf("insert %q: %w", text, err)
	}
	if t.a.endpoint[u] == 0 {
		t.endCnt++
		t.a.endpoint[u] = t.endCnt
	}
	return t.a.endpoint[u], nil
}

// Query returns the node reached by walking text, or the root if any byte
// along the path is missing. The empty string also yields the root, so a
// root result is ambiguous; Lookup tells the two apart.
func (t *LocalTable) Query(text string) (Ref, error) {
	ref, _, err := t.Lookup(text)
	return ref, err
}

// Lookup is Query with an explicit found flag.
func (t *LocalTable) Lookup(text string) (Ref, bool, error) {
	if err := t.a.check(); err != nil {
		return Ref{}, false, err
	}
	if err := validate(text); err != nil {
		return Ref{}, false, err
	}
	u, depth := t.a.walk(text)
	if depth != len(text) {
		return t.a.ref(Root), false, nil
	}
	return t.a.ref(u), true, nil
}

// Ordinal returns the ordinal stored at ref, or 0 if the node is not the end
// of an inserted name.
func (t *LocalTable) Ordinal(ref Ref) (int, error) {
	u, err := t.a.resolve(ref)
	if err != nil {
		return 0, err
	}
	return t.a.endpoint[u], nil
}

// Contains reports whether text was inserted.
func (t *LocalTable) Contains(text string) (bool, error) {
	ref, found, err := t.Lookup(text)
	if err != nil || !found {
		return false, err
	}
	ord, err := t.Ordinal(ref)
	return ord != 0, err
}

// Each calls fn with every name starting with prefix and its ordinal, in
// byte order. Returning false from fn stops the walk.
func (t *LocalTable) Each(prefix string, fn func(name string, ordinal int) bool) error {
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

// Count returns the number of ordinals assigned so far.
func (t *LocalTable) Count() int { return t.endCnt }

// Len returns the number of allocated nodes, root included.
func (t *LocalTable) Len() int { return t.a.len() }

// Cap returns the number of node slots currently available.
func (t *LocalTable) Cap() int { return t.a.cap() }

// Free releases the node store. The table cannot be used afterwards.
func (t *LocalTable) Free() error { return t.a.free() }
