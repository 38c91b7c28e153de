package vm

import "unsafe"

// StringObject is an immutable byte string owned by a Heap.
//
// The payload is stored in a single buffer of Len()+1 bytes whose last byte
// is always 0. There is no mutation API; the contents never change after
// materialization.
type StringObject struct {
	objHeader
	length int
	chars  []byte
}

// stringHeaderSize is the accounted size of a StringObject without payload.
const stringHeaderSize = int(unsafe.Sizeof(StringObject{}))

// Len returns the number of payload bytes, excluding the terminator.
func (s *StringObject) Len() int { return s.length }

// String returns the contents as a Go string.
func (s *StringObject) String() string { return string(s.chars[:s.length]) }

// Bytes returns a copy of the contents without the terminator.
func (s *StringObject) Bytes() []byte {
	out := make([]byte, s.length)
	copy(out, s.chars[:s.length])
	return out
}

// Equal reports whether s and other hold the same bytes. Identity is not
// compared; two materializations of the same text are Equal but distinct.
func (s *StringObject) Equal(other *StringObject) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.String() == other.String()
}

// size returns the bytes accounted against the heap for s.
func (s *StringObject) size() int {
	return stringHeaderSize + s.length + 1
}
