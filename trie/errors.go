package trie

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when a key needs more nodes than a
	// fixed-capacity table has left. The table is unchanged.
	ErrCapacityExceeded = errors.New("trie: capacity exceeded")

	// ErrInvalidByte is returned for keys containing NUL or bytes >= 128.
	ErrInvalidByte = errors.New("trie: invalid byte")

	// ErrNotInitialized is returned when a table is used after Free.
	ErrNotInitialized = errors.New("trie: not initialized")

	// ErrInvalidCapacity is returned when a table is created with capacity < 1.
	ErrInvalidCapacity = errors.New("trie: capacity must be at least 1")

	// ErrReservedValue is returned when a global is inserted with value 0,
	// which marks "no value" in the endpoint table.
	ErrReservedValue = errors.New("trie: value 0 is reserved")

	// ErrForeignRef is returned when a Ref from another table is passed in.
	ErrForeignRef = errors.New("trie: ref belongs to a different table")
)

// ByteError reports the first out-of-range byte in a key.
type ByteError struct {
	Pos  int
	Byte byte
}

func (e *ByteError) Error() string {
	return fmt.Sprintf("trie: invalid byte 0x%02x at offset %d", e.Byte, e.Pos)
}

// Unwrap lets errors.Is match ErrInvalidByte.
func (e *ByteError) Unwrap() error { return ErrInvalidByte }
