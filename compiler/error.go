package compiler

import (
	"errors"
	"fmt"
)

// ErrSyntax marks lexical and structural errors in source text.
var ErrSyntax = errors.New("syntax error")

// Error is a resolution failure at a source position. Err is the underlying
// cause (ErrSyntax or a trie error such as trie.ErrInvalidByte).
type Error struct {
	File string
	Pos  Position
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	loc := e.Pos.String()
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("%s: %v", loc, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }
