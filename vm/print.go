package vm

import (
	"fmt"
	"io"
)

// Render returns the display text of o.
func Render(o Object) string {
	switch v := o.(type) {
	case *StringObject:
		return v.String()
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("<%s object>", o.Type())
	}
}

// Print writes the display text of o to w.
func Print(w io.Writer, o Object) error {
	_, err := io.WriteString(w, Render(o))
	return err
}
