// Package vm holds the runtime side of glint's identifier handling.
//
// This package contains:
//   - the heap object header and the intrusive list of all allocated objects
//   - immutable string objects with an inline, NUL-terminated payload
//   - the Heap that materializes strings and registers them for reclamation
//   - the VM shell that owns a heap and the global name table
package vm
