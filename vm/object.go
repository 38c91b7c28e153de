package vm

// ---------------------------------------------------------------------------
// Object header and intrusive registration list
// ---------------------------------------------------------------------------

// ObjType tags the concrete kind of a heap object.
type ObjType uint8

const (
	// ObjString is an immutable byte string.
	ObjString ObjType = iota + 1
)

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "string"
	default:
		return "unknown"
	}
}

// Object is any value allocated on a Heap. Every Object carries a header
// whose next field links it into the heap's list of all objects.
type Object interface {
	Type() ObjType
	String() string
	header() *objHeader
}

// objHeader is embedded at the start of every heap object.
type objHeader struct {
	typ  ObjType
	next Object
}

func (h *objHeader) Type() ObjType      { return h.typ }
func (h *objHeader) header() *objHeader { return h }

// Next returns the object allocated just before o on the same heap, or nil.
func Next(o Object) Object {
	return o.header().next
}
