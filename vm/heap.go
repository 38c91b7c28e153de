package vm

import (
	"iter"

	"github.com/tliron/commonlog"
)

var heapLog = commonlog.GetLogger("glint.vm.heap")

// ---------------------------------------------------------------------------
// Heap: allocation and registration of heap objects
// ---------------------------------------------------------------------------

// Heap materializes objects and links every allocation into a singly linked
// list, most recent first. The list is the only way to enumerate objects;
// reclamation is done in bulk with Sweep or Release.
//
// A Heap is not safe for concurrent use.
type Heap struct {
	objects Object
	count   int
	bytes   int
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// register links o at the head of the object list.
func (h *Heap) register(o Object, size int) {
	o.header().next = h.objects
	h.objects = o
	h.count++
	h.bytes += size
}

// TakeString materializes a string from buf, taking ownership of it. buf
// must hold exactly the payload, without a terminator. The caller must not
// use buf afterwards; it is cleared before return.
//
// Every call allocates a new object, even for contents already on the heap.
func (h *Heap) TakeString(buf []byte) *StringObject {
	n := len(buf)
	chars := make([]byte, n+1)
	copy(chars, buf)
	chars[n] = 0
	clear(buf)

	s := &StringObject{
		objHeader: objHeader{typ: ObjString},
		length:    n,
		chars:     chars,
	}
	h.register(s, s.size())
	return s
}

// CopyString materializes a string from borrowed bytes. b is not retained
// or modified.
func (h *Heap) CopyString(b []byte) *StringObject {
	staged := make([]byte, len(b))
	copy(staged, b)
	return h.TakeString(staged)
}

// CopyGoString is CopyString for a Go string.
func (h *Heap) CopyGoString(s string) *StringObject {
	return h.TakeString([]byte(s))
}

// Objects iterates over every registered object, most recent first.
func (h *Heap) Objects() iter.Seq[Object] {
	return func(yield func(Object) bool) {
		for o := h.objects; o != nil; o = o.header().next {
			if !yield(o) {
				return
			}
		}
	}
}

// Head returns the most recently allocated object, or nil.
func (h *Heap) Head() Object { return h.objects }

// Count returns the number of registered objects.
func (h *Heap) Count() int { return h.count }

// BytesAllocated returns the accounted size of all registered objects.
func (h *Heap) BytesAllocated() int { return h.bytes }

// Sweep unlinks every object for which keep returns false and returns the
// number removed. It is the hook a collector uses after marking.
func (h *Heap) Sweep(keep func(Object) bool) int {
	swept := 0
	var prev Object
	o := h.objects
	for o != nil {
		next := o.header().next
		if keep(o) {
			prev = o
			o = next
			continue
		}
		if prev == nil {
			h.objects = next
		} else {
			prev.header().next = next
		}
		o.header().next = nil
		h.count--
		h.bytes -= objectSize(o)
		swept++
		o = next
	}
	if swept > 0 {
		heapLog.Debugf("swept %d objects, %d remain", swept, h.count)
	}
	return swept
}

// Release drops every object on the heap.
func (h *Heap) Release() int {
	n := h.Sweep(func(Object) bool { return false })
	h.objects = nil
	h.bytes = 0
	return n
}

func objectSize(o Object) int {
	switch v := o.(type) {
	case *StringObject:
		return v.size()
	default:
		return 0
	}
}
