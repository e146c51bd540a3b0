// Package structures implements the write side of the HDF5 heaps and the
// version 1 B-tree nodes: the local heap holding group link names, the
// global heap collection holding variable-length data, the chunk index and
// the group B-tree with its symbol-table node.
package structures

import (
	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

// localHeapVersion is the only local heap version.
const localHeapVersion = 0

// localHeapFreeNone is the free-list offset meaning "no free block".
const localHeapFreeNone = 1

// LocalHeap is an HDF5 local heap storing the NUL-terminated link names of
// a version 1 group. Identical items are stored once.
//
// Format (HDF5 specification III.D):
//
//	Header (32 bytes for 8-byte addressing):
//	  - Signature: "HEAP" (4 bytes)
//	  - Version: 0 (1 byte)
//	  - Reserved: 0 (3 bytes)
//	  - Data segment size (8 bytes)
//	  - Offset to head of free list (8 bytes, 1 = none)
//	  - Data segment address (8 bytes, right after the header)
//	Data segment:
//	  - NUL-terminated items, each padded with zeros to a multiple of 8
type LocalHeap struct {
	core.BlockBase

	items   [][]byte // NUL-terminated
	offsets []int64
	length  int64 // aligned data segment length
	index   *contentIndex
}

// NewLocalHeap creates an empty local heap.
func NewLocalHeap() *LocalHeap {
	return &LocalHeap{index: newContentIndex()}
}

// Put stores data with a NUL terminator and returns its offset in the data
// segment. Storing the same bytes again returns the first offset.
func (h *LocalHeap) Put(data []byte) int64 {
	term := make([]byte, len(data)+1)
	copy(term, data)

	if pos := h.index.lookup(term, h.item); pos >= 0 {
		return h.offsets[pos]
	}

	off := h.length
	h.index.add(term, len(h.items))
	h.items = append(h.items, term)
	h.offsets = append(h.offsets, off)
	h.length = align8(off + int64(len(term)))
	return off
}

// Len returns the data segment length.
func (h *LocalHeap) Len() int64 {
	return h.length
}

func (h *LocalHeap) item(pos int) []byte {
	return h.items[pos]
}

// Format writes the heap header followed by the data segment.
func (h *LocalHeap) Format(ctx *core.Context) error {
	buf := ctx.Buf
	buf.PutBytes("local heap signature", []byte("HEAP"))
	buf.PutU8("local heap version", localHeapVersion)
	buf.PutZeros("local heap reserved", 3)
	buf.PutU64("local heap data length", h.length)
	buf.PutU64("local heap free list", localHeapFreeNone)
	buf.PutU64("local heap data address", buf.Position()+8)

	var cur int64
	for i, item := range h.items {
		if cur != h.offsets[i] {
			return utils.EncodingError("local heap", "item %d at offset %d, expected %d", i, cur, h.offsets[i])
		}
		buf.PutBytes("local heap item", item)
		cur += int64(len(item))
		next := align8(cur)
		buf.PutZeros("local heap item pad", int(next-cur))
		cur = next
	}
	return buf.Err()
}

func align8(n int64) int64 {
	return (n + 7) &^ 7
}
