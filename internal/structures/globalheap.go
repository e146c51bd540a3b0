package structures

import (
	"math"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

const (
	globalHeapVersion = 1

	// GlobalHeapMinSize is the smallest collection the reference library
	// accepts; collections grow in multiples of it.
	GlobalHeapMinSize = 4096

	globalHeapHeaderSize = 16
	globalObjectHeader   = 16

	// globalHeapSlack keeps room for the trailing free-space object.
	globalHeapSlack = 100
)

// GlobalHeap is one global heap collection holding the variable-length
// strings and ragged rows referenced from attributes and variables.
// Objects are numbered from 1; identical content is stored once.
//
// Format (HDF5 specification III.E):
//
//	Header (16 bytes):
//	  - Signature: "GCOL" (4 bytes)
//	  - Version: 1 (1 byte)
//	  - Reserved: 0 (3 bytes)
//	  - Collection size (8 bytes, header included)
//	Objects:
//	  - Index (2 bytes), reference count (2 bytes), reserved (4 bytes)
//	  - Object size (8 bytes)
//	  - Data, zero-padded to a multiple of 8
//	Free space:
//	  - An object with index 0 whose size covers the rest of the
//	    collection, its own header included
type GlobalHeap struct {
	core.BlockBase

	objects  [][]byte
	used     int64 // header plus stored objects
	capacity int64
	index    *contentIndex
}

// NewGlobalHeap creates an empty collection of the minimum size.
func NewGlobalHeap() *GlobalHeap {
	return &GlobalHeap{
		used:     globalHeapHeaderSize,
		capacity: GlobalHeapMinSize,
		index:    newContentIndex(),
	}
}

// Put stores data and returns its 1-based object index.
func (h *GlobalHeap) Put(data []byte) (int, error) {
	if pos := h.index.lookup(data, h.object); pos >= 0 {
		return pos + 1, nil
	}
	if len(h.objects) >= math.MaxUint16 {
		return 0, utils.EncodingError("global heap", "more than %d objects", math.MaxUint16)
	}

	if need := h.used + globalHeapSlack + int64(len(data)); need > h.capacity {
		h.capacity = (1 + need/GlobalHeapMinSize) * GlobalHeapMinSize
	}

	stored := append([]byte(nil), data...)
	h.index.add(stored, len(h.objects))
	h.objects = append(h.objects, stored)
	h.used += globalObjectHeader + align8(int64(len(stored)))
	return len(h.objects), nil
}

// PutRagged stores one object per row and returns the row indices.
// Each row is the raw encoding of the row's elements.
func (h *GlobalHeap) PutRagged(rows [][]byte) ([]int, error) {
	indices := make([]int, len(rows))
	for i, row := range rows {
		idx, err := h.Put(row)
		if err != nil {
			return nil, utils.WrapError("ragged row", err)
		}
		indices[i] = idx
	}
	return indices, nil
}

// Clear drops every object. The address is kept, and so is the current
// size as a lower bound, so that rebuilding the same content yields a
// collection of the same size.
func (h *GlobalHeap) Clear() {
	h.objects = nil
	h.used = globalHeapHeaderSize
	h.index.reset()
}

// Len returns the number of stored objects.
func (h *GlobalHeap) Len() int {
	return len(h.objects)
}

// Size returns the collection size in bytes.
func (h *GlobalHeap) Size() int64 {
	return h.capacity
}

func (h *GlobalHeap) object(pos int) []byte {
	return h.objects[pos]
}

// Format writes the collection, closing it with the free-space object.
func (h *GlobalHeap) Format(ctx *core.Context) error {
	buf := ctx.Buf
	start := buf.Position()

	buf.PutBytes("global heap signature", []byte("GCOL"))
	buf.PutU8("global heap version", globalHeapVersion)
	buf.PutZeros("global heap reserved", 3)
	buf.PutU64("global heap size", h.capacity)

	for i, obj := range h.objects {
		buf.PutU16("global heap object index", i+1)
		buf.PutU16("global heap object refcount", 0)
		buf.PutU32("global heap object reserved", 0)
		buf.PutU64("global heap object size", int64(len(obj)))
		buf.PutBytes("global heap object", obj)
		buf.PutZeros("global heap object pad", int(align8(int64(len(obj)))-int64(len(obj))))
	}

	free := h.capacity - (buf.Position() - start)
	switch {
	case free < 0:
		return utils.EncodingError("global heap", "objects overflow the %d byte collection by %d", h.capacity, -free)
	case free >= globalObjectHeader:
		buf.PutU16("global heap free index", 0)
		buf.PutU16("global heap free refcount", 0)
		buf.PutU32("global heap free reserved", 0)
		buf.PutU64("global heap free size", free)
		buf.PutZeros("global heap free space", int(free-globalObjectHeader))
	default:
		buf.PutZeros("global heap tail", int(free))
	}
	return buf.Err()
}
