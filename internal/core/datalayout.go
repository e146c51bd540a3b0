package core

import "github.com/scigolib/h5writer/internal/utils"

// DataLayoutClass represents the HDF5 data layout class.
type DataLayoutClass uint8

// Layout classes used by the writer.
const (
	LayoutContiguous DataLayoutClass = 1
	LayoutChunked    DataLayoutClass = 2
)

// Chunk is one tile of a variable's raw data.
type Chunk struct {
	Start  []uint64 // element index of the first element
	Extent []uint64 // actual extent, truncated at the variable edge

	Addr int64 // file address of the payload, UndefinedAddress until written
	Size int64 // stored (possibly compressed) byte length
}

// NewChunk returns an unwritten chunk.
func NewChunk(start, extent []uint64) *Chunk {
	return &Chunk{Start: start, Extent: extent, Addr: UndefinedAddress}
}

// Written reports whether the chunk payload has been stored.
func (c *Chunk) Written() bool {
	return c.Addr != UndefinedAddress
}

// DataLayout is the version 3 data layout message.
type DataLayout struct {
	Class DataLayoutClass

	// Chunk is the single blob of a contiguous layout.
	Chunk *Chunk

	// Index is the chunk B-tree of a chunked layout.
	Index     Block
	ChunkDims []uint64
	ElemLen   int
}

// MsgType implements Message.
func (*DataLayout) MsgType() MessageType { return MsgDataLayout }

// Encode writes the layout.
//
// Contiguous: Version (3), Class (1), Address (8), Size (8). An unwritten
// blob has the undefined address.
//
// Chunked: Version (3), Class (2), Dimensionality (rank+1), B-tree address
// (8), chunk extents (4 each), element size (4).
//
// Reference: HDF5 spec IV.A.2.i (Data Layout Message), H5Olayout.c.
func (l *DataLayout) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("layout version", 3)
	buf.PutU8("layout class", int(l.Class))

	switch l.Class {
	case LayoutContiguous:
		addr, size := UndefinedAddress, int64(0)
		if l.Chunk != nil && l.Chunk.Written() {
			addr, size = l.Chunk.Addr, l.Chunk.Size
		}
		buf.PutU64("layout address", addr)
		buf.PutU64("layout size", size)

	case LayoutChunked:
		ctx.Enqueue(l.Index)
		buf.PutU8("layout rank", len(l.ChunkDims)+1)
		buf.PutU64("layout btree", l.Index.Address())
		for _, d := range l.ChunkDims {
			buf.PutU32("layout chunk extent", int64(d))
		}
		buf.PutU32("layout element size", int64(l.ElemLen))

	default:
		return utils.EncodingError("layout", "unsupported layout class %d", l.Class)
	}
	return buf.Err()
}
