package structures

import (
	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

const (
	btreeTypeGroup = 0
	btreeTypeChunk = 1

	// chunkFakeK is the K the reference library may assume when it sizes
	// a chunk node; the node is padded with 2*chunkFakeK-1 empty entries so
	// that its computed end never falls past the written bytes.
	chunkFakeK = 128
)

// ChunkIndex is the version 1 B-tree (type 1) of a chunked variable. It is
// always a single leaf node listing every chunk, however many there are.
//
// Format (HDF5 specification III.A.1):
//
//	Header:
//	  - Signature: "TREE" (4 bytes)
//	  - Node type: 1 (1 byte)
//	  - Node level: 0 (1 byte)
//	  - Entries used (2 bytes)
//	  - Left and right sibling addresses (8 bytes each, undefined)
//	Per chunk:
//	  - Key: chunk size (4), filter mask (4), start index per dimension (8
//	    each), element offset 0 (8)
//	  - Child: chunk address (8)
//	Final key:
//	  - size 0, mask 0, the variable extents, the element size
//	Padding:
//	  - 2*128-1 pairs of a zero child and a zero key
type ChunkIndex struct {
	core.BlockBase

	Chunks  []*core.Chunk
	Shape   []uint64
	ElemLen int
}

// NewChunkIndex creates the index over the chunk grid of a variable.
func NewChunkIndex(chunks []*core.Chunk, shape []uint64, elemLen int) *ChunkIndex {
	return &ChunkIndex{Chunks: chunks, Shape: shape, ElemLen: elemLen}
}

// Format writes the node. Unwritten chunks appear with the undefined
// address; the driver refuses to close a file in that state.
func (x *ChunkIndex) Format(ctx *core.Context) error {
	buf := ctx.Buf
	rank := len(x.Shape)

	buf.PutBytes("chunk btree signature", []byte("TREE"))
	buf.PutU8("chunk btree type", btreeTypeChunk)
	buf.PutU8("chunk btree level", 0)
	buf.PutU16("chunk btree entries", len(x.Chunks))
	buf.PutU64("chunk btree left sibling", core.UndefinedAddress)
	buf.PutU64("chunk btree right sibling", core.UndefinedAddress)

	for i, c := range x.Chunks {
		if len(c.Start) != rank {
			return utils.EncodingError("chunk btree", "chunk %d has rank %d, variable has rank %d", i, len(c.Start), rank)
		}
		buf.PutU32("chunk key size", c.Size)
		buf.PutU32("chunk key filter mask", 0)
		for _, s := range c.Start {
			buf.PutU64("chunk key start", int64(s))
		}
		buf.PutU64("chunk key element offset", 0)
		buf.PutU64("chunk address", c.Addr)
	}

	buf.PutU32("chunk final key size", 0)
	buf.PutU32("chunk final key filter mask", 0)
	for _, d := range x.Shape {
		buf.PutU64("chunk final key extent", int64(d))
	}
	buf.PutU64("chunk final key element size", int64(x.ElemLen))

	for i := 0; i < 2*chunkFakeK-1; i++ {
		buf.PutU64("chunk fill address", 0)
		buf.PutZeros("chunk fill key", 8+8*(rank+1))
	}
	return buf.Err()
}
