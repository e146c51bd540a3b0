package structures

import (
	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

// GroupBTree is the version 1 B-tree (type 0) of a version 1 group. The
// group always uses one oversized leaf, so the tree is a single node with
// one child: the group's symbol-table node.
//
// Format (HDF5 specification III.A.1):
//
//	Header:
//	  - Signature: "TREE" (4 bytes)
//	  - Node type: 0 (1 byte)
//	  - Node level: 0 (1 byte)
//	  - Entries used: 1 (2 bytes)
//	  - Left and right sibling addresses (8 bytes each, undefined)
//	Keys and children:
//	  - key 0: local heap offset of the low key
//	  - child 0: symbol-table node address
//	  - key 1: local heap offset of the high key
//	  - zero (child, key) pairs up to 2*K internal entries
type GroupBTree struct {
	core.BlockBase

	LowKey  int64
	HighKey int64
	Node    *SymbolTableNode
}

// Low and high keys stored in the group's local heap.
var (
	GroupLowKey  = []byte{0, 0, 0, 0}
	GroupHighKey = []byte{0xff, 0xff, 0xff, 0xff}
)

// NewGroupBTree stores the bounding keys in heap and returns the tree over
// node.
func NewGroupBTree(heap *LocalHeap, node *SymbolTableNode) *GroupBTree {
	return &GroupBTree{
		LowKey:  heap.Put(GroupLowKey),
		HighKey: heap.Put(GroupHighKey),
		Node:    node,
	}
}

// Format writes the node and enqueues the symbol-table node.
func (t *GroupBTree) Format(ctx *core.Context) error {
	if t.Node == nil {
		return utils.EncodingError("group btree", "no symbol table node")
	}
	ctx.Enqueue(t.Node)

	const children = 1
	buf := ctx.Buf
	buf.PutBytes("group btree signature", []byte("TREE"))
	buf.PutU8("group btree type", btreeTypeGroup)
	buf.PutU8("group btree level", 0)
	buf.PutU16("group btree entries", children)
	buf.PutU64("group btree left sibling", core.UndefinedAddress)
	buf.PutU64("group btree right sibling", core.UndefinedAddress)

	buf.PutU64("group btree low key", t.LowKey)
	buf.PutU64("group btree child", t.Node.Address())
	buf.PutU64("group btree high key", t.HighKey)

	for i := 0; i < 2*ctx.File.KInternal-children; i++ {
		buf.PutU64("group btree fill child", 0)
		buf.PutU64("group btree fill key", 0)
	}
	return buf.Err()
}
