package structures

import (
	"sort"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

const (
	snodVersion   = 1
	snodEntrySize = 40
)

// SymbolEntry is one link of a version 1 group: the offset of the link
// name in the group's local heap and the object it points to.
type SymbolEntry struct {
	Name       string
	NameOffset int64
	Target     core.Block
}

// SymbolTableNode is the single symbol-table node (SNOD) of a version 1
// group. Entries are kept sorted by name, as readers binary-search them.
//
// Format (HDF5 specification III.B):
//   - Signature: "SNOD" (4 bytes)
//   - Version: 1 (1 byte)
//   - Reserved: 0 (1 byte)
//   - Number of symbols (2 bytes)
//   - Entries (40 bytes each): name offset (8), object header address (8),
//     cache type 0 (4), reserved (4), scratch pad (16)
//   - Zeroed entries up to 2*K leaf entries
type SymbolTableNode struct {
	core.BlockBase

	Entries []SymbolEntry
}

// NewSymbolTableNode creates a node over entries, sorting them by name.
func NewSymbolTableNode(entries []SymbolEntry) *SymbolTableNode {
	sorted := append([]SymbolEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return &SymbolTableNode{Entries: sorted}
}

// Format writes the node and enqueues every linked object.
func (n *SymbolTableNode) Format(ctx *core.Context) error {
	capacity := 2 * ctx.File.KLeaf
	if len(n.Entries) > capacity {
		return utils.EncodingError("symbol table node", "%d entries exceed the leaf capacity %d", len(n.Entries), capacity)
	}

	buf := ctx.Buf
	buf.PutBytes("snod signature", []byte("SNOD"))
	buf.PutU8("snod version", snodVersion)
	buf.PutU8("snod reserved", 0)
	buf.PutU16("snod symbols", len(n.Entries))

	for _, e := range n.Entries {
		ctx.Enqueue(e.Target)
		buf.PutU64("snod name offset", e.NameOffset)
		buf.PutU64("snod object address", e.Target.Address())
		buf.PutU32("snod cache type", 0)
		buf.PutU32("snod reserved", 0)
		buf.PutZeros("snod scratch", 16)
	}
	buf.PutZeros("snod empty entries", (capacity-len(n.Entries))*snodEntrySize)
	return buf.Err()
}
