package core

import "github.com/scigolib/h5writer/internal/utils"

// HDF5 file signature.
const Signature = "\x89HDF\r\n\x1a\n"

// Superblock is the first block of the file. It is version 2 for file
// version 2 and version 0 for file version 1.
type Superblock struct {
	BlockBase

	// Root is the root group's object header.
	Root Block

	// RootBTree and RootHeap are cached in the scratch pad of the version 0
	// root symbol-table entry.
	RootBTree Block
	RootHeap  Block

	// RootNameOffset is the local heap offset of the root's (empty) name.
	RootNameOffset int64

	// EndOfFile is the end-of-file address written in this pass.
	EndOfFile int64
}

// Format implements Block.
func (sb *Superblock) Format(ctx *Context) error {
	if sb.Root == nil {
		return utils.EncodingError("superblock", "no root group")
	}
	ctx.Enqueue(sb.Root)
	if ctx.File.Version == 1 {
		return sb.formatV0(ctx)
	}
	return sb.formatV2(ctx)
}

// formatV2 writes the 48-byte version 2 superblock.
//
// Format:
//   - Signature (8), Version (1, = 2)
//   - Size of offsets (1, = 8), Size of lengths (1, = 8), Flags (1)
//   - Base address (8), Superblock extension address (8, undefined)
//   - End of file address (8), Root group object header address (8)
//   - Checksum (4) over the preceding 44 bytes
//
// Reference: HDF5 spec II.A (Superblock Version 2).
func (sb *Superblock) formatV2(ctx *Context) error {
	buf := ctx.Buf
	start := buf.Position()

	buf.PutBytes("superblock signature", []byte(Signature))
	buf.PutU8("superblock version", 2)
	buf.PutU8("superblock offset size", 8)
	buf.PutU8("superblock length size", 8)
	buf.PutU8("superblock flags", 0)
	buf.PutU64("superblock base address", 0)
	buf.PutU64("superblock extension", UndefinedAddress)
	buf.PutU64("superblock eof", sb.EndOfFile)
	buf.PutU64("superblock root", sb.Root.Address())

	blob, err := buf.Slice(start, buf.Position())
	if err != nil {
		return err
	}
	buf.PutU32("superblock checksum", int64(Checksum(blob)))
	return buf.Err()
}

// formatV0 writes a version 0 superblock with the root symbol-table entry.
//
// Format:
//   - Signature (8), Version (1, = 0), Free-space version (1),
//     Root symbol table entry version (1), Reserved (1),
//     Shared header version (1), Size of offsets (1), Size of lengths (1),
//     Reserved (1)
//   - Group leaf node K (2), Group internal node K (2)
//   - File consistency flags (4)
//   - Base address, free-space info address (undefined), end of file
//     address, driver info address (undefined): 8 each
//   - Root group symbol table entry (40)
//
// Reference: HDF5 spec II.A (Superblock Version 0).
func (sb *Superblock) formatV0(ctx *Context) error {
	if sb.RootBTree == nil || sb.RootHeap == nil {
		return utils.EncodingError("superblock", "version 0 superblock without root symbol table")
	}
	buf := ctx.Buf

	buf.PutBytes("superblock signature", []byte(Signature))
	buf.PutU8("superblock version", 0)
	buf.PutU8("superblock free-space version", 0)
	buf.PutU8("superblock root entry version", 0)
	buf.PutU8("superblock reserved", 0)
	buf.PutU8("superblock shared header version", 0)
	buf.PutU8("superblock offset size", 8)
	buf.PutU8("superblock length size", 8)
	buf.PutU8("superblock reserved", 0)
	buf.PutU16("superblock group leaf k", ctx.File.KLeaf)
	buf.PutU16("superblock group internal k", ctx.File.KInternal)
	buf.PutU32("superblock flags", 0)
	buf.PutU64("superblock base address", 0)
	buf.PutU64("superblock free-space address", UndefinedAddress)
	buf.PutU64("superblock eof", sb.EndOfFile)
	buf.PutU64("superblock driver address", UndefinedAddress)

	// Root symbol table entry, cache type 1: the scratch pad holds the
	// root group's B-tree and local heap addresses.
	buf.PutU64("root entry name offset", sb.RootNameOffset)
	buf.PutU64("root entry header", sb.Root.Address())
	buf.PutU32("root entry cache type", 1)
	buf.PutU32("root entry reserved", 0)
	buf.PutU64("root entry btree", sb.RootBTree.Address())
	buf.PutU64("root entry heap", sb.RootHeap.Address())
	return buf.Err()
}
