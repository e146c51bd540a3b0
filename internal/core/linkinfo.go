package core

// LinkInfo is the link info message of a new-style group.
//
// Links are stored compactly in the object header, so every index address
// is undefined.
//
// Format (version 0, flags 3):
//   - Version (1 byte), Flags (1 byte)
//   - Maximum creation index (8 bytes)
//   - Fractal heap address (8 bytes)
//   - Name index B-tree address (8 bytes)
//   - Creation order index B-tree address (8 bytes)
//
// Reference: HDF5 spec IV.A.2.c (Link Info Message).
type LinkInfo struct {
	MaxCreationIndex int64
}

// MsgType implements Message.
func (*LinkInfo) MsgType() MessageType { return MsgLinkInfo }

// Encode implements Message.
func (l *LinkInfo) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("linkinfo version", 0)
	buf.PutU8("linkinfo flags", 3)
	buf.PutU64("linkinfo max creation index", l.MaxCreationIndex)
	buf.PutU64("linkinfo fractal heap", UndefinedAddress)
	buf.PutU64("linkinfo name index", UndefinedAddress)
	buf.PutU64("linkinfo order index", UndefinedAddress)
	return buf.Err()
}
