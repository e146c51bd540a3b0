package core

import "github.com/scigolib/h5writer/internal/utils"

// Link is a hard link from a new-style group to a child object header.
type Link struct {
	Name          string
	CreationOrder int64
	Target        Block
}

// MsgType implements Message.
func (*Link) MsgType() MessageType { return MsgLink }

// Encode writes the link and enqueues its target.
//
// Format (version 1, flags 7: 8-byte name length, creation order present,
// implicit hard link type):
//   - Version (1 byte), Flags (1 byte)
//   - Creation order (8 bytes)
//   - Name length (8 bytes), Name (not null-terminated)
//   - Object header address (8 bytes)
//
// Reference: HDF5 spec IV.A.2.g (Link Message).
func (l *Link) Encode(ctx *Context) error {
	if l.Name == "" {
		return utils.EncodingError("link", "empty link name")
	}
	ctx.Enqueue(l.Target)

	buf := ctx.Buf
	buf.PutU8("link version", 1)
	buf.PutU8("link flags", 7)
	buf.PutU64("link creation order", l.CreationOrder)
	buf.PutU64("link name length", int64(len(l.Name)))
	buf.PutBytes("link name", []byte(l.Name))
	buf.PutU64("link address", l.Target.Address())
	return buf.Err()
}
