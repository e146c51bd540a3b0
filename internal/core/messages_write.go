package core

import (
	"fmt"
	"math"

	"github.com/scigolib/h5writer/internal/utils"
)

// MessageType identifies the type of message in an object header.
type MessageType uint16

// Message types emitted by the writer.
const (
	MsgNil            MessageType = 0x00
	MsgDataspace      MessageType = 0x01
	MsgLinkInfo       MessageType = 0x02
	MsgDatatype       MessageType = 0x03
	MsgFillValue      MessageType = 0x05
	MsgLink           MessageType = 0x06
	MsgDataLayout     MessageType = 0x08
	MsgGroupInfo      MessageType = 0x0A
	MsgFilterPipeline MessageType = 0x0B
	MsgAttribute      MessageType = 0x0C
	MsgSymbolTable    MessageType = 0x11
	MsgModTime        MessageType = 0x12
	MsgAttributeInfo  MessageType = 0x15
)

var messageTypeNames = map[MessageType]string{
	MsgNil:            "NIL",
	MsgDataspace:      "DATASPACE",
	MsgLinkInfo:       "LINKINFO",
	MsgDatatype:       "DATATYPE",
	MsgFillValue:      "FILL_VALUE",
	MsgLink:           "LINK",
	MsgDataLayout:     "LAYOUT",
	MsgGroupInfo:      "GROUPINFO",
	MsgFilterPipeline: "FILTER",
	MsgAttribute:      "ATTRIBUTE",
	MsgSymbolTable:    "SYMBOL_TABLE",
	MsgModTime:        "MOD_TIME",
	MsgAttributeInfo:  "ATTR_INFO",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}

// Message is a typed metadata record of an object header.
type Message interface {
	// MsgType returns the header message type.
	MsgType() MessageType

	// Encode writes the message body (no header) at the cursor of ctx.Buf.
	// Referenced blocks are enqueued through ctx.
	Encode(ctx *Context) error
}

// EncodeMessage writes m with its object-header message header. The size
// field is written as a placeholder and patched once the body is measured.
//
// Version 2 header (file version 2):
//   - Type (1 byte), Size (2 bytes), Flags (1 byte, = constant),
//     Creation order (2 bytes, = 0)
//
// Version 1 header (file version 1):
//   - Type (2 bytes), Size (2 bytes), Flags (1 byte), Reserved (3 bytes)
//   - The body is zero-padded to a multiple of 8 bytes
//
// Reference: HDF5 spec IV.A.1 (Object Header Prefix), H5Ocache.c.
func EncodeMessage(ctx *Context, m Message) error {
	buf := ctx.Buf
	var sizePos int64

	if ctx.File.Version == 1 {
		buf.PutU16("message type", int(m.MsgType()))
		sizePos = buf.Position()
		buf.PutU16("message size", 0)
		buf.PutU8("message flags", 0)
		buf.PutZeros("message reserved", 3)
	} else {
		buf.PutU8("message type", int(m.MsgType()))
		sizePos = buf.Position()
		buf.PutU16("message size", 0)
		buf.PutU8("message flags", 1)
		buf.PutU16("message creation order", 0)
	}
	if err := buf.Err(); err != nil {
		return err
	}

	start := buf.Position()
	if err := m.Encode(ctx); err != nil {
		return utils.WrapError(m.MsgType().String(), err)
	}
	if ctx.File.Version == 1 {
		if pad := int((8 - (buf.Position()-start)%8) % 8); pad > 0 {
			buf.PutZeros("message pad", pad)
		}
	}

	size := buf.Position() - start
	if size > math.MaxUint16 {
		return utils.EncodingError(m.MsgType().String(), "message size %d exceeds 65535", size)
	}
	buf.PatchU16("message size", sizePos, int(size))
	return buf.Err()
}

// MeasureNaked encodes m without a header into a scratch buffer and returns
// its size. Nested messages are measured this way before the enclosing
// message writes their sizes.
func MeasureNaked(ctx *Context, m Message) (int, error) {
	scratch := ctx.TrialContext()
	if err := m.Encode(scratch); err != nil {
		return 0, err
	}
	return int(scratch.Buf.Len()), nil
}

// ModTime is the object modification time message.
type ModTime struct{}

// MsgType implements Message.
func (ModTime) MsgType() MessageType { return MsgModTime }

// Encode writes version 1, 3 reserved bytes and the file's modification
// time in seconds.
func (ModTime) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("modtime version", 1)
	buf.PutZeros("modtime reserved", 3)
	buf.PutU32("modtime seconds", ctx.File.ModTime)
	return buf.Err()
}

// GroupInfo is the (empty) group info message of a new-style group.
type GroupInfo struct{}

// MsgType implements Message.
func (GroupInfo) MsgType() MessageType { return MsgGroupInfo }

// Encode writes version 0 with no optional fields.
func (GroupInfo) Encode(ctx *Context) error {
	ctx.Buf.PutU8("groupinfo version", 0)
	ctx.Buf.PutU8("groupinfo flags", 0)
	return ctx.Buf.Err()
}

// AttrInfo is the attribute info message of a version 2 object header.
type AttrInfo struct {
	// NumAttrs is stored as the maximum creation index.
	NumAttrs int
}

// MsgType implements Message.
func (*AttrInfo) MsgType() MessageType { return MsgAttributeInfo }

// Encode writes version 0, creation order tracked and indexed, the maximum
// creation index and three undefined addresses (fractal heap, name index,
// creation order index): attributes stay compact in the header.
func (a *AttrInfo) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("attrinfo version", 0)
	buf.PutU8("attrinfo flags", 3)
	buf.PutU16("attrinfo max creation index", a.NumAttrs)
	buf.PutU64("attrinfo fractal heap", UndefinedAddress)
	buf.PutU64("attrinfo name index", UndefinedAddress)
	buf.PutU64("attrinfo order index", UndefinedAddress)
	return buf.Err()
}

// SymbolTable is the symbol table message of an old-style group.
type SymbolTable struct {
	BTree Block
	Heap  Block
}

// MsgType implements Message.
func (*SymbolTable) MsgType() MessageType { return MsgSymbolTable }

// Encode writes the group B-tree and local heap addresses.
func (s *SymbolTable) Encode(ctx *Context) error {
	ctx.Enqueue(s.BTree)
	ctx.Enqueue(s.Heap)
	ctx.Buf.PutU64("symtab btree", s.BTree.Address())
	ctx.Buf.PutU64("symtab heap", s.Heap.Address())
	return ctx.Buf.Err()
}
