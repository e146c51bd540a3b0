package core

import "github.com/scigolib/h5writer/internal/utils"

// FillMode selects what a fill value message declares.
type FillMode int

// Fill modes.
const (
	// FillDefault leaves the fill to the type default (zero).
	FillDefault FillMode = iota

	// FillExplicit stores an explicit fill value.
	FillExplicit

	// FillUndefined declares no fill value.
	FillUndefined
)

// FillValue is the version 2 fill value message.
type FillValue struct {
	Mode FillMode

	// Type and Elem hold the explicit fill, encoded as one Type element at
	// layout time. A vlen string fill lives in the global heap.
	Type *DataType
	Elem Value
}

// MsgType implements Message.
func (*FillValue) MsgType() MessageType { return MsgFillValue }

// Encode writes version 2, space allocation time 2 (late), fill write time
// 2 (if set), the defined flag and, when defined, the value size and bytes.
//
// Reference: HDF5 spec IV.A.2.f (Fill Value Message).
func (f *FillValue) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("fill version", 2)
	buf.PutU8("fill alloc time", 2)
	buf.PutU8("fill write time", 2)

	switch f.Mode {
	case FillUndefined:
		buf.PutU8("fill defined", 0)
	case FillExplicit:
		if f.Type == nil || f.Elem == nil {
			return utils.EncodingError("fill value", "explicit fill without an element")
		}
		buf.PutU8("fill defined", 1)
		buf.PutU32("fill size", int64(f.Type.ElemLen()))
		if err := WriteValue(ctx, f.Type, f.Elem, []uint64{}); err != nil {
			return utils.WrapError("fill value", err)
		}
	default:
		buf.PutU8("fill defined", 1)
		buf.PutU32("fill size", 0)
	}
	return buf.Err()
}
