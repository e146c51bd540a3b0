// Package core provides the HDF5 metadata model of the writer: messages,
// object headers, the superblock, the raw-data codec and the layout context
// shared by every formatted block.
package core

import (
	"github.com/scigolib/h5writer/internal/utils"
)

// Attribute is a named, typed value attached to a group or variable and
// stored as a compact attribute message in the owner's object header.
type Attribute struct {
	Name string

	// Type is the declared type; a ragged attribute is a vlen of its base.
	Type *DataType

	// Shape is nil when the attribute carries no value or no elements; it
	// is then written with the null dataspace.
	Shape []uint64

	Value  Value
	Ragged bool
}

// NewAttribute builds an attribute and normalizes its declaration:
//   - a ragged value must be a rank-2 Row of rows; it is declared as a
//     rank-1 vlen of dt
//   - a scalar vlen string becomes a fixed string of its own length
//   - a fixed string of width 0 takes the longest string length (at least 1)
func NewAttribute(name string, dt *DataType, v Value, ragged bool) (*Attribute, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, utils.SchemaError(name, "attribute without a type")
	}
	if err := dt.Validate(); err != nil {
		return nil, utils.WrapError(name, err)
	}

	attr := &Attribute{Name: name, Value: v, Ragged: ragged}

	if ragged {
		rows, ok := v.(Row)
		if !ok {
			return nil, utils.SchemaError(name, "ragged attribute value must be a list of rows")
		}
		for i, item := range rows {
			row, ok := item.(Row)
			if !ok {
				return nil, utils.SchemaError(name, "ragged attribute row %d is not a row", i)
			}
			for _, elem := range row {
				if _, ok := elem.(Scalar); !ok {
					return nil, utils.SchemaError(name, "ragged attribute must have rank 2")
				}
			}
		}
		attr.Type = NewVlen(dt)
		if err := attr.Type.Validate(); err != nil {
			return nil, utils.WrapError(name, err)
		}
		if len(rows) > 0 {
			attr.Shape = []uint64{uint64(len(rows))}
		}
		return attr, nil
	}

	if dt.Type == Vlen {
		return nil, utils.SchemaError(name, "vlen attributes must be declared ragged")
	}

	declared := *dt
	attr.Type = &declared
	if v == nil {
		return attr, nil
	}

	shape, err := ShapeOf(dt, v)
	if err != nil {
		return nil, utils.WrapError(name, err)
	}
	switch {
	case dt.Type == VlenString && len(shape) == 0:
		attr.Type = NewFixedString(maxStringLen(v))
	case dt.Type == FixedString && dt.StrLen == 0:
		attr.Type.StrLen = maxStringLen(v)
	}

	if count, _ := utils.ElementCount(shape); count > 0 {
		attr.Shape = shape
	}
	return attr, nil
}

// maxStringLen returns the longest string in v, at least 1.
func maxStringLen(v Value) int {
	longest := 1
	switch x := v.(type) {
	case Scalar:
		if len(x.Str) > longest {
			longest = len(x.Str)
		}
	case Row:
		for _, item := range x {
			if n := maxStringLen(item); n > longest {
				longest = n
			}
		}
	}
	return longest
}

// PayloadSize returns the number of value bytes stored in the message.
func (a *Attribute) PayloadSize() (uint64, error) {
	if a.Value == nil {
		return 0, nil
	}
	count, err := utils.ElementCount(a.Shape)
	if err != nil {
		return 0, utils.SchemaError(a.Name, "%v", err)
	}
	if count == 0 {
		if a.Ragged || a.Type.Type == VlenString {
			return 0, nil
		}
		return 8, nil
	}
	return utils.PayloadSize(count, uint64(a.Type.ElemLen()), utils.MaxAttributeBytes, a.Name)
}

// MsgType implements Message.
func (*Attribute) MsgType() MessageType { return MsgAttribute }

// Encode writes a version 3 attribute message.
//
// Format:
//   - Version (1, = 3), Flags (1, = 0)
//   - Name size (2, with the null terminator)
//   - Datatype size (2), Dataspace size (2)
//   - Name encoding (1, = ASCII)
//   - Name, null-terminated, not padded
//   - Naked datatype, naked dataspace
//   - Value
//
// Ragged values and vlen strings store their data in the global heap and
// write heap references. A value with zero elements has the null dataspace
// and, unless it is stored in the heap, an 8-byte zero placeholder, which
// readers of the format expect.
//
// Reference: HDF5 spec IV.A.2.m (Attribute Message), H5Oattr.c.
func (a *Attribute) Encode(ctx *Context) error {
	space := &Dataspace{Shape: a.Shape}
	typeLen, err := MeasureNaked(ctx, a.Type)
	if err != nil {
		return utils.WrapError(a.Name, err)
	}
	spaceLen, err := MeasureNaked(ctx, space)
	if err != nil {
		return utils.WrapError(a.Name, err)
	}

	buf := ctx.Buf
	buf.PutU8("attribute version", 3)
	buf.PutU8("attribute flags", 0)
	buf.PutU16("attribute name size", len(a.Name)+1)
	buf.PutU16("attribute datatype size", typeLen)
	buf.PutU16("attribute dataspace size", spaceLen)
	buf.PutU8("attribute name encoding", 0)
	buf.PutBytes("attribute name", append([]byte(a.Name), 0))

	if err := a.Type.Encode(ctx); err != nil {
		return utils.WrapError(a.Name, err)
	}
	if err := space.Encode(ctx); err != nil {
		return utils.WrapError(a.Name, err)
	}

	if a.Value == nil {
		return buf.Err()
	}

	if a.Ragged {
		rows, _ := a.Value.(Row)
		if err := WriteRagged(ctx, a.Type.Base, rows); err != nil {
			return utils.WrapError(a.Name, err)
		}
		return buf.Err()
	}

	count, err := utils.ElementCount(a.Shape)
	if err != nil {
		return utils.EncodingError(a.Name, "%v", err)
	}
	if a.Shape == nil || count == 0 {
		if a.Type.Type != VlenString {
			buf.PutU64("attribute empty placeholder", 0)
		}
		return buf.Err()
	}

	if err := WriteValue(ctx, a.Type, a.Value, a.Shape); err != nil {
		return utils.WrapError(a.Name, err)
	}
	return buf.Err()
}
