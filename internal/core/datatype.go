package core

import (
	"fmt"
	"regexp"

	"github.com/scigolib/h5writer/internal/utils"
)

// DatatypeClass represents HDF5 datatype class.
type DatatypeClass uint8

// Datatype class constants used by the writer.
const (
	DatatypeFixed     DatatypeClass = 0 // Fixed-point (integers).
	DatatypeFloat     DatatypeClass = 1 // Floating-point.
	DatatypeString    DatatypeClass = 3 // Fixed-length string.
	DatatypeCompound  DatatypeClass = 6 // Compound.
	DatatypeReference DatatypeClass = 7 // Object reference.
	DatatypeVarLen    DatatypeClass = 9 // Variable-length sequence or string.
)

// ValueType is the element type of a variable or attribute.
type ValueType int

// Value types.
const (
	Int8 ValueType = iota
	Uint8
	Int16
	Int32
	Int64
	Float32
	Float64
	FixedString
	VlenString
	Reference
	Vlen
	Compound
)

var valueTypeNames = [...]string{
	Int8:        "int8",
	Uint8:       "uint8",
	Int16:       "int16",
	Int32:       "int32",
	Int64:       "int64",
	Float32:     "float32",
	Float64:     "float64",
	FixedString: "fixed-string",
	VlenString:  "vlen-string",
	Reference:   "reference",
	Vlen:        "vlen",
	Compound:    "compound",
}

func (t ValueType) String() string {
	if t < 0 || int(t) >= len(valueTypeNames) {
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
	return valueTypeNames[t]
}

// ParseValueType returns the value type named s.
func ParseValueType(s string) (ValueType, error) {
	for i, name := range valueTypeNames {
		if name == s {
			return ValueType(i), nil
		}
	}
	return 0, utils.SchemaError(s, "unknown value type")
}

// IsScalar reports whether t is a single-element numeric, string or
// reference type.
func (t ValueType) IsScalar() bool {
	return t >= Int8 && t <= Reference
}

// Member is a named field of a compound type.
type Member struct {
	Name string
	Type *DataType
}

// DataType describes the element type of a variable or attribute.
type DataType struct {
	Type ValueType

	// StrLen is the field width of a FixedString.
	StrLen int

	// Base is the element type of a Vlen sequence.
	Base *DataType

	// Members are the fields of a Compound, in layout order.
	Members []Member
}

// NewDataType returns the data type for a scalar value type.
func NewDataType(t ValueType) *DataType {
	switch t {
	case Vlen:
		return &DataType{Type: Vlen, Base: NewDataType(Uint8)}
	case Compound:
		return &DataType{Type: Compound, Members: DefaultMembers()}
	default:
		return &DataType{Type: t}
	}
}

// NewFixedString returns a fixed-length string type of width n.
func NewFixedString(n int) *DataType {
	return &DataType{Type: FixedString, StrLen: n}
}

// NewVlen returns a variable-length sequence of base.
func NewVlen(base *DataType) *DataType {
	return &DataType{Type: Vlen, Base: base}
}

// NewCompound returns a compound type with the given members.
func NewCompound(members []Member) *DataType {
	return &DataType{Type: Compound, Members: members}
}

// DefaultMembers returns the dimension-list member pair: an object
// reference "dataset" and an int32 "dimension".
func DefaultMembers() []Member {
	return []Member{
		{Name: "dataset", Type: NewDataType(Reference)},
		{Name: "dimension", Type: NewDataType(Int32)},
	}
}

// ElemLen returns the encoded width of one element in bytes.
func (dt *DataType) ElemLen() int {
	switch dt.Type {
	case Int8, Uint8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64, Reference:
		return 8
	case FixedString:
		return dt.StrLen
	case VlenString, Vlen:
		// length u32, heap address u64, object index u32
		return 16
	case Compound:
		total := 0
		for _, m := range dt.Members {
			total += m.Type.ElemLen()
		}
		return total
	}
	return 0
}

// Validate checks the internal consistency of the type.
func (dt *DataType) Validate() error {
	switch dt.Type {
	case FixedString:
		if dt.StrLen < 0 {
			return utils.SchemaError("datatype", "negative string length %d", dt.StrLen)
		}
	case Vlen:
		if dt.Base == nil {
			return utils.SchemaError("datatype", "vlen without a base type")
		}
		if !dt.Base.Type.IsScalar() || dt.Base.Type == VlenString {
			return utils.SchemaError("datatype", "vlen base type %s not supported", dt.Base.Type)
		}
		return dt.Base.Validate()
	case Compound:
		if len(dt.Members) == 0 {
			return utils.SchemaError("datatype", "compound without members")
		}
		seen := make(map[string]bool, len(dt.Members))
		for _, m := range dt.Members {
			if err := CheckName(m.Name); err != nil {
				return err
			}
			if seen[m.Name] {
				return utils.SchemaError(m.Name, "duplicate compound member")
			}
			seen[m.Name] = true
			if m.Type == nil || !m.Type.Type.IsScalar() || m.Type.Type == VlenString {
				return utils.SchemaError(m.Name, "compound members must be fixed-size scalars")
			}
			if err := m.Type.Validate(); err != nil {
				return err
			}
		}
	default:
		if dt.Type < Int8 || dt.Type > Compound {
			return utils.SchemaError("datatype", "unknown value type %d", int(dt.Type))
		}
	}
	return nil
}

// Class returns the HDF5 datatype class of dt.
func (dt *DataType) Class() DatatypeClass {
	switch dt.Type {
	case Float32, Float64:
		return DatatypeFloat
	case FixedString:
		return DatatypeString
	case Reference:
		return DatatypeReference
	case VlenString, Vlen:
		return DatatypeVarLen
	case Compound:
		return DatatypeCompound
	default:
		return DatatypeFixed
	}
}

// MsgType implements Message.
func (*DataType) MsgType() MessageType {
	return MsgDatatype
}

// Encode writes the version 1 datatype encoding. The same bytes serve as
// the DATATYPE message body and as the naked type nested in attributes and
// compound members.
//
// Format:
//   - Byte 0: Version (4 bits, = 1) | Class (4 bits)
//   - Bytes 1-3: Class bit field
//   - Bytes 4-7: Element size
//   - Properties (class specific)
//
// Reference: HDF5 spec III.C (Datatype Message), H5Odtype.c - H5O__dtype_encode_helper().
func (dt *DataType) Encode(ctx *Context) error {
	buf := ctx.Buf
	buf.PutU8("datatype class", 1<<4|int(dt.Class()))

	switch dt.Type {
	case Int8, Uint8, Int16, Int32, Int64:
		flags := 0x08 // signed
		if dt.Type == Uint8 {
			flags = 0
		}
		buf.PutU8("fixed flags", flags)
		buf.PutU16("fixed flags", 0)
		buf.PutU32("element size", int64(dt.ElemLen()))
		buf.PutU16("bit offset", 0)
		buf.PutU16("bit precision", 8*dt.ElemLen())

	case Float32, Float64:
		// Little-endian IEEE 754: implied mantissa normalization, sign at
		// the top bit.
		p := floatProps[dt.Type]
		buf.PutU8("float flags", 0x20)
		buf.PutU8("float sign position", p.signPos)
		buf.PutU8("float flags", 0)
		buf.PutU32("element size", int64(dt.ElemLen()))
		buf.PutU16("bit offset", 0)
		buf.PutU16("bit precision", p.precision)
		buf.PutU8("exponent location", p.expPos)
		buf.PutU8("exponent size", p.expLen)
		buf.PutU8("mantissa location", 0)
		buf.PutU8("mantissa size", p.mantLen)
		buf.PutU32("exponent bias", p.bias)

	case FixedString:
		if dt.StrLen < 1 {
			return utils.EncodingError("datatype", "fixed string width %d", dt.StrLen)
		}
		// Null-terminated, ASCII.
		buf.PutU8("string flags", 0)
		buf.PutU16("string flags", 0)
		buf.PutU32("element size", int64(dt.StrLen))

	case Reference:
		// Object reference.
		buf.PutU8("reference flags", 0)
		buf.PutU16("reference flags", 0)
		buf.PutU32("element size", 8)

	case VlenString:
		// Type string, null-terminated padding, ASCII; the base is a byte.
		buf.PutU8("vlen flags", 0x01)
		buf.PutU16("vlen flags", 0)
		buf.PutU32("element size", int64(dt.ElemLen()))
		if err := NewDataType(Uint8).Encode(ctx); err != nil {
			return err
		}

	case Vlen:
		buf.PutU8("vlen flags", 0)
		buf.PutU16("vlen flags", 0)
		buf.PutU32("element size", int64(dt.ElemLen()))
		if err := dt.Base.Encode(ctx); err != nil {
			return err
		}

	case Compound:
		return dt.encodeCompound(ctx)

	default:
		return utils.EncodingError("datatype", "unsupported value type %s", dt.Type)
	}
	return buf.Err()
}

type floatLayout struct {
	signPos, precision, expPos, expLen, mantLen int
	bias                                        int64
}

var floatProps = map[ValueType]floatLayout{
	Float32: {signPos: 31, precision: 32, expPos: 23, expLen: 8, mantLen: 23, bias: 127},
	Float64: {signPos: 63, precision: 64, expPos: 52, expLen: 11, mantLen: 52, bias: 1023},
}

// encodeCompound writes the version 1 compound properties.
//
// Per member:
//   - Name, null-terminated, padded to a multiple of 8
//   - Byte offset (4 bytes)
//   - Dimensionality (1 byte, = 0), reserved (3 bytes)
//   - Dimension permutation (4 bytes), reserved (4 bytes)
//   - Four dimension sizes (4 bytes each)
//   - Member datatype
func (dt *DataType) encodeCompound(ctx *Context) error {
	buf := ctx.Buf
	n := len(dt.Members)
	buf.PutU8("compound members", n&0xff)
	buf.PutU8("compound members", n>>8)
	buf.PutU8("compound flags", 0)
	buf.PutU32("element size", int64(dt.ElemLen()))

	offset := 0
	for _, m := range dt.Members {
		name := append([]byte(m.Name), 0)
		buf.PutBytes("member name", name)
		if pad := (8 - len(name)%8) % 8; pad > 0 {
			buf.PutZeros("member name pad", pad)
		}
		buf.PutU32("member offset", int64(offset))
		buf.PutU8("member rank", 0)
		buf.PutZeros("member reserved", 3)
		buf.PutU32("member permutation", 0)
		buf.PutU32("member reserved", 0)
		buf.PutZeros("member dims", 16)
		if err := m.Type.Encode(ctx); err != nil {
			return err
		}
		offset += m.Type.ElemLen()
	}
	return buf.Err()
}

var namePattern = regexp.MustCompile(`^[_a-zA-Z][-_a-zA-Z0-9]*$`)

// CheckName validates a group, variable, attribute or member name.
func CheckName(name string) error {
	if !namePattern.MatchString(name) {
		return utils.SchemaError(name, "invalid name %q", name)
	}
	return nil
}
