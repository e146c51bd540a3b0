package h5writer

import (
	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/writer"
)

// ValueType is the element type of a variable or attribute.
type ValueType = core.ValueType

// Supported value types.
//
// Go values map onto them one to one: int8, uint8, int16, int32, int64
// (and int), float32, float64, string for both string types, a *Group or
// *Variable for Reference, and a Record or struct for Compound.
const (
	Int8        = core.Int8
	Uint8       = core.Uint8
	Int16       = core.Int16
	Int32       = core.Int32
	Int64       = core.Int64
	Float32     = core.Float32
	Float64     = core.Float64
	FixedString = core.FixedString
	VlenString  = core.VlenString
	Reference   = core.Reference
	Vlen        = core.Vlen
	Compound    = core.Compound
)

// ParseValueType returns the value type with the given name, as printed by
// ValueType.String ("int32", "fixed-string", ...).
func ParseValueType(name string) (ValueType, error) {
	return core.ParseValueType(name)
}

// Member is a field of a compound type.
type Member struct {
	Name string
	Type ValueType

	// StrLen is the width of a FixedString member.
	StrLen int
}

// Record is one compound element: the member values in declaration order.
type Record []interface{}

// Codec compresses chunk payloads. DeflateCodec is the default.
type Codec = writer.Codec

// DeflateCodec is the zlib codec registered as HDF5 filter 1.
type DeflateCodec = writer.DeflateCodec

// CreateMode specifies how to create a new HDF5 file.
type CreateMode int

const (
	// CreateTruncate creates a new file, overwriting if it exists.
	CreateTruncate CreateMode = iota

	// CreateExclusive creates a new file, failing if it already exists.
	CreateExclusive
)

// Object is a group or variable of a file, usable as the target of an
// object reference.
type Object interface {
	// Path returns the absolute path of the object, "/" for the root.
	Path() string

	block() core.Block
}

var (
	_ Object = (*Group)(nil)
	_ Object = (*Variable)(nil)
)

func dataType(t ValueType, strLen int, members []Member) (*core.DataType, error) {
	switch t {
	case FixedString:
		return core.NewFixedString(strLen), nil
	case Compound:
		if len(members) == 0 {
			return core.NewDataType(Compound), nil
		}
		fields := make([]core.Member, len(members))
		for i, m := range members {
			mt := core.NewDataType(m.Type)
			if m.Type == FixedString {
				mt = core.NewFixedString(m.StrLen)
			}
			fields[i] = core.Member{Name: m.Name, Type: mt}
		}
		return core.NewCompound(fields), nil
	default:
		return core.NewDataType(t), nil
	}
}
