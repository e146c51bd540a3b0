package core

import (
	"fmt"

	"github.com/scigolib/h5writer/internal/utils"
	"github.com/scigolib/h5writer/internal/writer"
)

// Value is raw data for a variable or attribute: either a single element
// (Scalar) or a list of sub-values (Row). A rank-n array is n nested Rows;
// a compound element is a Row of member Scalars.
type Value interface {
	isValue()
}

// ScalarKind is the Go-side kind of a Scalar.
type ScalarKind int

// Scalar kinds.
const (
	KindInt8 ScalarKind = iota
	KindUint8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindReference
)

var scalarKindNames = [...]string{
	KindInt8:      "int8",
	KindUint8:     "uint8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindString:    "string",
	KindReference: "reference",
}

func (k ScalarKind) String() string {
	if k < 0 || int(k) >= len(scalarKindNames) {
		return fmt.Sprintf("ScalarKind(%d)", int(k))
	}
	return scalarKindNames[k]
}

// Scalar is one element.
type Scalar struct {
	Kind  ScalarKind
	Int   int64
	Float float64
	Str   string
	Ref   Block
}

// Row is an ordered list of sub-values.
type Row []Value

func (Scalar) isValue() {}
func (Row) isValue()    {}

// Int returns an integer scalar of the given kind.
func Int(kind ScalarKind, v int64) Scalar {
	return Scalar{Kind: kind, Int: v}
}

// Float returns a floating-point scalar of the given kind.
func Float(kind ScalarKind, v float64) Scalar {
	return Scalar{Kind: kind, Float: v}
}

// String returns a string scalar.
func String(s string) Scalar {
	return Scalar{Kind: KindString, Str: s}
}

// Ref returns an object reference to b.
func Ref(b Block) Scalar {
	return Scalar{Kind: KindReference, Ref: b}
}

// leafKind returns the scalar kind accepted for t.
func (t ValueType) leafKind() ScalarKind {
	switch t {
	case Int8:
		return KindInt8
	case Uint8:
		return KindUint8
	case Int16:
		return KindInt16
	case Int32:
		return KindInt32
	case Int64:
		return KindInt64
	case Float32:
		return KindFloat32
	case Float64:
		return KindFloat64
	case FixedString, VlenString:
		return KindString
	case Reference:
		return KindReference
	}
	return -1
}

// ShapeOf returns the extents of v read as an array of dt elements. Rows
// must be rectangular.
func ShapeOf(dt *DataType, v Value) ([]uint64, error) {
	if isElement(dt, v) {
		return []uint64{}, nil
	}
	row, ok := v.(Row)
	if !ok {
		return nil, utils.SchemaError("value", "%T is not an element of %s", v, dt.Type)
	}
	if len(row) == 0 {
		return []uint64{0}, nil
	}

	inner, err := ShapeOf(dt, row[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(row); i++ {
		s, err := ShapeOf(dt, row[i])
		if err != nil {
			return nil, err
		}
		if !equalShape(s, inner) {
			return nil, utils.SchemaError("value", "ragged rows: row %d has shape %v, row 0 has %v", i, s, inner)
		}
	}
	return append([]uint64{uint64(len(row))}, inner...), nil
}

func isElement(dt *DataType, v Value) bool {
	switch x := v.(type) {
	case Scalar:
		return true
	case Row:
		if dt.Type != Compound || len(x) != len(dt.Members) {
			return false
		}
		for _, item := range x {
			if _, ok := item.(Scalar); !ok {
				return false
			}
		}
		return true
	}
	return false
}

func equalShape(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WriteValue encodes v, which must have exactly the given shape, as raw
// data of type dt at the cursor of ctx.Buf.
func WriteValue(ctx *Context, dt *DataType, v Value, shape []uint64) error {
	return WriteTile(ctx, dt, v, shape, shape)
}

// WriteTile encodes v, which must have exactly the given extent, padded
// with zero elements up to tile in every dimension.
//
// Fixed strings are truncated or null-padded to the field width. Vlen
// strings are stored in ctx.GlobalHeap and replaced by (length, heap
// address, object index); a trial layout stores nothing and writes index 0.
// References write the current address of the referenced block.
func WriteTile(ctx *Context, dt *DataType, v Value, extent, tile []uint64) error {
	if len(extent) != len(tile) {
		return utils.EncodingError("raw data", "extent rank %d, tile rank %d", len(extent), len(tile))
	}
	e := &valueEncoder{ctx: ctx, elemLen: dt.ElemLen()}
	if err := e.writeArray(dt, v, extent, tile); err != nil {
		return err
	}
	return ctx.Buf.Err()
}

type valueEncoder struct {
	ctx     *Context
	elemLen int
}

func (e *valueEncoder) writeArray(dt *DataType, v Value, extent, tile []uint64) error {
	if len(extent) == 0 {
		return e.writeElement(dt, v)
	}

	row, ok := v.(Row)
	if !ok {
		return utils.SchemaError("raw data", "expected %d rows, got a single element", extent[0])
	}
	if uint64(len(row)) != extent[0] {
		return utils.SchemaError("raw data", "shape mismatch: expected %d rows, got %d", extent[0], len(row))
	}
	for _, item := range row {
		if err := e.writeArray(dt, item, extent[1:], tile[1:]); err != nil {
			return err
		}
	}

	if tile[0] > extent[0] {
		n := (tile[0] - extent[0]) * uint64(e.elemLen)
		for _, d := range tile[1:] {
			n *= d
		}
		e.ctx.Buf.PutZeros("tile pad", int(n))
	}
	return nil
}

func (e *valueEncoder) writeElement(dt *DataType, v Value) error {
	buf := e.ctx.Buf

	if dt.Type == Compound {
		row, ok := v.(Row)
		if !ok || len(row) != len(dt.Members) {
			return utils.SchemaError("raw data", "compound element must have %d members", len(dt.Members))
		}
		for i, m := range dt.Members {
			if err := e.writeElement(m.Type, row[i]); err != nil {
				return utils.WrapError(m.Name, err)
			}
		}
		return nil
	}

	s, ok := v.(Scalar)
	if !ok {
		return utils.SchemaError("raw data", "expected a %s element, got a row", dt.Type)
	}
	if s.Kind != dt.Type.leafKind() {
		return utils.SchemaError("raw data", "type mismatch: %s element for %s data", s.Kind, dt.Type)
	}

	switch dt.Type {
	case Int8, Uint8:
		buf.PutI8(int8(s.Int))
	case Int16:
		buf.PutI16(int16(s.Int))
	case Int32:
		buf.PutI32(int32(s.Int))
	case Int64:
		buf.PutI64(s.Int)
	case Float32:
		buf.PutF32(float32(s.Float))
	case Float64:
		buf.PutF64(s.Float)
	case FixedString:
		b := []byte(s.Str)
		if len(b) > dt.StrLen {
			b = b[:dt.StrLen]
		}
		buf.PutBytes("fixed string", b)
		buf.PutZeros("fixed string pad", dt.StrLen-len(b))
	case VlenString:
		return e.writeHeapRef(len(s.Str), []byte(s.Str))
	case Reference:
		if s.Ref == nil {
			return utils.SchemaError("raw data", "nil object reference")
		}
		buf.PutU64("reference", s.Ref.Address())
	default:
		return utils.EncodingError("raw data", "unsupported element type %s", dt.Type)
	}
	return nil
}

// writeHeapRef stores data in the global heap and writes the
// (count, heap address, index) triple.
func (e *valueEncoder) writeHeapRef(count int, data []byte) error {
	ctx := e.ctx
	if ctx.GlobalHeap == nil {
		return utils.EncodingError("raw data", "variable-length data without a global heap")
	}
	idx := 0
	if !ctx.Mode.IsTrial() {
		var err error
		if idx, err = ctx.GlobalHeap.Put(data); err != nil {
			return err
		}
	}
	ctx.Buf.PutU32("vlen count", int64(count))
	ctx.Buf.PutU64("vlen heap", ctx.GlobalHeap.Address())
	ctx.Buf.PutU32("vlen index", int64(idx))
	return nil
}

// WriteRagged writes one vlen reference per row of a ragged value: each
// row's elements are encoded as base-type raw data and stored as one
// global heap object.
func WriteRagged(ctx *Context, base *DataType, rows Row) error {
	if ctx.GlobalHeap == nil {
		return utils.EncodingError("raw data", "variable-length data without a global heap")
	}
	raws := make([][]byte, len(rows))
	counts := make([]int, len(rows))
	for i, item := range rows {
		row, ok := item.(Row)
		if !ok {
			return utils.SchemaError("raw data", "ragged row %d is not a row", i)
		}
		rowCtx := &Context{Buf: writer.NewBuffer(), Mode: ctx.Mode, File: ctx.File, GlobalHeap: ctx.GlobalHeap}
		if err := WriteValue(rowCtx, base, row, []uint64{uint64(len(row))}); err != nil {
			return utils.WrapError(fmt.Sprintf("ragged row %d", i), err)
		}
		raws[i], counts[i] = rowCtx.Buf.Bytes(), len(row)
	}

	indices := make([]int, len(rows))
	if !ctx.Mode.IsTrial() {
		var err error
		if indices, err = ctx.GlobalHeap.PutRagged(raws); err != nil {
			return err
		}
	}
	for i := range rows {
		ctx.Buf.PutU32("vlen count", int64(counts[i]))
		ctx.Buf.PutU64("vlen heap", ctx.GlobalHeap.Address())
		ctx.Buf.PutU32("vlen index", int64(indices[i]))
	}
	return ctx.Buf.Err()
}
