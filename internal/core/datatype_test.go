package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5writer/internal/utils"
)

func TestDataType_Encode(t *testing.T) {
	tests := []struct {
		name string
		dt   *DataType
		want []byte
	}{
		{
			name: "int32",
			dt:   NewDataType(Int32),
			want: []byte{0x10, 0x08, 0, 0, 4, 0, 0, 0, 0, 0, 32, 0},
		},
		{
			name: "uint8 unsigned",
			dt:   NewDataType(Uint8),
			want: []byte{0x10, 0x00, 0, 0, 1, 0, 0, 0, 0, 0, 8, 0},
		},
		{
			name: "int64",
			dt:   NewDataType(Int64),
			want: []byte{0x10, 0x08, 0, 0, 8, 0, 0, 0, 0, 0, 64, 0},
		},
		{
			name: "float32",
			dt:   NewDataType(Float32),
			want: []byte{0x11, 0x20, 0x1f, 0, 4, 0, 0, 0, 0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0},
		},
		{
			name: "float64",
			dt:   NewDataType(Float64),
			want: []byte{0x11, 0x20, 0x3f, 0, 8, 0, 0, 0, 0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0},
		},
		{
			name: "fixed string",
			dt:   NewFixedString(5),
			want: []byte{0x13, 0, 0, 0, 5, 0, 0, 0},
		},
		{
			name: "reference",
			dt:   NewDataType(Reference),
			want: []byte{0x17, 0, 0, 0, 8, 0, 0, 0},
		},
		{
			name: "vlen string",
			dt:   NewDataType(VlenString),
			want: []byte{0x19, 0x01, 0, 0, 16, 0, 0, 0, 0x10, 0, 0, 0, 1, 0, 0, 0, 0, 0, 8, 0},
		},
		{
			name: "vlen of int16",
			dt:   NewVlen(NewDataType(Int16)),
			want: []byte{0x19, 0, 0, 0, 16, 0, 0, 0, 0x10, 0x08, 0, 0, 2, 0, 0, 0, 0, 0, 16, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(2)
			got, err := encodeBody(ctx, tt.dt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataType_EncodeCompound(t *testing.T) {
	ctx := newTestContext(2)
	dt := NewDataType(Compound)
	got, err := encodeBody(ctx, dt)
	require.NoError(t, err)

	// Header: class 6, two members, element size 8+4.
	assert.Equal(t, []byte{0x16, 2, 0, 0, 12, 0, 0, 0}, got[:8])

	// "dataset\0" fills exactly 8 bytes.
	assert.Equal(t, "dataset\x00", string(got[8:16]))
	assert.Equal(t, uint32(0), le32(got[16:]))
	// Nested reference type after 32 bytes of member fields.
	assert.Equal(t, byte(0x17), got[16+32])

	second := 16 + 32 + 8
	assert.Equal(t, "dimension\x00", string(got[second:second+10]))
	assert.Equal(t, make([]byte, 6), got[second+10:second+16], "name padded to 16")
	assert.Equal(t, uint32(8), le32(got[second+16:]), "member offset")
	assert.Equal(t, byte(0x10), got[second+16+32])

	assert.Len(t, got, 8+48+60)
}

func TestDataType_ElemLen(t *testing.T) {
	tests := []struct {
		dt   *DataType
		want int
	}{
		{NewDataType(Int8), 1},
		{NewDataType(Uint8), 1},
		{NewDataType(Int16), 2},
		{NewDataType(Int32), 4},
		{NewDataType(Int64), 8},
		{NewDataType(Float32), 4},
		{NewDataType(Float64), 8},
		{NewFixedString(7), 7},
		{NewDataType(VlenString), 16},
		{NewDataType(Reference), 8},
		{NewVlen(NewDataType(Float64)), 16},
		{NewDataType(Compound), 12},
	}
	for _, tt := range tests {
		t.Run(tt.dt.Type.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dt.ElemLen())
		})
	}
}

func TestDataType_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dt      *DataType
		wantErr bool
	}{
		{"int32", NewDataType(Int32), false},
		{"default compound", NewDataType(Compound), false},
		{"vlen of float", NewVlen(NewDataType(Float32)), false},
		{"vlen without base", &DataType{Type: Vlen}, true},
		{"vlen of vlen string", NewVlen(NewDataType(VlenString)), true},
		{"compound without members", NewCompound(nil), true},
		{"compound duplicate member", NewCompound([]Member{
			{Name: "a", Type: NewDataType(Int8)},
			{Name: "a", Type: NewDataType(Int8)},
		}), true},
		{"compound bad member name", NewCompound([]Member{{Name: "1a", Type: NewDataType(Int8)}}), true},
		{"compound nested vlen string", NewCompound([]Member{{Name: "s", Type: NewDataType(VlenString)}}), true},
		{"negative string width", NewFixedString(-1), true},
		{"unknown type", &DataType{Type: ValueType(99)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dt.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, utils.ErrSchema)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValueType_Names(t *testing.T) {
	for vt := Int8; vt <= Compound; vt++ {
		parsed, err := ParseValueType(vt.String())
		require.NoError(t, err)
		assert.Equal(t, vt, parsed)
	}
	_, err := ParseValueType("complex128")
	require.ErrorIs(t, err, utils.ErrSchema)
	assert.Equal(t, "ValueType(42)", ValueType(42).String())
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"temperature", true},
		{"_hidden", true},
		{"a-b_c9", true},
		{"X", true},
		{"", false},
		{"9lives", false},
		{"-dash", false},
		{"has space", false},
		{"slash/name", false},
		{"dot.name", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckName(tt.name)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, utils.ErrSchema)
			}
		})
	}
}
