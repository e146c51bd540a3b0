package h5writer

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5writer/internal/core"
)

func TestAddVariable_Validation(t *testing.T) {
	tests := []struct {
		name  string
		vtype ValueType
		shape []uint64
		opts  []VariableOption
	}{
		{name: "vlen data", vtype: Vlen, shape: []uint64{3}},
		{name: "fixed string without width", vtype: FixedString, shape: []uint64{3}},
		{name: "width on a non-string", vtype: Int32, shape: []uint64{3}, opts: []VariableOption{WithStringLength(4)}},
		{name: "members on a non-compound", vtype: Int32, shape: []uint64{3}, opts: []VariableOption{WithMembers(Member{Name: "a", Type: Int8})}},
		{name: "chunked without data", vtype: Int32, opts: []VariableOption{WithChunks(1)}},
		{name: "chunked scalar", vtype: Int32, shape: []uint64{}, opts: []VariableOption{WithChunks()}},
		{name: "compressed scalar", vtype: Int32, shape: []uint64{}, opts: []VariableOption{WithCompression(4)}},
		{name: "compressed contiguous", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithCompression(4)}},
		{name: "compression level too high", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithChunks(4), WithCompression(10)}},
		{name: "negative compression level", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithChunks(4), WithCompression(-1)}},
		{name: "compressed vlen strings", vtype: VlenString, shape: []uint64{8}, opts: []VariableOption{WithChunks(4), WithCompression(4)}},
		{name: "chunk rank mismatch", vtype: Int32, shape: []uint64{8, 8}, opts: []VariableOption{WithChunks(4)}},
		{name: "chunk larger than shape", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithChunks(9)}},
		{name: "zero chunk extent", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithChunks(0)}},
		{name: "too many chunks", vtype: Int8, shape: []uint64{70000}, opts: []VariableOption{WithChunks(1)}},
		{name: "fill of the wrong type", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithFill(1.5)}},
		{name: "fill with a row", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithFill([]int32{1, 2})}},
		{name: "reference fill", vtype: Reference, shape: []uint64{8}, opts: []VariableOption{WithFill(int64(0))}},
		{name: "reference default fill", vtype: Reference, shape: []uint64{8}, opts: []VariableOption{WithDefaultFill()}},
		{name: "explicit and default fill", vtype: Int32, shape: []uint64{8}, opts: []VariableOption{WithFill(int32(1)), WithDefaultFill()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := createTestFile(t)
			defer func() { _ = f.Abort() }()

			_, err := f.Root().AddVariable("v", tt.vtype, tt.shape, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchema), "got %v", err)
			assert.Contains(t, err.Error(), "/v")
			assert.Empty(t, f.Root().Variables())
		})
	}
}

func TestAddVariable_Names(t *testing.T) {
	f, _ := createTestFile(t)
	defer func() { _ = f.Abort() }()
	root := f.Root()

	_, err := root.AddVariable("x", Int32, []uint64{1})
	require.NoError(t, err)

	for _, name := range []string{"x", "", "1abc", "a b", "a/b"} {
		_, err := root.AddVariable(name, Int32, []uint64{1})
		assert.True(t, errors.Is(err, ErrSchema), "name %q: %v", name, err)
	}

	// Groups and variables share the namespace.
	_, err = root.AddGroup("x")
	assert.True(t, errors.Is(err, ErrSchema))

	_, err = root.AddVariable("_y-2", Int32, []uint64{1})
	assert.NoError(t, err)
}

func TestAddVariable_FillModes(t *testing.T) {
	tests := []struct {
		name string
		opts []VariableOption
		want []byte
	}{
		{name: "none", want: []byte{2, 2, 2, 0}},
		{name: "type default", opts: []VariableOption{WithDefaultFill()}, want: []byte{2, 2, 2, 1, 0, 0, 0, 0}},
		{name: "explicit", opts: []VariableOption{WithFill(int16(-2))}, want: []byte{2, 2, 2, 1, 2, 0, 0, 0, 0xfe, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, path := createTestFile(t)
			_, err := f.Root().AddVariable("v", Int16, nil, tt.opts...)
			require.NoError(t, err)
			require.NoError(t, f.EndDefine())
			require.NoError(t, f.Close())

			im := readImage(t, path)
			_, root := im.superblock()
			msgs := im.header(links(im.header(root))["v"])
			fill := messagesOf(msgs, core.MsgFillValue)
			require.Len(t, fill, 1)
			assert.Equal(t, tt.want, fill[0].body)
		})
	}
}

func TestAddVariable_Kinds(t *testing.T) {
	f, _ := createTestFile(t)
	defer func() { _ = f.Abort() }()
	root := f.Root()

	contiguous, err := root.AddVariable("contiguous", Float32, []uint64{3, 4})
	require.NoError(t, err)
	assert.Nil(t, contiguous.ChunkShape())
	assert.Equal(t, 1, contiguous.NumChunks())
	assert.Equal(t, uint64(12), contiguous.TotalElements())

	chunked, err := root.AddVariable("chunked", Int16, []uint64{10, 7}, WithChunks(4, 7))
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 7}, chunked.ChunkShape())
	assert.Equal(t, 3, chunked.NumChunks())

	scalar, err := root.AddVariable("scalar", Int64, []uint64{}, WithFill(int64(-1)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), scalar.TotalElements())
	assert.Equal(t, 1, scalar.NumChunks())

	empty, err := root.AddVariable("empty", Int32, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Shape())
	assert.Zero(t, empty.TotalElements())
	assert.Zero(t, empty.NumChunks())

	str, err := root.AddVariable("names", FixedString, []uint64{2}, WithStringLength(8))
	require.NoError(t, err)
	assert.Equal(t, FixedString, str.Type())

	rec, err := root.AddVariable("records", Compound, []uint64{2}, WithMembers(
		Member{Name: "id", Type: Int32},
		Member{Name: "label", Type: FixedString, StrLen: 4},
	))
	require.NoError(t, err)
	assert.Equal(t, 8, rec.dtype.ElemLen())

	dims, err := root.AddVariable("dims", Compound, []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, 12, dims.dtype.ElemLen(), "dimension-list pair")

	assert.Len(t, root.Variables(), 7)
}

// countingCodec is the deflate codec counting closed streams.
type countingCodec struct {
	DeflateCodec
	closed int
}

func (c *countingCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	zw, err := c.DeflateCodec.NewWriter(w, level)
	if err != nil {
		return nil, err
	}
	return &countedStream{WriteCloser: zw, codec: c}, nil
}

type countedStream struct {
	io.WriteCloser
	codec *countingCodec
}

func (s *countedStream) Close() error {
	s.codec.closed++
	return s.WriteCloser.Close()
}

func TestWriteChunk_FailedCompressedWriteClosesStream(t *testing.T) {
	codec := &countingCodec{}
	f, _ := createTestFile(t, WithCodec(codec))
	v, err := f.Root().AddVariable("v", Int32, []uint64{4, 4}, WithChunks(4, 4), WithCompression(6))
	require.NoError(t, err)
	require.NoError(t, f.EndDefine())

	tests := []struct {
		name string
		data interface{}
	}{
		{"wrong element type", [][]int64{{1, 2, 3, 4}, {1, 2, 3, 4}, {1, 2, 3, 4}, {1, 2, 3, 4}}},
		{"short rows", [][]int32{{1, 2}, {3, 4}, {5, 6}, {7, 8}}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, v.WriteChunk([]uint64{0, 0}, tt.data))
			assert.Equal(t, i+1, codec.closed)
		})
	}

	data := make([][]int32, 4)
	for i := range data {
		data[i] = []int32{1, 2, 3, 4}
	}
	require.NoError(t, v.WriteChunk([]uint64{0, 0}, data))
	assert.Equal(t, len(tests)+1, codec.closed)
	require.NoError(t, f.Close())
}

func TestWriteChunk_Errors(t *testing.T) {
	f, _ := createTestFile(t)
	defer func() { _ = f.Abort() }()
	root := f.Root()

	v, err := root.AddVariable("v", Int32, []uint64{4})
	require.NoError(t, err)
	empty, err := root.AddVariable("empty", Int32, nil)
	require.NoError(t, err)
	chunked, err := root.AddVariable("chunked", Int32, []uint64{4}, WithChunks(2))
	require.NoError(t, err)
	require.NoError(t, f.EndDefine())

	tests := []struct {
		name    string
		write   func() error
		wantErr error
	}{
		{name: "wrong element type", write: func() error { return v.WriteData([]int64{1, 2, 3, 4}) }, wantErr: ErrSchema},
		{name: "short data", write: func() error { return v.WriteData([]int32{1, 2, 3}) }, wantErr: ErrSchema},
		{name: "rank mismatch", write: func() error { return v.WriteData([][]int32{{1, 2, 3, 4}}) }, wantErr: ErrSchema},
		{name: "unsupported Go type", write: func() error { return v.WriteData([]uint32{1, 2, 3, 4}) }, wantErr: ErrSchema},
		{name: "nil data", write: func() error { return v.WriteData(nil) }, wantErr: ErrSchema},
		{name: "contiguous start not zero", write: func() error { return v.WriteChunk([]uint64{1}, []int32{1, 2, 3}) }, wantErr: ErrSchema},
		{name: "no data", write: func() error { return empty.WriteData([]int32{}) }, wantErr: ErrSchema},
		{name: "whole data of a chunked variable", write: func() error { return chunked.WriteData([]int32{1, 2, 3, 4}) }, wantErr: ErrSchema},
		{name: "start outside the grid", write: func() error { return chunked.WriteChunk([]uint64{4}, []int32{1, 2}) }, wantErr: ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	// Failed writes leave the chunk unwritten.
	assert.Len(t, v.missingChunks(), 1)
	require.NoError(t, v.WriteData([]int32{1, 2, 3, 4}))
	assert.Empty(t, v.missingChunks())
}

func TestWriteChunk_Compound(t *testing.T) {
	type sample struct {
		ID    int32
		Label string
	}

	f, path := createTestFile(t)
	v, err := f.Root().AddVariable("records", Compound, []uint64{2}, WithMembers(
		Member{Name: "id", Type: Int32},
		Member{Name: "label", Type: FixedString, StrLen: 4},
	))
	require.NoError(t, err)
	require.NoError(t, f.EndDefine())
	require.NoError(t, v.WriteData([]interface{}{
		sample{ID: 7, Label: "ab"},
		Record{int32(9), "wxyz"},
	}))
	require.NoError(t, f.Close())

	im := readImage(t, path)
	_, root := im.superblock()
	msgs := im.header(links(im.header(root))["records"])
	l := decodeLayout(messagesOf(msgs, core.MsgDataLayout)[0].body)
	raw := im.bytes(l.addr, int(l.size))
	require.Len(t, raw, 16)
	assert.Equal(t, []int32{7}, int32s(raw[0:4]))
	assert.Equal(t, "ab", cstring(raw[4:8]))
	assert.Equal(t, []int32{9}, int32s(raw[8:12]))
	assert.Equal(t, "wxyz", string(raw[12:16]))
}

// gridElem is the element at linear index n of a test grid.
type gridElem func(n int) interface{}

// gridBytes returns the stored form of a fixed-size element.
func gridBytes(x interface{}, strLen int) []byte {
	le := binary.LittleEndian
	switch x := x.(type) {
	case int8:
		return []byte{byte(x)}
	case uint8:
		return []byte{x}
	case int16:
		return le.AppendUint16(nil, uint16(x))
	case int32:
		return le.AppendUint32(nil, uint32(x))
	case int64:
		return le.AppendUint64(nil, uint64(x))
	case float32:
		return le.AppendUint32(nil, math.Float32bits(x))
	case float64:
		return le.AppendUint64(nil, math.Float64bits(x))
	case string:
		b := make([]byte, strLen)
		copy(b, x)
		return b
	}
	panic(fmt.Sprintf("no stored form for %T", x))
}

// gridTile builds the nested rows of the tile at start with the given
// extent, numbering elements row-major over shape.
func gridTile(start, extent, shape []uint64, elem gridElem) interface{} {
	var build func(d int, idx []uint64) interface{}
	build = func(d int, idx []uint64) interface{} {
		if d == len(extent) {
			return elem(gridIndex(idx, shape))
		}
		row := make([]interface{}, extent[d])
		for i := range row {
			next := append(append([]uint64{}, idx...), start[d]+uint64(i))
			row[i] = build(d+1, next)
		}
		return row
	}
	return build(0, nil)
}

func gridIndex(idx, shape []uint64) int {
	n := 0
	for d, i := range idx {
		n = n*int(shape[d]) + int(i)
	}
	return n
}

// Every value type, ranks 1 to 5, with edge chunks in every dimension and
// compression on the even ranks.
func TestWriteChunk_KindsAndRanks(t *testing.T) {
	kinds := []struct {
		name  string
		vtype ValueType
		opts  []VariableOption
		elem  gridElem
	}{
		{"int8", Int8, nil, func(n int) interface{} { return int8(n%120 - 60) }},
		{"uint8", Uint8, nil, func(n int) interface{} { return uint8(n%250 + 1) }},
		{"int16", Int16, nil, func(n int) interface{} { return int16(n*7 - 1000) }},
		{"int32", Int32, nil, func(n int) interface{} { return int32(n*1000 - 5) }},
		{"int64", Int64, nil, func(n int) interface{} { return int64(n)*1e10 - 3 }},
		{"float32", Float32, nil, func(n int) interface{} { return float32(n)*0.5 - 7 }},
		{"float64", Float64, nil, func(n int) interface{} { return float64(n)*1.25 - 100 }},
		{"fixed string", FixedString, []VariableOption{WithStringLength(4)}, func(n int) interface{} { return fmt.Sprintf("s%d", n%1000) }},
		{"vlen string", VlenString, nil, func(n int) interface{} { return fmt.Sprintf("v%d", n) }},
		{"reference", Reference, nil, nil},
	}

	for _, kind := range kinds {
		for rank := 1; rank <= 5; rank++ {
			t.Run(fmt.Sprintf("%s rank %d", kind.name, rank), func(t *testing.T) {
				// Extents 3 and 4 with chunk extents 2 and 3 leave a
				// one-element edge chunk in every dimension.
				shape := make([]uint64, rank)
				chunkDims := make([]uint64, rank)
				for d := range shape {
					shape[d] = uint64(3 + d%2)
					chunkDims[d] = uint64(2 + d%2)
				}
				compressed := rank%2 == 0 && kind.vtype != VlenString
				opts := append([]VariableOption{WithChunks(chunkDims...)}, kind.opts...)
				if compressed {
					opts = append(opts, WithCompression(4))
				}

				f, path := createTestFile(t)
				v, err := f.Root().AddVariable("v", kind.vtype, shape, opts...)
				require.NoError(t, err)
				require.NoError(t, f.EndDefine())

				elem := kind.elem
				if kind.vtype == Reference {
					elem = func(int) interface{} { return v }
				}
				tiles := v.ChunkTiles()
				for _, tile := range tiles {
					require.NoError(t, v.WriteChunk(tile.Start, gridTile(tile.Start, tile.Extent, shape, elem)))
				}
				require.NoError(t, f.Close())

				im := readImage(t, path)
				_, root := im.superblock()
				self := links(im.header(root))["v"]
				l := decodeLayout(messagesOf(im.header(self), core.MsgDataLayout)[0].body)
				elemLen := int(l.elemLen)
				entries := im.chunkIndex(l.addr, rank)
				require.Len(t, entries, len(tiles))

				tileLen := 1
				for _, d := range chunkDims {
					tileLen *= int(d)
				}
				for i, e := range entries {
					tile := tiles[i]
					require.Equal(t, tile.Start, e.start)

					payload := im.bytes(e.addr, int(e.size))
					if compressed {
						r, err := zlib.NewReader(bytes.NewReader(payload))
						require.NoError(t, err)
						payload, err = io.ReadAll(r)
						require.NoError(t, err)
					}
					require.Len(t, payload, tileLen*elemLen, "chunk %v is padded to the full chunk shape", tile.Start)

					local := make([]uint64, rank)
					for p := 0; p < tileLen; p++ {
						rem := p
						inside := true
						for d := rank - 1; d >= 0; d-- {
							local[d] = uint64(rem % int(chunkDims[d]))
							rem /= int(chunkDims[d])
							if local[d] >= tile.Extent[d] {
								inside = false
							}
						}
						got := payload[p*elemLen : (p+1)*elemLen]
						if !inside {
							assert.Equal(t, make([]byte, elemLen), got, "padding of chunk %v at %v", tile.Start, local)
							continue
						}

						idx := make([]uint64, rank)
						for d := range idx {
							idx[d] = tile.Start[d] + local[d]
						}
						n := gridIndex(idx, shape)
						switch kind.vtype {
						case Reference:
							assert.Equal(t, self, binary.LittleEndian.Uint64(got))
						case VlenString:
							want := elem(n).(string)
							assert.Equal(t, uint32(len(want)), binary.LittleEndian.Uint32(got))
							heap, index := binary.LittleEndian.Uint64(got[4:]), binary.LittleEndian.Uint32(got[12:])
							assert.Equal(t, want, string(im.heapObject(heap, index)))
						default:
							assert.Equal(t, gridBytes(elem(n), elemLen), got, "element %v", idx)
						}
					}
				}
			})
		}
	}
}
