package h5writer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/structures"
	"github.com/scigolib/h5writer/internal/utils"
	"github.com/scigolib/h5writer/internal/writer"
)

// rawDataAlignment is the alignment of every chunk payload in the file.
const rawDataAlignment = 8

// maxCompressionLevel is the highest deflate level.
const maxCompressionLevel = 9

// Variable is an HDF5 dataset: a typed multidimensional array with
// attributes. Its data is written chunk by chunk between EndDefine and
// Close.
type Variable struct {
	node

	dtype     *core.DataType
	shape     []uint64 // nil: no data, empty: scalar
	chunkDims []uint64 // nil: contiguous
	level     int
	fill      core.Value
	fillMode  core.FillMode

	grid   *writer.ChunkCoordinator // chunked only
	chunks []*core.Chunk
	index  *structures.ChunkIndex // chunked only
}

// AddVariable declares a variable in the group.
//
// shape nil declares a variable without data that only carries attributes;
// an empty shape declares a scalar.
//
// Example:
//
//	v, err := root.AddVariable("temperature", h5writer.Float64, []uint64{10, 5},
//	    h5writer.WithFill(-999999.0))
func (g *Group) AddVariable(name string, vtype ValueType, shape []uint64, opts ...VariableOption) (*Variable, error) {
	if err := g.checkChild(name); err != nil {
		return nil, err
	}

	var cfg variableConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &Variable{
		node:     node{file: g.file, parent: g, name: name},
		level:    cfg.level,
		fillMode: core.FillUndefined,
	}
	v.SetAddress(core.UndefinedAddress)
	if shape != nil {
		v.shape = append([]uint64{}, shape...)
	}
	path := v.Path()

	if err := v.declareType(vtype, cfg); err != nil {
		return nil, utils.WrapError(path, err)
	}
	if err := v.declareLayout(cfg); err != nil {
		return nil, utils.WrapError(path, err)
	}
	if err := v.declareFill(cfg); err != nil {
		return nil, utils.WrapError(path, err)
	}

	g.variables = append(g.variables, v)
	g.file.variables = append(g.file.variables, v)
	return v, nil
}

func (v *Variable) declareType(vtype ValueType, cfg variableConfig) error {
	switch vtype {
	case Vlen:
		return utils.SchemaError("type", "vlen data is only supported in ragged attributes")
	case FixedString:
		if cfg.strLen < 1 {
			return utils.SchemaError("type", "fixed string length %d, want at least 1", cfg.strLen)
		}
	}
	if cfg.strLen != 0 && vtype != FixedString {
		return utils.SchemaError("type", "string length given for %s", vtype)
	}
	if len(cfg.members) > 0 && vtype != Compound {
		return utils.SchemaError("type", "members given for %s", vtype)
	}

	dt, err := dataType(vtype, cfg.strLen, cfg.members)
	if err != nil {
		return err
	}
	if err := dt.Validate(); err != nil {
		return err
	}
	v.dtype = dt
	return nil
}

func (v *Variable) declareLayout(cfg variableConfig) error {
	if cfg.level < 0 || cfg.level > maxCompressionLevel {
		return utils.SchemaError("compression", "level %d outside 0..%d", cfg.level, maxCompressionLevel)
	}
	if cfg.level > 0 && cfg.chunks == nil {
		return utils.SchemaError("compression", "compression requires chunking")
	}
	if cfg.level > 0 && v.dtype.Type == VlenString {
		return utils.SchemaError("compression", "vlen string variables cannot be compressed")
	}

	if cfg.chunks == nil {
		if v.shape != nil {
			v.chunks = []*core.Chunk{core.NewChunk(make([]uint64, len(v.shape)), append([]uint64{}, v.shape...))}
		}
		return nil
	}

	if len(v.shape) == 0 {
		return utils.SchemaError("chunks", "a variable without extents cannot be chunked")
	}
	if len(cfg.chunks) != len(v.shape) {
		return utils.SchemaError("chunks", "chunk rank %d, variable rank %d", len(cfg.chunks), len(v.shape))
	}
	grid, err := writer.NewChunkCoordinator(v.shape, cfg.chunks)
	if err != nil {
		return utils.SchemaError("chunks", "%v", err)
	}
	if grid.TotalChunks() > math.MaxUint16 {
		return utils.SchemaError("chunks", "%d chunks exceed the chunk index capacity %d", grid.TotalChunks(), math.MaxUint16)
	}

	v.grid = grid
	v.chunkDims = grid.ChunkDims()
	for _, tile := range grid.Partition() {
		v.chunks = append(v.chunks, core.NewChunk(tile.Start, tile.Extent))
	}
	v.index = structures.NewChunkIndex(v.chunks, v.shape, v.dtype.ElemLen())
	return nil
}

func (v *Variable) declareFill(cfg variableConfig) error {
	if cfg.fill == nil && !cfg.zeroFill {
		return nil
	}
	if v.dtype.Type == Reference {
		return utils.SchemaError("fill", "reference variables take no fill value")
	}
	if cfg.fill == nil {
		v.fillMode = core.FillDefault
		return nil
	}
	if cfg.zeroFill {
		return utils.SchemaError("fill", "both an explicit and the default fill given")
	}

	val, err := toValue(cfg.fill)
	if err != nil {
		return err
	}
	if err := core.WriteValue(v.file.probeContext(), v.dtype, val, []uint64{}); err != nil {
		return utils.WrapError("fill", err)
	}
	v.fill, v.fillMode = val, core.FillExplicit
	return nil
}

func (v *Variable) block() core.Block {
	return v
}

// Type returns the element type.
func (v *Variable) Type() ValueType {
	return v.dtype.Type
}

// Shape returns the extents; nil for a variable without data.
func (v *Variable) Shape() []uint64 {
	return v.shape
}

// ChunkShape returns the chunk extents, nil for a contiguous variable.
func (v *Variable) ChunkShape() []uint64 {
	return v.chunkDims
}

// NumChunks returns the number of chunks the data is written in.
func (v *Variable) NumChunks() int {
	return len(v.chunks)
}

// ChunkTile locates one chunk of a variable.
type ChunkTile struct {
	Start  []uint64 // index of the first element
	Extent []uint64 // elements in the chunk, smaller at the edges
}

// ChunkTiles returns the chunks in row-major order of their start
// indices.
func (v *Variable) ChunkTiles() []ChunkTile {
	tiles := make([]ChunkTile, len(v.chunks))
	for i, c := range v.chunks {
		tiles[i] = ChunkTile{Start: c.Start, Extent: c.Extent}
	}
	return tiles
}

// TotalElements returns the number of elements: the product of the
// extents, 1 for a scalar, 0 without data.
func (v *Variable) TotalElements() uint64 {
	n, _ := utils.ElementCount(v.shape)
	return n
}

// AddAttribute attaches an attribute to the variable. See
// Group.AddAttribute.
func (v *Variable) AddAttribute(name string, vtype ValueType, value interface{}, ragged bool) error {
	return v.addAttribute(name, vtype, value, ragged)
}

// WriteChunk writes the chunk whose first element is at start. data must
// have exactly the chunk's extent, which is smaller than the chunk shape
// for edge chunks.
//
// Example:
//
//	for i := uint64(0); i < 100; i += 10 {
//	    for j := uint64(0); j < 100; j += 10 {
//	        if err := v.WriteChunk([]uint64{i, j}, tile(i, j)); err != nil {
//	            return err
//	        }
//	    }
//	}
func (v *Variable) WriteChunk(start []uint64, data interface{}) error {
	path := v.Path()
	if err := v.file.checkWriting(path); err != nil {
		return err
	}
	if v.TotalElements() == 0 {
		return utils.SchemaError(path, "variable holds no data")
	}

	chunk, err := v.locate(start)
	if err != nil {
		return utils.WrapError(path, err)
	}
	if chunk.Written() {
		return utils.SequenceError(path, "chunk %v already written", chunk.Start)
	}

	val, err := toValue(data)
	if err != nil {
		return utils.WrapError(path, err)
	}

	if v.dtype.Type == VlenString {
		err = v.writeVlenChunk(chunk, val)
	} else {
		err = v.writeChunk(chunk, val)
	}
	if err != nil {
		return utils.WrapError(fmt.Sprintf("%s chunk %v", path, chunk.Start), err)
	}

	v.file.metrics.chunkWritten(chunk.Size)
	v.file.log.WithFields(logrus.Fields{
		"path":  path,
		"start": chunk.Start,
		"addr":  chunk.Addr,
		"size":  chunk.Size,
	}).Debug("chunk written")
	return nil
}

// WriteData writes all the data of a contiguous or single-chunk variable.
func (v *Variable) WriteData(data interface{}) error {
	if len(v.chunks) > 1 {
		return utils.SchemaError(v.Path(), "variable has %d chunks; write them with WriteChunk", len(v.chunks))
	}
	return v.WriteChunk(make([]uint64, len(v.shape)), data)
}

func (v *Variable) locate(start []uint64) (*core.Chunk, error) {
	if v.grid == nil {
		if len(start) != len(v.shape) {
			return nil, utils.SchemaError("start", "start rank %d, variable rank %d", len(start), len(v.shape))
		}
		for i, s := range start {
			if s != 0 {
				return nil, utils.SchemaError("start", "contiguous data starts at 0, got %d in dimension %d", s, i)
			}
		}
		return v.chunks[0], nil
	}

	i, err := v.grid.Locate(start)
	if err != nil {
		return nil, utils.SchemaError("start", "%v", err)
	}
	return v.chunks[i], nil
}

// tile returns the full extent a chunk payload is padded to.
func (v *Variable) tile(chunk *core.Chunk) []uint64 {
	if v.chunkDims == nil {
		return chunk.Extent
	}
	return v.chunkDims
}

// rawContext returns the context raw data is encoded in. Raw data refers
// to pass 1 addresses, which pass 2 reproduces.
func (v *Variable) rawContext(buf *writer.Buffer, heap core.HeapWriter) *core.Context {
	return &core.Context{
		Buf:        buf,
		Mode:       core.Commit(1),
		File:       v.file.layout,
		GlobalHeap: heap,
	}
}

// writeChunk streams the payload to the end of the file, through the codec
// when the variable is compressed.
func (v *Variable) writeChunk(chunk *core.Chunk, val core.Value) error {
	out := v.file.out
	addr, w, err := out.BeginAppend(rawDataAlignment)
	if err != nil {
		return err
	}
	buf, err := writer.NewChannelBuffer(w, v.file.cfg.codec, v.level)
	if err != nil {
		return err
	}
	if err := core.WriteTile(v.rawContext(buf, nil), v.dtype, val, chunk.Extent, v.tile(chunk)); err != nil {
		buf.Discard()
		return err
	}
	n, err := buf.Finish()
	if err != nil {
		buf.Discard()
		return err
	}
	if n > utils.MaxChunkSize {
		return utils.EncodingError("chunk", "%d bytes exceed the chunk size limit", n)
	}
	if err := out.CommitAppend(addr, uint64(n)); err != nil {
		return err
	}

	chunk.Addr, chunk.Size = int64(addr), n
	return nil
}

// writeVlenChunk writes a private global heap holding the chunk's strings,
// followed by the chunk's table of heap references, as one block.
func (v *Variable) writeVlenChunk(chunk *core.Chunk, val core.Value) error {
	out := v.file.out
	addr, w, err := out.BeginAppend(rawDataAlignment)
	if err != nil {
		return err
	}

	heap := structures.NewGlobalHeap()
	heap.SetAddress(int64(addr))

	refs := writer.NewBuffer()
	if err := core.WriteTile(v.rawContext(refs, heap), v.dtype, val, chunk.Extent, v.tile(chunk)); err != nil {
		return err
	}
	heapBuf := writer.NewBuffer()
	if err := heap.Format(v.rawContext(heapBuf, nil)); err != nil {
		return err
	}

	if refs.Len() > utils.MaxChunkSize {
		return utils.EncodingError("chunk", "%d bytes exceed the chunk size limit", refs.Len())
	}

	heapLen := heapBuf.Len()
	heapBuf.Splice(refs)
	n, err := heapBuf.WriteTo(w)
	if err != nil {
		return err
	}
	if err := out.CommitAppend(addr, uint64(n)); err != nil {
		return err
	}

	chunk.Addr, chunk.Size = int64(addr)+heapLen, refs.Len()
	return nil
}

// missingChunks returns the start indices of the chunks not yet written.
func (v *Variable) missingChunks() [][]uint64 {
	if v.TotalElements() == 0 {
		return nil
	}
	var missing [][]uint64
	for _, c := range v.chunks {
		if !c.Written() {
			missing = append(missing, c.Start)
		}
	}
	return missing
}

// prepare builds the header messages. It runs once, on pass 1.
//
// Datatype, dataspace, layout, fill value, modification time, the filter
// pipeline when compressed, attribute info (version 2), attributes.
func (v *Variable) prepare() {
	layout := &core.DataLayout{Class: core.LayoutContiguous}
	if v.index != nil {
		layout = &core.DataLayout{
			Class:     core.LayoutChunked,
			Index:     v.index,
			ChunkDims: v.chunkDims,
			ElemLen:   v.dtype.ElemLen(),
		}
	} else if len(v.chunks) == 1 {
		layout.Chunk = v.chunks[0]
	}

	fill := &core.FillValue{Mode: v.fillMode, Type: v.dtype, Elem: v.fill}

	msgs := []core.Message{
		v.dtype,
		&core.Dataspace{Shape: v.shape},
		layout,
		fill,
		core.ModTime{},
	}
	if v.level > 0 {
		msgs = append(msgs, &core.FilterPipeline{Codec: v.file.cfg.codec, Level: v.level})
	}
	if v.file.layout.Version == 2 {
		msgs = append(msgs, &core.AttrInfo{NumAttrs: len(v.attrs)})
	}
	msgs = append(msgs, v.attributeMessages()...)

	v.header.Messages = msgs
	v.prepared = true
}

// Format implements core.Block: the variable's object header.
func (v *Variable) Format(ctx *core.Context) error {
	if !v.prepared {
		if ctx.Mode.Pass() != 1 {
			return utils.EncodingError(v.Path(), "variable formatted in %s before pass 1", ctx.Mode)
		}
		v.prepare()
	}
	if err := v.header.Format(ctx); err != nil {
		return utils.WrapError(v.Path(), err)
	}
	return nil
}
