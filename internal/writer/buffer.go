package writer

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/scigolib/h5writer/internal/utils"
)

const (
	// initialBufferLen is the capacity of a fresh Buffer.
	initialBufferLen = 10000

	// FillByte pads aligned regions so that gaps are easy to spot in dumps.
	FillByte = 0x77
)

// Buffer is an append-only little-endian byte sink.
//
// Without an output channel the buffer grows in memory, and its content is
// the metadata image of the file. With a channel the buffer streams: when
// full it is flushed to the channel (through the compression codec when a
// level is set) instead of grown.
//
// Errors are sticky, in the manner of bufio.Writer: the first failure is
// recorded, later writes are no-ops and Err reports it.
//
// Thread Safety: not thread-safe; one writer, one cursor.
type Buffer struct {
	data []byte
	pos  int   // cursor, relative to data
	end  int   // high-water mark, relative to data
	base int64 // bytes already flushed out of data

	out    *countingWriter
	stream io.WriteCloser // compressing stream, nil when uncompressed
	err    error
}

// countingWriter counts the bytes that reach the output channel.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewBuffer creates an in-memory buffer.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, initialBufferLen)}
}

// NewChannelBuffer creates a buffer that streams into out.
//
// When level > 0 the flushed bytes are compressed by codec.
func NewChannelBuffer(out io.Writer, codec Codec, level int) (*Buffer, error) {
	b := &Buffer{
		data: make([]byte, initialBufferLen),
		out:  &countingWriter{w: out},
	}
	if level > 0 {
		if codec == nil {
			return nil, utils.EncodingError("channel buffer", "compression level %d without a codec", level)
		}
		stream, err := codec.NewWriter(b.out, level)
		if err != nil {
			return nil, utils.WrapError("channel buffer", err)
		}
		b.stream = stream
	}
	return b, nil
}

// Err returns the first error recorded by the buffer.
func (b *Buffer) Err() error {
	return b.err
}

func (b *Buffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// reserve makes room for n more bytes at the cursor.
func (b *Buffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if b.pos+n <= len(b.data) {
		return true
	}
	if b.out != nil && b.pos == b.end {
		if err := b.Flush(); err != nil {
			return false
		}
		if n <= len(b.data) {
			return true
		}
	}
	grown := make([]byte, 100+2*(b.pos+n))
	copy(grown, b.data[:b.end])
	b.data = grown
	return true
}

func (b *Buffer) advance(n int) {
	b.pos += n
	if b.pos > b.end {
		b.end = b.pos
	}
}

func (b *Buffer) rangeError(name, width string, v int64) {
	b.fail(utils.EncodingError(name, "value %d out of range for %s", v, width))
}

// PutU8 appends an unsigned byte; v must be in 0..255.
func (b *Buffer) PutU8(name string, v int) {
	if v < 0 || v > math.MaxUint8 {
		b.rangeError(name, "u8", int64(v))
		return
	}
	if b.reserve(1) {
		b.data[b.pos] = byte(v)
		b.advance(1)
	}
}

// PutU16 appends an unsigned short; v must be in 0..65535.
func (b *Buffer) PutU16(name string, v int) {
	if v < 0 || v > math.MaxUint16 {
		b.rangeError(name, "u16", int64(v))
		return
	}
	if b.reserve(2) {
		binary.LittleEndian.PutUint16(b.data[b.pos:], uint16(v))
		b.advance(2)
	}
}

// PutU32 appends an unsigned int; v must be in 0..4294967295.
func (b *Buffer) PutU32(name string, v int64) {
	if v < 0 || v > math.MaxUint32 {
		b.rangeError(name, "u32", v)
		return
	}
	if b.reserve(4) {
		binary.LittleEndian.PutUint32(b.data[b.pos:], uint32(v))
		b.advance(4)
	}
}

// PutU64 appends a 64-bit field. Negative values are stored two's
// complement, so -1 encodes the undefined address.
func (b *Buffer) PutU64(_ string, v int64) {
	if b.reserve(8) {
		binary.LittleEndian.PutUint64(b.data[b.pos:], uint64(v))
		b.advance(8)
	}
}

// PutI8 appends a signed byte of raw data.
func (b *Buffer) PutI8(v int8) {
	if b.reserve(1) {
		b.data[b.pos] = byte(v)
		b.advance(1)
	}
}

// PutI16 appends a signed short of raw data.
func (b *Buffer) PutI16(v int16) {
	if b.reserve(2) {
		binary.LittleEndian.PutUint16(b.data[b.pos:], uint16(v))
		b.advance(2)
	}
}

// PutI32 appends a signed int of raw data.
func (b *Buffer) PutI32(v int32) {
	if b.reserve(4) {
		binary.LittleEndian.PutUint32(b.data[b.pos:], uint32(v))
		b.advance(4)
	}
}

// PutI64 appends a signed long of raw data.
func (b *Buffer) PutI64(v int64) {
	if b.reserve(8) {
		binary.LittleEndian.PutUint64(b.data[b.pos:], uint64(v))
		b.advance(8)
	}
}

// PutF32 appends an IEEE 754 single of raw data.
func (b *Buffer) PutF32(v float32) {
	if b.reserve(4) {
		binary.LittleEndian.PutUint32(b.data[b.pos:], math.Float32bits(v))
		b.advance(4)
	}
}

// PutF64 appends an IEEE 754 double of raw data.
func (b *Buffer) PutF64(v float64) {
	if b.reserve(8) {
		binary.LittleEndian.PutUint64(b.data[b.pos:], math.Float64bits(v))
		b.advance(8)
	}
}

// PutBytes appends raw bytes.
func (b *Buffer) PutBytes(_ string, p []byte) {
	if b.reserve(len(p)) {
		copy(b.data[b.pos:], p)
		b.advance(len(p))
	}
}

// PutZeros appends n zero bytes.
func (b *Buffer) PutZeros(name string, n int) {
	if n < 0 {
		b.fail(utils.EncodingError(name, "negative zero-fill length %d", n))
		return
	}
	if b.reserve(n) {
		clear(b.data[b.pos : b.pos+n])
		b.advance(n)
	}
}

// Align appends FillByte until Position is a multiple of boundary.
func (b *Buffer) Align(name string, boundary int) {
	if boundary <= 0 {
		b.fail(utils.EncodingError(name, "invalid alignment %d", boundary))
		return
	}
	pad := int((int64(boundary) - b.Position()%int64(boundary)) % int64(boundary))
	if pad > 0 && b.reserve(pad) {
		for i := 0; i < pad; i++ {
			b.data[b.pos+i] = FillByte
		}
		b.advance(pad)
	}
}

// Splice appends the full content of an in-memory buffer.
func (b *Buffer) Splice(other *Buffer) {
	if other.err != nil {
		b.fail(other.err)
		return
	}
	if other.base != 0 {
		b.fail(utils.EncodingError("splice", "source buffer has been flushed"))
		return
	}
	b.PutBytes("splice", other.data[:other.end])
}

// Position returns the logical cursor: bytes flushed plus the buffered offset.
func (b *Buffer) Position() int64 {
	return b.base + int64(b.pos)
}

// Len returns the logical length written so far.
func (b *Buffer) Len() int64 {
	return b.base + int64(b.end)
}

// SeekTo moves the cursor to the absolute position pos, which must lie in
// the buffered region. It does not truncate.
func (b *Buffer) SeekTo(pos int64) error {
	rel := pos - b.base
	if rel < 0 || rel > int64(b.end) {
		err := utils.EncodingError("seek", "position %d outside buffered range [%d, %d]", pos, b.base, b.Len())
		b.fail(err)
		return err
	}
	b.pos = int(rel)
	return nil
}

// PatchU16 overwrites a u16 field previously written at pos.
func (b *Buffer) PatchU16(name string, pos int64, v int) {
	if v < 0 || v > math.MaxUint16 {
		b.rangeError(name, "u16", int64(v))
		return
	}
	if p, ok := b.patchAt(name, pos, 2); ok {
		binary.LittleEndian.PutUint16(p, uint16(v))
	}
}

func (b *Buffer) patchAt(name string, pos int64, width int) ([]byte, bool) {
	if b.err != nil {
		return nil, false
	}
	rel := pos - b.base
	if rel < 0 || rel+int64(width) > int64(b.end) {
		b.fail(utils.EncodingError(name, "patch at %d outside buffered range [%d, %d]", pos, b.base, b.Len()))
		return nil, false
	}
	return b.data[rel : rel+int64(width)], true
}

// Slice returns the buffered bytes in [start, end). The slice aliases the
// buffer and is only valid until the next write.
func (b *Buffer) Slice(start, end int64) ([]byte, error) {
	rs, re := start-b.base, end-b.base
	if rs < 0 || re < rs || re > int64(b.end) {
		return nil, utils.EncodingError("slice", "range [%d, %d) outside buffered range [%d, %d]", start, end, b.base, b.Len())
	}
	return b.data[rs:re], nil
}

// Bytes returns the buffered content.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.end]
}

// WriteTo writes the buffered content to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	n, err := w.Write(b.data[:b.end])
	if err != nil {
		return int64(n), utils.IOError("write buffer", err)
	}
	return int64(n), nil
}

// Flush sends the buffered content to the output channel and empties the
// buffer.
func (b *Buffer) Flush() error {
	if b.err != nil {
		return b.err
	}
	if b.out == nil {
		b.fail(utils.EncodingError("flush", "buffer has no output channel"))
		return b.err
	}
	if b.end == 0 {
		return nil
	}
	var w io.Writer = b.out
	if b.stream != nil {
		w = b.stream
	}
	if _, err := w.Write(b.data[:b.end]); err != nil {
		b.fail(utils.IOError("flush buffer", err))
		return b.err
	}
	b.base += int64(b.end)
	b.pos, b.end = 0, 0
	return nil
}

// Discard abandons a channel buffer after a failed write: the pending
// content is dropped and the compression stream is closed without reaching
// the channel. The buffer reports an error afterwards.
func (b *Buffer) Discard() {
	if b.stream != nil {
		if b.out != nil {
			b.out.w = io.Discard
		}
		_ = b.stream.Close()
		b.stream = nil
	}
	b.pos, b.end = 0, 0
	if b.err == nil {
		b.fail(utils.EncodingError("buffer", "discarded"))
	}
}

// Finish flushes the remaining content, closes the compression stream and
// returns the number of bytes that reached the output channel.
func (b *Buffer) Finish() (int64, error) {
	if err := b.Flush(); err != nil {
		return 0, err
	}
	if b.stream != nil {
		if err := b.stream.Close(); err != nil {
			b.fail(utils.IOError("close compression stream", err))
			return 0, b.err
		}
		b.stream = nil
	}
	return b.out.n, nil
}
