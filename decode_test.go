package h5writer

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5writer/internal/core"
)

// image is a produced file, decoded just far enough to check the layout.
type image struct {
	t    *testing.T
	data []byte
}

func readImage(t *testing.T, path string) *image {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return &image{t: t, data: data}
}

func (im *image) bytes(off uint64, n int) []byte {
	im.t.Helper()
	require.LessOrEqual(im.t, off+uint64(n), uint64(len(im.data)), "read past end of file at %d", off)
	return im.data[off : off+uint64(n)]
}

func (im *image) u16(off uint64) uint16 { return binary.LittleEndian.Uint16(im.bytes(off, 2)) }
func (im *image) u32(off uint64) uint32 { return binary.LittleEndian.Uint32(im.bytes(off, 4)) }
func (im *image) u64(off uint64) uint64 { return binary.LittleEndian.Uint64(im.bytes(off, 8)) }

// superblock checks a version 2 superblock and returns the end of file and
// the root object header address.
func (im *image) superblock() (eof, root uint64) {
	im.t.Helper()
	require.Equal(im.t, []byte(core.Signature), im.bytes(0, 8))
	require.Equal(im.t, byte(2), im.data[8], "superblock version")
	require.Equal(im.t, core.Checksum(im.bytes(0, 44)), im.u32(44), "superblock checksum")
	return im.u64(28), im.u64(36)
}

// message is one decoded header message.
type message struct {
	typ  core.MessageType
	body []byte
}

// header decodes the version 2 object header at addr.
func (im *image) header(addr uint64) []message {
	im.t.Helper()
	require.Equal(im.t, "OHDR", string(im.bytes(addr, 4)), "object header signature at %d", addr)
	require.Equal(im.t, byte(2), im.data[addr+4])
	flags := im.data[addr+5]
	require.NotZero(im.t, flags&0x20, "times stored")

	pos := addr + 6 + 16
	var size uint64
	switch flags & 0x03 {
	case 0:
		size = uint64(im.data[pos])
		pos++
	case 1:
		size = uint64(im.u16(pos))
		pos += 2
	case 2:
		size = uint64(im.u32(pos))
		pos += 4
	default:
		size = im.u64(pos)
		pos += 8
	}

	end := pos + size
	require.Equal(im.t, core.Checksum(im.bytes(addr, int(end-addr))), im.u32(end), "object header checksum at %d", addr)

	var msgs []message
	for pos < end {
		typ := core.MessageType(im.data[pos])
		n := uint64(im.u16(pos + 1))
		pos += 6 // type, size, flags, creation order
		msgs = append(msgs, message{typ: typ, body: im.bytes(pos, int(n))})
		pos += n
	}
	require.Equal(im.t, end, pos, "messages overrun chunk 0")
	return msgs
}

func messagesOf(msgs []message, typ core.MessageType) []message {
	var out []message
	for _, m := range msgs {
		if m.typ == typ {
			out = append(out, m)
		}
	}
	return out
}

func messageTypes(msgs []message) []core.MessageType {
	out := make([]core.MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.typ
	}
	return out
}

// links returns the link targets of a version 2 group header by name.
func links(msgs []message) map[string]uint64 {
	out := make(map[string]uint64)
	for _, m := range messagesOf(msgs, core.MsgLink) {
		n := binary.LittleEndian.Uint64(m.body[10:])
		name := string(m.body[18 : 18+n])
		out[name] = binary.LittleEndian.Uint64(m.body[18+n:])
	}
	return out
}

// attribute is a decoded attribute message.
type attribute struct {
	name      string
	datatype  []byte
	dataspace []byte
	value     []byte
}

func attributes(msgs []message) map[string]attribute {
	out := make(map[string]attribute)
	for _, m := range messagesOf(msgs, core.MsgAttribute) {
		b := m.body
		nameLen := int(binary.LittleEndian.Uint16(b[2:]))
		typeLen := int(binary.LittleEndian.Uint16(b[4:]))
		spaceLen := int(binary.LittleEndian.Uint16(b[6:]))
		pos := 9
		a := attribute{name: string(b[pos : pos+nameLen-1])}
		pos += nameLen
		a.datatype = b[pos : pos+typeLen]
		pos += typeLen
		a.dataspace = b[pos : pos+spaceLen]
		pos += spaceLen
		a.value = b[pos:]
		out[a.name] = a
	}
	return out
}

// dataspaceShape decodes a version 2 dataspace message.
func dataspaceShape(b []byte) []uint64 {
	rank := int(b[1])
	shape := make([]uint64, rank)
	for i := range shape {
		shape[i] = binary.LittleEndian.Uint64(b[4+8*i:])
	}
	return shape
}

// layout is a decoded version 3 data layout message.
type layout struct {
	class     byte
	addr      uint64 // contiguous address, or the chunk B-tree
	size      uint64 // contiguous only
	chunkDims []uint32
	elemLen   uint32
}

func decodeLayout(b []byte) layout {
	l := layout{class: b[1]}
	if l.class == 1 {
		l.addr = binary.LittleEndian.Uint64(b[2:])
		l.size = binary.LittleEndian.Uint64(b[10:])
		return l
	}
	rank := int(b[2]) - 1
	l.addr = binary.LittleEndian.Uint64(b[3:])
	for i := 0; i < rank; i++ {
		l.chunkDims = append(l.chunkDims, binary.LittleEndian.Uint32(b[11+4*i:]))
	}
	l.elemLen = binary.LittleEndian.Uint32(b[11+4*rank:])
	return l
}

// chunkEntry is one chunk of a chunk B-tree.
type chunkEntry struct {
	size  uint32
	start []uint64
	addr  uint64
}

// chunkIndex decodes the chunk B-tree at addr for a variable of the given
// rank.
func (im *image) chunkIndex(addr uint64, rank int) []chunkEntry {
	im.t.Helper()
	require.Equal(im.t, "TREE", string(im.bytes(addr, 4)))
	require.Equal(im.t, byte(1), im.data[addr+4], "chunk B-tree type")
	require.Equal(im.t, byte(0), im.data[addr+5], "chunk B-tree level")
	n := int(im.u16(addr + 6))

	pos := addr + 24
	keyLen := uint64(8 + 8*(rank+1))
	entries := make([]chunkEntry, n)
	for i := range entries {
		e := chunkEntry{size: im.u32(pos)}
		for d := 0; d < rank; d++ {
			e.start = append(e.start, im.u64(pos+8+uint64(8*d)))
		}
		pos += keyLen
		e.addr = im.u64(pos)
		pos += 8
		entries[i] = e
	}
	return entries
}

// heapObject returns object index of the global heap collection at addr.
func (im *image) heapObject(addr uint64, index uint32) []byte {
	im.t.Helper()
	require.Equal(im.t, "GCOL", string(im.bytes(addr, 4)))
	end := addr + im.u64(addr+8)
	pos := addr + 16
	for uint32(im.u16(pos)) != index {
		require.NotZero(im.t, im.u16(pos), "object %d not in the collection at %d", index, addr)
		size := im.u64(pos + 8)
		pos += 16 + (size+7)/8*8
		require.Less(im.t, pos, end, "object %d not in the collection at %d", index, addr)
	}
	return im.bytes(pos+16, int(im.u64(pos+8)))
}

func float64s(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}

func int32s(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

// cstring trims a fixed string field at its first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
