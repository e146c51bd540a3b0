package core

import (
	"encoding/binary"

	"github.com/scigolib/h5writer/internal/writer"
)

// fakeHeap records global heap puts.
type fakeHeap struct {
	BlockBase
	items [][]byte
}

func (h *fakeHeap) Put(data []byte) (int, error) {
	h.items = append(h.items, append([]byte(nil), data...))
	return len(h.items), nil
}

func (h *fakeHeap) PutRagged(rows [][]byte) ([]int, error) {
	indices := make([]int, len(rows))
	for i, row := range rows {
		indices[i], _ = h.Put(row)
	}
	return indices, nil
}

func (h *fakeHeap) Format(*Context) error { return nil }

// fixedBlock is a block at a known address.
type fixedBlock struct {
	BlockBase
}

func (*fixedBlock) Format(*Context) error { return nil }

func newFixedBlock(addr int64) *fixedBlock {
	b := &fixedBlock{}
	b.SetAddress(addr)
	return b
}

func newTestContext(version int) *Context {
	return &Context{
		Buf:   writer.NewBuffer(),
		Mode:  Commit(1),
		File:  NewFileState(version, 1700000000),
		Queue: NewWorkQueue(),
	}
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func encodeBody(ctx *Context, m Message) ([]byte, error) {
	if err := m.Encode(ctx); err != nil {
		return nil, err
	}
	return ctx.Buf.Bytes(), nil
}
