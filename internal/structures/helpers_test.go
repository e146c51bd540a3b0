package structures

import (
	"encoding/binary"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/writer"
)

// objectAt is a block at a known address.
type objectAt struct {
	core.BlockBase
}

func (*objectAt) Format(*core.Context) error { return nil }

func newObjectAt(addr int64) *objectAt {
	b := &objectAt{}
	b.SetAddress(addr)
	return b
}

func newContext(version int) *core.Context {
	return &core.Context{
		Buf:   writer.NewBuffer(),
		Mode:  core.Commit(1),
		File:  core.NewFileState(version, 1700000000),
		Queue: core.NewWorkQueue(),
	}
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
