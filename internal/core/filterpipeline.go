package core

import "github.com/scigolib/h5writer/internal/writer"

// FilterPipeline is the filter pipeline message of a compressed variable.
// The writer applies exactly one filter, the deflate codec.
type FilterPipeline struct {
	Codec writer.Codec
	Level int
}

// MsgType implements Message.
func (*FilterPipeline) MsgType() MessageType { return MsgFilterPipeline }

// Encode writes a version 1 pipeline with one filter.
//
// Format:
//   - Version (1, = 1), Number of filters (1), Reserved (2 + 4)
//   - Filter id (2), Name length (2), Flags (2), Client value count (2)
//   - Name, null-terminated, padded to a multiple of 8
//   - Client values (4 each), padded to an even count
//
// Reference: HDF5 spec IV.A.2.l (Filter Pipeline Message), H5Opline.c.
func (f *FilterPipeline) Encode(ctx *Context) error {
	buf := ctx.Buf
	name := append([]byte(f.Codec.Name()), 0)
	if pad := (8 - len(name)%8) % 8; pad > 0 {
		name = append(name, make([]byte, pad)...)
	}

	buf.PutU8("filter version", 1)
	buf.PutU8("filter count", 1)
	buf.PutU16("filter reserved", 0)
	buf.PutU32("filter reserved", 0)

	buf.PutU16("filter id", int(f.Codec.ID()))
	buf.PutU16("filter name length", len(name))
	buf.PutU16("filter flags", 0)
	buf.PutU16("filter client values", 1)
	buf.PutBytes("filter name", name)
	buf.PutU32("filter level", int64(f.Level))
	buf.PutU32("filter client pad", 0)
	return buf.Err()
}
