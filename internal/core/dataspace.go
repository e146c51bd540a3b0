package core

// Dataspace is the dataspace message: the rank and extents of a variable or
// attribute.
//
// A nil Shape is the null dataspace (no elements), an empty Shape a scalar.
type Dataspace struct {
	Shape []uint64
}

// Dataspace types of the version 2 encoding.
const (
	dataspaceScalar = 0
	dataspaceSimple = 1
	dataspaceNull   = 2
)

// MsgType implements Message.
func (*Dataspace) MsgType() MessageType { return MsgDataspace }

// Encode writes the dataspace in the file's version. Maximum dimensions are
// never stored: extents are fixed.
//
// Version 1: Version, Rank, Flags, Reserved (1 byte), Reserved (4 bytes),
// then the extents. A null dataspace has rank 0.
//
// Version 2: Version, Rank, Flags, Type (scalar, simple or null), then the
// extents.
//
// Reference: HDF5 spec IV.A.2.b (Dataspace Message), H5Osdspace.c.
func (d *Dataspace) Encode(ctx *Context) error {
	buf := ctx.Buf
	version := ctx.File.Version

	buf.PutU8("dataspace version", version)
	buf.PutU8("dataspace rank", len(d.Shape))
	buf.PutU8("dataspace flags", 0)
	if version == 1 {
		buf.PutU8("dataspace reserved", 0)
		buf.PutU32("dataspace reserved", 0)
	} else {
		kind := dataspaceSimple
		switch {
		case d.Shape == nil:
			kind = dataspaceNull
		case len(d.Shape) == 0:
			kind = dataspaceScalar
		}
		buf.PutU8("dataspace type", kind)
	}

	for _, dim := range d.Shape {
		buf.PutU64("dataspace extent", int64(dim))
	}
	return buf.Err()
}
