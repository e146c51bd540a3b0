package core

import (
	"math"

	"github.com/scigolib/h5writer/internal/utils"
)

// Object header v2 flag bits.
const (
	ohdrAttrOrderTracked = 0x04
	ohdrAttrOrderIndexed = 0x08
	ohdrTimesStored      = 0x20
)

// ObjectHeaderWriter lays out the object header of a group or variable.
//
// The header is formatted twice per pass: a trial layout into a throwaway
// buffer measures the message area, whose length must be known before the
// prefix is written, then the real layout writes the header at the cursor.
// The real message area must match the trial exactly.
type ObjectHeaderWriter struct {
	Messages []Message
}

// Format writes the header in the file's version (1 for file version 1,
// 2 otherwise).
func (ohw *ObjectHeaderWriter) Format(ctx *Context) error {
	size, err := ohw.measure(ctx)
	if err != nil {
		return err
	}
	if ctx.File.Version == 1 {
		return ohw.writeV1(ctx, size)
	}
	return ohw.writeV2(ctx, size)
}

// measure runs the trial layout and returns the size of the message area.
func (ohw *ObjectHeaderWriter) measure(ctx *Context) (int64, error) {
	trial := ctx.TrialContext()
	for _, m := range ohw.Messages {
		if err := EncodeMessage(trial, m); err != nil {
			return 0, err
		}
	}
	return trial.Buf.Len(), nil
}

func (ohw *ObjectHeaderWriter) writeMessages(ctx *Context, want int64) error {
	buf := ctx.Buf
	start := buf.Position()
	for _, m := range ohw.Messages {
		if err := EncodeMessage(ctx, m); err != nil {
			return err
		}
	}
	if got := buf.Position() - start; got != want {
		return utils.EncodingError("object header", "message area is %d bytes, trial layout measured %d", got, want)
	}
	return buf.Err()
}

// writeV1 writes a version 1 object header.
//
// Format:
//   - Version (1, = 1), Reserved (1)
//   - Number of messages (2)
//   - Reference count (4, = 1)
//   - Header size (4)
//   - Reserved (4, aligns the messages to 8)
//   - Messages, each 8-byte aligned
//
// Reference: HDF5 spec IV.A.1.a (Version 1 Object Header).
func (ohw *ObjectHeaderWriter) writeV1(ctx *Context, size int64) error {
	buf := ctx.Buf
	buf.PutU8("ohdr version", 1)
	buf.PutU8("ohdr reserved", 0)
	buf.PutU16("ohdr message count", len(ohw.Messages))
	buf.PutU32("ohdr reference count", 1)
	buf.PutU32("ohdr header size", size)
	buf.PutU32("ohdr reserved", 0)
	if err := buf.Err(); err != nil {
		return err
	}
	return ohw.writeMessages(ctx, size)
}

// writeV2 writes a version 2 object header with times and tracked
// attribute creation order.
//
// Format:
//   - Signature "OHDR", Version (1, = 2), Flags (1)
//   - Access, modification, change and birth times (4 each)
//   - Size of chunk 0 (1, 2, 4 or 8 bytes, per flags bits 0-1)
//   - Messages
//   - Checksum (4) over everything from the signature
//
// Reference: HDF5 spec IV.A.1.b (Version 2 Object Header).
func (ohw *ObjectHeaderWriter) writeV2(ctx *Context, size int64) error {
	buf := ctx.Buf
	start := buf.Position()
	width, code := chunkSizeWidth(size)

	buf.PutBytes("ohdr signature", []byte("OHDR"))
	buf.PutU8("ohdr version", 2)
	buf.PutU8("ohdr flags", code|ohdrAttrOrderTracked|ohdrAttrOrderIndexed|ohdrTimesStored)
	for _, name := range []string{"ohdr access time", "ohdr modification time", "ohdr change time", "ohdr birth time"} {
		buf.PutU32(name, ctx.File.ModTime)
	}

	switch width {
	case 1:
		buf.PutU8("ohdr chunk0 size", int(size))
	case 2:
		buf.PutU16("ohdr chunk0 size", int(size))
	case 4:
		buf.PutU32("ohdr chunk0 size", size)
	default:
		buf.PutU64("ohdr chunk0 size", size)
	}
	if err := buf.Err(); err != nil {
		return err
	}

	if err := ohw.writeMessages(ctx, size); err != nil {
		return err
	}

	blob, err := buf.Slice(start, buf.Position())
	if err != nil {
		return err
	}
	buf.PutU32("ohdr checksum", int64(Checksum(blob)))
	return buf.Err()
}

// chunkSizeWidth returns the minimal width of the chunk 0 size field and
// its flags code.
func chunkSizeWidth(size int64) (width, code int) {
	switch {
	case size <= math.MaxUint8:
		return 1, 0
	case size <= math.MaxUint16:
		return 2, 1
	case size <= math.MaxUint32:
		return 4, 2
	default:
		return 8, 3
	}
}
