package writer

import (
	"compress/zlib"
	"fmt"
	"io"
)

// FilterID represents HDF5 standard filter identifiers.
type FilterID uint16

// HDF5 standard filter constants.
const (
	FilterNone    FilterID = 0 // No filter
	FilterDeflate FilterID = 1 // zlib deflate
)

// Codec compresses a byte stream for chunk storage.
// The writer streams raw chunk bytes through NewWriter as its buffer fills,
// so a codec never sees the whole chunk at once.
type Codec interface {
	// ID returns the HDF5 filter identifier written to the filter pipeline message.
	ID() FilterID

	// Name returns the HDF5 filter name.
	Name() string

	// NewWriter wraps w with a compressing stream at the given level.
	// Closing the returned writer must flush all pending output to w.
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
}

// DeflateCodec implements the HDF5 deflate filter (FilterID = 1).
// HDF5 stores deflate chunks in zlib format: a 2-byte header, the
// DEFLATE stream and an Adler-32 trailer.
//
// Compression levels:
//
//	1 = fastest compression, larger files
//	6 = balanced
//	9 = best compression, slower
type DeflateCodec struct{}

// ID returns the HDF5 filter identifier for deflate.
func (DeflateCodec) ID() FilterID {
	return FilterDeflate
}

// Name returns the HDF5 filter name.
func (DeflateCodec) Name() string {
	return "deflate"
}

// NewWriter returns a zlib writer at level.
func (DeflateCodec) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	if level < 1 || level > 9 {
		return nil, fmt.Errorf("deflate level %d out of range 1..9", level)
	}
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer creation failed: %w", err)
	}
	return zw, nil
}

var _ Codec = DeflateCodec{}
