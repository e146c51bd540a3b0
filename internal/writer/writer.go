package writer

import (
	"io"
	"os"

	"github.com/scigolib/h5writer/internal/utils"
)

// FileWriter wraps an os.File for writing HDF5 files.
// It provides:
//   - the metadata write at offset 0
//   - aligned sequential appends of raw payloads
//   - space allocation tracking (via Allocator)
//
// Thread-safety: Not thread-safe. Caller must synchronize access.
type FileWriter struct {
	file      *os.File   // Underlying OS file
	path      string     // For error context
	allocator *Allocator // Space allocation tracker
}

// CreateMode specifies the file creation behavior.
type CreateMode int

const (
	// ModeTruncate creates a new file, truncating if it exists.
	ModeTruncate CreateMode = iota

	// ModeExclusive creates a new file, fails if it exists.
	ModeExclusive
)

// NewFileWriter creates a writer for a new HDF5 file.
//
// The allocator starts at 0; the caller allocates the metadata region
// first so that raw payloads land behind it.
func NewFileWriter(filename string, mode CreateMode) (*FileWriter, error) {
	var osFile *os.File
	var err error

	switch mode {
	case ModeTruncate:
		osFile, err = os.Create(filename)
	case ModeExclusive:
		osFile, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	default:
		return nil, utils.SchemaError(filename, "invalid create mode: %d", mode)
	}

	if err != nil {
		return nil, utils.IOError("create "+filename, err)
	}

	return &FileWriter{
		file:      osFile,
		path:      filename,
		allocator: NewAllocator(0),
	}, nil
}

// Allocate reserves a block of space at the end of the file.
func (w *FileWriter) Allocate(size uint64) (uint64, error) {
	if w.file == nil {
		return 0, utils.SequenceError(w.path, "writer is closed")
	}
	return w.allocator.Allocate(size)
}

// BeginAppend aligns the end of file and returns the start address and a
// sequential writer positioned there. The caller reports what it wrote
// with CommitAppend.
func (w *FileWriter) BeginAppend(alignment uint64) (uint64, io.Writer, error) {
	if w.file == nil {
		return 0, nil, utils.SequenceError(w.path, "writer is closed")
	}
	addr := w.allocator.Reserve(alignment)
	return addr, io.NewOffsetWriter(w.file, int64(addr)), nil
}

// CommitAppend records size bytes written at addr by the writer returned
// from BeginAppend.
func (w *FileWriter) CommitAppend(addr, size uint64) error {
	if err := w.allocator.Commit(addr, size); err != nil {
		return utils.EncodingError(w.path, "%v", err)
	}
	return nil
}

// WriteAt writes data at a specific address in the file.
// Implements io.WriterAt interface.
func (w *FileWriter) WriteAt(data []byte, offset int64) (int, error) {
	if w.file == nil {
		return 0, utils.SequenceError(w.path, "writer is closed")
	}

	if len(data) == 0 {
		return 0, nil
	}

	n, err := w.file.WriteAt(data, offset)
	if err != nil {
		return n, utils.IOError(w.path, err)
	}

	if n != len(data) {
		return n, utils.IOError(w.path, io.ErrShortWrite)
	}

	return n, nil
}

// EndOfFile returns the current end-of-file address.
func (w *FileWriter) EndOfFile() uint64 {
	return w.allocator.EndOfFile()
}

// Allocator returns the space allocator.
func (w *FileWriter) Allocator() *Allocator {
	return w.allocator
}

// Flush ensures all writes are committed to disk.
func (w *FileWriter) Flush() error {
	if w.file == nil {
		return utils.SequenceError(w.path, "writer is closed")
	}
	if err := w.file.Sync(); err != nil {
		return utils.IOError(w.path, err)
	}
	return nil
}

// Close closes the underlying file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil
	return utils.IOError(w.path, err)
}

var _ io.WriterAt = (*FileWriter)(nil)
