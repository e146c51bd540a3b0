package h5writer

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/structures"
	"github.com/scigolib/h5writer/internal/utils"
	"github.com/scigolib/h5writer/internal/writer"
)

// metadataAlignment is the alignment of every metadata block.
const metadataAlignment = 8

// fileState tracks the lifecycle of a File.
type fileState int

const (
	stateDefining fileState = iota
	stateWritingData
	stateClosed
)

func (s fileState) String() string {
	switch s {
	case stateDefining:
		return "defining"
	case stateWritingData:
		return "writing data"
	default:
		return "closed"
	}
}

// File is an HDF5 file being written.
//
// A file goes through three phases:
//
//  1. Define: declare groups, variables and attributes from Root.
//  2. EndDefine lays out the metadata and reserves its space at the start
//     of the file. Chunks are then written with Variable.WriteChunk, each
//     appended at the end of the file.
//  3. Close lays out the metadata again, now that every chunk address is
//     known, and writes it at offset 0.
//
// Both layouts must produce the same length; the metadata is never moved.
//
// Thread Safety: a File is not safe for concurrent use.
type File struct {
	path    string
	out     *writer.FileWriter
	cfg     fileConfig
	log     logrus.FieldLogger
	metrics *metrics
	state   fileState

	layout     *core.FileState
	root       *Group
	superblock *core.Superblock
	globalHeap *structures.GlobalHeap
	queue      *core.WorkQueue
	variables  []*Variable

	metaLen int64
}

// Create creates an HDF5 file at path.
//
// Example:
//
//	f, err := h5writer.Create("out.h5", h5writer.CreateTruncate)
//	if err != nil {
//	    return err
//	}
//	v, _ := f.Root().AddVariable("x", h5writer.Int32, []uint64{4})
//	if err := f.EndDefine(); err != nil {
//	    return err
//	}
//	v.WriteData([]int32{1, 2, 3, 4})
//	return f.Close()
func Create(path string, mode CreateMode, opts ...FileOption) (*File, error) {
	cfg := defaultFileConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, utils.WrapError("register metrics", err)
	}

	var wmode writer.CreateMode
	switch mode {
	case CreateTruncate:
		wmode = writer.ModeTruncate
	case CreateExclusive:
		wmode = writer.ModeExclusive
	default:
		return nil, utils.SchemaError(path, "invalid create mode %d", mode)
	}
	out, err := writer.NewFileWriter(path, wmode)
	if err != nil {
		return nil, err
	}

	f := &File{
		path:       path,
		out:        out,
		cfg:        cfg,
		log:        cfg.logger.WithField("file", path),
		metrics:    m,
		layout:     core.NewFileState(cfg.version, cfg.modTime.Unix()),
		globalHeap: structures.NewGlobalHeap(),
		queue:      core.NewWorkQueue(),
	}
	f.root = newGroup(f, nil, "")
	f.superblock = &core.Superblock{Root: f.root}
	if cfg.version == 1 {
		f.superblock.RootBTree = f.root.btree
		f.superblock.RootHeap = f.root.heap
		f.superblock.RootNameOffset = f.root.heap.Put([]byte(""))
	}

	f.log.WithField("version", cfg.version).Debug("file created")
	return f, nil
}

// Path returns the file name.
func (f *File) Path() string {
	return f.path
}

// Version returns the file format version, 1 or 2.
func (f *File) Version() int {
	return f.layout.Version
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

func (f *File) checkDefining(path string) error {
	if f.state != stateDefining {
		return utils.SchemaError(path, "file is %s; the schema is fixed by EndDefine", f.state)
	}
	return nil
}

func (f *File) checkWriting(path string) error {
	if f.state != stateWritingData {
		return utils.SequenceError(path, "file is %s; data is written between EndDefine and Close", f.state)
	}
	return nil
}

// probeContext returns a trial context for checking values at declaration
// time. It stores nothing in the heaps.
func (f *File) probeContext() *core.Context {
	return &core.Context{
		Buf:        writer.NewBuffer(),
		Mode:       core.Trial(),
		File:       f.layout,
		GlobalHeap: f.globalHeap,
	}
}

// EndDefine ends the schema definition: it lays out the metadata once,
// reserves its length at the start of the file and opens the file for
// chunk writes.
func (f *File) EndDefine() error {
	if f.state != stateDefining {
		return utils.SequenceError(f.path, "EndDefine on a file that is %s", f.state)
	}

	if f.layout.Version == 1 {
		f.walkGroups(f.root, func(g *Group) {
			f.layout.GrowKLeaf(g.numChildren())
		})
	}

	meta, err := f.formatAll(core.Commit(1))
	if err != nil {
		return utils.WrapError(f.path, err)
	}
	f.metaLen = meta.Len()

	if _, err := f.out.Allocate(uint64(f.metaLen)); err != nil {
		return utils.WrapError(f.path, err)
	}

	f.state = stateWritingData
	f.log.WithFields(logrus.Fields{
		"metadata":  f.metaLen,
		"variables": len(f.variables),
	}).Debug("schema defined")
	return nil
}

// Close lays out the metadata with the final chunk addresses, writes it at
// the start of the file and closes the file.
//
// Every chunk of every variable with data must have been written. The file
// is closed even when Close fails.
func (f *File) Close() (err error) {
	if f.state == stateClosed {
		return utils.SequenceError(f.path, "file already closed")
	}
	if f.state != stateWritingData {
		return utils.SequenceError(f.path, "Close before EndDefine")
	}

	defer func() {
		if cerr := f.out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		f.state = stateClosed
		f.metrics.fileClosed(err)
		if err != nil {
			f.log.WithError(err).Warn("close failed")
		}
	}()

	if missing := f.missingChunks(); len(missing) > 0 {
		return utils.SequenceError(f.path, "unwritten chunks: %s", strings.Join(missing, ", "))
	}

	f.globalHeap.Clear()
	f.superblock.EndOfFile = int64(f.out.EndOfFile())

	meta, err := f.formatAll(core.Commit(2))
	if err != nil {
		return utils.WrapError(f.path, err)
	}
	if meta.Len() != f.metaLen {
		return utils.EncodingError(f.path, "metadata length changed between passes: %d, then %d", f.metaLen, meta.Len())
	}

	if err := f.out.Allocator().ValidateNoOverlaps(); err != nil {
		return utils.EncodingError(f.path, "%v", err)
	}
	if _, err := f.out.WriteAt(meta.Bytes(), 0); err != nil {
		return err
	}
	if err := f.out.Flush(); err != nil {
		return err
	}

	f.log.WithField("eof", f.superblock.EndOfFile).Debug("file closed")
	return nil
}

// Abort closes the file without writing the metadata. The partial file is
// not a valid HDF5 file.
func (f *File) Abort() error {
	if f.state == stateClosed {
		return nil
	}
	f.state = stateClosed
	return f.out.Close()
}

func (f *File) missingChunks() []string {
	var missing []string
	for _, v := range f.variables {
		for _, start := range v.missingChunks() {
			missing = append(missing, fmt.Sprintf("%s %v", v.Path(), start))
		}
	}
	return missing
}

// walkGroups calls fn for g and every group below it, depth first.
func (f *File) walkGroups(g *Group, fn func(*Group)) {
	fn(g)
	for _, sub := range g.groups {
		f.walkGroups(sub, fn)
	}
}

// formatAll runs one layout pass from the superblock: each block is
// aligned, placed at the cursor and formatted, enqueuing the blocks it
// points to. The global heap closes the metadata.
func (f *File) formatAll(mode core.LayoutMode) (*writer.Buffer, error) {
	start := time.Now()
	buf := writer.NewBuffer()
	ctx := &core.Context{
		Buf:        buf,
		Mode:       mode,
		File:       f.layout,
		Queue:      f.queue,
		GlobalHeap: f.globalHeap,
	}

	f.queue.Reset()
	f.queue.Push(f.superblock)
	blocks := 0
	for b := f.queue.Pop(); b != nil; b = f.queue.Pop() {
		if err := place(ctx, b); err != nil {
			return nil, err
		}
		blocks++
	}
	if f.globalHeap.Len() > 0 {
		if err := place(ctx, f.globalHeap); err != nil {
			return nil, err
		}
		blocks++
	}
	for _, v := range f.variables {
		if !f.queue.Seen(v) {
			return nil, utils.EncodingError(v.Path(), "variable not reached from the root in %s", mode)
		}
	}
	if err := buf.Err(); err != nil {
		return nil, err
	}

	f.log.WithFields(logrus.Fields{
		"pass":   mode.String(),
		"blocks": blocks,
		"size":   buf.Len(),
	}).Debug("metadata formatted")
	f.metrics.passFormatted(mode.String(), buf.Len(), start)
	return buf, nil
}

func place(ctx *core.Context, b core.Block) error {
	ctx.Buf.Align("block alignment", metadataAlignment)
	b.SetAddress(ctx.Buf.Position())
	return b.Format(ctx)
}
