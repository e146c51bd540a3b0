package core

import (
	"fmt"

	"github.com/scigolib/h5writer/internal/writer"
)

// UndefinedAddress is the HDF5 "undefined address" (all bits set).
const UndefinedAddress int64 = -1

// LayoutMode tells a formatter whether its output is real.
//
// A trial layout encodes into a throwaway buffer to measure sizes; it must
// not enqueue referenced blocks, put heap items or advance shared counters.
// A commit layout is pass 1 (provisional addresses) or pass 2 (final).
type LayoutMode struct {
	pass int
}

// Trial returns the measuring mode.
func Trial() LayoutMode {
	return LayoutMode{}
}

// Commit returns the real mode for the given formatting pass (1 or 2).
func Commit(pass int) LayoutMode {
	return LayoutMode{pass: pass}
}

// IsTrial reports whether side effects are suppressed.
func (m LayoutMode) IsTrial() bool {
	return m.pass == 0
}

// Pass returns the formatting pass, 0 for a trial layout.
func (m LayoutMode) Pass() int {
	return m.pass
}

func (m LayoutMode) String() string {
	if m.IsTrial() {
		return "trial"
	}
	return fmt.Sprintf("pass %d", m.pass)
}

// Block is a unit of file metadata with its own address: an object header,
// a heap, a B-tree node or the superblock.
type Block interface {
	// Address returns the file address assigned in the current pass.
	Address() int64

	// SetAddress records the file address of the block.
	SetAddress(addr int64)

	// Format encodes the block at the cursor of ctx.Buf.
	Format(ctx *Context) error
}

// BlockBase provides the address bookkeeping of a Block.
type BlockBase struct {
	addr int64
}

// Address returns the file address of the block.
func (b *BlockBase) Address() int64 {
	return b.addr
}

// SetAddress records the file address of the block.
func (b *BlockBase) SetAddress(addr int64) {
	b.addr = addr
}

// WorkQueue is the FIFO of blocks discovered while formatting.
// Each block is accepted at most once per pass.
type WorkQueue struct {
	items []Block
	seen  map[Block]struct{}
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{seen: make(map[Block]struct{})}
}

// Push appends b unless it has been seen in this pass.
func (q *WorkQueue) Push(b Block) bool {
	if _, ok := q.seen[b]; ok {
		return false
	}
	q.seen[b] = struct{}{}
	q.items = append(q.items, b)
	return true
}

// Pop removes and returns the oldest block, or nil when drained.
func (q *WorkQueue) Pop() Block {
	if len(q.items) == 0 {
		return nil
	}
	b := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return b
}

// Seen reports whether b has been queued in this pass.
func (q *WorkQueue) Seen(b Block) bool {
	_, ok := q.seen[b]
	return ok
}

// Len returns the number of pending blocks.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// Reset forgets every block, for the next pass.
func (q *WorkQueue) Reset() {
	q.items = nil
	clear(q.seen)
}

// FileState holds the file-wide layout parameters and counters.
type FileState struct {
	// Version is the file format version: 1 (superblock v0, symbol-table
	// groups) or 2 (superblock v2, link messages).
	Version int

	// KLeaf is the group leaf-node K. It starts at 4 and grows with the
	// largest group so that one symbol-table node holds every entry.
	KLeaf int

	// KInternal is the group internal-node K.
	KInternal int

	// ModTime is the modification time in seconds since the epoch.
	ModTime int64

	creationOrder int64
}

// NewFileState returns the defaults for a file of the given version.
func NewFileState(version int, modTime int64) *FileState {
	return &FileState{
		Version:   version,
		KLeaf:     4,
		KInternal: 16,
		ModTime:   modTime,
	}
}

// NextCreationOrder returns the next link creation order of the file.
func (s *FileState) NextCreationOrder() int64 {
	n := s.creationOrder
	s.creationOrder++
	return n
}

// GrowKLeaf raises KLeaf so that a group with entries children fits.
func (s *FileState) GrowKLeaf(entries int) {
	if k := entries/2 + 1; k > s.KLeaf {
		s.KLeaf = k
	}
}

// HeapWriter is the global heap as seen by encoders.
type HeapWriter interface {
	Block

	// Put stores data and returns its 1-based object index.
	Put(data []byte) (int, error)

	// PutRagged stores one object per row and returns their indices.
	PutRagged(rows [][]byte) ([]int, error)
}

// Context carries everything a formatter needs.
type Context struct {
	Buf        *writer.Buffer
	Mode       LayoutMode
	File       *FileState
	Queue      *WorkQueue
	GlobalHeap HeapWriter
}

// Enqueue schedules b for formatting. Trial layouts never enqueue.
func (c *Context) Enqueue(b Block) {
	if c.Mode.IsTrial() || c.Queue == nil {
		return
	}
	c.Queue.Push(b)
}

// TrialContext returns a measuring context over a fresh buffer.
func (c *Context) TrialContext() *Context {
	return &Context{
		Buf:        writer.NewBuffer(),
		Mode:       Trial(),
		File:       c.File,
		GlobalHeap: c.GlobalHeap,
	}
}

// Scratch returns a context with the same mode over a fresh buffer.
func (c *Context) Scratch() *Context {
	s := *c
	s.Buf = writer.NewBuffer()
	return &s
}
