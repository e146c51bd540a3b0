// Package writer provides HDF5 file writing infrastructure: the byte-sink
// buffer, the compression codec, the output file and its space allocator.
//
// The Allocator tracks the regions of the output file. The metadata image
// is allocated first at offset 0; raw chunk payloads are then appended at
// aligned end-of-file addresses. Freed space is never reused.
package writer

import (
	"fmt"
	"sort"
)

// AllocatedBlock tracks an allocated region of the file.
type AllocatedBlock struct {
	Offset uint64 // Starting address in file
	Size   uint64 // Size of allocated block in bytes
}

// Allocator manages space allocation in HDF5 files.
//
// Strategy:
//   - End-of-file allocation: all allocations occur at end of file
//   - No freed space reuse: once allocated, space is never reclaimed
//   - Alignment on request: Reserve rounds the end of file up
//   - Overlap prevention: all allocations tracked
//
// Thread Safety:
//   - NOT thread-safe: designed for the single-threaded File
type Allocator struct {
	blocks     []AllocatedBlock // All allocated blocks (append-only)
	nextOffset uint64           // Next available address (end-of-file)
}

// NewAllocator creates a space allocator starting at initialOffset.
func NewAllocator(initialOffset uint64) *Allocator {
	return &Allocator{
		blocks:     make([]AllocatedBlock, 0, 16),
		nextOffset: initialOffset,
	}
}

// Allocate reserves a block of size bytes at the current end of file.
func (a *Allocator) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate zero bytes")
	}

	addr := a.nextOffset
	a.blocks = append(a.blocks, AllocatedBlock{Offset: addr, Size: size})
	a.nextOffset = addr + size

	return addr, nil
}

// Reserve rounds the end of file up to alignment and returns it.
// The region is recorded by Commit once its size is known, which is how
// compressed chunks are placed: their size is only known after writing.
func (a *Allocator) Reserve(alignment uint64) uint64 {
	if alignment > 1 {
		a.nextOffset = AlignUp(a.nextOffset, alignment)
	}
	return a.nextOffset
}

// Commit records size bytes written at addr, which must be the address
// returned by the last Reserve.
func (a *Allocator) Commit(addr, size uint64) error {
	if addr != a.nextOffset {
		return fmt.Errorf("commit at %d does not match end of file %d", addr, a.nextOffset)
	}
	if size == 0 {
		return nil
	}
	if a.IsAllocated(addr, size) {
		return fmt.Errorf("range [%d, %d) already allocated", addr, addr+size)
	}
	a.blocks = append(a.blocks, AllocatedBlock{Offset: addr, Size: size})
	a.nextOffset = addr + size
	return nil
}

// IsAllocated checks if an address range overlaps with any allocated blocks.
// Adjacent blocks do not overlap; a zero-size range never does.
func (a *Allocator) IsAllocated(offset, size uint64) bool {
	if size == 0 {
		return false
	}

	rangeEnd := offset + size
	for _, block := range a.blocks {
		blockEnd := block.Offset + block.Size
		// [a1,a2) and [b1,b2) overlap if a1 < b2 && b1 < a2
		if offset < blockEnd && block.Offset < rangeEnd {
			return true
		}
	}

	return false
}

// EndOfFile returns the current end-of-file address.
func (a *Allocator) EndOfFile() uint64 {
	return a.nextOffset
}

// Blocks returns a copy of all allocated blocks sorted by offset.
func (a *Allocator) Blocks() []AllocatedBlock {
	blocks := make([]AllocatedBlock, len(a.blocks))
	copy(blocks, a.blocks)

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Offset < blocks[j].Offset
	})

	return blocks
}

// ValidateNoOverlaps verifies that no two allocated blocks overlap.
func (a *Allocator) ValidateNoOverlaps() error {
	blocks := a.Blocks()

	for i := 0; i < len(blocks)-1; i++ {
		current := blocks[i]
		next := blocks[i+1]

		if current.Offset+current.Size > next.Offset {
			return fmt.Errorf("overlap detected: block at %d (size %d) overlaps block at %d",
				current.Offset, current.Size, next.Offset)
		}
	}

	return nil
}

// AlignUp rounds v up to a multiple of alignment.
func AlignUp(v, alignment uint64) uint64 {
	if alignment <= 1 {
		return v
	}
	return (v + alignment - 1) / alignment * alignment
}
