package writer

import "fmt"

// ChunkCoordinator handles N-dimensional chunk grids.
//
// This coordinator manages the mapping between:
//   - Dataset dimensions and chunk dimensions
//   - Linear chunk indices and N-dimensional chunk coordinates
//   - Chunk coordinates and element start indices
//
// Example (2D dataset):
//
//	Dataset: 25x35 elements
//	Chunks: 10x10 elements
//	Result: 3x4 = 12 total chunks
//	  - Chunk [0,0]: start [0,0],   extent 10x10 (full)
//	  - Chunk [0,3]: start [0,30],  extent 10x5  (partial in dim 1)
//	  - Chunk [2,0]: start [20,0],  extent 5x10  (partial in dim 0)
//	  - Chunk [2,3]: start [20,30], extent 5x5   (partial in both dims)
type ChunkCoordinator struct {
	datasetDims []uint64 // Dataset dimensions [dim0, dim1, ..., dimN]
	chunkDims   []uint64 // Chunk dimensions [dim0, dim1, ..., dimN]
	numChunks   []uint64 // Number of chunks per dimension
}

// ChunkTile is one tile of a chunk grid.
type ChunkTile struct {
	Start  []uint64 // element index of the tile's first element
	Extent []uint64 // actual extent, truncated at the dataset edge
}

// NewChunkCoordinator creates a coordinator.
//
// The number of chunks per dimension uses ceiling division:
// numChunks[i] = ceil(datasetDims[i] / chunkDims[i]).
func NewChunkCoordinator(datasetDims, chunkDims []uint64) (*ChunkCoordinator, error) {
	if len(datasetDims) != len(chunkDims) {
		return nil, fmt.Errorf("dimensions mismatch: dataset has %d dims, chunk has %d dims",
			len(datasetDims), len(chunkDims))
	}

	if len(datasetDims) == 0 {
		return nil, fmt.Errorf("dataset must have at least 1 dimension")
	}

	for i, dim := range datasetDims {
		if dim == 0 {
			return nil, fmt.Errorf("dataset dimension %d cannot be zero", i)
		}
	}

	for i, dim := range chunkDims {
		if dim == 0 {
			return nil, fmt.Errorf("chunk dimension %d cannot be zero", i)
		}
		if dim > datasetDims[i] {
			return nil, fmt.Errorf("chunk dimension %d (%d) exceeds dataset dimension (%d)", i, dim, datasetDims[i])
		}
	}

	numChunks := make([]uint64, len(datasetDims))
	for i := range datasetDims {
		numChunks[i] = (datasetDims[i] + chunkDims[i] - 1) / chunkDims[i]
	}

	return &ChunkCoordinator{
		datasetDims: append([]uint64(nil), datasetDims...),
		chunkDims:   append([]uint64(nil), chunkDims...),
		numChunks:   numChunks,
	}, nil
}

// TotalChunks returns the total chunk count.
func (cc *ChunkCoordinator) TotalChunks() uint64 {
	total := uint64(1)
	for _, n := range cc.numChunks {
		total *= n
	}
	return total
}

// ChunkCoordinate converts a linear index to an N-D coordinate (row-major:
// the rightmost dimension varies fastest).
//
//	index=0  → [0,0]
//	index=3  → [0,3]
//	index=4  → [1,0]   (3x4 chunks)
func (cc *ChunkCoordinator) ChunkCoordinate(index uint64) []uint64 {
	coord := make([]uint64, len(cc.datasetDims))
	remaining := index

	for i := len(cc.numChunks) - 1; i >= 0; i-- {
		coord[i] = remaining % cc.numChunks[i]
		remaining /= cc.numChunks[i]
	}

	return coord
}

// Tile returns the start indices and actual extent of the chunk at coord.
//
//	start[i]  = coord[i] * chunkDims[i]
//	extent[i] = min(start[i] + chunkDims[i], datasetDims[i]) - start[i]
func (cc *ChunkCoordinator) Tile(coord []uint64) ChunkTile {
	tile := ChunkTile{
		Start:  make([]uint64, len(coord)),
		Extent: make([]uint64, len(coord)),
	}
	for i := range coord {
		start := coord[i] * cc.chunkDims[i]
		end := start + cc.chunkDims[i]
		if end > cc.datasetDims[i] {
			end = cc.datasetDims[i]
		}
		tile.Start[i] = start
		tile.Extent[i] = end - start
	}
	return tile
}

// Partition returns every tile of the grid in row-major order.
func (cc *ChunkCoordinator) Partition() []ChunkTile {
	total := cc.TotalChunks()
	tiles := make([]ChunkTile, 0, total)
	for i := uint64(0); i < total; i++ {
		tiles = append(tiles, cc.Tile(cc.ChunkCoordinate(i)))
	}
	return tiles
}

// Locate returns the linear index of the chunk whose first element is at
// start. start must lie inside the dataset and on the chunk grid.
func (cc *ChunkCoordinator) Locate(start []uint64) (uint64, error) {
	if len(start) != len(cc.datasetDims) {
		return 0, fmt.Errorf("start indices have rank %d, dataset has rank %d", len(start), len(cc.datasetDims))
	}

	index := uint64(0)
	for i, s := range start {
		if s >= cc.datasetDims[i] {
			return 0, fmt.Errorf("start index %d at dimension %d outside extent %d", s, i, cc.datasetDims[i])
		}
		if s%cc.chunkDims[i] != 0 {
			return 0, fmt.Errorf("start index %d at dimension %d is not a multiple of chunk extent %d", s, i, cc.chunkDims[i])
		}
		index = index*cc.numChunks[i] + s/cc.chunkDims[i]
	}
	return index, nil
}

// ChunkDims returns the chunk dimensions.
func (cc *ChunkCoordinator) ChunkDims() []uint64 {
	return cc.chunkDims
}
