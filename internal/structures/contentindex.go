package structures

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// contentIndex maps heap item content to the position of its first copy.
// Lookups hash with xxhash and confirm with a byte comparison, so digest
// collisions never merge different items.
type contentIndex struct {
	slots map[uint64][]int
}

func newContentIndex() *contentIndex {
	return &contentIndex{slots: make(map[uint64][]int)}
}

// lookup returns the position of data, or -1.
func (ix *contentIndex) lookup(data []byte, item func(pos int) []byte) int {
	for _, pos := range ix.slots[xxhash.Sum64(data)] {
		if bytes.Equal(item(pos), data) {
			return pos
		}
	}
	return -1
}

func (ix *contentIndex) add(data []byte, pos int) {
	h := xxhash.Sum64(data)
	ix.slots[h] = append(ix.slots[h], pos)
}

func (ix *contentIndex) reset() {
	clear(ix.slots)
}
