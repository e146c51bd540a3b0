package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5writer/internal/utils"
)

func TestSuperblockV2(t *testing.T) {
	ctx := newTestContext(2)
	root := newFixedBlock(48)
	sb := &Superblock{Root: root, EndOfFile: 4096}
	require.NoError(t, sb.Format(ctx))

	got := ctx.Buf.Bytes()
	require.Len(t, got, 48)
	assert.Equal(t, Signature, string(got[:8]))
	assert.Equal(t, []byte{2, 8, 8, 0}, got[8:12])
	assert.Equal(t, uint64(0), le64(got[12:]))
	assert.Equal(t, ^uint64(0), le64(got[20:]))
	assert.Equal(t, uint64(4096), le64(got[28:]))
	assert.Equal(t, uint64(48), le64(got[36:]))
	assert.Equal(t, Checksum(got[:44]), le32(got[44:]))
	assert.True(t, ctx.Queue.Seen(root))
}

func TestSuperblockV0(t *testing.T) {
	ctx := newTestContext(1)
	ctx.File.GrowKLeaf(12)
	root, btree, heap := newFixedBlock(96), newFixedBlock(200), newFixedBlock(300)
	sb := &Superblock{Root: root, RootBTree: btree, RootHeap: heap, RootNameOffset: 16, EndOfFile: 777}
	require.NoError(t, sb.Format(ctx))

	got := ctx.Buf.Bytes()
	require.Len(t, got, 96)
	assert.Equal(t, Signature, string(got[:8]))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 8, 8, 0}, got[8:16])
	assert.Equal(t, uint16(7), le16(got[16:]), "leaf k")
	assert.Equal(t, uint16(16), le16(got[18:]), "internal k")
	assert.Equal(t, uint32(0), le32(got[20:]))
	assert.Equal(t, uint64(0), le64(got[24:]))
	assert.Equal(t, ^uint64(0), le64(got[32:]))
	assert.Equal(t, uint64(777), le64(got[40:]))
	assert.Equal(t, ^uint64(0), le64(got[48:]))

	entry := got[56:]
	assert.Equal(t, uint64(16), le64(entry[0:]))
	assert.Equal(t, uint64(96), le64(entry[8:]))
	assert.Equal(t, uint32(1), le32(entry[16:]), "cache type")
	assert.Equal(t, uint64(200), le64(entry[24:]))
	assert.Equal(t, uint64(300), le64(entry[32:]))
}

func TestSuperblock_Errors(t *testing.T) {
	require.ErrorIs(t, (&Superblock{}).Format(newTestContext(2)), utils.ErrEncoding)
	sb := &Superblock{Root: newFixedBlock(0)}
	require.ErrorIs(t, sb.Format(newTestContext(1)), utils.ErrEncoding)
}
