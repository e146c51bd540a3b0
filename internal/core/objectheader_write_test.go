package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5writer/internal/utils"
)

// driftMessage is larger in the real layout than in the trial.
type driftMessage struct{}

func (driftMessage) MsgType() MessageType { return MsgNil }

func (driftMessage) Encode(ctx *Context) error {
	n := 12
	if ctx.Mode.IsTrial() {
		n = 4
	}
	ctx.Buf.PutZeros("drift", n)
	return ctx.Buf.Err()
}

func TestObjectHeaderV2_Layout(t *testing.T) {
	ctx := newTestContext(2)
	ohw := &ObjectHeaderWriter{Messages: []Message{ModTime{}, GroupInfo{}}}
	require.NoError(t, ohw.Format(ctx))

	got := ctx.Buf.Bytes()
	require.Len(t, got, 22+1+22+4)
	assert.Equal(t, "OHDR", string(got[:4]))
	assert.Equal(t, byte(2), got[4])
	assert.Equal(t, byte(0x2c), got[5], "1-byte size, attribute order tracked and indexed, times")
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(1700000000), le32(got[6+4*i:]))
	}
	assert.Equal(t, byte(22), got[22], "chunk 0 size")
	assert.Equal(t, byte(MsgModTime), got[23])
	assert.Equal(t, byte(MsgGroupInfo), got[23+14])
	assert.Equal(t, Checksum(got[:45]), le32(got[45:]))
}

func TestObjectHeaderV2_SizeWidth(t *testing.T) {
	tests := []struct {
		name      string
		body      int
		wantCode  byte
		wantWidth int
	}{
		{"one byte", 249, 0, 1},
		{"two bytes", 250, 1, 2},
		{"still two bytes", 65529, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(2)
			ohw := &ObjectHeaderWriter{Messages: []Message{bulkMessage{n: tt.body}}}
			require.NoError(t, ohw.Format(ctx))

			got := ctx.Buf.Bytes()
			assert.Equal(t, tt.wantCode, got[5]&0x03)
			chunk0 := tt.body + 6
			assert.Len(t, got, 22+tt.wantWidth+chunk0+4)
			if tt.wantWidth == 2 {
				assert.Equal(t, uint16(chunk0), le16(got[22:]))
			} else {
				assert.Equal(t, byte(chunk0), got[22])
			}
		})
	}
}

func TestChunkSizeWidth(t *testing.T) {
	tests := []struct {
		size  int64
		width int
		code  int
	}{
		{0, 1, 0},
		{255, 1, 0},
		{256, 2, 1},
		{65535, 2, 1},
		{65536, 4, 2},
		{4294967295, 4, 2},
		{4294967296, 8, 3},
	}
	for _, tt := range tests {
		width, code := chunkSizeWidth(tt.size)
		assert.Equal(t, tt.width, width, "size %d", tt.size)
		assert.Equal(t, tt.code, code, "size %d", tt.size)
	}
}

func TestObjectHeaderV1_Layout(t *testing.T) {
	ctx := newTestContext(1)
	ohw := &ObjectHeaderWriter{Messages: []Message{ModTime{}, GroupInfo{}}}
	require.NoError(t, ohw.Format(ctx))

	got := ctx.Buf.Bytes()
	require.Len(t, got, 16+16+16)
	assert.Equal(t, byte(1), got[0])
	assert.Equal(t, uint16(2), le16(got[2:]), "message count")
	assert.Equal(t, uint32(1), le32(got[4:]), "reference count")
	assert.Equal(t, uint32(32), le32(got[8:]), "header size")
	assert.Equal(t, uint16(MsgModTime), le16(got[16:]))
	assert.Equal(t, uint16(MsgGroupInfo), le16(got[32:]))
}

func TestObjectHeader_TrialDoesNotEnqueue(t *testing.T) {
	target := newFixedBlock(64)
	ohw := &ObjectHeaderWriter{Messages: []Message{&Link{Name: "child", Target: target}}}

	trial := newTestContext(2)
	trial.Mode = Trial()
	require.NoError(t, ohw.Format(trial))
	assert.Equal(t, 0, trial.Queue.Len())

	commit := newTestContext(2)
	require.NoError(t, ohw.Format(commit))
	assert.Equal(t, 1, commit.Queue.Len(), "enqueued once, by the real layout")
}

func TestObjectHeader_TrialMismatch(t *testing.T) {
	ctx := newTestContext(2)
	ohw := &ObjectHeaderWriter{Messages: []Message{driftMessage{}}}
	err := ohw.Format(ctx)
	require.ErrorIs(t, err, utils.ErrEncoding)
	assert.Contains(t, err.Error(), "trial layout measured")
}

func TestObjectHeader_MessageTooLarge(t *testing.T) {
	ctx := newTestContext(2)
	ohw := &ObjectHeaderWriter{Messages: []Message{bulkMessage{n: 1 << 16}}}
	require.ErrorIs(t, ohw.Format(ctx), utils.ErrEncoding)
}
