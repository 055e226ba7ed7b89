package avutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocBufferI420(t *testing.T) {
	f := &Frame{Width: 16, Height: 8, Format: PixFmtI420}
	require.NoError(t, f.AllocBuffer())

	assert.Len(t, f.Data[0], 16*8)
	assert.Len(t, f.Data[1], 8*4)
	assert.Len(t, f.Data[2], 8*4)
}

func TestAllocBufferP010IsTwoBytesPerSample(t *testing.T) {
	f := &Frame{Width: 16, Height: 8, Format: PixFmtP010}
	require.NoError(t, f.AllocBuffer())

	assert.Len(t, f.Data[0], 16*8*2)
	assert.Len(t, f.Data[1], 16*4*2)
	assert.Nil(t, f.Data[2])
}

func TestAllocBufferRejectsZeroDimensions(t *testing.T) {
	f := &Frame{Width: 0, Height: 8, Format: PixFmtI420}
	assert.ErrorIs(t, f.AllocBuffer(), ErrInvalidData)
}

func TestAllocBufferUnsupportedFormat(t *testing.T) {
	f := &Frame{Width: 4, Height: 4, Format: PixFmtNone}
	assert.ErrorIs(t, f.AllocBuffer(), ErrUnsupportedCodec)
}
