package avcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vplsoft/govpl/internal/codec/avutil"
)

func TestGenerateAndParseParameterSets(t *testing.T) {
	ctx := EncoderContext{Width: 64, Height: 48, GopSize: 12, GopRefDist: 2, Format: avutil.PixFmtI420}
	blob := generateParameterSets(ctx)

	parsed, ok := ParseParameterSets(blob)
	require.True(t, ok)
	assert.Equal(t, 64, parsed.Width)
	assert.Equal(t, 48, parsed.Height)
	assert.Equal(t, 12, parsed.GopSize)
	assert.Equal(t, 2, parsed.GopRefDist)
	assert.Equal(t, len(blob), parsed.ConsumedLength)
}

func TestParseParameterSetsNeedsMoreData(t *testing.T) {
	ctx := EncoderContext{Width: 64, Height: 48, GopSize: 12, GopRefDist: 1, Format: avutil.PixFmtI420}
	blob := generateParameterSets(ctx)

	_, ok := ParseParameterSets(blob[:len(blob)-2])
	assert.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewHEVCEncoder()
	ctx := EncoderContext{Width: 16, Height: 16, Format: avutil.PixFmtI420, GopSize: 4, QP: 0}
	require.NoError(t, enc.Init(ctx))
	assert.NotEmpty(t, enc.ExtraData())

	frame := &avutil.Frame{Width: 16, Height: 16, Format: avutil.PixFmtI420}
	require.NoError(t, frame.AllocBuffer())
	for i := range frame.Data[0] {
		frame.Data[0][i] = byte(i)
	}
	frame.Pts = 42

	pkt, err := enc.Encode(frame)
	require.NoError(t, err)
	assert.True(t, pkt.KeyFrame)
	assert.EqualValues(t, 42, pkt.Pts)

	length, ok := PeekAccessUnitLength(pkt.Data)
	require.True(t, ok)
	assert.Equal(t, len(pkt.Data), length)

	dec := NewHEVCDecoder()
	require.NoError(t, dec.Init(DecoderContext{Width: 16, Height: 16, Format: avutil.PixFmtI420}))

	out, err := dec.Decode(pkt.Data)
	require.NoError(t, err)
	assert.True(t, out.KeyFrame)

	// QP=0 means shift=0: lossless round trip through the quantizer.
	assert.Equal(t, frame.Data[0], out.Data[0])
}

func TestEncodeLossyAtHighQP(t *testing.T) {
	enc := NewHEVCEncoder()
	require.NoError(t, enc.Init(EncoderContext{Width: 8, Height: 8, Format: avutil.PixFmtI420, GopSize: 2, QP: 51}))

	frame := &avutil.Frame{Width: 8, Height: 8, Format: avutil.PixFmtI420}
	require.NoError(t, frame.AllocBuffer())
	frame.Data[0][0] = 0xFF

	pkt, err := enc.Encode(frame)
	require.NoError(t, err)

	dec := NewHEVCDecoder()
	require.NoError(t, dec.Init(DecoderContext{Width: 8, Height: 8, Format: avutil.PixFmtI420}))
	out, err := dec.Decode(pkt.Data)
	require.NoError(t, err)

	// shift=5 at QP 51 loses the low 5 bits.
	assert.NotEqual(t, frame.Data[0][0], out.Data[0][0])
	assert.Equal(t, byte(0xFF>>5<<5), out.Data[0][0])
}

func TestDecodeNeedsMoreData(t *testing.T) {
	dec := NewHEVCDecoder()
	require.NoError(t, dec.Init(DecoderContext{Width: 4, Height: 4, Format: avutil.PixFmtI420}))
	_, err := dec.Decode([]byte{0, 0, 0, 1})
	assert.ErrorIs(t, err, avutil.ErrAgain)
}

func TestFlushAlwaysEOF(t *testing.T) {
	enc := NewHEVCEncoder()
	require.NoError(t, enc.Init(EncoderContext{Width: 4, Height: 4, Format: avutil.PixFmtI420}))
	_, err := enc.Flush()
	assert.ErrorIs(t, err, avutil.ErrEOF)

	dec := NewHEVCDecoder()
	require.NoError(t, dec.Init(DecoderContext{Width: 4, Height: 4, Format: avutil.PixFmtI420}))
	_, err = dec.Flush()
	assert.ErrorIs(t, err, avutil.ErrEOF)
}
