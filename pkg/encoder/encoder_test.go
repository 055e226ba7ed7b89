package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/bitstream"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

func validParam() VideoParam {
	return VideoParam{
		Codec:      bitstream.CodecHEVC,
		Width:      16,
		Height:     16,
		Format:     avutil.PixFmtI420,
		TargetKbps: 500,
		GopRefDist: 2,
	}
}

func sourceSurface(t *testing.T, w, h int) *surface.Surface {
	t.Helper()
	frame := &avutil.Frame{Width: w, Height: h, Format: avutil.PixFmtI420}
	require.NoError(t, frame.AllocBuffer())
	for i := range frame.Data[0] {
		frame.Data[0][i] = byte(i)
	}

	s := &surface.Surface{Info: surface.Info{Format: avutil.PixFmtI420, Width: w, Height: h}}
	s.Data = frame.Data
	for i, ls := range frame.Linesize {
		s.Pitch[i] = ls
	}
	return s
}

func TestInitRejectsUnsupportedCodec(t *testing.T) {
	e := New()
	p := validParam()
	p.Codec = bitstream.CodecAV1
	assert.Equal(t, status.InvalidVideoParam, e.Init(p))
}

func TestInitRejectsMissingTargetBitrate(t *testing.T) {
	e := New()
	p := validParam()
	p.TargetKbps = 0
	assert.Equal(t, status.InvalidVideoParam, e.Init(p))
}

func TestInitDefaultsGopSizeFromFrameRate(t *testing.T) {
	e := New()
	p := validParam()
	p.GopRefDist = 0
	p.FrameRate = avutil.NewRational(30, 1)
	require.Equal(t, status.OK, e.Init(p))
	assert.NotEmpty(t, e.ExtraData())
}

func TestEncodeFrameAsyncProducesPacketIntoBitstream(t *testing.T) {
	e := New()
	require.Equal(t, status.OK, e.Init(validParam()))

	s := sourceSurface(t, 16, 16)
	bs := bitstream.New(8192)

	code := e.EncodeFrameAsync(s, bs)
	require.Equal(t, status.OK, code)
	assert.Greater(t, bs.DataLength, 0)
}

func TestEncodeFrameAsyncNotEnoughBuffer(t *testing.T) {
	e := New()
	require.Equal(t, status.OK, e.Init(validParam()))

	s := sourceSurface(t, 16, 16)
	bs := bitstream.New(4)

	code := e.EncodeFrameAsync(s, bs)
	assert.Equal(t, status.NotEnoughBuffer, code)
}

func TestEncodeFrameAsyncDrainReturnsMoreDataRepeatedly(t *testing.T) {
	e := New()
	require.Equal(t, status.OK, e.Init(validParam()))

	bs := bitstream.New(8192)
	code := e.EncodeFrameAsync(nil, bs)
	assert.Equal(t, status.MoreData, code)

	// Draining again after the flush EOF is also MoreData (e.done latched).
	code = e.EncodeFrameAsync(nil, bs)
	assert.Equal(t, status.MoreData, code)
}

func TestEncodeFrameAsyncBeforeInitIsNotInitialized(t *testing.T) {
	e := New()
	bs := bitstream.New(8192)
	code := e.EncodeFrameAsync(nil, bs)
	assert.Equal(t, status.NotInitialized, code)
}

func TestEncodeFrameAsyncNilBitstream(t *testing.T) {
	e := New()
	require.Equal(t, status.OK, e.Init(validParam()))
	s := sourceSurface(t, 16, 16)
	code := e.EncodeFrameAsync(s, nil)
	assert.Equal(t, status.NullPtr, code)
}

func TestExtraDataNilBeforeInit(t *testing.T) {
	e := New()
	assert.Nil(t, e.ExtraData())
}

func TestCloseIsIdempotentAndInvalidates(t *testing.T) {
	e := New()
	require.Equal(t, status.OK, e.Init(validParam()))
	require.Equal(t, status.OK, e.Close())
	require.Equal(t, status.OK, e.Close())

	bs := bitstream.New(8192)
	code := e.EncodeFrameAsync(nil, bs)
	assert.Equal(t, status.NotInitialized, code)
}
