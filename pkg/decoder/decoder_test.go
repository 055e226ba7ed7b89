package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vplsoft/govpl/internal/codec/avcodec"
	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/bitstream"
	"github.com/vplsoft/govpl/pkg/pool"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

// encodeSample produces a real VPS/SPS/PPS extradata blob plus one
// encoded access unit through the same HEVC-flavored encoder the
// decoder pipeline is meant to consume.
func encodeSample(t *testing.T, w, h, qp int) (extra, pkt []byte) {
	t.Helper()

	enc := avcodec.NewHEVCEncoder()
	require.NoError(t, enc.Init(avcodec.EncoderContext{Width: w, Height: h, Format: avutil.PixFmtI420, GopSize: 2, QP: qp}))

	frame := &avutil.Frame{Width: w, Height: h, Format: avutil.PixFmtI420}
	require.NoError(t, frame.AllocBuffer())
	for i := range frame.Data[0] {
		frame.Data[0][i] = byte(i)
	}

	p, err := enc.Encode(frame)
	require.NoError(t, err)
	return enc.ExtraData(), p.Data
}

func externalSurface(t *testing.T, w, h int) *surface.Surface {
	t.Helper()
	frame := &avutil.Frame{Width: w, Height: h, Format: avutil.PixFmtI420}
	require.NoError(t, frame.AllocBuffer())

	s := &surface.Surface{Info: surface.Info{Format: avutil.PixFmtI420, Width: w, Height: h}}
	s.Data = frame.Data
	for i, ls := range frame.Linesize {
		s.Pitch[i] = ls
	}
	return s
}

func TestDecodeHeaderParsesWidthHeight(t *testing.T) {
	extra, _ := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(extra))

	d := New()
	param, code := d.DecodeHeader(bs)
	require.Equal(t, status.OK, code)
	assert.Equal(t, 16, param.Width)
	assert.Equal(t, 16, param.Height)
	assert.Equal(t, StateHeaderKnown, d.GetState())
	assert.Equal(t, 0, bs.DataLength)
}

func TestDecodeHeaderNeedsMoreData(t *testing.T) {
	extra, _ := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(extra[:len(extra)-2]))

	d := New()
	_, code := d.DecodeHeader(bs)
	assert.Equal(t, status.MoreData, code)
	assert.Equal(t, StateUninit, d.GetState())
}

func TestDecodeHeaderNilBitstream(t *testing.T) {
	d := New()
	_, code := d.DecodeHeader(nil)
	assert.Equal(t, status.NullPtr, code)
}

func TestInitRejectsUnsupportedCodec(t *testing.T) {
	d := New()
	code := d.Init(VideoParam{Codec: bitstream.CodecNone, Width: 16, Height: 16, Format: avutil.PixFmtI420}, nil)
	assert.Equal(t, status.InvalidVideoParam, code)
}

func TestInitRejectsZeroDimensions(t *testing.T) {
	d := New()
	code := d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 0, Height: 16, Format: avutil.PixFmtI420}, nil)
	assert.Equal(t, status.InvalidVideoParam, code)
}

func TestDecodeFrameAsyncExternalMemory(t *testing.T) {
	_, pkt := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(pkt))

	d := New()
	require.Equal(t, status.OK, d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 16, Height: 16, Format: avutil.PixFmtI420}, nil))

	work := externalSurface(t, 16, 16)

	out, code := d.DecodeFrameAsync(bs, work, ModeExternal)
	require.Equal(t, status.OK, code)
	assert.Same(t, work, out)
	rc, rcCode := out.RefCount()
	require.Equal(t, status.OK, rcCode)
	assert.EqualValues(t, 1, rc)
	assert.Equal(t, 0, bs.DataLength)
}

func TestDecodeFrameAsyncExternalModeRequiresSurface(t *testing.T) {
	_, pkt := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(pkt))

	d := New()
	require.Equal(t, status.OK, d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 16, Height: 16, Format: avutil.PixFmtI420}, nil))

	_, code := d.DecodeFrameAsync(bs, nil, ModeExternal)
	assert.Equal(t, status.MoreSurface, code)
}

func TestDecodeFrameAsyncInternalMemoryUsesPool(t *testing.T) {
	_, pkt := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(pkt))

	shape := pool.Shape{Format: avutil.PixFmtI420, Width: 16, Height: 16}
	p, code := pool.NewShapeAware(shape, 1)
	require.Equal(t, status.OK, code)

	d := New()
	require.Equal(t, status.OK, d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 16, Height: 16, Format: avutil.PixFmtI420}, p))

	out, code := d.DecodeFrameAsync(bs, nil, ModeInternal)
	require.Equal(t, status.OK, code)
	rc, rcCode := out.RefCount()
	require.Equal(t, status.OK, rcCode)
	assert.EqualValues(t, 1, rc)
	assert.Equal(t, 1, p.CurrentPoolSize())
}

func TestDecodeFrameAsyncMoreDataOnTruncatedAccessUnit(t *testing.T) {
	_, pkt := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(pkt[:len(pkt)-4]))

	d := New()
	require.Equal(t, status.OK, d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 16, Height: 16, Format: avutil.PixFmtI420}, nil))

	work := externalSurface(t, 16, 16)
	_, code := d.DecodeFrameAsync(bs, work, ModeExternal)
	assert.Equal(t, status.MoreData, code)
}

func TestDecodeFrameAsyncAutoModeParsesHeaderThenRequiresInit(t *testing.T) {
	extra, pkt := encodeSample(t, 16, 16, 0)

	bs := bitstream.New(4096)
	require.Equal(t, status.OK, bs.Append(extra))
	require.Equal(t, status.OK, bs.Append(pkt))

	d := New()
	_, code := d.DecodeFrameAsync(bs, nil, ModeAuto)
	assert.Equal(t, status.NotInitialized, code)
	assert.Equal(t, StateHeaderKnown, d.GetState())

	param, code := d.GetVideoParam()
	require.Equal(t, status.OK, code)
	assert.Equal(t, 16, param.Width)
	assert.Equal(t, 16, param.Height)

	shape := pool.Shape{Format: param.Format, Width: param.Width, Height: param.Height}
	p, code := pool.NewShapeAware(shape, 1)
	require.Equal(t, status.OK, code)
	require.Equal(t, status.OK, d.Init(param, p))

	out, code := d.DecodeFrameAsync(bs, nil, ModeAuto)
	require.Equal(t, status.OK, code)
	rc, rcCode := out.RefCount()
	require.Equal(t, status.OK, rcCode)
	assert.EqualValues(t, 1, rc)
}

func TestDecodeFrameAsyncClosedPipelineIsNotInitialized(t *testing.T) {
	d := New()
	require.Equal(t, status.OK, d.Close())

	_, code := d.DecodeFrameAsync(nil, nil, ModeExternal)
	assert.Equal(t, status.NotInitialized, code)
}

func TestDrainingReturnsMoreDataAtEOF(t *testing.T) {
	d := New()
	require.Equal(t, status.OK, d.Init(VideoParam{Codec: bitstream.CodecHEVC, Width: 16, Height: 16, Format: avutil.PixFmtI420}, nil))

	_, code := d.DecodeFrameAsync(nil, nil, ModeExternal)
	assert.Equal(t, status.MoreData, code)
	assert.Equal(t, StateDraining, d.GetState())
}

func TestDecodeFrameAsyncDrainBeforeInitIsNotInitialized(t *testing.T) {
	d := New()
	_, code := d.DecodeFrameAsync(nil, nil, ModeExternal)
	assert.Equal(t, status.NotInitialized, code)
}

func TestGetVideoParamBeforeInitIsNotInitialized(t *testing.T) {
	d := New()
	_, code := d.GetVideoParam()
	assert.Equal(t, status.NotInitialized, code)
}
