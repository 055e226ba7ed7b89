package vpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

func TestComposeFiltersIdentity(t *testing.T) {
	in := FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16}
	prims := ComposeFilters(in, in)
	assert.Equal(t, []Primitive{PrimitiveIdentity}, prims)
}

func TestComposeFiltersScaleOnly(t *testing.T) {
	in := FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16}
	out := FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32}
	assert.Equal(t, []Primitive{PrimitiveScale}, ComposeFilters(in, out))
}

func TestComposeFiltersColorConvertOnly(t *testing.T) {
	in := FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16}
	out := FrameInfo{Format: avutil.PixFmtNV12, Width: 16, Height: 16}
	assert.Equal(t, []Primitive{PrimitiveColorConvert}, ComposeFilters(in, out))
}

func TestComposeFiltersCropScale(t *testing.T) {
	in := FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32, Crop: surface.CropRect{X: 0, Y: 0, W: 16, H: 16}}
	out := FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16}
	assert.Equal(t, []Primitive{PrimitiveCropScale, PrimitiveColorConvert}, ComposeFilters(in, out))
}

func TestComposeFiltersCropMismatchedSizeIsComposite(t *testing.T) {
	in := FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32, Crop: surface.CropRect{X: 4, Y: 4, W: 16, H: 16}}
	out := FrameInfo{Format: avutil.PixFmtI420, Width: 64, Height: 64}
	assert.Equal(t, []Primitive{PrimitiveComposite, PrimitiveColorConvert}, ComposeFilters(in, out))
}

func validParams() Params {
	return Params{
		In:        FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16},
		Out:       FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32},
		IOPattern: InSystemMemory | OutSystemMemory,
	}
}

func TestInitRejectsVideoMemory(t *testing.T) {
	v := New()
	p := validParams()
	p.IOPattern |= InVideoMemory
	assert.Equal(t, status.InvalidVideoParam, v.Init(p))
}

func TestInitRejectsMissingSystemMemoryFlag(t *testing.T) {
	v := New()
	p := validParams()
	p.IOPattern = InSystemMemory
	assert.Equal(t, status.InvalidVideoParam, v.Init(p))
}

func TestInitRejectsUnsupportedFourCC(t *testing.T) {
	v := New()
	p := validParams()
	p.Out.Format = avutil.PixFmtNone
	assert.Equal(t, status.InvalidVideoParam, v.Init(p))
}

func TestQueryDefaultsTemplateWhenInNil(t *testing.T) {
	v := New()
	out := v.Query(nil)
	assert.Equal(t, avutil.PixFmtI420, out.In.Format)
	assert.Equal(t, 1, out.AsyncDepth)
}

func TestQuerySanitizesProtectedAndExtBuffers(t *testing.T) {
	v := New()
	in := validParams()
	in.Protected = true
	in.ExtBuffers = []interface{}{"whatever"}
	out := v.Query(&in)
	assert.False(t, out.Protected)
	assert.Nil(t, out.ExtBuffers)
}

func TestQueryIOSurfReturnsOneOne(t *testing.T) {
	v := New()
	in, out := v.QueryIOSurf(validParams())
	assert.Equal(t, 1, in.NumMin)
	assert.Equal(t, 1, out.NumMin)
}

func allocSurface(t *testing.T, w, h int, format avutil.PixelFormat) *surface.Surface {
	t.Helper()
	frame := &avutil.Frame{Width: w, Height: h, Format: format}
	require.NoError(t, frame.AllocBuffer())

	s := &surface.Surface{Info: surface.Info{Format: format, Width: w, Height: h}}
	s.Data = frame.Data
	for i, ls := range frame.Linesize {
		s.Pitch[i] = ls
	}
	return s
}

func TestRunFrameAsyncScalesUpAndSetsTimestampFlag(t *testing.T) {
	v := New()
	require.Equal(t, status.OK, v.Init(validParams()))

	in := allocSurface(t, 16, 16, avutil.PixFmtI420)
	for i := range in.Data[0] {
		in.Data[0][i] = 0x42
	}
	in.Timestamp = 77

	out := allocSurface(t, 32, 32, avutil.PixFmtI420)

	code := v.RunFrameAsync(in, out)
	require.Equal(t, status.OK, code)
	assert.EqualValues(t, 77, out.Timestamp)
	assert.NotZero(t, out.Flags&surface.DataOriginalTimestamp)
	assert.Equal(t, byte(0x42), out.Data[0][0])
}

func TestRunFrameAsyncNilOutIsNullPtr(t *testing.T) {
	v := New()
	require.Equal(t, status.OK, v.Init(validParams()))
	code := v.RunFrameAsync(nil, nil)
	assert.Equal(t, status.NullPtr, code)
}

func TestRunFrameAsyncNilInIsMoreData(t *testing.T) {
	v := New()
	require.Equal(t, status.OK, v.Init(validParams()))
	out := allocSurface(t, 32, 32, avutil.PixFmtI420)
	code := v.RunFrameAsync(nil, out)
	assert.Equal(t, status.MoreData, code)
}

func TestRunFrameAsyncHonorsCropOrigin(t *testing.T) {
	v := New()
	p := Params{
		In:        FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32, Crop: surface.CropRect{X: 8, Y: 8, W: 16, H: 16}},
		Out:       FrameInfo{Format: avutil.PixFmtI420, Width: 16, Height: 16},
		IOPattern: InSystemMemory | OutSystemMemory,
	}
	require.Equal(t, status.OK, v.Init(p))

	in := allocSurface(t, 32, 32, avutil.PixFmtI420)
	for i := range in.Data[0] {
		in.Data[0][i] = 0x11
	}
	in.Data[0][8*32+8] = 0xAA // the crop's (0,0), at absolute (8,8)

	out := allocSurface(t, 16, 16, avutil.PixFmtI420)
	require.Equal(t, status.OK, v.RunFrameAsync(in, out))

	// A no-op-no-op-no-op-off-by-zero bug would instead crop the full
	// frame from (0,0), landing 0x11 here.
	assert.Equal(t, byte(0xAA), out.Data[0][0])
}

func TestRunFrameAsyncCompositePlacesOverlayAtDstCrop(t *testing.T) {
	v := New()
	p := Params{
		In: FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32,
			Crop: surface.CropRect{X: 0, Y: 0, W: 16, H: 16}},
		Out: FrameInfo{Format: avutil.PixFmtI420, Width: 32, Height: 32,
			Crop: surface.CropRect{X: 8, Y: 8, W: 16, H: 16}},
		IOPattern: InSystemMemory | OutSystemMemory,
	}
	require.Equal(t, status.OK, v.Init(p))
	require.Contains(t, v.prims, PrimitiveComposite)

	in := allocSurface(t, 32, 32, avutil.PixFmtI420)
	for i := range in.Data[0] {
		in.Data[0][i] = 0xCD
	}

	out := allocSurface(t, 32, 32, avutil.PixFmtI420)
	require.Equal(t, status.OK, v.RunFrameAsync(in, out))

	// Background outside the overlay's placement stays zero-filled.
	assert.Equal(t, byte(0), out.Data[0][0])
	// The overlay lands at the destination crop's origin (8,8).
	assert.Equal(t, byte(0xCD), out.Data[0][8*32+8])
}

func TestColorConvertI420ToNV12InterleavesChroma(t *testing.T) {
	v := New()
	p := validParams()
	p.Out = FrameInfo{Format: avutil.PixFmtNV12, Width: 16, Height: 16}
	require.Equal(t, status.OK, v.Init(p))

	in := allocSurface(t, 16, 16, avutil.PixFmtI420)
	for i := range in.Data[1] {
		in.Data[1][i] = 0xAA
	}
	for i := range in.Data[2] {
		in.Data[2][i] = 0xBB
	}

	out := allocSurface(t, 16, 16, avutil.PixFmtNV12)
	require.Equal(t, status.OK, v.RunFrameAsync(in, out))

	assert.Equal(t, byte(0xAA), out.Data[1][0])
	assert.Equal(t, byte(0xBB), out.Data[1][1])
}
