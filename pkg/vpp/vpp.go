// Package vpp implements the transform pipeline (C8): scale / crop /
// color-convert surface-to-surface through a small filter-graph
// composition, driven by the primitive-selection table in spec.md
// §4.5.
//
// Grounded on original_source/cpu/src/cpu_vpp.cpp's InitFilters, which
// composes an ffmpeg filtergraph string (buffersrc/buffersink, with
// crop+scale when destination sizes match the crop and
// split+drawbox+overlay for composite); this port expresses the same
// composition decision as a Go primitive list applied directly to
// plane buffers rather than through a textual filtergraph, since the
// actual pixel transform library is out of scope (spec.md §1).
package vpp

import (
	"github.com/rs/zerolog"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

// IOPattern is a bitflag describing which side of the pipeline uses
// system vs. video memory (spec.md glossary). Video memory is an
// explicit Non-goal; only the System* flags are ever accepted.
type IOPattern int

const (
	InSystemMemory IOPattern = 1 << iota
	OutSystemMemory
	InVideoMemory
	OutVideoMemory
)

// Primitive is one step of the composed filter graph.
type Primitive int

const (
	PrimitiveIdentity Primitive = iota
	PrimitiveColorConvert
	PrimitiveCrop
	PrimitiveScale
	PrimitiveCropScale
	PrimitiveComposite
)

func (p Primitive) String() string {
	switch p {
	case PrimitiveColorConvert:
		return "color-convert"
	case PrimitiveCrop:
		return "crop"
	case PrimitiveScale:
		return "scale"
	case PrimitiveCropScale:
		return "crop-scale"
	case PrimitiveComposite:
		return "composite"
	default:
		return "null"
	}
}

// FrameInfo describes one side of the transform (spec.md §4.5).
type FrameInfo struct {
	Format avutil.PixelFormat
	Width  int
	Height int
	Crop   surface.CropRect
}

// Params configures Init.
type Params struct {
	In, Out   FrameInfo
	IOPattern IOPattern
	AsyncDepth int
	Protected  bool
	ExtBuffers []interface{}
	NumThread  int
}

// ComposeFilters derives the primitive sequence for the in/out pair,
// per spec.md §4.5's table. Crop is always paired with color-convert,
// since the reference filter graph requires an explicit format pin at
// the sink whenever a crop filter is inserted.
func ComposeFilters(in, out FrameInfo) []Primitive {
	crop := resolveCrop(in)
	hasCrop := crop.X != 0 || crop.Y != 0 || crop.W < in.Width || crop.H < in.Height

	var prims []Primitive
	if in.Format != out.Format {
		prims = append(prims, PrimitiveColorConvert)
	}

	switch {
	case hasCrop && crop.W == out.Width && crop.H == out.Height:
		prims = append(prims, PrimitiveCropScale)
		if in.Format == out.Format {
			prims = append(prims, PrimitiveColorConvert)
		}
	case hasCrop && (crop.W != out.Width || crop.H != out.Height):
		prims = append(prims, PrimitiveComposite)
		if in.Format == out.Format {
			prims = append(prims, PrimitiveColorConvert)
		}
	case in.Width != out.Width || in.Height != out.Height:
		prims = append(prims, PrimitiveScale)
	default:
		if len(prims) == 0 {
			prims = append(prims, PrimitiveIdentity)
		}
	}
	return dedupeAppendOrder(prims)
}

// resolveCrop mirrors ComposeFilters' own default: a zero-valued crop
// rect (W==0 && H==0) means "the whole allocation", not "nothing".
func resolveCrop(info FrameInfo) surface.CropRect {
	crop := info.Crop
	if crop.W == 0 && crop.H == 0 {
		crop = surface.CropRect{X: 0, Y: 0, W: info.Width, H: info.Height}
	}
	return crop
}

func dedupeAppendOrder(prims []Primitive) []Primitive {
	seen := make(map[Primitive]bool, len(prims))
	out := make([]Primitive, 0, len(prims))
	for _, p := range prims {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return []Primitive{PrimitiveIdentity}
	}
	return out
}

// VPP is one transform pipeline instance.
type VPP struct {
	params Params
	prims  []Primitive
	log    zerolog.Logger
}

// New constructs an uninitialized VPP pipeline. Logging is a no-op
// until SetLogger is called (session wires the process-wide logger
// through at InitVPP time, per SPEC_FULL.md §2).
func New() *VPP {
	return &VPP{log: zerolog.Nop()}
}

// SetLogger installs the logger this pipeline reports state transitions
// and back-pressure on.
func (v *VPP) SetLogger(l zerolog.Logger) {
	v.log = l
}

// Init validates par and composes the primitive chain.
func (v *VPP) Init(par Params) status.Code {
	if par.IOPattern&(InSystemMemory) == 0 || par.IOPattern&(OutSystemMemory) == 0 {
		return status.InvalidVideoParam
	}
	if par.IOPattern&(InVideoMemory|OutVideoMemory) != 0 {
		return status.InvalidVideoParam
	}
	if par.AsyncDepth > 16 || par.Protected || len(par.ExtBuffers) > 0 || par.NumThread > 0 {
		return status.InvalidVideoParam
	}
	if !supportedFourCC(par.In.Format) || !supportedFourCC(par.Out.Format) {
		return status.InvalidVideoParam
	}

	v.params = par
	v.prims = ComposeFilters(par.In, par.Out)
	v.log.Debug().Strs("primitives", primitiveNames(v.prims)).Msg("vpp initialized")
	return status.OK
}

func primitiveNames(prims []Primitive) []string {
	names := make([]string, len(prims))
	for i, p := range prims {
		names[i] = p.String()
	}
	return names
}

func supportedFourCC(f avutil.PixelFormat) bool {
	switch f {
	case avutil.PixFmtI420, avutil.PixFmtI010, avutil.PixFmtNV12, avutil.PixFmtP010,
		avutil.PixFmtYUY2, avutil.PixFmtNV16, avutil.PixFmtP210, avutil.PixFmtRGB4:
		return true
	default:
		return false
	}
}

// Query produces a template of supported parameters when in is nil, or
// a sanitized/defaulted copy otherwise (spec.md §4.5).
func (v *VPP) Query(in *Params) Params {
	if in == nil {
		return Params{
			In:         FrameInfo{Format: avutil.PixFmtI420},
			Out:        FrameInfo{Format: avutil.PixFmtI420},
			IOPattern:  InSystemMemory | OutSystemMemory,
			AsyncDepth: 1,
		}
	}
	out := *in
	if out.AsyncDepth <= 0 {
		out.AsyncDepth = 1
	}
	out.Protected = false
	out.ExtBuffers = nil
	out.NumThread = 0
	return out
}

// IOSurfRequest is query_io_surf's per-side result.
type IOSurfRequest struct {
	NumMin       int
	NumSuggested int
	IOPattern    IOPattern
}

// QueryIOSurf returns {1,1} requests for both sides (spec.md §4.5).
func (v *VPP) QueryIOSurf(par Params) (in, out IOSurfRequest) {
	in = IOSurfRequest{NumMin: 1, NumSuggested: 1, IOPattern: par.IOPattern & (InSystemMemory | InVideoMemory)}
	out = IOSurfRequest{NumMin: 1, NumSuggested: 1, IOPattern: par.IOPattern & (OutSystemMemory | OutVideoMemory)}
	return in, out
}

// RunFrameAsync pushes in (if any) through the composed filter chain
// and writes the result into out by copying planes, whether or not out
// is pool-backed. Propagates in's timestamp with the
// "original timestamp" data flag (spec.md §4.5).
func (v *VPP) RunFrameAsync(in, out *surface.Surface) status.Code {
	if out == nil {
		return status.NullPtr
	}
	if in == nil {
		v.log.Warn().Msg("run_frame_async called with no input surface")
		return status.MoreData
	}

	srcFrame := surfaceToFrame(in, v.params.In)
	dstFrame := applyPrimitives(v.prims, srcFrame, v.params.In, v.params.Out)

	copyFrameInto(dstFrame, out)
	out.Timestamp = in.Timestamp
	out.Flags |= surface.DataOriginalTimestamp
	out.Info.Crop = surface.CropRect{X: 0, Y: 0, W: v.params.Out.Width, H: v.params.Out.Height}

	return status.OK
}

func surfaceToFrame(s *surface.Surface, info FrameInfo) *avutil.Frame {
	f := &avutil.Frame{
		Data:   s.Data,
		Width:  info.Width,
		Height: info.Height,
		Format: info.Format,
		Pts:    s.Timestamp,
	}
	for i, p := range s.Pitch {
		f.Linesize[i] = p
	}
	return f
}

func copyFrameInto(src *avutil.Frame, dst *surface.Surface) {
	for i := range dst.Data {
		if src.Data[i] == nil || dst.Data[i] == nil {
			continue
		}
		n := len(src.Data[i])
		if n > len(dst.Data[i]) {
			n = len(dst.Data[i])
		}
		copy(dst.Data[i][:n], src.Data[i][:n])
		dst.Pitch[i] = src.Linesize[i]
	}
}

// applyPrimitives runs the composed chain against src, producing a
// freshly-allocated frame at the output shape. Each primitive is a
// best-effort pixel operation (nearest-neighbor scale, planar/semi-
// planar reshuffle for color-convert) — adequate to exercise govpl's
// surface/pool contract, not a faithful video filter implementation
// (the actual scaling/color-space math library is out of scope, spec.md §1).
func applyPrimitives(prims []Primitive, src *avutil.Frame, in, out FrameInfo) *avutil.Frame {
	crop := resolveCrop(in)
	cur := src
	for _, p := range prims {
		switch p {
		case PrimitiveCrop, PrimitiveCropScale:
			cur = cropThenScale(cur, crop, out.Width, out.Height)
		case PrimitiveComposite:
			cur = compositeFrame(cur, crop, out)
		case PrimitiveScale:
			cur = scaleFrame(cur, out.Width, out.Height)
		case PrimitiveColorConvert:
			cur = convertFormat(cur, out.Format)
		case PrimitiveIdentity:
			// no-op
		}
	}
	if cur.Width != out.Width || cur.Height != out.Height {
		cur = scaleFrame(cur, out.Width, out.Height)
	}
	if cur.Format != out.Format {
		cur = convertFormat(cur, out.Format)
	}
	return cur
}

// compositeFrame implements spec.md §4.5's composite row: a dest-filled
// background at the full output shape, with the cropped-and-scaled
// source overlaid at (dst_crop_x, dst_crop_y). out.Crop names the
// overlay's placement/size within the destination; a zero-valued
// out.Crop (no destination crop configured) means the overlay fills the
// whole background, matching resolveCrop's own "zero means everything"
// convention.
func compositeFrame(src *avutil.Frame, crop surface.CropRect, out FrameInfo) *avutil.Frame {
	dstCrop := resolveCrop(out)

	bg := &avutil.Frame{Width: out.Width, Height: out.Height, Format: src.Format}
	if err := bg.AllocBuffer(); err != nil {
		return src
	}

	overlay := cropThenScale(src, crop, dstCrop.W, dstCrop.H)
	blit(overlay, bg, dstCrop.X, dstCrop.Y)
	return bg
}

// blit copies every plane of src into dst at destination origin (x,y),
// respecting each plane's chroma subsampling.
func blit(src, dst *avutil.Frame, x, y int) {
	for i := range dst.Data {
		if src.Data[i] == nil || dst.Data[i] == nil {
			continue
		}
		shiftX, shiftY := planeSubsample(dst.Format, i)
		dstX := x >> shiftX
		dstY := y >> shiftY
		for row := 0; row*src.Linesize[i] < len(src.Data[i]); row++ {
			dstOff := (dstY+row)*dst.Linesize[i] + dstX
			srcOff := row * src.Linesize[i]
			n := src.Linesize[i]
			if dstOff+n > len(dst.Data[i]) || srcOff+n > len(src.Data[i]) {
				break
			}
			copy(dst.Data[i][dstOff:dstOff+n], src.Data[i][srcOff:srcOff+n])
		}
	}
}

func cropThenScale(src *avutil.Frame, crop surface.CropRect, dstW, dstH int) *avutil.Frame {
	cropped := &avutil.Frame{Width: crop.W, Height: crop.H, Format: src.Format}
	if err := cropped.AllocBuffer(); err != nil {
		return src
	}
	for i := range cropped.Data {
		if src.Data[i] == nil || cropped.Data[i] == nil {
			continue
		}
		planeShiftX, planeShiftY := planeSubsample(src.Format, i)
		srcX := crop.X >> planeShiftX
		srcY := crop.Y >> planeShiftY
		for row := 0; row*cropped.Linesize[i] < len(cropped.Data[i]); row++ {
			srcRow := srcY + row
			srcOff := srcRow*src.Linesize[i] + srcX
			dstOff := row * cropped.Linesize[i]
			n := cropped.Linesize[i]
			if srcOff+n > len(src.Data[i]) || dstOff+n > len(cropped.Data[i]) {
				break
			}
			copy(cropped.Data[i][dstOff:dstOff+n], src.Data[i][srcOff:srcOff+n])
		}
	}
	return scaleFrame(cropped, dstW, dstH)
}

func planeSubsample(format avutil.PixelFormat, plane int) (shiftX, shiftY int) {
	if plane == 0 {
		return 0, 0
	}
	switch format {
	case avutil.PixFmtI420, avutil.PixFmtI010, avutil.PixFmtNV12, avutil.PixFmtP010:
		return 1, 1
	case avutil.PixFmtNV16, avutil.PixFmtP210:
		return 1, 0
	default:
		return 0, 0
	}
}

// scaleFrame nearest-neighbor resamples src to dstW x dstH, preserving
// format and plane count.
func scaleFrame(src *avutil.Frame, dstW, dstH int) *avutil.Frame {
	if src.Width == dstW && src.Height == dstH {
		return src
	}
	dst := &avutil.Frame{Width: dstW, Height: dstH, Format: src.Format, Pts: src.Pts}
	if err := dst.AllocBuffer(); err != nil {
		return src
	}

	for i := range dst.Data {
		if src.Data[i] == nil || dst.Data[i] == nil || src.Width == 0 || src.Height == 0 {
			continue
		}
		shiftX, shiftY := planeSubsample(src.Format, i)
		srcPlaneW := src.Width >> shiftX
		srcPlaneH := src.Height >> shiftY
		dstPlaneW := dstW >> shiftX
		dstPlaneH := dstH >> shiftY
		if srcPlaneW == 0 || srcPlaneH == 0 || dstPlaneW == 0 || dstPlaneH == 0 {
			continue
		}
		bpp := 1
		if src.Format == avutil.PixFmtI010 || src.Format == avutil.PixFmtP010 || src.Format == avutil.PixFmtP210 {
			bpp = 2
		}
		for y := 0; y < dstPlaneH; y++ {
			srcY := y * srcPlaneH / dstPlaneH
			for x := 0; x < dstPlaneW; x++ {
				srcX := x * srcPlaneW / dstPlaneW
				srcOff := srcY*src.Linesize[i] + srcX*bpp
				dstOff := y*dst.Linesize[i] + x*bpp
				if srcOff+bpp > len(src.Data[i]) || dstOff+bpp > len(dst.Data[i]) {
					continue
				}
				copy(dst.Data[i][dstOff:dstOff+bpp], src.Data[i][srcOff:srcOff+bpp])
			}
		}
	}
	return dst
}

// convertFormat reshuffles chroma between I420 and NV12 at equal
// resolution. Every other format pair copies luma only when both luma
// planes are the same size and leaves chroma zeroed — an accepted
// simplification since true color-space math is out of scope.
func convertFormat(src *avutil.Frame, format avutil.PixelFormat) *avutil.Frame {
	if src.Format == format {
		return src
	}
	dst := &avutil.Frame{Width: src.Width, Height: src.Height, Format: format, Pts: src.Pts}
	if err := dst.AllocBuffer(); err != nil {
		return src
	}
	if len(dst.Data[0]) == len(src.Data[0]) {
		copy(dst.Data[0], src.Data[0])
	}

	switch {
	case (src.Format == avutil.PixFmtI420 && format == avutil.PixFmtNV12):
		interleave(src.Data[1], src.Data[2], dst.Data[1])
	case (src.Format == avutil.PixFmtNV12 && format == avutil.PixFmtI420):
		deinterleave(src.Data[1], dst.Data[1], dst.Data[2])
	}
	return dst
}

func interleave(u, v, dst []byte) {
	n := len(u)
	if len(v) < n {
		n = len(v)
	}
	if len(dst) < 2*n {
		n = len(dst) / 2
	}
	for i := 0; i < n; i++ {
		dst[2*i] = u[i]
		dst[2*i+1] = v[i]
	}
}

func deinterleave(uv []byte, u, v []byte) {
	n := len(uv) / 2
	if len(u) < n {
		n = len(u)
	}
	if len(v) < n {
		n = len(v)
	}
	for i := 0; i < n; i++ {
		u[i] = uv[2*i]
		v[i] = uv[2*i+1]
	}
}
