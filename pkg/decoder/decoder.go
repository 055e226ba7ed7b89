// Package decoder implements the decoder pipeline (C6): the state
// machine carrying compressed bitstream bytes to decoded surfaces
// through the three memory modes spec.md §4.3 describes.
//
// Grounded on original_source/libvpl/src/cpu_decode.cpp's
// CpuWorkstream::DecodeFrame (buffer parse loop, MORE_DATA on
// EAGAIN/EOF, plane-copy-with-pitch) and on spec.md §4.3's plane-copy
// rules and state machine. The underlying codec is internal/codec,
// govpl's stand-in for spec.md's "external compressed-video library"
// collaborator.
package decoder

import (
	"github.com/rs/zerolog"

	"github.com/vplsoft/govpl/internal/codec/avcodec"
	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/bitstream"
	"github.com/vplsoft/govpl/pkg/pool"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

// State is the decoder pipeline's lifecycle (spec.md §4.3).
type State int

const (
	StateUninit State = iota
	StateHeaderKnown
	StateInitialized
	StateDraining
	StateClosed
)

// VideoParam is the decoder's negotiated parameter set, filled in by
// DecodeHeader or supplied directly to Init.
type VideoParam struct {
	Codec       bitstream.CodecID
	Width       int
	Height      int
	Format      avutil.PixelFormat
	FrameRate   avutil.Rational
	ChromaShift int
}

func supportedCodec(c bitstream.CodecID) bool {
	switch c {
	case bitstream.CodecAVC, bitstream.CodecHEVC, bitstream.CodecMJPEG, bitstream.CodecMPEG2, bitstream.CodecAV1:
		return true
	default:
		return false
	}
}

// MemoryMode selects how decode_frame_async obtains its output surface.
type MemoryMode int

const (
	// ModeExternal: caller supplies WorkSurface from its own pool.
	ModeExternal MemoryMode = iota
	// ModeInternal: the decoder hands back a session-owned surface.
	ModeInternal
	// ModeAuto: caller supplies neither a surface nor initialized
	// parameters; DecodeFrameAsync lazily runs DecodeHeader on first call.
	ModeAuto
)

// Decoder is one decoder pipeline instance.
type Decoder struct {
	state State

	param    VideoParam
	codec    avcodec.Decoder
	internal *pool.Pool // session-owned pool backing ModeInternal
	log      zerolog.Logger
}

// New constructs an uninitialized decoder pipeline. Logging is a no-op
// until SetLogger is called (session wires the process-wide logger
// through at InitDecoder time, per SPEC_FULL.md §2).
func New() *Decoder {
	return &Decoder{state: StateUninit, log: zerolog.Nop()}
}

// SetLogger installs the logger this pipeline reports state transitions
// and back-pressure on.
func (d *Decoder) SetLogger(l zerolog.Logger) {
	d.log = l
}

// DecodeHeader parses enough of bs's leading bytes to fill param. It
// does not transition the pipeline to StateInitialized — per spec.md
// §4.3, that only happens via Init. Returns MoreData if the header is
// not yet complete.
func (d *Decoder) DecodeHeader(bs *bitstream.Bitstream) (VideoParam, status.Code) {
	if bs == nil {
		return VideoParam{}, status.NullPtr
	}
	parsed, ok := avcodec.ParseParameterSets(bs.Unread())
	if !ok {
		return VideoParam{}, status.MoreData
	}
	if code := bs.Consume(parsed.ConsumedLength); code != status.OK {
		return VideoParam{}, code
	}

	format := avutil.PixFmtI420
	if parsed.Profile == avcodec.HEVCProfileMain10 {
		format = avutil.PixFmtI010
	}
	codec := bs.CodecID
	if codec == bitstream.CodecNone {
		// The parameter sets ParseParameterSets recognizes are HEVC's.
		codec = bitstream.CodecHEVC
	}
	param := VideoParam{
		Codec:  codec,
		Width:  parsed.Width,
		Height: parsed.Height,
		Format: format,
	}
	if d.state == StateUninit {
		d.state = StateHeaderKnown
		d.log.Debug().Str("state", "header_known").Int("width", param.Width).Int("height", param.Height).Msg("decoder state transition")
	}
	d.param = param
	return param, status.OK
}

// Init validates param, opens the underlying codec, and allocates
// scratch storage. Fails with InvalidVideoParam if any required field
// is zero or unsupported.
func (d *Decoder) Init(param VideoParam, internalPool *pool.Pool) status.Code {
	if !supportedCodec(param.Codec) {
		return status.InvalidVideoParam
	}
	if param.Width <= 0 || param.Height <= 0 {
		return status.InvalidVideoParam
	}
	if param.Format == avutil.PixFmtP010 && param.ChromaShift == 0 {
		return status.InvalidVideoParam
	}

	hevcDec := avcodec.NewHEVCDecoder()
	if err := hevcDec.Init(avcodec.DecoderContext{
		Codec:  avcodec.CodecIDHEVC,
		Width:  param.Width,
		Height: param.Height,
		Format: param.Format,
	}); err != nil {
		return status.InvalidVideoParam
	}

	d.codec = hevcDec
	d.param = param
	d.internal = internalPool
	d.state = StateInitialized
	d.log.Debug().Str("state", "initialized").Int("codec", int(param.Codec)).Msg("decoder state transition")
	return status.OK
}

// DecodeFrameAsync is the central operation (spec.md §4.3). bs == nil
// enters draining mode. workSurface selects external memory mode when
// non-nil; when nil and mode is ModeInternal the decoder allocates from
// its internal pool, and when mode is ModeAuto it lazily parses the
// header on first call.
func (d *Decoder) DecodeFrameAsync(bs *bitstream.Bitstream, workSurface *surface.Surface, mode MemoryMode) (*surface.Surface, status.Code) {
	if d.state == StateClosed {
		return nil, status.NotInitialized
	}

	if bs == nil {
		if d.codec == nil {
			return nil, status.NotInitialized
		}
		d.state = StateDraining
		d.log.Debug().Msg("decoder draining")
		frame, err := d.codec.Flush()
		if err == avutil.ErrEOF || frame == nil {
			return nil, status.MoreData
		}
		return d.deliver(frame, workSurface, mode)
	}

	if mode == ModeAuto && d.state == StateUninit {
		if _, code := d.DecodeHeader(bs); code != status.OK {
			return nil, code
		}
	}
	if d.state != StateInitialized && d.state != StateDraining {
		return nil, status.NotInitialized
	}

	length, ok := avcodec.PeekAccessUnitLength(bs.Unread())
	if !ok {
		return nil, status.MoreData
	}

	if mode == ModeExternal && workSurface == nil {
		d.log.Warn().Msg("decode_frame_async has no output slot in external mode")
		return nil, status.MoreSurface
	}

	nal := make([]byte, length)
	copy(nal, bs.Unread()[:length])

	frame, err := d.codec.Decode(nal)
	if err != nil {
		if err == avutil.ErrAgain {
			return nil, status.MoreData
		}
		return nil, status.UndefinedBehavior
	}
	if code := bs.Consume(length); code != status.OK {
		return nil, code
	}

	if frame.Width != d.param.Width || frame.Height != d.param.Height {
		return nil, status.VideoParamChanged
	}

	return d.deliver(frame, workSurface, mode)
}

// deliver copies frame's planes into the destination surface
// respecting pitch vs. linesize (spec.md §4.3's plane-copy rules),
// sets its timestamp, and returns it with OK at ref_count 1 (an external
// work surface is add-refed here; a pool surface already is by
// GetFreeSurface).
func (d *Decoder) deliver(frame *avutil.Frame, workSurface *surface.Surface, mode MemoryMode) (*surface.Surface, status.Code) {
	var dst *surface.Surface
	switch mode {
	case ModeExternal:
		dst = workSurface
	case ModeInternal, ModeAuto:
		if d.internal == nil {
			return nil, status.NotInitialized
		}
		s, code := d.internal.GetFreeSurface()
		if code != status.OK {
			return nil, code
		}
		dst = s
	}
	if dst == nil {
		return nil, status.NullPtr
	}

	copyPlanes(frame, dst)
	dst.Timestamp = frame.Pts
	// Pool surfaces come back from GetFreeSurface already at ref_count 1.
	if mode == ModeExternal {
		dst.AddRef()
	}

	return dst, status.OK
}

// copyPlanes copies Y at width x height (x2 for 10-bit) and U, V at
// width/2 x height/2, row by row, since destination pitch may differ
// from source linesize (spec.md §4.3).
func copyPlanes(src *avutil.Frame, dst *surface.Surface) {
	bpp := 1
	if src.Format == avutil.PixFmtI010 || src.Format == avutil.PixFmtP010 || src.Format == avutil.PixFmtP210 {
		bpp = 2
	}

	planeRows := [3]int{src.Height, src.Height / 2, src.Height / 2}
	planeCols := [3]int{src.Width * bpp, (src.Width / 2) * bpp, (src.Width / 2) * bpp}
	if src.Format == avutil.PixFmtNV12 || src.Format == avutil.PixFmtP010 || src.Format == avutil.PixFmtNV16 || src.Format == avutil.PixFmtP210 {
		planeCols[1] = src.Width * bpp
		planeRows[1] = src.Height / 2
		if src.Format == avutil.PixFmtNV16 || src.Format == avutil.PixFmtP210 {
			planeRows[1] = src.Height
		}
	}

	for i := 0; i < 3; i++ {
		srcLs := src.Linesize[i]
		dstPitch := dst.Pitch[i]
		if srcLs == 0 || dstPitch == 0 || src.Data[i] == nil || dst.Data[i] == nil {
			continue
		}
		rows := planeRows[i]
		cols := planeCols[i]
		for row := 0; row < rows; row++ {
			srcOff := row * srcLs
			dstOff := row * dstPitch
			if srcOff+cols > len(src.Data[i]) || dstOff+cols > len(dst.Data[i]) {
				break
			}
			copy(dst.Data[i][dstOff:dstOff+cols], src.Data[i][srcOff:srcOff+cols])
		}
	}

	dst.Info.Crop = surface.CropRect{X: 0, Y: 0, W: src.Width, H: src.Height}
}

// GetVideoParam returns the decoder's current negotiated parameters —
// the supplemented DecodeGetVideoParams-equivalent operation from
// original_source/libvpl/src/cpu_decode.cpp (SPEC_FULL.md §4).
func (d *Decoder) GetVideoParam() (VideoParam, status.Code) {
	if d.state == StateUninit {
		return VideoParam{}, status.NotInitialized
	}
	return d.param, status.OK
}

// Close invalidates the pipeline; subsequent calls return NotInitialized.
func (d *Decoder) Close() status.Code {
	if d.codec != nil {
		d.codec.Close()
	}
	d.state = StateClosed
	d.log.Debug().Str("state", "closed").Msg("decoder state transition")
	return status.OK
}

// GetState reports the decoder's current lifecycle state.
func (d *Decoder) GetState() State {
	return d.state
}
