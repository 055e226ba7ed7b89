// Package encoder implements the encoder pipeline (C7): raw surfaces
// in, compressed packets out, through the codec-specific parameter
// routing spec.md §4.4 describes.
//
// Grounded on original_source/libvpl/src/cpu_encode.cpp's
// CpuWorkstream::InitEncode (gop_size defaulting, rate-control option
// routing, bit-depth-driven pixel format selection) and EncodeFrame
// (non-owning plane view, NOT_ENOUGH_BUFFER check against the caller's
// bitstream buffer, send/receive failure policy).
package encoder

import (
	"github.com/rs/zerolog"

	"github.com/vplsoft/govpl/internal/codec/avcodec"
	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/bitstream"
	"github.com/vplsoft/govpl/pkg/status"
	"github.com/vplsoft/govpl/pkg/surface"
)

// VideoParam is the encoder's validated, stored parameter set
// (spec.md §4.4).
type VideoParam struct {
	Codec       bitstream.CodecID
	Width       int
	Height      int
	Format      avutil.PixelFormat
	FrameRate   avutil.Rational
	TargetKbps  int
	RateControl avcodec.RateControlMethod
	QP          int
	GopRefDist  int
}

func supportedCodec(c bitstream.CodecID) bool {
	switch c {
	case bitstream.CodecAVC, bitstream.CodecHEVC, bitstream.CodecMJPEG:
		return true
	default:
		return false
	}
}

// Encoder is one encoder pipeline instance.
type Encoder struct {
	param VideoParam
	codec avcodec.Encoder
	done  bool
	log   zerolog.Logger
}

// New constructs an uninitialized encoder pipeline. Logging is a no-op
// until SetLogger is called (session wires the process-wide logger
// through at InitEncoder time, per SPEC_FULL.md §2).
func New() *Encoder {
	return &Encoder{log: zerolog.Nop()}
}

// SetLogger installs the logger this pipeline reports state transitions
// and back-pressure on.
func (e *Encoder) SetLogger(l zerolog.Logger) {
	e.log = l
}

// Init validates param and stores it. Codec-specific routing happens
// inside the avcodec backend: 10-bit formats select the Main10 profile
// (mirroring InitEncode's pix_fmt branch). The rate-control method is
// passed through to the backend, which sizes output from QP only and
// does not act on CQP vs VBR/CBR.
func (e *Encoder) Init(param VideoParam) status.Code {
	if !supportedCodec(param.Codec) {
		return status.InvalidVideoParam
	}
	if param.Width <= 0 || param.Height <= 0 || param.TargetKbps <= 0 {
		return status.InvalidVideoParam
	}

	gopSize := param.GopRefDist
	if gopSize <= 0 {
		// Default: 2x the frame rate, matching InitEncode's fallback
		// when GopRefDist is unset.
		rate := param.FrameRate.Float64()
		if rate <= 0 {
			rate = 30
		}
		gopSize = int(2 * rate)
	}

	hevcEnc := avcodec.NewHEVCEncoder()
	if err := hevcEnc.Init(avcodec.EncoderContext{
		Codec:       avcodec.CodecIDHEVC,
		Width:       param.Width,
		Height:      param.Height,
		Format:      param.Format,
		FrameRate:   param.FrameRate,
		TargetKbps:  param.TargetKbps,
		QP:          param.QP,
		RateControl: param.RateControl,
		GopSize:     gopSize,
		GopRefDist:  param.GopRefDist,
	}); err != nil {
		return status.InvalidVideoParam
	}

	e.codec = hevcEnc
	e.param = param
	e.done = false
	e.log.Debug().Int("gop_size", gopSize).Int("target_kbps", param.TargetKbps).Msg("encoder initialized")
	return status.OK
}

// EncodeFrameAsync submits a surface (or nil to drain) and attempts to
// pull one compressed packet into bs after bs.DataOffset+bs.DataLength
// (spec.md §4.4).
func (e *Encoder) EncodeFrameAsync(s *surface.Surface, bs *bitstream.Bitstream) status.Code {
	if e.codec == nil {
		return status.NotInitialized
	}
	if bs == nil {
		return status.NullPtr
	}

	var pkt *avutil.Packet
	var err error

	if s == nil {
		if e.done {
			return status.MoreData
		}
		pkt, err = e.codec.Flush()
		if err == avutil.ErrEOF {
			e.done = true
			return status.MoreData
		}
		if err != nil {
			return status.UndefinedBehavior
		}
	} else {
		frame := &avutil.Frame{
			Data:     s.Data,
			Width:    e.param.Width,
			Height:   e.param.Height,
			Format:   e.param.Format,
			Pts:      s.Timestamp,
			FrameRate: e.param.FrameRate,
		}
		for i, p := range s.Pitch {
			frame.Linesize[i] = p
		}
		pkt, err = e.codec.Encode(frame)
		if err != nil {
			if err == avutil.ErrAgain {
				return status.MoreData
			}
			return status.Unknown
		}
	}

	if pkt == nil {
		return status.MoreData
	}

	free := bs.MaxLength() - (bs.DataOffset + bs.DataLength)
	if len(pkt.Data) > free {
		e.log.Warn().Int("packet_size", len(pkt.Data)).Int("free", free).Msg("encode_frame_async output buffer too small")
		return status.NotEnoughBuffer
	}

	writeAt := bs.DataOffset + bs.DataLength
	copy(bs.Data[writeAt:], pkt.Data)
	bs.DataLength += len(pkt.Data)
	bs.Timestamp = pkt.Pts

	return status.OK
}

// ExtraData returns the parameter-set header the underlying codec
// produced at Init, for callers that need to prime a downstream
// decoder out of band.
func (e *Encoder) ExtraData() []byte {
	if e.codec == nil {
		return nil
	}
	return e.codec.ExtraData()
}

// Close invalidates the pipeline.
func (e *Encoder) Close() status.Code {
	if e.codec != nil {
		e.codec.Close()
	}
	e.codec = nil
	e.log.Debug().Msg("encoder closed")
	return status.OK
}
