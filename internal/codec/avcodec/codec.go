// Package avcodec is the synthetic stand-in for spec.md's "external
// compressed-video library": it is the collaborator govpl's decoder,
// encoder and VPP pipelines drive, not a spec-governed component
// itself. Adapted from ffmpeggo/avcodec/codec.go, trimmed to the codec
// IDs and capability surface govpl's HEVC backend exercises.
package avcodec

import "github.com/vplsoft/govpl/internal/codec/avutil"

// CodecID enumerates the compressed formats the backend recognizes.
// govpl's SPEC_FULL.md scope only drives HEVC through to a working
// encode/decode round trip; the others are recognized at the CodecID
// level (so dispatcher capability queries can list them) but have no
// encoder or decoder; only NewHEVCEncoder/NewHEVCDecoder exist.
type CodecID int

const (
	CodecIDUnknown CodecID = iota
	CodecIDAVC
	CodecIDHEVC
	CodecIDAV1
	CodecIDMPEG2
	CodecIDVP9
	CodecIDJPEG
)

func (c CodecID) String() string {
	switch c {
	case CodecIDAVC:
		return "avc"
	case CodecIDHEVC:
		return "hevc"
	case CodecIDAV1:
		return "av1"
	case CodecIDMPEG2:
		return "mpeg2"
	case CodecIDVP9:
		return "vp9"
	case CodecIDJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// RateControlMethod mirrors mfxInfoMFX::RateControlMethod.
type RateControlMethod int

const (
	RateControlCQP RateControlMethod = iota
	RateControlVBR
	RateControlCBR
)

// EncoderContext carries the parameters a session validates before
// calling NewHEVCEncoder. Field names track spec.md §4.4's init checks.
type EncoderContext struct {
	Codec       CodecID
	Width       int
	Height      int
	Format      avutil.PixelFormat
	FrameRate   avutil.Rational
	TargetKbps  int
	MaxKbps     int
	QP          int
	RateControl RateControlMethod
	GopSize     int
	GopRefDist  int
	NumRefFrame int
}

// DecoderContext carries the parameters a session validates before
// calling NewHEVCDecoder.
type DecoderContext struct {
	Codec  CodecID
	Width  int
	Height int
	Format avutil.PixelFormat
}

// Encoder drives one compressed stream's production.
type Encoder interface {
	// Init validates ctx and allocates internal state. Returns
	// avutil.ErrInvalidData if ctx is not viable for this backend.
	Init(ctx EncoderContext) error
	// Encode submits one frame and returns the resulting packet, or
	// avutil.ErrAgain if the backend needs to buffer before it can
	// produce output (e.g. B-frame reordering).
	Encode(frame *avutil.Frame) (*avutil.Packet, error)
	// Flush drains any buffered frames, returning avutil.ErrEOF once
	// nothing remains.
	Flush() (*avutil.Packet, error)
	// ExtraData returns the out-of-band parameter-set header produced
	// by Init, if any.
	ExtraData() []byte
	Close() error
}

// Decoder drives one compressed stream's consumption.
type Decoder interface {
	Init(ctx DecoderContext) error
	// Decode submits compressed bytes and returns the next decoded
	// frame, or avutil.ErrAgain if more input is required first.
	Decode(data []byte) (*avutil.Frame, error)
	Flush() (*avutil.Frame, error)
	Close() error
}

// HEVC NAL unit types (Rec. ITU-T H.265 Table 7-1), the subset the
// synthetic parameter-set header in hevc.go emits and parses.
const (
	NalUnitTrailR = 1
	NalUnitIDRW   = 19
	NalUnitIDRN   = 20
	NalUnitVPS    = 32
	NalUnitSPS    = 33
	NalUnitPPS    = 34
)

// HEVC profile_idc values (Annex A).
const (
	HEVCProfileMain   = 1
	HEVCProfileMain10 = 2
)
