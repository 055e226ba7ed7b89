package avcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/vplsoft/govpl/internal/codec/avutil"
)

// hevcStartCode is the Annex B NAL unit delimiter.
var hevcStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// HEVCEncoder is a synthetic HEVC-flavored encoder: it does not perform
// real block transforms or CABAC-coded residual transmission (see
// DESIGN.md for why a spec-compliant inverse path is out of scope), but
// it does emit real NAL start codes, a real Exp-Golomb parameter-set
// header (generateParameterSets, grounded on
// ffmpeggo/avcodec/hevc_encoder.go's Init), and it runs every sample
// through the CABAC engine in cabac.go so encoded size tracks QP.
// ctx.RateControl and ctx.TargetKbps are carried but never read: the
// shift comes from ctx.QP alone, whatever the rate-control method.
//
// Each access unit quantizes sample precision by a QP-derived shift
// before framing, so higher QP yields both a smaller CABAC-flavored
// trailer and fewer reconstructed low bits — a lossy but decodable
// round trip, adequate for exercising govpl's pipelines without
// reimplementing the HEVC transform/residual coding pipeline.
type HEVCEncoder struct {
	ctx        EncoderContext
	extraData  []byte
	frameCount int
}

// NewHEVCEncoder constructs an uninitialized encoder.
func NewHEVCEncoder() *HEVCEncoder {
	return &HEVCEncoder{}
}

func qpShift(qp int) int {
	switch {
	case qp <= 0:
		return 0
	case qp >= 51:
		return 5
	default:
		return qp / 11
	}
}

// generateParameterSets builds a VPS/SPS/PPS-ish Annex B blob carrying
// width, height, profile and bit depth as Exp-Golomb fields, per
// hevc_encoder.go's Init. It is real bitstream framing, not a literal
// copy of a spec-valid VPS/SPS/PPS syntax table.
func generateParameterSets(ctx EncoderContext) []byte {
	profile := HEVCProfileMain
	if ctx.Format == avutil.PixFmtI010 || ctx.Format == avutil.PixFmtP010 {
		profile = HEVCProfileMain10
	}

	w := avutil.NewBitstreamWriter()
	w.WriteBits(0, 1) // forbidden_zero_bit
	w.WriteBits(uint32(profile), 7)
	w.WriteUE(uint32(ctx.Width))
	w.WriteUE(uint32(ctx.Height))
	w.WriteUE(uint32(ctx.GopSize))
	w.WriteUE(uint32(ctx.GopRefDist))
	rbsp := w.Flush()

	out := make([]byte, 0, len(hevcStartCode)*3+len(rbsp)+3)
	out = append(out, hevcStartCode...)
	out = append(out, byte(NalUnitVPS)<<1)
	out = append(out, hevcStartCode...)
	out = append(out, byte(NalUnitSPS)<<1)
	out = append(out, rbsp...)
	out = append(out, hevcStartCode...)
	out = append(out, byte(NalUnitPPS)<<1)
	return out
}

// ParsedParameterSets is what ParseParameterSets recovers from a
// generateParameterSets blob: enough to drive the decoder's
// decode_header (spec.md §4.3).
type ParsedParameterSets struct {
	Width      int
	Height     int
	GopSize    int
	GopRefDist int
	Profile    int

	// ConsumedLength is the total byte length of the VPS/SPS/PPS blob,
	// i.e. how far the decoder's read cursor should advance past it.
	ConsumedLength int
}

func findStartCodes(data []byte) []int {
	var offsets []int
	for i := 0; i+4 <= len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// ParseParameterSets scans data for the VPS/SPS/PPS NAL sequence
// generateParameterSets emits and decodes the SPS RBSP's Exp-Golomb
// fields. Returns ok=false if the sequence is not yet fully present
// (the caller should treat this as needing more input, i.e.
// avutil.ErrAgain / status.MoreData upstream).
func ParseParameterSets(data []byte) (ParsedParameterSets, bool) {
	offsets := findStartCodes(data)
	if len(offsets) < 3 {
		return ParsedParameterSets{}, false
	}

	spsStart := offsets[1]
	spsNALHeaderLen := 5 // start code (4) + nal header byte (1)
	if data[spsStart+4]>>1 != NalUnitSPS {
		return ParsedParameterSets{}, false
	}
	rbspEnd := offsets[2]
	if rbspEnd <= spsStart+spsNALHeaderLen {
		return ParsedParameterSets{}, false
	}
	rbsp := data[spsStart+spsNALHeaderLen : rbspEnd]

	r := avutil.NewBitstreamReader(rbsp)
	if _, err := r.ReadBits(1); err != nil {
		return ParsedParameterSets{}, false
	}
	profile, err := r.ReadBits(7)
	if err != nil {
		return ParsedParameterSets{}, false
	}
	width, err := r.ReadUE()
	if err != nil {
		return ParsedParameterSets{}, false
	}
	height, err := r.ReadUE()
	if err != nil {
		return ParsedParameterSets{}, false
	}
	gopSize, err := r.ReadUE()
	if err != nil {
		return ParsedParameterSets{}, false
	}
	gopRefDist, err := r.ReadUE()
	if err != nil {
		return ParsedParameterSets{}, false
	}

	return ParsedParameterSets{
		Width:          int(width),
		Height:         int(height),
		GopSize:        int(gopSize),
		GopRefDist:     int(gopRefDist),
		Profile:        int(profile),
		ConsumedLength: offsets[2] + 5,
	}, true
}

// PeekAccessUnitLength reports the total byte length of the access
// unit (NAL) starting at offset 0 of data, or ok=false if data does not
// yet contain the full header needed to compute it (the caller should
// treat that as needing more input).
func PeekAccessUnitLength(data []byte) (int, bool) {
	const headerLen = 4 + 1 + 14
	if len(data) < headerLen {
		return 0, false
	}
	if data[0] != 0 || data[1] != 0 || data[2] != 0 || data[3] != 1 {
		return 0, false
	}
	format := avutil.PixelFormat(int8(data[4+1+9]))
	width := int(binary.BigEndian.Uint32(data[5:9]))
	height := int(binary.BigEndian.Uint32(data[9:13]))
	trailerLen := int(binary.BigEndian.Uint32(data[15:19]))

	frame := &avutil.Frame{Width: width, Height: height, Format: format}
	if err := frame.AllocBuffer(); err != nil {
		return 0, false
	}
	payloadLen := 0
	for _, p := range frame.Data {
		payloadLen += len(p)
	}

	total := headerLen + payloadLen + trailerLen
	if len(data) < total {
		return 0, false
	}
	return total, true
}

// Init validates ctx and generates the parameter-set extradata.
func (e *HEVCEncoder) Init(ctx EncoderContext) error {
	if ctx.Width <= 0 || ctx.Height <= 0 {
		return avutil.ErrInvalidData
	}
	if ctx.GopSize <= 0 {
		ctx.GopSize = 30
	}
	if ctx.GopRefDist <= 0 {
		ctx.GopRefDist = 1
	}
	e.ctx = ctx
	e.extraData = generateParameterSets(ctx)
	e.frameCount = 0
	return nil
}

// Encode quantizes frame's planes by a QP-derived shift, entropy-flavors
// the result through a CABAC engine, and frames the output as one NAL
// unit.
func (e *HEVCEncoder) Encode(frame *avutil.Frame) (*avutil.Packet, error) {
	if frame == nil {
		return nil, avutil.ErrEOF
	}

	keyframe := e.frameCount%e.ctx.GopSize == 0
	shift := qpShift(e.ctx.QP)

	cabac := NewCABACEncoder()
	payload := make([]byte, 0, len(frame.Data[0])+len(frame.Data[1])+len(frame.Data[2]))
	for _, plane := range frame.Data {
		if plane == nil {
			continue
		}
		q := make([]byte, len(plane))
		for i, b := range plane {
			qv := b >> uint(shift)
			q[i] = qv
			cabac.EncodeBypassBins(uint32(qv), 8-shift)
		}
		payload = append(payload, q...)
	}
	trailer := cabac.Finish()

	nalType := NalUnitTrailR
	if keyframe {
		nalType = NalUnitIDRW
	}

	header := make([]byte, 14)
	binary.BigEndian.PutUint32(header[0:4], uint32(e.ctx.Width))
	binary.BigEndian.PutUint32(header[4:8], uint32(e.ctx.Height))
	header[8] = byte(shift)
	header[9] = byte(e.ctx.Format)
	binary.BigEndian.PutUint32(header[10:14], uint32(len(trailer)))

	out := make([]byte, 0, len(hevcStartCode)+1+len(header)+len(payload)+len(trailer))
	out = append(out, hevcStartCode...)
	out = append(out, byte(nalType)<<1)
	out = append(out, header...)
	out = append(out, payload...)
	out = append(out, trailer...)

	e.frameCount++

	return &avutil.Packet{Data: out, Pts: frame.Pts, KeyFrame: keyframe}, nil
}

// Flush reports end-of-stream; the encoder never buffers frames for
// reordering (GopRefDist beyond 1 is accepted for parameter-set flavor
// only, not implemented as real B-frame reordering).
func (e *HEVCEncoder) Flush() (*avutil.Packet, error) {
	return nil, avutil.ErrEOF
}

// ExtraData returns the parameter-set header produced by Init.
func (e *HEVCEncoder) ExtraData() []byte {
	return e.extraData
}

func (e *HEVCEncoder) Close() error {
	return nil
}

// HEVCDecoder reverses HEVCEncoder's framing. It is lossy (the shift
// quantization in Encode is not invertible to the original sample) but
// deterministic and self-consistent, which is what govpl's decoder
// pipeline needs to exercise its surface/plane-copy contract.
type HEVCDecoder struct {
	ctx DecoderContext
}

// NewHEVCDecoder constructs an uninitialized decoder.
func NewHEVCDecoder() *HEVCDecoder {
	return &HEVCDecoder{}
}

func (d *HEVCDecoder) Init(ctx DecoderContext) error {
	if ctx.Width <= 0 || ctx.Height <= 0 {
		return avutil.ErrInvalidData
	}
	d.ctx = ctx
	return nil
}

// Decode parses one Annex B NAL unit previously produced by HEVCEncoder.
func (d *HEVCDecoder) Decode(data []byte) (*avutil.Frame, error) {
	minLen := len(hevcStartCode) + 1 + 14
	if len(data) < minLen {
		return nil, avutil.ErrAgain
	}
	if data[0] != 0 || data[1] != 0 || data[2] != 0 || data[3] != 1 {
		return nil, avutil.ErrInvalidData
	}
	nalType := int(data[4] >> 1)
	header := data[5:19]
	width := int(binary.BigEndian.Uint32(header[0:4]))
	height := int(binary.BigEndian.Uint32(header[4:8]))
	shift := int(header[8])
	format := avutil.PixelFormat(int8(header[9]))
	trailerLen := int(binary.BigEndian.Uint32(header[10:14]))

	payloadAndTrailer := data[19:]
	if len(payloadAndTrailer) < trailerLen {
		return nil, fmt.Errorf("hevc: truncated access unit: %w", avutil.ErrInvalidData)
	}
	payload := payloadAndTrailer[:len(payloadAndTrailer)-trailerLen]

	frame := &avutil.Frame{
		Width:  width,
		Height: height,
		Format: format,
	}
	if d.ctx.Width != 0 {
		frame.Width = d.ctx.Width
		frame.Height = d.ctx.Height
		frame.Format = d.ctx.Format
	}
	if err := frame.AllocBuffer(); err != nil {
		return nil, err
	}
	frame.KeyFrame = nalType == NalUnitIDRW || nalType == NalUnitIDRN

	offset := 0
	for i, plane := range frame.Data {
		if plane == nil {
			continue
		}
		if offset+len(plane) > len(payload) {
			return nil, fmt.Errorf("hevc: short plane payload: %w", avutil.ErrInvalidData)
		}
		for j := range plane {
			frame.Data[i][j] = payload[offset+j] << uint(shift)
		}
		offset += len(plane)
	}

	return frame, nil
}

// Flush always reports end-of-stream: the decoder holds no reference
// frames between calls.
func (d *HEVCDecoder) Flush() (*avutil.Frame, error) {
	return nil, avutil.ErrEOF
}

func (d *HEVCDecoder) Close() error {
	return nil
}
