// Package bitstream implements the caller-owned bitstream buffer
// (spec.md §3 "Bitstream buffer"): a growable byte region with a read
// cursor the decoder advances, distinct from internal/codec/avutil's
// bit-level BitstreamWriter. Grounded on
// original_source/libvpl/src/cpu_decode.cpp's internal buffer handling
// (m_bsDecData/m_bsDecValidBytes) and spec.md §4.3's memmove-and-refill
// contract.
package bitstream

import "github.com/vplsoft/govpl/pkg/status"

// CodecID names the compressed format a Bitstream carries, mirroring
// the subset spec.md §4.3 validates against.
type CodecID int

const (
	CodecNone CodecID = iota
	CodecAVC
	CodecHEVC
	CodecMJPEG
	CodecMPEG2
	CodecAV1
)

// Bitstream is a growable byte buffer with an unread region
// [DataOffset, DataOffset+DataLength) inside Data[:MaxLength].
type Bitstream struct {
	Data []byte

	DataOffset int
	DataLength int

	CodecID   CodecID
	Timestamp int64
}

// New allocates a Bitstream with the given backing capacity.
func New(maxLength int) *Bitstream {
	return &Bitstream{Data: make([]byte, maxLength)}
}

// MaxLength is the buffer's total capacity.
func (b *Bitstream) MaxLength() int {
	return len(b.Data)
}

// Unread returns the currently unread byte range. Callers (and the
// decoder) must treat this as read-only except through Append/Consume.
func (b *Bitstream) Unread() []byte {
	return b.Data[b.DataOffset : b.DataOffset+b.DataLength]
}

// Compact performs the memmove spec.md §4.3 requires before each
// decode_frame_async call: shift any remaining unread bytes to the
// buffer start and zero DataOffset, leaving MaxLength - DataLength
// free bytes from index DataLength onward for refill.
func (b *Bitstream) Compact() {
	if b.DataOffset == 0 {
		return
	}
	copy(b.Data, b.Unread())
	b.DataOffset = 0
}

// Append compacts, then copies src after the current unread region; Data
// is never grown. Returns NotEnoughBuffer if src would not fit even after
// Compact (caller must grow the buffer itself; this core does not
// silently reallocate past the caller-owned capacity).
func (b *Bitstream) Append(src []byte) status.Code {
	b.Compact()
	free := len(b.Data) - b.DataLength
	if len(src) > free {
		return status.NotEnoughBuffer
	}
	copy(b.Data[b.DataLength:], src)
	b.DataLength += len(src)
	return status.OK
}

// Consume advances the read cursor by n bytes, as the decoder does
// after parsing one packet from the unread region.
func (b *Bitstream) Consume(n int) status.Code {
	if n < 0 || n > b.DataLength {
		return status.UndefinedBehavior
	}
	b.DataOffset += n
	b.DataLength -= n
	return status.OK
}

// Reset empties the buffer, keeping its backing capacity.
func (b *Bitstream) Reset() {
	b.DataOffset = 0
	b.DataLength = 0
}
