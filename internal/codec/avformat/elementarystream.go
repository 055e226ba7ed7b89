// Package avformat provides the minimal raw-bitstream container govpl's
// backend reads and writes access units from. It is adapted from
// ffmpeggo/avformat/muxer.go's big-endian write-helper style
// (writeU32BE et al.); the ISO BMFF box muxing in that teacher file
// (avformat/mp4.go) is dropped entirely as irrelevant to spec.md's
// raw-bitstream-buffer model (see DESIGN.md).
package avformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vplsoft/govpl/internal/codec/avutil"
)

// ElementaryStreamWriter appends length-prefixed access units to w, one
// per Write call: a 4-byte big-endian length, a 1-byte keyframe flag, an
// 8-byte big-endian PTS, then the packet payload.
type ElementaryStreamWriter struct {
	w io.Writer
}

// NewElementaryStreamWriter wraps w.
func NewElementaryStreamWriter(w io.Writer) *ElementaryStreamWriter {
	return &ElementaryStreamWriter{w: w}
}

func writeU32BE(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU64BE(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WritePacket appends one access unit.
func (sw *ElementaryStreamWriter) WritePacket(p *avutil.Packet) error {
	if err := writeU32BE(sw.w, uint32(len(p.Data))); err != nil {
		return err
	}
	var flag byte
	if p.KeyFrame {
		flag = 1
	}
	if _, err := sw.w.Write([]byte{flag}); err != nil {
		return err
	}
	if err := writeU64BE(sw.w, uint64(p.Pts)); err != nil {
		return err
	}
	_, err := sw.w.Write(p.Data)
	return err
}

// ElementaryStreamReader reverses ElementaryStreamWriter's framing.
type ElementaryStreamReader struct {
	r io.Reader
}

// NewElementaryStreamReader wraps r.
func NewElementaryStreamReader(r io.Reader) *ElementaryStreamReader {
	return &ElementaryStreamReader{r: r}
}

func readU32BE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64BE(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadPacket reads the next access unit, or io.EOF at stream end.
func (sr *ElementaryStreamReader) ReadPacket() (*avutil.Packet, error) {
	length, err := readU32BE(sr.r)
	if err != nil {
		return nil, err
	}
	var flagBuf [1]byte
	if _, err := io.ReadFull(sr.r, flagBuf[:]); err != nil {
		return nil, fmt.Errorf("avformat: truncated keyframe flag: %w", err)
	}
	pts, err := readU64BE(sr.r)
	if err != nil {
		return nil, fmt.Errorf("avformat: truncated pts: %w", err)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(sr.r, data); err != nil {
		return nil, fmt.Errorf("avformat: truncated payload: %w", err)
	}
	return &avutil.Packet{
		Data:     data,
		Pts:      int64(pts),
		KeyFrame: flagBuf[0] == 1,
	}, nil
}
