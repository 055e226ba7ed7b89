package avutil

// Packet is one compressed access unit exchanged with the codec
// backend. Adapted from ffmpeggo/avutil.Packet, trimmed to what the
// encoder/decoder pipelines need: payload bytes, a keyframe flag and a
// timestamp carried through from the submitting frame.
type Packet struct {
	Data     []byte
	Pts      int64
	KeyFrame bool
}

// Clone deep-copies the packet payload.
func (p *Packet) Clone() *Packet {
	dst := &Packet{Pts: p.Pts, KeyFrame: p.KeyFrame}
	if p.Data != nil {
		dst.Data = make([]byte, len(p.Data))
		copy(dst.Data, p.Data)
	}
	return dst
}
