package avcodec

// CABAC (Context-Adaptive Binary Arithmetic Coding) primitives, adapted
// from the teacher's HEVC CABAC encoder. The synthetic HEVC backend in
// hevc.go does not entropy-code real transform residuals (see DESIGN.md
// for why a full inverse-transform decoder is out of scope) but it does
// use this engine at face value to size each encoded packet: every
// plane byte is bypass-coded (context-free) with a QP-derived number of
// bins, so packet size responds to QP. RateControlMethod and the
// bitrate fields play no part in it.

// CABACContext is a single context model's adaptive state.
type CABACContext struct {
	State uint8
	MPS   uint8
}

// InitContext derives a context's initial state from an HM-style
// initValue and the slice QP, per the HEVC spec's context initialization
// procedure.
func InitContext(initValue int, sliceQP int) CABACContext {
	slope := (initValue>>4)*5 - 45
	offset := ((initValue & 15) << 3) - 16
	state := ((slope * sliceQP) >> 4) + offset

	if state < 1 {
		state = 1
	} else if state > 126 {
		state = 126
	}

	var ctx CABACContext
	if state >= 64 {
		ctx.MPS = 1
		ctx.State = uint8(state - 64)
	} else {
		ctx.MPS = 0
		ctx.State = uint8(63 - state)
	}
	return ctx
}

var cabacLPSTable = [64][4]uint16{
	{128, 176, 208, 240}, {128, 167, 197, 227}, {128, 158, 187, 216}, {123, 150, 178, 205},
	{116, 142, 169, 195}, {111, 135, 160, 185}, {105, 128, 152, 175}, {100, 122, 144, 166},
	{95, 116, 137, 158}, {90, 110, 130, 150}, {85, 104, 123, 142}, {81, 99, 117, 135},
	{77, 94, 111, 128}, {73, 89, 105, 122}, {69, 85, 100, 116}, {66, 80, 95, 110},
	{62, 76, 90, 104}, {59, 72, 86, 99}, {56, 69, 81, 94}, {53, 65, 77, 89},
	{51, 62, 73, 85}, {48, 59, 69, 80}, {46, 56, 66, 76}, {43, 53, 63, 72},
	{41, 50, 59, 69}, {39, 48, 56, 65}, {37, 45, 54, 62}, {35, 43, 51, 59},
	{33, 41, 48, 56}, {32, 39, 46, 53}, {30, 37, 43, 50}, {29, 35, 41, 48},
	{27, 33, 39, 45}, {26, 31, 37, 43}, {24, 30, 35, 41}, {23, 28, 33, 39},
	{22, 27, 32, 37}, {21, 26, 30, 35}, {20, 24, 29, 33}, {19, 23, 27, 31},
	{18, 22, 26, 30}, {17, 21, 25, 28}, {16, 20, 23, 27}, {15, 19, 22, 25},
	{14, 18, 21, 24}, {14, 17, 20, 23}, {13, 16, 19, 22}, {12, 15, 18, 21},
	{12, 14, 17, 20}, {11, 14, 16, 19}, {11, 13, 15, 18}, {10, 12, 15, 17},
	{10, 12, 14, 16}, {9, 11, 13, 15}, {9, 11, 12, 14}, {8, 10, 12, 14},
	{8, 9, 11, 13}, {7, 9, 11, 12}, {7, 9, 10, 12}, {7, 8, 10, 11},
	{6, 8, 9, 11}, {6, 7, 9, 10}, {6, 7, 8, 9}, {2, 2, 2, 2},
}

var cabacStateLPS = [64]uint8{
	0, 0, 1, 2, 2, 4, 4, 5, 6, 7, 8, 9, 9, 11, 11, 12,
	13, 13, 15, 15, 16, 16, 18, 18, 19, 19, 21, 21, 22, 22, 23, 24,
	24, 25, 26, 26, 27, 27, 28, 29, 29, 30, 30, 30, 31, 32, 32, 33,
	33, 33, 34, 34, 35, 35, 35, 36, 36, 36, 37, 37, 37, 38, 38, 63,
}

var cabacStateMPS = [64]uint8{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32,
	33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48,
	49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 62, 63,
}

// CABACEncoder implements the renormalizing arithmetic coder engine.
type CABACEncoder struct {
	buf              []byte
	low              uint32
	rangeV           uint32
	bitsLeft         int
	bufferedByte     byte
	numBufferedBytes int
}

// NewCABACEncoder creates a ready-to-use encoder.
func NewCABACEncoder() *CABACEncoder {
	c := &CABACEncoder{buf: make([]byte, 0, 4096)}
	c.Reset()
	return c
}

// Reset reinitializes the engine for a new slice.
func (c *CABACEncoder) Reset() {
	c.low = 0
	c.rangeV = 510
	c.bitsLeft = 23
	c.bufferedByte = 0xFF
	c.numBufferedBytes = 0
	c.buf = c.buf[:0]
}

// EncodeBin encodes one context-coded binary symbol.
func (c *CABACEncoder) EncodeBin(bin int, ctx *CABACContext) {
	state := ctx.State
	mps := ctx.MPS

	rangeIdx := (c.rangeV >> 6) & 3
	lpsRange := uint32(cabacLPSTable[state][rangeIdx])
	c.rangeV -= lpsRange

	if bin != int(mps) {
		c.low += c.rangeV
		c.rangeV = lpsRange
		if state == 0 {
			ctx.MPS ^= 1
		}
		ctx.State = cabacStateLPS[state]
	} else {
		ctx.State = cabacStateMPS[state]
	}
	c.renormalize()
}

// EncodeBypass encodes one equiprobable bit.
func (c *CABACEncoder) EncodeBypass(bin int) {
	c.low <<= 1
	if bin != 0 {
		c.low += c.rangeV
	}
	c.bitsLeft--
	if c.bitsLeft < 12 {
		c.outputBits()
	}
}

// EncodeBypassBins encodes the low numBins bits of value, MSB first.
func (c *CABACEncoder) EncodeBypassBins(value uint32, numBins int) {
	for i := numBins - 1; i >= 0; i-- {
		c.EncodeBypass(int((value >> uint(i)) & 1))
	}
}

// EncodeTerminate ends the slice (bin=1) or continues (bin=0).
func (c *CABACEncoder) EncodeTerminate(bin int) {
	c.rangeV -= 2
	if bin != 0 {
		c.low += c.rangeV
		c.rangeV = 2
		c.renormalize()
		c.outputBits()
		c.buf = append(c.buf, byte((c.low>>15)&0xFF))
		c.buf = append(c.buf, byte((c.low>>7)&0xFF))
		c.low = 0
		c.rangeV = 510
	} else {
		c.renormalize()
	}
}

func (c *CABACEncoder) renormalize() {
	for c.rangeV < 256 {
		c.bitsLeft--
		if c.bitsLeft < 12 {
			c.outputBits()
		}
		c.rangeV <<= 1
		c.low <<= 1
	}
}

func (c *CABACEncoder) outputBits() {
	leadByte := c.low >> uint(24-c.bitsLeft)
	c.bitsLeft += 8

	if c.numBufferedBytes > 0 {
		if leadByte == 0xFF {
			c.numBufferedBytes++
		} else {
			carry := leadByte >> 8
			byteToWrite := c.bufferedByte + byte(carry)
			c.buf = append(c.buf, byteToWrite)

			for c.numBufferedBytes > 1 {
				c.buf = append(c.buf, byte(0xFF+carry))
				c.numBufferedBytes--
			}
			c.numBufferedBytes = 1
			c.bufferedByte = byte(leadByte)
		}
	} else {
		c.numBufferedBytes = 1
		c.bufferedByte = byte(leadByte)
	}

	c.low &= (1 << uint(24-c.bitsLeft)) - 1
}

// Finish terminates the stream and returns the encoded bytes.
func (c *CABACEncoder) Finish() []byte {
	c.EncodeTerminate(1)
	return c.buf
}

// Bytes returns the bytes encoded so far without terminating.
func (c *CABACEncoder) Bytes() []byte {
	return c.buf
}
