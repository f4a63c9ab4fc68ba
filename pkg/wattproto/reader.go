package wattproto

import "encoding/binary"

// payloadReader walks a data section with a sticky overrun flag, so the
// count-prefixed decoders can read linearly and check once at the end.
type payloadReader struct {
	data    []byte
	off     int
	overrun bool
}

func (r *payloadReader) ok() bool       { return !r.overrun }
func (r *payloadReader) remaining() int { return len(r.data) - r.off }

func (r *payloadReader) take(n int) []byte {
	if r.overrun || r.remaining() < n {
		r.overrun = true
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *payloadReader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *payloadReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *payloadReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *payloadReader) i32() int32 { return int32(r.u32()) }

func (r *payloadReader) skip(n int) { r.take(n) }
