package wattproto

// The device packs current readings into two bytes: the low 6 bits of b0
// are the high bits of a 14-bit magnitude, b1 the low 8 bits. The top two
// bits of b0 are flags, interpreted differently by the two encodings below.

// DecodeCurrentPlain decodes the unsigned current encoding. Flag values 1
// and 3 in the top two bits of b0 select a one-decimal reading. The result
// is always non-negative.
func DecodeCurrentPlain(b0, b1 byte) float64 {
	flag := (b0 & 0xC0) >> 6
	raw := uint16(b1) | uint16(b0&0x3F)<<8
	if flag == 1 || flag == 3 {
		return float64(raw) / 10.0
	}
	return float64(raw)
}

// DecodeCurrentSigned decodes the signed current encoding: bit 7 of b0 is
// the sign, bit 6 the one-decimal flag.
func DecodeCurrentSigned(b0, b1 byte) float64 {
	raw := uint16(b1) | uint16(b0&0x3F)<<8
	v := float64(raw)
	if b0&0x40 != 0 {
		v = float64(raw) / 10.0
	}
	if b0&0x80 != 0 {
		v = -v
	}
	return v
}
