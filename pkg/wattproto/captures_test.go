package wattproto

import "encoding/binary"

// Responses captured from a real XDZN_001 4-cell pack.
var (
	sampleWarningResponse = []byte{
		0x7E, 0x00, 0x01, 0x03, 0x00, 0x8D, 0x00, 0x18,
		0x04, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x06, 0x01, 0x00, 0x00, 0x18, 0x00, 0x00, 0x00,
		0x1F, 0x91, 0x0D,
	}

	sampleAnalogResponse = []byte{
		0x7E, 0x00, 0x01, 0x03, 0x00, 0x8C, 0x00, 0x20,
		0x04, 0x0C, 0xDE, 0x0C, 0xDD, 0x0C, 0xDF, 0x0C,
		0xDA, 0x04, 0x0B, 0x65, 0x0B, 0x70, 0x0B, 0x5A,
		0x0B, 0x5A, 0x40, 0x00, 0x05, 0x25, 0x07, 0x2A,
		0x0C, 0x44, 0x00, 0x05, 0x0C, 0x44, 0x00, 0x3A,
		0x4B, 0x22, 0x0D,
	}

	sampleProductResponse = []byte{
		0x7E, 0x00, 0x01, 0x03, 0x00, 0x92, 0x00, 0x3C,
		0x57, 0x54, 0x31, 0x32, 0x5F, 0x32, 0x30, 0x30,
		0x30, 0x34, 0x53, 0x57, 0x31, 0x30, 0x5F, 0x4C,
		0x34, 0x34, 0x37, 0x00, 0x20, 0x20, 0x20, 0x20,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x36, 0x30, 0x30, 0x31, 0x36, 0x30, 0x31, 0x36,
		0x32, 0x30, 0x37, 0x32, 0x37, 0x30, 0x30, 0x30,
		0x31, 0x00, 0x00, 0x00,
		0x52, 0xAA, 0x0D,
	}
)

// patched returns a copy of raw with b[idx] = val and the CRC refreshed,
// for building variant frames out of the captures.
func patched(raw []byte, idx int, val byte) []byte {
	b := make([]byte, len(raw))
	copy(b, raw)
	b[idx] = val
	binary.BigEndian.PutUint16(b[len(b)-3:len(b)-1], CRC16(b[:len(b)-3]))
	return b
}
