// Package wattproto implements the binary protocol spoken by Wattcycle/XDZN
// battery monitors: frame construction and validation, the vendor CRC16,
// fragment reassembly, and the per-data-point payload decoders.
//
// The package is transport-agnostic. It deals in byte slices only; the BLE
// link that carries them lives elsewhere.
package wattproto

import (
	"encoding/binary"
	"fmt"
)

// Frame envelope constants.
const (
	FrameHead    = 0x7E // primary head byte
	FrameHeadAlt = 0x1E // alternative head byte on some device variants
	FrameTail    = 0x0D

	FuncRead  = 0x03
	FuncWrite = 0x06
	FuncError = 0x86 // device-side error response

	DeviceAddr = 0x01

	// MinFrameSize is the fixed envelope: head, version, address, function,
	// start address (2), data length (2), CRC (2), tail.
	MinFrameSize = 11
)

// Protocol version bytes. Responses self-report a version; anything at or
// above newVersionThreshold is treated as the new protocol regardless of
// what was requested.
const (
	VersionOld = 0x00
	VersionNew = 0x01

	newVersionThreshold = 0x04
)

// Data-point addresses decoded by this package. Other addresses pass
// through as opaque commands.
const (
	DPAnalogQuantity uint16 = 0x008C
	DPWarningInfo    uint16 = 0x008D
	DPProductInfo    uint16 = 0x0092
)

// AuthKey is written once per connection to the authentication
// characteristic before any command.
var AuthKey = []byte("HiLink")

// InfoData is the negotiation block appended to new-protocol read requests,
// declaring the voltage and temperature counts the caller expects.
type InfoData struct {
	Address          byte
	VoltageCount     uint16
	TemperatureCount uint16
}

// AnalogInfoData is the canonical negotiation block for analog-quantity
// reads: 00 05 01 00 20 00 20 on the wire.
var AnalogInfoData = InfoData{Address: DeviceAddr, VoltageCount: 0x20, TemperatureCount: 0x20}

const infoDataSize = 7

func (i InfoData) appendTo(buf []byte) []byte {
	buf = append(buf, 0x00, 0x05, i.Address)
	buf = binary.BigEndian.AppendUint16(buf, i.VoltageCount)
	buf = binary.BigEndian.AppendUint16(buf, i.TemperatureCount)
	return buf
}

// Frame is one complete, validated protocol message.
type Frame struct {
	Head         byte
	Version      byte
	Address      byte
	FunctionCode byte
	StartAddress uint16
	DataLength   uint16
	Data         []byte
	Checksum     uint16
	Raw          []byte
}

// IsError reports whether the device signalled a command rejection. The
// data section of an error frame has no defined payload and must not be
// decoded.
func (f Frame) IsError() bool { return f.FunctionCode == FuncError }

// NewProtocol reports whether the responding device speaks the new protocol
// variant, based on its self-reported version byte.
func (f Frame) NewProtocol() bool { return f.Version >= newVersionThreshold }

// BuildReadFrame builds a read request for the given data-point address.
// info must be nil when version is VersionOld; new-protocol requests carry
// the 7-byte negotiation block between the read count and the CRC.
func BuildReadFrame(head, version, address byte, dpAddress, readCount uint16, info *InfoData) ([]byte, error) {
	if info != nil && version == VersionOld {
		return nil, fmt.Errorf("wattproto: info data requires a new-protocol version byte")
	}
	buf := make([]byte, 0, MinFrameSize+infoDataSize)
	buf = append(buf, head, version, address, FuncRead)
	buf = binary.BigEndian.AppendUint16(buf, dpAddress)
	buf = binary.BigEndian.AppendUint16(buf, readCount)
	if info != nil {
		buf = info.appendTo(buf)
	}
	buf = binary.BigEndian.AppendUint16(buf, CRC16(buf))
	buf = append(buf, FrameTail)
	return buf, nil
}

// BuildWriteFrame builds a write request carrying data for the given
// data-point address. The length field holds len(data).
func BuildWriteFrame(head, address byte, dpAddress uint16, data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("wattproto: write data too long: %d bytes", len(data))
	}
	buf := make([]byte, 0, MinFrameSize+len(data))
	buf = append(buf, head, VersionOld, address, FuncWrite)
	buf = binary.BigEndian.AppendUint16(buf, dpAddress)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	buf = append(buf, data...)
	buf = binary.BigEndian.AppendUint16(buf, CRC16(buf))
	buf = append(buf, FrameTail)
	return buf, nil
}

// ParseFrame validates a complete buffer and extracts the frame fields.
// Error frames (FuncError) parse successfully; callers must check IsError
// before decoding the data section.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, &FramingError{Check: "length", Detail: fmt.Sprintf("%d bytes, need at least %d", len(data), MinFrameSize)}
	}
	if data[0] != FrameHead && data[0] != FrameHeadAlt {
		return Frame{}, &FramingError{Check: "head", Detail: fmt.Sprintf("unknown head byte 0x%02X", data[0])}
	}
	dataLen := binary.BigEndian.Uint16(data[6:8])
	if len(data) != int(dataLen)+MinFrameSize {
		return Frame{}, &FramingError{Check: "length", Detail: fmt.Sprintf("declared %d data bytes but frame is %d bytes", dataLen, len(data))}
	}
	if data[len(data)-1] != FrameTail {
		return Frame{}, &FramingError{Check: "trailer", Detail: fmt.Sprintf("got 0x%02X, want 0x%02X", data[len(data)-1], FrameTail)}
	}
	sum := binary.BigEndian.Uint16(data[len(data)-3 : len(data)-1])
	if got := CRC16(data[:len(data)-3]); got != sum {
		return Frame{}, &FramingError{Check: "checksum", Detail: fmt.Sprintf("computed 0x%04X, frame carries 0x%04X", got, sum)}
	}

	payload := make([]byte, dataLen)
	copy(payload, data[8:8+int(dataLen)])
	raw := make([]byte, len(data))
	copy(raw, data)

	return Frame{
		Head:         data[0],
		Version:      data[1],
		Address:      data[2],
		FunctionCode: data[3],
		StartAddress: binary.BigEndian.Uint16(data[4:6]),
		DataLength:   dataLen,
		Data:         payload,
		Checksum:     sum,
		Raw:          raw,
	}, nil
}

// ExpectedLength reads the declared data length out of the first fragment
// of a response and returns the total frame length. It returns
// ErrShortFragment while fewer than 8 bytes are available.
func ExpectedLength(firstFragment []byte) (int, error) {
	if len(firstFragment) < 8 {
		return 0, ErrShortFragment
	}
	return int(binary.BigEndian.Uint16(firstFragment[6:8])) + MinFrameSize, nil
}

// HexString renders b as space-separated uppercase hex, the format used in
// debug logs.
func HexString(b []byte) string {
	out := make([]byte, 0, len(b)*3)
	const digits = "0123456789ABCDEF"
	for i, c := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[c>>4], digits[c&0x0F])
	}
	return string(out)
}
