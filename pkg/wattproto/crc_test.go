package wattproto

import (
	"encoding/binary"
	"testing"
)

func TestCRC16CapturedFrames(t *testing.T) {
	for _, tt := range []struct {
		name  string
		frame []byte
	}{
		{"warning", sampleWarningResponse},
		{"analog", sampleAnalogResponse},
		{"product", sampleProductResponse},
	} {
		t.Run(tt.name, func(t *testing.T) {
			want := binary.BigEndian.Uint16(tt.frame[len(tt.frame)-3 : len(tt.frame)-1])
			if got := CRC16(tt.frame[:len(tt.frame)-3]); got != want {
				t.Fatalf("CRC16 = 0x%04X, frame carries 0x%04X", got, want)
			}
		})
	}
}

func TestCRC16KnownValue(t *testing.T) {
	// The warning capture's CRC, 0x1F91, pins the byte-swapped packing:
	// a conventional Modbus CRC of the same bytes would come out swapped.
	if got := CRC16(sampleWarningResponse[:len(sampleWarningResponse)-3]); got != 0x1F91 {
		t.Fatalf("CRC16 = 0x%04X, want 0x1F91", got)
	}
}

func TestCRC16Empty(t *testing.T) {
	// No input leaves both accumulators at their 0xFF init.
	if got := CRC16(nil); got != 0xFFFF {
		t.Fatalf("CRC16(nil) = 0x%04X, want 0xFFFF", got)
	}
}

func TestCRC16OrderSensitive(t *testing.T) {
	a := CRC16([]byte{0x01, 0x02, 0x03})
	b := CRC16([]byte{0x03, 0x02, 0x01})
	if a == b {
		t.Fatalf("reordered input produced the same CRC 0x%04X", a)
	}
}
