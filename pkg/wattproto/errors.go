package wattproto

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Concrete errors returned by this package unwrap to exactly
// one of these, so callers can classify with errors.Is without caring about
// the detail type.
var (
	ErrFraming = errors.New("framing error")
	ErrRemote  = errors.New("device rejected the command")
	ErrDecode  = errors.New("payload decode error")
	ErrTimeout = errors.New("timed out")
)

// ErrShortFragment reports that too few bytes have arrived to read the
// length field yet. This is expected during early fragment arrival, not a
// failure; callers retry once more bytes are buffered.
var ErrShortFragment = errors.New("not enough bytes for length field")

// FramingError reports a received buffer that failed frame validation.
// The frame is discarded, never partially trusted.
type FramingError struct {
	Check  string // which validation failed: "length", "head", "trailer" or "checksum"
	Detail string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("wattproto: bad frame (%s): %s", e.Check, e.Detail)
}

func (e *FramingError) Unwrap() error { return ErrFraming }

// RemoteError reports a response whose function code is the device error
// sentinel. The data section of such a frame has no defined payload.
type RemoteError struct {
	FunctionCode byte
	StartAddress uint16
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wattproto: device rejected command for 0x%04X (function 0x%02X)", e.StartAddress, e.FunctionCode)
}

func (e *RemoteError) Unwrap() error { return ErrRemote }

// DecodeError reports a payload that does not fit its declared or derived
// layout. The enclosing frame itself was valid.
type DecodeError struct {
	Payload string
	Detail  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wattproto: cannot decode %s: %s", e.Payload, e.Detail)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// TimeoutError reports that a response did not complete within its bound.
// Buffered says how many bytes of a partial frame were discarded.
type TimeoutError struct {
	Op       string
	After    time.Duration
	Buffered int
}

func (e *TimeoutError) Error() string {
	if e.Buffered > 0 {
		return fmt.Sprintf("wattproto: %s timed out after %v with %d partial bytes", e.Op, e.After, e.Buffered)
	}
	return fmt.Sprintf("wattproto: %s timed out after %v", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
