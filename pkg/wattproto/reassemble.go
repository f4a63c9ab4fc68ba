package wattproto

import "fmt"

// ReassemblyState is the per-connection fragment accumulation state.
type ReassemblyState int

const (
	StateIdle ReassemblyState = iota
	StateAccumulating
	StateComplete
	StateFailed
)

func (s ReassemblyState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reassembler accumulates notification fragments into one complete frame.
// Fragments are appended in arrival order; the transport delivers them in
// order and responses carry no correlation id, so exactly one request may
// be outstanding while a Reassembler is filling.
//
// Reassembler is not safe for concurrent use. Timeout enforcement belongs
// to the caller doing the waiting: on expiry, call Reset and report the
// timeout.
type Reassembler struct {
	buf      []byte
	expected int
	state    ReassemblyState
}

// Push appends one fragment. It returns true once a complete frame is
// buffered and ready to read with Bytes. A trailer mismatch at the expected
// length fails the frame and returns a FramingError; the next Push starts a
// fresh frame.
func (r *Reassembler) Push(fragment []byte) (bool, error) {
	if r.state == StateComplete || r.state == StateFailed {
		r.Reset()
	}
	r.buf = append(r.buf, fragment...)

	if r.expected == 0 {
		n, err := ExpectedLength(r.buf)
		if err != nil {
			// Length field not readable yet; stay Idle and wait.
			return false, nil
		}
		r.expected = n
		r.state = StateAccumulating
	}

	if len(r.buf) < r.expected {
		r.state = StateAccumulating
		return false, nil
	}

	if r.buf[r.expected-1] != FrameTail {
		r.state = StateFailed
		return false, &FramingError{
			Check:  "trailer",
			Detail: fmt.Sprintf("byte %d is 0x%02X, want 0x%02X", r.expected-1, r.buf[r.expected-1], FrameTail),
		}
	}

	r.state = StateComplete
	return true, nil
}

// Bytes returns a copy of the completed frame. It returns nil unless the
// reassembler is in the Complete state.
func (r *Reassembler) Bytes() []byte {
	if r.state != StateComplete {
		return nil
	}
	out := make([]byte, r.expected)
	copy(out, r.buf)
	return out
}

// State reports the current accumulation state.
func (r *Reassembler) State() ReassemblyState { return r.state }

// Buffered reports how many bytes are currently accumulated.
func (r *Reassembler) Buffered() int { return len(r.buf) }

// Reset discards any partial data and returns to Idle.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.expected = 0
	r.state = StateIdle
}
