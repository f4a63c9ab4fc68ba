package ble

import (
	"context"
	"sync"
)

// Mock is an in-memory Device for tests. Frames written with WriteCommand
// are recorded and handed to Respond, whose returned fragment groups are
// emitted on the notification stream, one channel send per fragment.
type Mock struct {
	mu       sync.Mutex
	written  [][]byte
	authKeys [][]byte
	notify   chan []byte

	// Respond scripts the device side. A nil Respond, or a nil return,
	// produces no response (the timeout path).
	Respond func(frame []byte) [][]byte
}

func NewMock() *Mock {
	return &Mock{notify: make(chan []byte, 64)}
}

func (m *Mock) WriteCommand(_ context.Context, frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.mu.Lock()
	m.written = append(m.written, cp)
	respond := m.Respond
	m.mu.Unlock()

	if respond == nil {
		return nil
	}
	for _, fragment := range respond(cp) {
		m.Emit(fragment)
	}
	return nil
}

func (m *Mock) Authenticate(_ context.Context, key []byte) error {
	cp := make([]byte, len(key))
	copy(cp, key)
	m.mu.Lock()
	m.authKeys = append(m.authKeys, cp)
	m.mu.Unlock()
	return nil
}

func (m *Mock) Notifications() <-chan []byte { return m.notify }

func (m *Mock) Close() error { return nil }

// Emit pushes one raw fragment to the notification stream.
func (m *Mock) Emit(fragment []byte) {
	cp := make([]byte, len(fragment))
	copy(cp, fragment)
	m.notify <- cp
}

// Written returns the frames sent so far.
func (m *Mock) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// AuthWrites returns the keys written to the auth characteristic.
func (m *Mock) AuthWrites() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.authKeys))
	copy(out, m.authKeys)
	return out
}
